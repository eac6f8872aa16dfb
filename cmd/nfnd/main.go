// Command nfnd runs the forwarder: every layer from LinkLayer up through
// NFNLayer, plus the management control socket.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-nfn/nfnd/core"
	"github.com/go-nfn/nfnd/forwarder"
	"github.com/spf13/cobra"
)

var cmdNfnd = &cobra.Command{
	Use:     "nfnd [CONFIG-FILE]",
	Short:   "Named-function forwarding daemon",
	Args:    cobra.MaximumNArgs(1),
	Version: "0.1.0",
	RunE:    run,
}

func run(cmd *cobra.Command, args []string) error {
	cfg := core.DefaultConfig()
	if len(args) == 1 {
		if err := core.ReadYaml(cfg, args[0]); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := core.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	core.Log.SetLevel(level)

	fwd, err := forwarder.New(cfg)
	if err != nil {
		return fmt.Errorf("construct forwarder: %w", err)
	}
	if err := fwd.Start(); err != nil {
		return fmt.Errorf("start forwarder: %w", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	received := <-sig
	core.Log.Info(fwd, "Received signal, shutting down", "signal", received)

	fwd.Shutdown()
	<-fwd.Done()
	return nil
}

func main() {
	if err := cmdNfnd.Execute(); err != nil {
		os.Exit(1)
	}
}
