// Command nfnc is a thin client for the nfnd management control socket: it
// sends one line-protocol command per invocation and prints the single
// line of text the daemon answers with.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var addr string

var cmdNfnc = &cobra.Command{
	Use:   "nfnc",
	Short: "Control client for the nfnd management socket",
}

func init() {
	cmdNfnc.PersistentFlags().StringVar(&addr, "addr", "127.0.0.1:9001", "nfnd management socket address")

	cmdNfnc.AddCommand(
		lineCommand("newface", "IP PORT", 2, "Register a face for a peer"),
		lineCommand("newforwardingrule", "PREFIX FACE_ID", 2, "Insert a FIB route"),
		lineCommand("newcontent", "NAME PAYLOAD", 2, "Publish local content"),
		lineCommand("shutdown", "", 0, "Stop the daemon"),
		lineCommand("getfib", "", 0, "List FIB entries"),
		lineCommand("getpit", "", 0, "List PIT entries"),
		lineCommand("getcs", "", 0, "List Content Store entries"),
	)
}

// lineCommand builds a cobra subcommand that joins its arguments with the
// verb and sends the resulting line verbatim to the management socket.
func lineCommand(verb, argsUsage string, nargs int, short string) *cobra.Command {
	use := verb
	if argsUsage != "" {
		use = verb + " " + argsUsage
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			line := verb
			if len(args) > 0 {
				line += " " + strings.Join(args, " ")
			}
			return sendCommand(addr, line)
		},
	}
}

// sendCommand dials addr, sends line terminated with a newline, and prints
// the single-line response.
func sendCommand(addr, line string) error {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if _, err := fmt.Fprintln(conn, line); err != nil {
		return fmt.Errorf("send command: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		return fmt.Errorf("no response from %s", addr)
	}
	fmt.Println(scanner.Text())
	return nil
}

func main() {
	if err := cmdNfnc.Execute(); err != nil {
		os.Exit(1)
	}
}
