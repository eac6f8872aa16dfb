// Package forwarder wires every layer - LinkLayer, PacketEncodingLayer,
// ICNLayer, ChunkLayer, TimeoutPreventionLayer, NFNLayer - into one running
// pipeline, plus the management control socket that drives it at runtime.
package forwarder

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-nfn/nfnd/chunk"
	"github.com/go-nfn/nfnd/core"
	"github.com/go-nfn/nfnd/defn"
	"github.com/go-nfn/nfnd/encoding"
	"github.com/go-nfn/nfnd/face"
	"github.com/go-nfn/nfnd/icn"
	"github.com/go-nfn/nfnd/mgmt"
	"github.com/go-nfn/nfnd/nfn"
	"github.com/go-nfn/nfnd/packetencoding"
	"github.com/go-nfn/nfnd/table"
	"github.com/go-nfn/nfnd/timeoutprevention"
)

// queueDepth bounds every inter-layer channel in the pipeline.
const queueDepth = 256

// Forwarder owns the full layer stack and the goroutines pumping packets
// across each layer boundary.
type Forwarder struct {
	cfg *core.Config

	link  *face.LinkLayer
	pe    *packetencoding.Layer
	icn   *icn.Layer
	chunk *chunk.Layer
	tp    *timeoutprevention.Layer
	nfn   *nfn.Layer

	mgmt *mgmt.Server

	tickers    []*time.Ticker
	jitterStop func()

	pumpDone chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func (f *Forwarder) String() string { return "forwarder" }

// New constructs every layer and the management server from cfg, without
// starting any of them.
func New(cfg *core.Config) (*Forwarder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("forwarder: %w", err)
	}

	transport, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}

	exec, err := nfn.NewExecutor(cfg.Executors["default"])
	if err != nil {
		return nil, err
	}

	nfnLayer, err := nfn.NewLayer(nfn.Config{
		ExecutorWorkers:  cfg.ExecutorWorkers,
		ExecutorDeadline: cfg.ExecutorDeadline,
		CodeCacheDir:     cfg.CodeCacheDir,
		ComputationGrace: cfg.ComputationGrace,
	}, exec, queueDepth)
	if err != nil {
		return nil, fmt.Errorf("forwarder: construct nfn layer: %w", err)
	}

	audit, err := mgmt.OpenAuditLog(cfg.AuditDBPath)
	if err != nil {
		return nil, fmt.Errorf("forwarder: %w", err)
	}

	f := &Forwarder{
		cfg:      cfg,
		link:     face.NewLinkLayer(transport, queueDepth),
		pe:       packetencoding.NewLayer(encoding.StringEncoder{}, queueDepth),
		icn: icn.NewLayer(icn.Config{
			InterestToApp:  cfg.InterestToApp,
			PitTimeout:     cfg.PitTimeout,
			CsTTL:          cfg.CsTTL,
			CsCapacity:     cfg.CsCapacity,
			AgeingInterval: cfg.AgeingInterval,
		}, queueDepth),
		chunk: chunk.NewLayer(chunk.Config{
			ChunkSize:    cfg.ChunkSize,
			ChunkTimeout: cfg.ChunkTimeout,
		}, queueDepth),
		tp: timeoutprevention.NewLayer(timeoutprevention.Config{
			KeepaliveTimeoutInterval: cfg.KeepaliveTimeoutInterval,
		}, nfnLayer, queueDepth),
		nfn:      nfnLayer,
		pumpDone: make(chan struct{}),
		done:     make(chan struct{}),
	}
	f.mgmt = mgmt.NewServer(fmt.Sprintf(":%d", cfg.MgmtPort), f, audit)
	return f, nil
}

func newTransport(cfg *core.Config) (face.Transport, error) {
	switch cfg.Transport {
	case "", "udp":
		return face.NewUDPTransport(cfg.Port), nil
	case "websocket":
		return face.NewWebSocketTransport(fmt.Sprintf(":%d", cfg.Port)), nil
	default:
		return nil, fmt.Errorf("forwarder: unknown transport %q", cfg.Transport)
	}
}

// Start binds the transport, launches every layer's main loop, starts the
// inter-layer pump goroutines and ageing tickers, and opens the management
// socket.
func (f *Forwarder) Start() error {
	if err := f.link.Start(); err != nil {
		return fmt.Errorf("forwarder: %w", err)
	}

	go f.pe.Run()
	go f.icn.Run(f.newTicker().C)
	go f.chunk.Run(f.newTicker().C)

	jittered, jitterStop := timeoutprevention.JitteredTicker(f.cfg.AgeingInterval)
	f.jitterStop = jitterStop
	go f.tp.Run(jittered)

	go f.nfn.Run(f.newTicker().C)

	f.startPumps()

	if err := f.mgmt.Start(); err != nil {
		return fmt.Errorf("forwarder: %w", err)
	}
	return nil
}

func (f *Forwarder) newTicker() *time.Ticker {
	t := time.NewTicker(f.cfg.AgeingInterval)
	f.tickers = append(f.tickers, t)
	return t
}

// startPumps launches the boundary goroutines translating one layer's
// outbound channel shape into the next layer's inbound shape. Every layer
// owns its tables exclusively; these goroutines only ever move values
// between channels, never touch layer state directly.
func (f *Forwarder) startPumps() {
	pumps := []func(){
		func() { // LinkLayer -> PacketEncodingLayer, inbound
			for {
				select {
				case raw := <-f.link.ToHigher:
					f.pe.FromLower <- packetencoding.RawFrame{Face: raw.Face, Payload: raw.Payload}
				case <-f.pumpDone:
					return
				}
			}
		},
		func() { // PacketEncodingLayer -> LinkLayer, outbound
			for {
				select {
				case raw := <-f.pe.ToLower:
					f.link.FromHigher <- rawFrameOf(raw)
				case <-f.pumpDone:
					return
				}
			}
		},
		func() { // PacketEncodingLayer -> ICNLayer, inbound
			for {
				select {
				case frame := <-f.pe.ToHigher:
					f.icn.FromLower <- defn.FromFace{Face: frame.Face, Packet: frame.Packet}
				case <-f.pumpDone:
					return
				}
			}
		},
		func() { // ICNLayer -> PacketEncodingLayer, outbound
			for {
				select {
				case ff := <-f.icn.ToLower:
					f.pe.FromHigher <- packetencoding.Frame{Face: ff.Face, Packet: ff.Packet}
				case <-f.pumpDone:
					return
				}
			}
		},
		func() { // ICNLayer -> ChunkLayer, inbound (local application side)
			for {
				select {
				case p := <-f.icn.ToHigher:
					f.chunk.FromLower <- p
				case <-f.pumpDone:
					return
				}
			}
		},
		func() { // ChunkLayer -> ICNLayer, outbound
			for {
				select {
				case p := <-f.chunk.ToLower:
					f.icn.FromHigher <- p
				case <-f.pumpDone:
					return
				}
			}
		},
		func() { // ChunkLayer -> TimeoutPreventionLayer
			for {
				select {
				case p := <-f.chunk.ToHigher:
					f.tp.FromLower <- p
				case <-f.pumpDone:
					return
				}
			}
		},
		func() { // TimeoutPreventionLayer -> ChunkLayer
			for {
				select {
				case p := <-f.tp.ToLower:
					f.chunk.FromHigher <- p
				case <-f.pumpDone:
					return
				}
			}
		},
		func() { // TimeoutPreventionLayer -> NFNLayer
			for {
				select {
				case p := <-f.tp.ToHigher:
					f.nfn.FromLower <- p
				case <-f.pumpDone:
					return
				}
			}
		},
		func() { // NFNLayer -> TimeoutPreventionLayer
			for {
				select {
				case p := <-f.nfn.ToLower:
					f.tp.FromHigher <- p
				case <-f.pumpDone:
					return
				}
			}
		},
	}
	for _, pump := range pumps {
		go pump()
	}
}

// rawFrameOf adapts a packetencoding.RawFrame to the unexported frame
// shape face.LinkLayer.FromHigher expects - same (Face, Payload) fields,
// different package-local type.
func rawFrameOf(raw packetencoding.RawFrame) struct {
	Face    defn.FaceID
	Payload []byte
} {
	return struct {
		Face    defn.FaceID
		Payload []byte
	}{Face: raw.Face, Payload: raw.Payload}
}

// NewFace implements mgmt.Forwarder.
func (f *Forwarder) NewFace(peer face.PeerAddr) defn.FaceID { return f.link.NewFace(peer) }

// InsertRoute implements mgmt.Forwarder.
func (f *Forwarder) InsertRoute(prefix defn.Name, faceID defn.FaceID) {
	f.icn.InsertRoute(prefix, faceID)
}

// PublishContent implements mgmt.Forwarder: it registers payload as
// locally served content under name, then routes name to the local
// application pseudo-face so Interests for it reach the ChunkLayer.
func (f *Forwarder) PublishContent(name defn.Name, payload []byte) {
	f.chunk.PublishContent(name, payload)
	f.icn.InsertRoute(name, defn.AppFace)
}

// RunSync implements mgmt.Forwarder.
func (f *Forwarder) RunSync(fn func()) { f.icn.RunSync(fn) }

// FIB implements mgmt.Forwarder.
func (f *Forwarder) FIB() *table.ForwardingInformationBase { return f.icn.FIB() }

// PIT implements mgmt.Forwarder.
func (f *Forwarder) PIT() *table.PendingInterestTable { return f.icn.PIT() }

// CS implements mgmt.Forwarder.
func (f *Forwarder) CS() *table.ContentStore { return f.icn.CS() }

// Shutdown implements mgmt.Forwarder: it stops every layer, pump, and
// ticker, then signals Done.
func (f *Forwarder) Shutdown() {
	f.stopOnce.Do(func() {
		close(f.pumpDone)
		for _, t := range f.tickers {
			t.Stop()
		}
		if f.jitterStop != nil {
			f.jitterStop()
		}
		f.link.Stop()
		f.pe.Stop()
		f.icn.Stop()
		f.chunk.Stop()
		f.tp.Stop()
		f.nfn.Stop()
		_ = f.mgmt.Stop()
		close(f.done)
	})
}

// Done returns a channel closed once Shutdown has completed, for a caller
// to block on until the forwarder has fully stopped.
func (f *Forwarder) Done() <-chan struct{} { return f.done }
