// Package icn implements the core forwarding engine: the Content Store,
// Pending Interest Table, and Forwarding Information Base, running the
// Interest/Content/Nack state machine. This is the busiest layer in the
// pipeline - every packet not satisfied by chunking or NFN rewriting
// passes through it.
package icn

import (
	"time"

	"github.com/go-nfn/nfnd/core"
	"github.com/go-nfn/nfnd/defn"
	"github.com/go-nfn/nfnd/table"
)

// Config carries the subset of forwarder configuration that this layer
// consults.
type Config struct {
	InterestToApp  bool
	PitTimeout     time.Duration
	CsTTL          time.Duration
	CsCapacity     int
	AgeingInterval time.Duration

	// UnsolicitedCaching controls whether Content arriving with no
	// matching PIT entry is cached anyway. Off by default: Content nobody
	// asked for is dropped rather than filling the store.
	UnsolicitedCaching bool
}

// Layer is the ICN forwarding layer. Its tables are mutated only from
// Run's goroutine (main loop dequeue or the ageing tick) - there is no
// locking because there is no concurrent access.
type Layer struct {
	cfg Config
	cs  *table.ContentStore
	pit *table.PendingInterestTable
	fib *table.ForwardingInformationBase

	FromLower  chan defn.FromFace // decoded packets from PacketEncodingLayer
	ToLower    chan defn.FromFace // packets to PacketEncodingLayer
	FromHigher chan *defn.Packet  // packets from ChunkLayer (local app)
	ToHigher   chan *defn.Packet  // packets to ChunkLayer

	fibCmds chan fibCmd
	sync    chan func()
	done    chan struct{}
}

func (l *Layer) String() string { return "icn-layer" }

// NewLayer constructs an ICNLayer with fresh tables and the given queue
// depth on every boundary channel.
func NewLayer(cfg Config, queueDepth int) *Layer {
	return &Layer{
		cfg:        cfg,
		cs:         table.NewContentStore(cfg.CsCapacity, cfg.CsTTL),
		pit:        table.NewPendingInterestTable(),
		fib:        table.NewForwardingInformationBase(),
		FromLower:  make(chan defn.FromFace, queueDepth),
		ToLower:    make(chan defn.FromFace, queueDepth),
		FromHigher: make(chan *defn.Packet, queueDepth),
		ToHigher:   make(chan *defn.Packet, queueDepth),
		fibCmds:    make(chan fibCmd, 16),
		sync:       make(chan func()),
		done:       make(chan struct{}),
	}
}

// FIB exposes the Forwarding Information Base. Only safe to read from
// inside a RunSync closure - direct access from a foreign goroutine races
// the main loop's writes.
func (l *Layer) FIB() *table.ForwardingInformationBase { return l.fib }

// PIT exposes the Pending Interest Table, under the same RunSync-only
// contract as FIB.
func (l *Layer) PIT() *table.PendingInterestTable { return l.pit }

// CS exposes the Content Store, under the same RunSync-only contract as
// FIB.
func (l *Layer) CS() *table.ContentStore { return l.cs }

// RunSync runs fn on the layer's own goroutine and blocks until it
// returns, giving the management surface's read-only introspection
// commands (getfib/getpit/getcs) race-free access to the tables without
// making them safe for concurrent use in general.
func (l *Layer) RunSync(fn func()) {
	done := make(chan struct{})
	select {
	case l.sync <- func() { fn(); close(done) }:
	case <-l.done:
		return
	}
	<-done
}

// fibCmd is a FIB mutation requested by the management surface, applied
// on the ICNLayer's own goroutine.
type fibCmd struct {
	insert bool
	prefix defn.Name
	face   defn.FaceID
	done   chan struct{}
}

// InsertRoute queues a FIB insert and blocks until the ICNLayer's own
// goroutine has applied it.
func (l *Layer) InsertRoute(prefix defn.Name, face defn.FaceID) {
	done := make(chan struct{})
	l.fibCmds <- fibCmd{insert: true, prefix: prefix, face: face, done: done}
	<-done
}

// RemoveRoute queues a FIB removal and blocks until applied.
func (l *Layer) RemoveRoute(prefix defn.Name) {
	done := make(chan struct{})
	l.fibCmds <- fibCmd{insert: false, prefix: prefix, done: done}
	<-done
}

// Run is the layer's single-threaded main loop: exactly one packet (or
// ageing tick, or FIB command) is processed to completion before the next
// is dequeued.
func (l *Layer) Run(ageing <-chan time.Time) {
	for {
		select {
		case ff := <-l.FromLower:
			l.handlePacketFromBelow(ff.Face, ff.Packet)
		case p := <-l.FromHigher:
			l.handlePacketFromAbove(p)
		case cmd := <-l.fibCmds:
			l.applyFibCmd(cmd)
		case fn := <-l.sync:
			fn()
		case now := <-ageing:
			l.age(now)
		case <-l.done:
			return
		}
	}
}

func (l *Layer) applyFibCmd(cmd fibCmd) {
	if cmd.insert {
		l.fib.Insert(cmd.prefix, cmd.face)
	} else {
		l.fib.Remove(cmd.prefix)
	}
	if cmd.done != nil {
		close(cmd.done)
	}
}

func (l *Layer) handlePacketFromBelow(face defn.FaceID, p *defn.Packet) {
	defer l.recoverToNack(face, p)
	switch p.Kind {
	case defn.KindInterest:
		l.handleInterest(face, p, false)
	case defn.KindContent:
		l.handleContent(face, p, false)
	case defn.KindNack:
		l.handleNack(p)
	}
}

func (l *Layer) handlePacketFromAbove(p *defn.Packet) {
	defer l.recoverToNack(defn.AppFace, p)
	switch p.Kind {
	case defn.KindInterest:
		l.handleInterest(defn.AppFace, p, true)
	case defn.KindContent:
		l.handleContent(defn.AppFace, p, true)
	case defn.KindNack:
		l.handleNack(p)
	}
}

// recoverToNack converts a panicking handler into a Nack to the
// originator. No exception ever propagates across the layer boundary.
func (l *Layer) recoverToNack(face defn.FaceID, p *defn.Packet) {
	if r := recover(); r != nil {
		core.Log.Error(l, "Recovered panic while handling packet", "panic", r, "name", p.Name)
		l.emitTo(face, face == defn.AppFace, defn.NewNack(p.Name, defn.NackNotSet, p))
	}
}

func (l *Layer) sendDown(face defn.FaceID, p *defn.Packet) {
	select {
	case l.ToLower <- defn.FromFace{Face: face, Packet: p}:
	default:
		core.Log.Warn(l, "Dropping outbound packet, queue full", "face", face, "name", p.Name)
	}
}

func (l *Layer) sendUp(p *defn.Packet) {
	select {
	case l.ToHigher <- p:
	default:
		core.Log.Warn(l, "Dropping upward packet, queue full", "name", p.Name)
	}
}

// Stop shuts the layer's main loop down.
func (l *Layer) Stop() { close(l.done) }
