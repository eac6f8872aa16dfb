package timeoutprevention

import (
	"time"

	"github.com/go-nfn/nfnd/core"
	"github.com/go-nfn/nfnd/defn"
	"golang.org/x/exp/rand"
)

// Config carries the options this layer consults.
type Config struct {
	KeepaliveTimeoutInterval time.Duration
}

// ComputationChecker is the NFNLayer's read-only surface this sidecar
// needs: whether a computation for a given name is still tracked, to
// answer an incoming keep-alive Interest.
type ComputationChecker interface {
	IsRunning(name defn.Name) bool
}

// Layer is the TimeoutPreventionLayer: a transparent pass-through for
// everything except NFN Interests and their keep-alive traffic.
type Layer struct {
	cfg   Config
	dict  *messageDict
	table ComputationChecker

	FromLower  chan *defn.Packet // from ChunkLayer
	ToLower    chan *defn.Packet // to ChunkLayer
	FromHigher chan *defn.Packet // from NFNLayer
	ToHigher   chan *defn.Packet // to NFNLayer

	done chan struct{}
}

func (l *Layer) String() string { return "timeoutprevention-layer" }

// NewLayer constructs a TimeoutPreventionLayer querying table for
// keep-alive answers.
func NewLayer(cfg Config, table ComputationChecker, queueDepth int) *Layer {
	return &Layer{
		cfg:        cfg,
		dict:       newMessageDict(),
		table:      table,
		FromLower:  make(chan *defn.Packet, queueDepth),
		ToLower:    make(chan *defn.Packet, queueDepth),
		FromHigher: make(chan *defn.Packet, queueDepth),
		ToHigher:   make(chan *defn.Packet, queueDepth),
		done:       make(chan struct{}),
	}
}

// Run is the layer's single-threaded main loop.
func (l *Layer) Run(ageing <-chan time.Time) {
	for {
		select {
		case p := <-l.FromLower:
			l.handleFromLower(p)
		case p := <-l.FromHigher:
			l.handleFromHigher(p)
		case now := <-ageing:
			l.age(now)
		case <-l.done:
			return
		}
	}
}

func (l *Layer) handleFromLower(p *defn.Packet) {
	switch p.Kind {
	case defn.KindInterest:
		l.handleInterestFromLower(p)
	case defn.KindContent:
		l.handleContentFromLower(p)
	case defn.KindNack:
		l.handleTerminalFromLower(p)
	}
}

func (l *Layer) handleInterestFromLower(p *defn.Packet) {
	if !p.Name.IsKeepAlive() {
		l.sendUp(p)
		return
	}

	nfnName := defn.RemoveKeepAlive(p.Name)
	if l.table != nil && l.table.IsRunning(nfnName) {
		l.sendDown(defn.NewContent(p.Name, nil))
		return
	}
	l.sendDown(defn.NewNack(p.Name, defn.NackCompNotRunning, p))
}

func (l *Layer) handleContentFromLower(p *defn.Packet) {
	if p.Name.IsKeepAlive() {
		l.dict.refresh(p.Name)
		return
	}
	l.handleTerminalFromLower(p)
}

// handleTerminalFromLower clears both dict entries for a completed
// computation (Content or Nack) before passing it on up.
func (l *Layer) handleTerminalFromLower(p *defn.Packet) {
	if _, ok := l.dict.get(p.Name); ok {
		l.dict.remove(p.Name)
		l.dict.remove(defn.AddKeepAlive(p.Name))
	}
	l.sendUp(p)
}

func (l *Layer) handleFromHigher(p *defn.Packet) {
	if p.Kind == defn.KindInterest && p.Name.IsNFN() && !p.Name.IsKeepAlive() {
		l.dict.create(p.Name)
		l.dict.create(defn.AddKeepAlive(p.Name))
	}
	l.sendDown(p)
}

// age refreshes every tracked name with a fresh Interest downward, except
// a keep-alive entry whose timeout has elapsed - that one fails the
// computation with a Nack upward instead.
func (l *Layer) age(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			core.Log.Warn(l, "Exception during ageing, continuing", "panic", r)
		}
	}()

	var expired []defn.Name
	for _, name := range l.dict.names() {
		entry, ok := l.dict.get(name)
		if !ok {
			continue
		}

		if !name.IsKeepAlive() {
			l.sendDown(defn.NewInterest(name))
			continue
		}

		if now.Sub(entry.timestamp) > l.cfg.KeepaliveTimeoutInterval {
			expired = append(expired, name)
			continue
		}
		l.sendDown(defn.NewInterest(name))
	}

	for _, keepaliveName := range expired {
		originalName := defn.RemoveKeepAlive(keepaliveName)
		l.dict.remove(keepaliveName)
		l.dict.remove(originalName)
		l.sendUp(defn.NewNack(originalName, defn.NackNotSet, defn.NewInterest(originalName)))
	}
}

// JitteredTicker runs a send on the returned channel every interval, each
// tick varied by up to ±10% so many computations toward the same upstream
// peer don't all emit keep-alive traffic in the same instant. The returned
// func stops the ticker goroutine.
func JitteredTicker(interval time.Duration) (<-chan time.Time, func()) {
	ch := make(chan time.Time)
	done := make(chan struct{})
	src := rand.New(rand.NewSource(uint64(time.Now().UnixNano())))

	go func() {
		for {
			jitter := time.Duration((src.Float64()*0.2 - 0.1) * float64(interval))
			timer := time.NewTimer(interval + jitter)
			select {
			case now := <-timer.C:
				select {
				case ch <- now:
				case <-done:
					timer.Stop()
					return
				}
			case <-done:
				timer.Stop()
				return
			}
		}
	}()

	return ch, func() { close(done) }
}

func (l *Layer) sendDown(p *defn.Packet) {
	select {
	case l.ToLower <- p:
	default:
		core.Log.Warn(l, "Dropping outbound packet, queue full", "name", p.Name)
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
