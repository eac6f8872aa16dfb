package chunk

import (
	"time"

	"github.com/go-nfn/nfnd/core"
	"github.com/go-nfn/nfnd/defn"
)

// Config carries the options this layer consults.
type Config struct {
	ChunkSize    int
	ChunkTimeout time.Duration
}

// reassembly tracks an in-progress fetch of a chunked object this layer
// requested on behalf of the layer above.
type reassembly struct {
	manifest *Manifest
	got      map[string][]byte
	started  time.Time
}

// Layer is the ChunkLayer: it fragments oversized outgoing Content into a
// manifest plus numbered chunks, and transparently reassembles incoming
// chunk sequences so NFN and local applications above it only ever see
// whole Content objects.
type Layer struct {
	cfg Config

	// store holds payloads this layer can answer an Interest for
	// directly: manifests and chunks produced locally by publish/the
	// fragmentation path.
	store map[string][]byte

	reassemblies map[string]*reassembly

	FromLower  chan *defn.Packet // from ICNLayer
	ToLower    chan *defn.Packet // to ICNLayer
	FromHigher chan *defn.Packet // from TimeoutPreventionLayer/NFNLayer
	ToHigher   chan *defn.Packet // to TimeoutPreventionLayer/NFNLayer

	publishCmds chan publishCmd
	done        chan struct{}
}

func (l *Layer) String() string { return "chunk-layer" }

// NewLayer constructs a ChunkLayer with the given queue depth on every
// boundary channel.
func NewLayer(cfg Config, queueDepth int) *Layer {
	return &Layer{
		cfg:          cfg,
		store:        make(map[string][]byte),
		reassemblies: make(map[string]*reassembly),
		FromLower:    make(chan *defn.Packet, queueDepth),
		ToLower:      make(chan *defn.Packet, queueDepth),
		FromHigher:   make(chan *defn.Packet, queueDepth),
		ToHigher:     make(chan *defn.Packet, queueDepth),
		publishCmds:  make(chan publishCmd, 16),
		done:         make(chan struct{}),
	}
}

// publishCmd is a local-content publication requested by the management
// surface, applied on the ChunkLayer's own goroutine.
type publishCmd struct {
	name    defn.Name
	payload []byte
	done    chan struct{}
}

// PublishContent queues a local publication and blocks until the
// ChunkLayer's own goroutine has applied it. The caller is still
// responsible for registering a FIB route for name pointing at
// defn.AppFace so Interests reach this layer.
func (l *Layer) PublishContent(name defn.Name, payload []byte) {
	done := make(chan struct{})
	l.publishCmds <- publishCmd{name: name, payload: payload, done: done}
	<-done
}

// Run is the layer's single-threaded main loop.
func (l *Layer) Run(ageing <-chan time.Time) {
	for {
		select {
		case p := <-l.FromLower:
			l.handleFromLower(p)
		case p := <-l.FromHigher:
			l.handleFromHigher(p)
		case cmd := <-l.publishCmds:
			l.publish(cmd.name, cmd.payload)
			close(cmd.done)
		case now := <-ageing:
			l.age(now)
		case <-l.done:
			return
		}
	}
}

// publish registers name as locally served, fragmenting payload into a
// manifest and numbered chunks first if it exceeds the configured
// chunk_size. Only called from Run's own goroutine, via publishCmds.
func (l *Layer) publish(name defn.Name, payload []byte) {
	manifest, chunks := splitIntoChunks(name, payload, l.cfg.ChunkSize)
	if manifest == nil {
		l.store[name.String()] = payload
		return
	}
	l.store[name.String()] = manifest.Payload
	for _, c := range chunks {
		l.store[c.Name.String()] = c.Payload
	}
}

func (l *Layer) handleFromLower(p *defn.Packet) {
	switch p.Kind {
	case defn.KindInterest:
		l.handleInterestFromLower(p)
	case defn.KindContent:
		l.handleContentFromLower(p)
	case defn.KindNack:
		l.handleNackFromLower(p)
	}
}

func (l *Layer) handleInterestFromLower(p *defn.Packet) {
	if payload, ok := l.store[p.Name.String()]; ok {
		l.sendDown(defn.NewContent(p.Name, payload))
		return
	}
	l.sendUp(p)
}

func (l *Layer) handleContentFromLower(p *defn.Packet) {
	key := p.Name.String()

	if r, ok := l.reassemblies[key]; ok {
		l.completeWithManifestResponse(key, r, p)
		return
	}

	if r, base, ok := l.findReassemblyForChunk(p.Name); ok {
		l.recordChunk(base, r, p)
		return
	}

	l.sendUp(p)
}

// findReassemblyForChunk looks up an in-progress reassembly whose
// manifest lists name as one of its chunks.
func (l *Layer) findReassemblyForChunk(name defn.Name) (*reassembly, string, bool) {
	key := name.String()
	for base, r := range l.reassemblies {
		if r.manifest == nil {
			continue
		}
		for _, e := range r.manifest.Entries {
			if e.Name.String() == key {
				return r, base, true
			}
		}
	}
	return nil, "", false
}

// completeWithManifestResponse handles Content arriving in answer to the
// original Interest this layer forwarded on behalf of the layer above. If
// it decodes as a Manifest, reassembly begins by fetching every listed
// chunk; otherwise the object was never chunked and is passed up as-is.
func (l *Layer) completeWithManifestResponse(key string, r *reassembly, content *defn.Packet) {
	manifest, isManifest, err := DecodeManifest(content.Payload)
	if err != nil {
		core.Log.Warn(l, "Malformed manifest, passing through", "name", content.Name, "err", err)
		delete(l.reassemblies, key)
		l.sendUp(content)
		return
	}
	if !isManifest {
		delete(l.reassemblies, key)
		l.sendUp(content)
		return
	}

	r.manifest = manifest
	for _, e := range manifest.Entries {
		l.sendDown(defn.NewInterest(e.Name))
	}
}

func (l *Layer) recordChunk(base string, r *reassembly, content *defn.Packet) {
	r.got[content.Name.String()] = content.Payload

	payload, ok := reassemble(r.manifest, r.got)
	if payload == nil {
		return // still waiting on more chunks
	}
	delete(l.reassemblies, base)
	if !ok {
		l.sendUp(defn.NewNack(defn.NameFromString(base), defn.NackNotSet, nil))
		return
	}
	l.sendUp(defn.NewContent(defn.NameFromString(base), payload))
}

func (l *Layer) handleNackFromLower(p *defn.Packet) {
	key := p.Name.String()
	if _, ok := l.reassemblies[key]; ok {
		delete(l.reassemblies, key)
		l.sendUp(p)
		return
	}
	if _, base, ok := l.findReassemblyForChunk(p.Name); ok {
		delete(l.reassemblies, base)
		l.sendUp(defn.NewNack(defn.NameFromString(base), p.Reason, nil))
		return
	}
	l.sendUp(p)
}

func (l *Layer) handleFromHigher(p *defn.Packet) {
	switch p.Kind {
	case defn.KindInterest:
		l.reassemblies[p.Name.String()] = &reassembly{got: make(map[string][]byte), started: time.Now()}
		l.sendDown(p)
	case defn.KindContent:
		l.handleContentFromHigher(p)
	case defn.KindNack:
		l.sendDown(p)
	}
}

func (l *Layer) handleContentFromHigher(p *defn.Packet) {
	manifest, chunks := splitIntoChunks(p.Name, p.Payload, l.cfg.ChunkSize)
	if manifest == nil {
		l.sendDown(p)
		return
	}
	for _, c := range chunks {
		l.store[c.Name.String()] = c.Payload
	}
	l.sendDown(manifest)
}

// age aborts any reassembly that has waited longer than chunk_timeout for
// its remaining chunks, emitting a Nack upward.
func (l *Layer) age(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			core.Log.Warn(l, "Exception during ageing, continuing", "panic", r)
		}
	}()

	for base, r := range l.reassemblies {
		// Only a reassembly that has seen its manifest and is still
		// missing chunks is this layer's to time out; a bare in-flight
		// Interest with no manifest yet is the ICNLayer's PIT to age.
		if r.manifest == nil {
			continue
		}
		if now.Sub(r.started) > l.cfg.ChunkTimeout {
			delete(l.reassemblies, base)
			l.sendUp(defn.NewNack(defn.NameFromString(base), defn.NackNotSet, nil))
		}
	}
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
