package face

import (
	"sync"
	"sync/atomic"

	"github.com/go-nfn/nfnd/core"
	"github.com/go-nfn/nfnd/defn"
)

// rawFrame pairs a face id with the raw bytes exchanged with the layer
// above.
type rawFrame struct {
	Face    defn.FaceID
	Payload []byte
}

// LinkLayer binds a Transport and exchanges (face_id, raw_bytes) with the
// PacketEncodingLayer above it. Faces are created on first reception from
// a new peer and persist until explicit removal.
type LinkLayer struct {
	transport Transport
	ToHigher  chan rawFrame // raw bytes received from a face, tagged with its id
	FromHigher chan rawFrame // raw bytes to send out a face

	mu         sync.Mutex
	nextFaceID atomic.Uint64
	faceToPeer map[defn.FaceID]PeerAddr
	peerToFace map[PeerAddr]defn.FaceID

	closeOnce sync.Once
	done      chan struct{}
}

func (l *LinkLayer) String() string { return "link-layer" }

// NewLinkLayer constructs a LinkLayer around transport with bounded
// queues of size queueDepth.
func NewLinkLayer(transport Transport, queueDepth int) *LinkLayer {
	return &LinkLayer{
		transport:  transport,
		ToHigher:   make(chan rawFrame, queueDepth),
		FromHigher: make(chan rawFrame, queueDepth),
		faceToPeer: make(map[defn.FaceID]PeerAddr),
		peerToFace: make(map[PeerAddr]defn.FaceID),
		done:       make(chan struct{}),
	}
}

// Start binds the transport and launches the goroutine draining
// FromHigher out to peers. Incoming datagrams are delivered into
// ToHigher from the transport's own receive goroutine.
func (l *LinkLayer) Start() error {
	l.nextFaceID.Store(1) // reserve 0 for defn.AppFace

	if err := l.transport.Listen(l.onReceive); err != nil {
		return err
	}

	go l.sendLoop()
	return nil
}

func (l *LinkLayer) sendLoop() {
	for {
		select {
		case frame := <-l.FromHigher:
			peer, ok := l.PeerOf(frame.Face)
			if !ok {
				core.Log.Warn(l, "Dropping outbound frame for unknown face", "face", frame.Face)
				continue
			}
			if err := l.transport.SendTo(peer, frame.Payload); err != nil {
				core.Log.Warn(l, "Send failed", "peer", peer, "err", err)
			}
		case <-l.done:
			return
		}
	}
}

func (l *LinkLayer) onReceive(peer PeerAddr, payload []byte) {
	faceID := l.faceFor(peer)

	select {
	case l.ToHigher <- rawFrame{Face: faceID, Payload: payload}:
	default:
		// Bounded-queue back-pressure: under sustained overload the
		// LinkLayer drops incoming datagrams rather than enqueueing
		// indefinitely.
		core.Log.Warn(l, "Dropping inbound frame, queue full", "peer", peer)
	}
}

// faceFor returns the existing face id for peer, or creates one on first
// reception.
func (l *LinkLayer) faceFor(peer PeerAddr) defn.FaceID {
	l.mu.Lock()
	defer l.mu.Unlock()

	if id, ok := l.peerToFace[peer]; ok {
		return id
	}
	id := defn.FaceID(l.nextFaceID.Add(1) - 1)
	l.peerToFace[peer] = id
	l.faceToPeer[id] = peer
	core.Log.Info(l, "Created face", "face", id, "peer", peer)
	return id
}

// NewFace explicitly registers a face for peer (the mgmt "newface"
// command), returning its id. If peer is already known its existing face
// id is returned.
func (l *LinkLayer) NewFace(peer PeerAddr) defn.FaceID {
	return l.faceFor(peer)
}

// RemoveFace deletes a face's peer mapping; it persists until this
// explicit removal.
func (l *LinkLayer) RemoveFace(face defn.FaceID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if peer, ok := l.faceToPeer[face]; ok {
		delete(l.faceToPeer, face)
		delete(l.peerToFace, peer)
	}
}

// PeerOf returns the peer address bound to face, if any.
func (l *LinkLayer) PeerOf(face defn.FaceID) (PeerAddr, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.faceToPeer[face]
	return p, ok
}

// Stop shuts the transport and send loop down.
func (l *LinkLayer) Stop() {
	l.closeOnce.Do(func() {
		close(l.done)
		_ = l.transport.Close()
	})
}
