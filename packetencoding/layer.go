// Package packetencoding translates between raw bytes and structured
// Packets using a pluggable encoding.Encoder, sitting between the
// LinkLayer and ICNLayer.
package packetencoding

import (
	"github.com/go-nfn/nfnd/core"
	"github.com/go-nfn/nfnd/defn"
	"github.com/go-nfn/nfnd/encoding"
)

// Frame pairs a face id with a decoded/to-encode Packet, the unit this
// layer exchanges with ICNLayer above it.
type Frame struct {
	Face   defn.FaceID
	Packet *defn.Packet
}

// RawFrame pairs a face id with raw wire bytes, the unit this layer
// exchanges with LinkLayer below it.
type RawFrame struct {
	Face    defn.FaceID
	Payload []byte
}

// Layer decodes inbound raw bytes into Packets and encodes outbound
// Packets into raw bytes. Malformed input is dropped; the originating
// face is otherwise unaffected.
type Layer struct {
	encoder encoding.Encoder

	FromLower chan RawFrame // raw bytes from LinkLayer
	ToLower   chan RawFrame // raw bytes to LinkLayer

	ToHigher   chan Frame // decoded packets to ICNLayer
	FromHigher chan Frame // packets from ICNLayer to encode and send

	done chan struct{}
}

func (l *Layer) String() string { return "packet-encoding-layer" }

// NewLayer constructs a PacketEncodingLayer using encoder, with bounded
// queues of size queueDepth on every boundary.
func NewLayer(encoder encoding.Encoder, queueDepth int) *Layer {
	return &Layer{
		encoder:    encoder,
		FromLower:  make(chan RawFrame, queueDepth),
		ToLower:    make(chan RawFrame, queueDepth),
		ToHigher:   make(chan Frame, queueDepth),
		FromHigher: make(chan Frame, queueDepth),
		done:       make(chan struct{}),
	}
}

// Run is the layer's single-threaded main loop: exactly one frame is
// processed to completion before the next is dequeued.
func (l *Layer) Run() {
	for {
		select {
		case raw := <-l.FromLower:
			l.handleFromLower(raw)
		case frame := <-l.FromHigher:
			l.handleFromHigher(frame)
		case <-l.done:
			return
		}
	}
}

func (l *Layer) handleFromLower(raw RawFrame) {
	packet, err := l.encoder.Decode(raw.Payload)
	if err != nil {
		core.Log.Debug(l, "Dropping malformed packet", "face", raw.Face, "err", err)
		return
	}
	l.ToHigher <- Frame{Face: raw.Face, Packet: packet}
}

func (l *Layer) handleFromHigher(frame Frame) {
	wire, err := l.encoder.Encode(frame.Packet)
	if err != nil {
		core.Log.Warn(l, "Failed to encode outbound packet", "err", err)
		return
	}
	l.ToLower <- RawFrame{Face: frame.Face, Payload: wire}
}

// Stop shuts the layer's main loop down.
func (l *Layer) Stop() { close(l.done) }
