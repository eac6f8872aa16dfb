// Package face is the LinkLayer leaf of the pipeline: it binds a
// datagram-shaped Transport and exchanges (face_id, raw_bytes) with the
// PacketEncodingLayer above. The socket wrapper is an external
// collaborator the core only depends on through an interface - this
// package ships two concrete Transports (UDP, WebSocket) so the forwarder
// is runnable, without the rest of the pipeline ever importing
// net/gorilla directly.
package face

import "fmt"

// PeerAddr identifies a remote endpoint in a transport-specific way (for
// UDP, "ip:port"; for WebSocket, the connection's remote address).
type PeerAddr string

// Transport is the abstract datagram transport contract every face
// implementation satisfies. A Transport multiplexes many peers behind one
// Listen call (UDP) or hands the LinkLayer one connection at a time
// (WebSocket accept loop feeding the same callback) - either way, the
// LinkLayer learns about new peers solely through the onReceive callback
// or through an explicit Dial.
type Transport interface {
	fmt.Stringer

	// Listen starts the transport's receive loop, invoking onReceive for
	// every datagram/frame received from a peer, until Close is called.
	// It returns once the listener is bound; receiving continues on its
	// own goroutine.
	Listen(onReceive func(peer PeerAddr, payload []byte)) error

	// SendTo transmits payload to peer, dialing it first if necessary.
	SendTo(peer PeerAddr, payload []byte) error

	// Close shuts the transport down, unblocking Listen's receive loop.
	Close() error
}
