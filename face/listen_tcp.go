package face

import "net"

// listenTCP is a tiny indirection so WebSocketTransport.Listen reads as a
// single error-checked statement.
func listenTCP(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}
