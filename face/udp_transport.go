package face

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// udpRecvBufferBytes tunes the kernel receive buffer for the forwarder's
// UDP socket so a burst of Interests under load is less likely to be
// dropped by the kernel before LinkLayer's own bounded queues ever see
// it - back pressure should be decided by the LinkLayer's queues, not
// silently by the kernel ahead of them.
const udpRecvBufferBytes = 4 << 20 // 4 MiB

// UDPTransport is the default Face transport: a single UDP/IPv4 socket
// multiplexing every peer. A face is the (peer_ip, peer_port) tuple.
type UDPTransport struct {
	port int
	conn *net.UDPConn
}

// NewUDPTransport constructs a transport bound to the given local port
// once Listen is called.
func NewUDPTransport(port int) *UDPTransport {
	return &UDPTransport{port: port}
}

func (t *UDPTransport) String() string { return fmt.Sprintf("udp-transport(:%d)", t.port) }

// Listen binds the UDP socket and starts a background goroutine reading
// datagrams, tagging each with its source (peer_ip, peer_port) tuple.
func (t *UDPTransport) Listen(onReceive func(peer PeerAddr, payload []byte)) error {
	addr := &net.UDPAddr{Port: t.port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("bind udp :%d: %w", t.port, err)
	}
	t.conn = conn
	tuneReceiveBuffer(conn)

	go func() {
		buf := make([]byte, 64*1024)
		for {
			n, src, err := conn.ReadFromUDP(buf)
			if err != nil {
				return // conn closed
			}
			payload := make([]byte, n)
			copy(payload, buf[:n])
			onReceive(PeerAddr(src.String()), payload)
		}
	}()
	return nil
}

// SendTo writes payload as a single UDP datagram to peer.
func (t *UDPTransport) SendTo(peer PeerAddr, payload []byte) error {
	addr, err := net.ResolveUDPAddr("udp4", string(peer))
	if err != nil {
		return fmt.Errorf("resolve peer %s: %w", peer, err)
	}
	_, err = t.conn.WriteToUDP(payload, addr)
	return err
}

// Close shuts the socket down, unblocking the receive loop.
func (t *UDPTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}

// tuneReceiveBuffer raises the socket's receive buffer via SO_RCVBUF,
// falling back silently if the platform or privilege level refuses it -
// this is best-effort tuning, not a correctness requirement.
func tuneReceiveBuffer(conn *net.UDPConn) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return
	}
	_ = raw.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, udpRecvBufferBytes)
	})
}
