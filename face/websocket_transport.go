package face

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketTransport is an alternate Face transport alongside the
// default UDP one. Faces default to UDP but are not required to be
// UDP-only, so this is a legitimate pluggable alternative for browser or
// NAT-constrained peers.
type WebSocketTransport struct {
	addr     string
	upgrader websocket.Upgrader
	server   *http.Server

	mu    sync.Mutex
	conns map[PeerAddr]*websocket.Conn
}

// NewWebSocketTransport constructs a transport that will listen on addr
// (e.g. ":9002") once Listen is called.
func NewWebSocketTransport(addr string) *WebSocketTransport {
	return &WebSocketTransport{
		addr:  addr,
		conns: make(map[PeerAddr]*websocket.Conn),
	}
}

func (t *WebSocketTransport) String() string { return fmt.Sprintf("websocket-transport(%s)", t.addr) }

// Listen starts an HTTP server upgrading every connection to a WebSocket
// face; each connection gets its own read loop feeding onReceive.
func (t *WebSocketTransport) Listen(onReceive func(peer PeerAddr, payload []byte)) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := t.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		peer := PeerAddr(conn.RemoteAddr().String())

		t.mu.Lock()
		t.conns[peer] = conn
		t.mu.Unlock()

		go t.readLoop(peer, conn, onReceive)
	})

	t.server = &http.Server{Addr: t.addr, Handler: mux}
	ln, err := listenTCP(t.addr)
	if err != nil {
		return fmt.Errorf("bind websocket %s: %w", t.addr, err)
	}
	go func() { _ = t.server.Serve(ln) }()
	return nil
}

func (t *WebSocketTransport) readLoop(peer PeerAddr, conn *websocket.Conn, onReceive func(PeerAddr, []byte)) {
	defer func() {
		t.mu.Lock()
		delete(t.conns, peer)
		t.mu.Unlock()
		_ = conn.Close()
	}()
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		onReceive(peer, payload)
	}
}

// SendTo writes payload as a single binary WebSocket frame to peer, which
// must already have an open connection (inbound, or dialed via Dial).
func (t *WebSocketTransport) SendTo(peer PeerAddr, payload []byte) error {
	t.mu.Lock()
	conn, ok := t.conns[peer]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("no open websocket connection to peer %s", peer)
	}
	return conn.WriteMessage(websocket.BinaryMessage, payload)
}

// Dial actively connects outward to a peer's WebSocket URL, registering
// the resulting connection under peer for subsequent SendTo calls and
// feeding incoming frames to onReceive.
func (t *WebSocketTransport) Dial(peer PeerAddr, url string, onReceive func(PeerAddr, []byte)) error {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("dial websocket peer %s: %w", peer, err)
	}
	t.mu.Lock()
	t.conns[peer] = conn
	t.mu.Unlock()
	go t.readLoop(peer, conn, onReceive)
	return nil
}

// Close shuts the HTTP server and every open connection down.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	for _, conn := range t.conns {
		_ = conn.Close()
	}
	t.conns = make(map[PeerAddr]*websocket.Conn)
	t.mu.Unlock()

	if t.server != nil {
		return t.server.Close()
	}
	return nil
}
