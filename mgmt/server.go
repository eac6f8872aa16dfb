// Package mgmt implements the forwarder's management surface: a
// line-oriented TCP control socket accepting newface/newforwardingrule/
// newcontent/shutdown plus read-only getfib/getpit/getcs introspection,
// with every accepted command appended to a sqlite audit log.
package mgmt

import (
	"bufio"
	"fmt"
	"net"
	"strings"

	"github.com/go-nfn/nfnd/core"
	"github.com/go-nfn/nfnd/defn"
	"github.com/go-nfn/nfnd/face"
	"github.com/go-nfn/nfnd/table"
)

// Forwarder is the subset of the running forwarder the management surface
// drives: face creation, FIB mutation, local content publication, table
// introspection (routed through RunSync so it never races the owning
// layer's own goroutine), and shutdown.
type Forwarder interface {
	NewFace(peer face.PeerAddr) defn.FaceID
	InsertRoute(prefix defn.Name, faceID defn.FaceID)
	PublishContent(name defn.Name, payload []byte)
	RunSync(fn func())
	FIB() *table.ForwardingInformationBase
	PIT() *table.PendingInterestTable
	CS() *table.ContentStore
	Shutdown()
}

// Server is the mgmt TCP control socket: every accepted connection is read
// line by line, each line one command, each command answered with exactly
// one line of text.
type Server struct {
	addr  string
	fwd   Forwarder
	audit *AuditLog

	ln net.Listener
}

func (s *Server) String() string { return "mgmt-server" }

// NewServer constructs a management server listening on addr and driving
// fwd. audit may be nil to disable command auditing.
func NewServer(addr string, fwd Forwarder, audit *AuditLog) *Server {
	return &Server{addr: addr, fwd: fwd, audit: audit}
}

// Start binds the listener and begins accepting connections on its own
// goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("mgmt listen: %w", err)
	}
	s.ln = ln
	go s.acceptLoop()
	return nil
}

// Stop closes the listener, unblocking the accept loop.
func (s *Server) Stop() error {
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		verb, fields := splitLine(scanner.Text())
		if verb == "" {
			continue
		}

		result := s.run(verb, fields)
		if err := s.audit.Record(verb, strings.Join(fields, " "), result); err != nil {
			core.Log.Warn(s, "Failed to record audit entry", "err", err)
		}

		fmt.Fprintln(conn, result)
		if verb == "shutdown" {
			return
		}
	}
}

func (s *Server) run(verb string, fields []string) string {
	switch verb {
	case "newface":
		return s.newFace(fields)
	case "newforwardingrule":
		return s.newForwardingRule(fields)
	case "newcontent":
		return s.newContent(fields)
	case "getfib":
		return s.getFIB()
	case "getpit":
		return s.getPIT()
	case "getcs":
		return s.getCS()
	case "shutdown":
		s.fwd.Shutdown()
		return "OK shutting down"
	default:
		return fmt.Sprintf("ERR unknown command %q", verb)
	}
}

func (s *Server) newFace(fields []string) string {
	args, err := parseNewFace(fields)
	if err != nil {
		return "ERR " + err.Error()
	}
	id := s.fwd.NewFace(face.PeerAddr(args.IP + ":" + args.Port))
	return fmt.Sprintf("OK %d", id)
}

func (s *Server) newForwardingRule(fields []string) string {
	args, err := parseNewForwardingRule(fields)
	if err != nil {
		return "ERR " + err.Error()
	}
	s.fwd.InsertRoute(defn.NameFromString(args.Prefix), defn.FaceID(args.FaceID))
	return "OK"
}

func (s *Server) newContent(fields []string) string {
	args, err := parseNewContent(fields)
	if err != nil {
		return "ERR " + err.Error()
	}
	s.fwd.PublishContent(defn.NameFromString(args.Name), []byte(args.Payload))
	return "OK"
}

func (s *Server) getFIB() string {
	var lines []string
	s.fwd.RunSync(func() {
		for _, e := range s.fwd.FIB().Entries() {
			lines = append(lines, fmt.Sprintf("%s->%d", e.Prefix, e.Face))
		}
	})
	return "OK " + strings.Join(lines, ";")
}

func (s *Server) getPIT() string {
	var lines []string
	s.fwd.RunSync(func() {
		for _, e := range s.fwd.PIT().Entries() {
			lines = append(lines, fmt.Sprintf("%s[%d]", e.Name, len(e.IncomingFaces)))
		}
	})
	return "OK " + strings.Join(lines, ";")
}

func (s *Server) getCS() string {
	var lines []string
	s.fwd.RunSync(func() {
		for _, e := range s.fwd.CS().Entries() {
			lines = append(lines, fmt.Sprintf("%s(%dB)", e.Name, e.Size))
		}
	})
	return "OK " + strings.Join(lines, ";")
}
