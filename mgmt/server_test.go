package mgmt

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/go-nfn/nfnd/defn"
	"github.com/go-nfn/nfnd/face"
	"github.com/go-nfn/nfnd/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeForwarder is a scripted mgmt.Forwarder recording every call it
// receives, for dispatch tests that don't need a real layer stack.
type fakeForwarder struct {
	faces   map[face.PeerAddr]defn.FaceID
	nextID  defn.FaceID
	routes  map[string]defn.FaceID
	content map[string][]byte

	fib *table.ForwardingInformationBase
	pit *table.PendingInterestTable
	cs  *table.ContentStore

	shutdownCalled bool
}

func newFakeForwarder() *fakeForwarder {
	return &fakeForwarder{
		faces:   make(map[face.PeerAddr]defn.FaceID),
		routes:  make(map[string]defn.FaceID),
		content: make(map[string][]byte),
		fib:     table.NewForwardingInformationBase(),
		pit:     table.NewPendingInterestTable(),
		cs:      table.NewContentStore(16, time.Minute),
	}
}

func (f *fakeForwarder) NewFace(peer face.PeerAddr) defn.FaceID {
	if id, ok := f.faces[peer]; ok {
		return id
	}
	f.nextID++
	f.faces[peer] = f.nextID
	return f.nextID
}

func (f *fakeForwarder) InsertRoute(prefix defn.Name, faceID defn.FaceID) {
	f.routes[prefix.String()] = faceID
	f.fib.Insert(prefix, faceID)
}

func (f *fakeForwarder) PublishContent(name defn.Name, payload []byte) {
	f.content[name.String()] = payload
}

func (f *fakeForwarder) RunSync(fn func()) { fn() }

func (f *fakeForwarder) FIB() *table.ForwardingInformationBase { return f.fib }
func (f *fakeForwarder) PIT() *table.PendingInterestTable      { return f.pit }
func (f *fakeForwarder) CS() *table.ContentStore               { return f.cs }

func (f *fakeForwarder) Shutdown() { f.shutdownCalled = true }

func TestNewFaceDispatch(t *testing.T) {
	fwd := newFakeForwarder()
	s := NewServer(":0", fwd, nil)

	result := s.run("newface", []string{"127.0.0.1", "9000"})
	assert.Equal(t, "OK 1", result)
	assert.Equal(t, defn.FaceID(1), fwd.faces["127.0.0.1:9000"])
}

func TestNewForwardingRuleDispatch(t *testing.T) {
	fwd := newFakeForwarder()
	s := NewServer(":0", fwd, nil)

	result := s.run("newforwardingrule", []string{"/a/b", "3"})
	assert.Equal(t, "OK", result)
	assert.Equal(t, defn.FaceID(3), fwd.routes["/a/b"])
}

func TestNewContentDispatch(t *testing.T) {
	fwd := newFakeForwarder()
	s := NewServer(":0", fwd, nil)

	result := s.run("newcontent", []string{"/a/obj", "hello"})
	assert.Equal(t, "OK", result)
	assert.Equal(t, []byte("hello"), fwd.content["/a/obj"])
}

func TestMalformedCommandReturnsErr(t *testing.T) {
	fwd := newFakeForwarder()
	s := NewServer(":0", fwd, nil)

	result := s.run("newface", []string{"127.0.0.1"})
	assert.Contains(t, result, "ERR")
}

func TestUnknownVerbReturnsErr(t *testing.T) {
	fwd := newFakeForwarder()
	s := NewServer(":0", fwd, nil)

	result := s.run("frobnicate", nil)
	assert.Contains(t, result, "ERR")
}

func TestShutdownDispatch(t *testing.T) {
	fwd := newFakeForwarder()
	s := NewServer(":0", fwd, nil)

	result := s.run("shutdown", nil)
	assert.Equal(t, "OK shutting down", result)
	assert.True(t, fwd.shutdownCalled)
}

func TestGetFibListsInsertedRoutes(t *testing.T) {
	fwd := newFakeForwarder()
	fwd.InsertRoute(defn.NameFromString("/a"), 5)
	s := NewServer(":0", fwd, nil)

	result := s.run("getfib", nil)
	assert.Contains(t, result, "/a->5")
}

// A newface command sent over a real TCP connection is answered with
// exactly one line of text.
func TestServerEndToEndOverTCP(t *testing.T) {
	fwd := newFakeForwarder()
	s := NewServer("127.0.0.1:0", fwd, nil)
	require.NoError(t, s.Start())
	defer s.Stop()

	addr := s.ln.Addr().String()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("newforwardingrule /x/y 7\n"))
	require.NoError(t, err)

	scanner := bufio.NewScanner(conn)
	require.True(t, scanner.Scan())
	assert.Equal(t, "OK", scanner.Text())
	assert.Equal(t, defn.FaceID(7), fwd.routes["/x/y"])
}
