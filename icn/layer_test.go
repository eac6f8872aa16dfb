package icn

import (
	"testing"
	"time"

	"github.com/go-nfn/nfnd/defn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLayer() *Layer {
	return NewLayer(Config{
		PitTimeout:     time.Second,
		CsTTL:          time.Minute,
		CsCapacity:     100,
		AgeingInterval: time.Second,
	}, 16)
}

// Two Interests for /foo/bar arrive from faces 1 and 2 before any
// Content. Exactly one Interest is forwarded on the FIB face; Content
// satisfies both waiters and removes the PIT entry.
func TestInterestAggregationAndFanOut(t *testing.T) {
	l := newTestLayer()
	l.fib.Insert(defn.NameFromString("/foo"), defn.FaceID(99))
	name := defn.NameFromString("/foo/bar")

	l.handleInterest(defn.FaceID(1), defn.NewInterest(name), false)
	l.handleInterest(defn.FaceID(2), defn.NewInterest(name), false)

	// Exactly one Interest forwarded downstream, to face 99.
	require.Len(t, l.ToLower, 1)
	fwd := <-l.ToLower
	assert.Equal(t, defn.FaceID(99), fwd.Face)
	assert.Equal(t, defn.KindInterest, fwd.Packet.Kind)

	content := defn.NewContent(name, []byte("payload"))
	l.handleContent(defn.FaceID(99), content, false)

	require.Len(t, l.ToLower, 2)
	seen := map[defn.FaceID]bool{}
	for i := 0; i < 2; i++ {
		out := <-l.ToLower
		seen[out.Face] = true
		assert.Equal(t, defn.KindContent, out.Packet.Kind)
	}
	assert.True(t, seen[defn.FaceID(1)])
	assert.True(t, seen[defn.FaceID(2)])

	_, stillPending := l.pit.Get(name)
	assert.False(t, stillPending)
}

// No FIB match and interest_to_app=false yields a NO_ROUTE Nack back to
// the originating face only.
func TestNoRouteNack(t *testing.T) {
	l := newTestLayer()
	name := defn.NameFromString("/unknown/x")

	l.handleInterest(defn.FaceID(1), defn.NewInterest(name), false)

	require.Len(t, l.ToLower, 1)
	out := <-l.ToLower
	assert.Equal(t, defn.FaceID(1), out.Face)
	assert.Equal(t, defn.KindNack, out.Packet.Kind)
	assert.Equal(t, defn.NackNoRoute, out.Packet.Reason)

	_, pending := l.pit.Get(name)
	assert.False(t, pending)
}

// A PIT entry aged past pit_timeout is removed and a NOT_SET Nack is sent
// to every waiter.
func TestPitAgeingEmitsNack(t *testing.T) {
	l := newTestLayer()
	l.fib.Insert(defn.NameFromString("/slow"), defn.FaceID(5))
	name := defn.NameFromString("/slow")

	l.handleInterest(defn.FaceID(1), defn.NewInterest(name), false)
	<-l.ToLower // drain the forwarded Interest

	l.age(time.Now().Add(time.Hour))

	require.Len(t, l.ToLower, 1)
	out := <-l.ToLower
	assert.Equal(t, defn.FaceID(1), out.Face)
	assert.Equal(t, defn.KindNack, out.Packet.Kind)
	assert.Equal(t, defn.NackNotSet, out.Packet.Reason)

	_, pending := l.pit.Get(name)
	assert.False(t, pending)
}

func TestInterestToAppOnUnroutedNFNName(t *testing.T) {
	l := newTestLayer()
	l.cfg.InterestToApp = true
	name := defn.NameFromString("/lib/f/NFN")

	l.handleInterest(defn.FaceID(1), defn.NewInterest(name), false)

	require.Len(t, l.ToHigher, 1)
	up := <-l.ToHigher
	assert.Equal(t, defn.KindInterest, up.Kind)

	entry, ok := l.pit.Get(name)
	require.True(t, ok)
	assert.True(t, entry.LocalApp)
	assert.ElementsMatch(t, []defn.FaceID{1}, entry.IncomingFaceList())
}

func TestCSHitAnswersWithoutForwarding(t *testing.T) {
	l := newTestLayer()
	name := defn.NameFromString("/cached")
	l.cs.Insert(name, defn.NewContent(name, []byte("x")))

	l.handleInterest(defn.FaceID(7), defn.NewInterest(name), false)

	require.Len(t, l.ToLower, 1)
	out := <-l.ToLower
	assert.Equal(t, defn.FaceID(7), out.Face)
	assert.Equal(t, defn.KindContent, out.Packet.Kind)
}

func TestNackPropagatesAndDropsEntry(t *testing.T) {
	l := newTestLayer()
	l.fib.Insert(defn.NameFromString("/x"), defn.FaceID(2))
	name := defn.NameFromString("/x")

	l.handleInterest(defn.FaceID(1), defn.NewInterest(name), false)
	<-l.ToLower

	l.handleNack(defn.NewNack(name, defn.NackNoContent, nil))

	require.Len(t, l.ToLower, 1)
	out := <-l.ToLower
	assert.Equal(t, defn.FaceID(1), out.Face)
	assert.Equal(t, defn.KindNack, out.Packet.Kind)

	_, pending := l.pit.Get(name)
	assert.False(t, pending)

	_, cached := l.cs.Get(name)
	assert.False(t, cached, "Nack must never populate the CS")
}
