package timeoutprevention

import (
	"testing"
	"time"

	"github.com/go-nfn/nfnd/defn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct{ running map[string]bool }

func (f *fakeChecker) IsRunning(name defn.Name) bool { return f.running[name.String()] }

func newTestLayer(checker ComputationChecker) *Layer {
	return NewLayer(Config{KeepaliveTimeoutInterval: time.Second}, checker, 16)
}

// A non-NFN Interest from below passes straight up, untouched.
func TestOrdinaryInterestPassesThrough(t *testing.T) {
	l := newTestLayer(&fakeChecker{})
	p := defn.NewInterest(defn.NameFromString("/a/b"))
	l.handleFromLower(p)
	require.Len(t, l.ToHigher, 1)
	assert.Same(t, p, <-l.ToHigher)
}

// An NFN Interest from above creates two dict entries and forwards
// unchanged.
func TestNFNInterestFromAboveTracksKeepAlive(t *testing.T) {
	l := newTestLayer(&fakeChecker{})
	name := defn.NameFromString("/fn/add(2,3)/NFN")
	l.handleFromHigher(defn.NewInterest(name))

	_, ok := l.dict.get(name)
	assert.True(t, ok)
	_, ok = l.dict.get(defn.AddKeepAlive(name))
	assert.True(t, ok)

	require.Len(t, l.ToLower, 1)
	fwd := <-l.ToLower
	assert.Equal(t, name, fwd.Name)
}

// A keep-alive Interest from below for a still-running computation is
// answered with Content; for a computation nobody is tracking, with a
// COMP_NOT_RUNNING Nack.
func TestKeepAliveInterestAnsweredFromRunningState(t *testing.T) {
	name := defn.NameFromString("/fn/add(2,3)/NFN")
	keepaliveName := defn.AddKeepAlive(name)

	running := newTestLayer(&fakeChecker{running: map[string]bool{name.String(): true}})
	running.handleFromLower(defn.NewInterest(keepaliveName))
	out := <-running.ToLower
	assert.Equal(t, defn.KindContent, out.Kind)

	notRunning := newTestLayer(&fakeChecker{})
	notRunning.handleFromLower(defn.NewInterest(keepaliveName))
	out = <-notRunning.ToLower
	assert.Equal(t, defn.KindNack, out.Kind)
	assert.Equal(t, defn.NackCompNotRunning, out.Reason)
}

// A keep-alive Content refreshes the matching dict entry without passing
// upward; a Content/Nack for an untagged name clears both entries and
// passes up.
func TestContentClearsDictAndPassesThroughWhenUntagged(t *testing.T) {
	l := newTestLayer(&fakeChecker{})
	name := defn.NameFromString("/fn/add(2,3)/NFN")
	l.handleFromHigher(defn.NewInterest(name))

	keepaliveName := defn.AddKeepAlive(name)
	l.handleFromLower(defn.NewContent(keepaliveName, nil))
	assert.Len(t, l.ToHigher, 0, "keep-alive Content must not pass upward")
	entry, ok := l.dict.get(keepaliveName)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), entry.timestamp, time.Second)

	l.handleFromLower(defn.NewContent(name, []byte("5")))
	require.Len(t, l.ToHigher, 1)
	out := <-l.ToHigher
	assert.Equal(t, "5", string(out.Payload))

	_, ok = l.dict.get(name)
	assert.False(t, ok)
}

// Ageing resends a fresh Interest for every tracked name; a keep-alive
// entry past its timeout instead Nacks the original name upward and
// removes both entries.
func TestAgeingRefreshesAndExpiresKeepAlive(t *testing.T) {
	l := newTestLayer(&fakeChecker{})
	name := defn.NameFromString("/fn/add(2,3)/NFN")
	l.handleFromHigher(defn.NewInterest(name))

	l.age(time.Now())
	require.Len(t, l.ToLower, 2)
	<-l.ToLower
	<-l.ToLower

	l.age(time.Now().Add(time.Hour))
	require.Len(t, l.ToHigher, 1)
	nack := <-l.ToHigher
	assert.Equal(t, defn.KindNack, nack.Kind)
	assert.Equal(t, name, nack.Name)

	_, ok := l.dict.get(name)
	assert.False(t, ok)
	_, ok = l.dict.get(defn.AddKeepAlive(name))
	assert.False(t, ok)
}
