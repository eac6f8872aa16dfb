package nfn

import (
	"testing"
	"time"

	"github.com/go-nfn/nfnd/defn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLayer(t *testing.T) *Layer {
	l, err := NewLayer(Config{
		ExecutorWorkers:  2,
		ExecutorDeadline: time.Second,
		ComputationGrace: 50 * time.Millisecond,
	}, NewBuiltinExecutor(), 16)
	require.NoError(t, err)
	return l
}

// An Interest for a Call with both arguments already resolvable as literals
// needs no fetched data: RECEIVED -> FWD -> EXEC -> FINISHED in one pass.
func TestInterestWithLiteralArgsExecutesImmediately(t *testing.T) {
	l := newTestLayer(t)
	name := defn.NameFromString(`/fn/add(2,3)/NFN`)

	l.handleFromLower(defn.NewInterest(name))

	select {
	case r := <-l.execResults:
		l.handleExecResult(r)
	case <-time.After(time.Second):
		t.Fatal("no exec result")
	}

	require.Len(t, l.ToLower, 1)
	out := <-l.ToLower
	assert.Equal(t, defn.KindContent, out.Kind)
	assert.Equal(t, "5", string(out.Payload))

	c, ok := l.table.Get(name)
	require.True(t, ok)
	assert.Equal(t, StateFinished, c.State)
}

// A Call referencing an unresolved Name moves to PENDING_DATA, emits an
// Interest for the missing data, and advances to EXEC once it arrives.
func TestInterestWithNameRefFetchesDataThenExecutes(t *testing.T) {
	l := newTestLayer(t)
	name := defn.NameFromString(`/fn/add(/a/x,3)/NFN`)

	l.handleFromLower(defn.NewInterest(name))

	c, ok := l.table.Get(name)
	require.True(t, ok)
	assert.Equal(t, StatePendingData, c.State)

	require.Len(t, l.ToLower, 1)
	fetch := <-l.ToLower
	assert.Equal(t, defn.KindInterest, fetch.Kind)
	assert.Equal(t, defn.NameFromString("/a/x"), fetch.Name)

	l.handleFromLower(defn.NewContent(fetch.Name, []byte("4")))

	select {
	case r := <-l.execResults:
		l.handleExecResult(r)
	case <-time.After(time.Second):
		t.Fatal("no exec result")
	}

	out := <-l.ToLower
	assert.Equal(t, defn.KindContent, out.Kind)
	assert.Equal(t, "7", string(out.Payload))
}

// A sub-Nack while fetching required data fails the whole computation and
// emits a Nack downward naming the original computation, not the fetch.
func TestSubNackFailsComputation(t *testing.T) {
	l := newTestLayer(t)
	name := defn.NameFromString(`/fn/add(/a/x,3)/NFN`)

	l.handleFromLower(defn.NewInterest(name))
	fetch := <-l.ToLower

	l.handleFromLower(defn.NewNack(fetch.Name, defn.NackNoRoute, nil))

	out := <-l.ToLower
	assert.Equal(t, defn.KindNack, out.Kind)
	assert.Equal(t, name, out.Name)

	c, ok := l.table.Get(name)
	require.True(t, ok)
	assert.Equal(t, StateFailed, c.State)
}

// Installing a ForwardDecider exercises REWRITE: the Interest is re-emitted
// downward, and the eventual Content completes the computation directly.
func TestForwardDeciderExercisesRewrite(t *testing.T) {
	l := newTestLayer(t)
	l.Optimizer().ForwardDecider = func(ast Expr, resolved map[string][]byte) bool { return true }

	name := defn.NameFromString(`/fn/add(2,3)/NFN`)
	l.handleFromLower(defn.NewInterest(name))

	c, ok := l.table.Get(name)
	require.True(t, ok)
	assert.Equal(t, StateRewrite, c.State)

	rewritten := <-l.ToLower
	assert.Equal(t, name, rewritten.Name)

	l.handleFromLower(defn.NewContent(name, []byte("delegated-result")))

	out := <-l.ToLower
	assert.Equal(t, defn.KindContent, out.Kind)
	assert.Equal(t, "delegated-result", string(out.Payload))

	c, _ = l.table.Get(name)
	assert.Equal(t, StateFinished, c.State)
}

// A malformed expression is rejected before an entry is ever added to the
// table.
func TestUnparseableExpressionNacksWithoutTableEntry(t *testing.T) {
	l := newTestLayer(t)
	name := defn.NameFromString(`/fn/add(/NFN`)

	l.handleFromLower(defn.NewInterest(name))

	out := <-l.ToLower
	assert.Equal(t, defn.KindNack, out.Kind)

	_, ok := l.table.Get(name)
	assert.False(t, ok)
}

// A retransmitted Interest for an already-FINISHED computation replays the
// cached result instead of recomputing it.
func TestRetransmittedInterestReplaysFinishedResult(t *testing.T) {
	l := newTestLayer(t)
	name := defn.NameFromString(`/fn/add(2,3)/NFN`)

	l.handleFromLower(defn.NewInterest(name))
	r := <-l.execResults
	l.handleExecResult(r)
	<-l.ToLower // drain the first Content

	l.handleFromLower(defn.NewInterest(name))

	out := <-l.ToLower
	assert.Equal(t, defn.KindContent, out.Kind)
	assert.Equal(t, "5", string(out.Payload))
}

// Ageing removes FINISHED/FAILED computations once ComputationGrace has
// elapsed, but not before.
func TestAgeingEvictsAfterGrace(t *testing.T) {
	l := newTestLayer(t)
	name := defn.NameFromString(`/fn/add(2,3)/NFN`)

	l.handleFromLower(defn.NewInterest(name))
	r := <-l.execResults
	l.handleExecResult(r)
	<-l.ToLower

	l.age(time.Now())
	_, ok := l.table.Get(name)
	assert.True(t, ok, "still within grace period")

	l.age(time.Now().Add(time.Hour))
	_, ok = l.table.Get(name)
	assert.False(t, ok, "should be evicted past grace period")
}
