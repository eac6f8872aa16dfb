package nfn

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinExecutorArithmetic(t *testing.T) {
	e := NewBuiltinExecutor()
	h, err := e.Initialize("add", nil)
	require.NoError(t, err)

	out, err := e.Execute(context.Background(), h, [][]byte{[]byte("2"), []byte("3")})
	require.NoError(t, err)
	assert.Equal(t, "5", string(out))
}

func TestBuiltinExecutorUnknownFn(t *testing.T) {
	e := NewBuiltinExecutor()
	_, err := e.Initialize("nope", nil)
	assert.Error(t, err)
}

func TestExecutorPoolRunsAndCaches(t *testing.T) {
	pool, err := NewExecutorPool(NewBuiltinExecutor(), 2, time.Second, "")
	require.NoError(t, err)
	defer pool.Stop()

	h, err := pool.Install("concat", []byte("concat"))
	require.NoError(t, err)

	out, err := pool.Submit(context.Background(), h, [][]byte{[]byte("foo"), []byte("bar")})
	require.NoError(t, err)
	assert.Equal(t, "foobar", string(out))

	// Re-installing identical code for the same fn is a cache hit.
	h2, err := pool.Install("concat", []byte("concat"))
	require.NoError(t, err)
	assert.Equal(t, h, h2)
}

func TestExecutorPoolDeadlineExpires(t *testing.T) {
	blocking := &blockingExecutor{release: make(chan struct{})}
	pool, err := NewExecutorPool(blocking, 1, 10*time.Millisecond, "")
	require.NoError(t, err)
	defer func() {
		close(blocking.release)
		pool.Stop()
	}()

	h, _ := blocking.Initialize("slow", nil)
	_, err = pool.Submit(context.Background(), h, nil)
	assert.Error(t, err)
}

// blockingExecutor ignores ctx and blocks until release is closed, used to
// exercise deadline expiry.
type blockingExecutor struct {
	release chan struct{}
}

func (b *blockingExecutor) Initialize(fn string, code []byte) (Handle, error) {
	return Handle{Fn: fn}, nil
}

func (b *blockingExecutor) Execute(ctx context.Context, h Handle, args [][]byte) ([]byte, error) {
	select {
	case <-b.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
