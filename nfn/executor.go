package nfn

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
)

// ExecutorError reports a failure that occurred while running installed
// code, distinct from a deadline or pool-exhaustion failure.
type ExecutorError struct {
	Fn  string
	Err error
}

func (e *ExecutorError) Error() string { return fmt.Sprintf("executor %q: %v", e.Fn, e.Err) }
func (e *ExecutorError) Unwrap() error { return e.Err }

// Handle identifies a piece of code an Executor has installed and is ready
// to invoke by name.
type Handle struct {
	Fn string
}

// Executor installs and invokes named code. Initialize is idempotent:
// calling it twice for the same Fn is a no-op.
type Executor interface {
	Initialize(fn string, code []byte) (Handle, error)
	Execute(ctx context.Context, h Handle, args [][]byte) ([]byte, error)
}

// NewExecutor resolves a configured backend name (core.Config.Executors)
// to a concrete Executor. "BUILTIN" is the only backend this pack ships;
// any other name is rejected rather than silently falling back, so a
// misconfigured language tag fails at startup instead of at the first
// computation.
func NewExecutor(backend string) (Executor, error) {
	switch backend {
	case "", "BUILTIN":
		return NewBuiltinExecutor(), nil
	default:
		return nil, fmt.Errorf("nfn: unknown executor backend %q", backend)
	}
}

// BuiltinFn is one registered function a BuiltinExecutor can run. Args and
// the return value are the raw Content payload bytes; a BuiltinFn decides
// its own encoding.
type BuiltinFn func(args [][]byte) ([]byte, error)

// BuiltinExecutor runs a fixed registry of Go functions rather than
// interpreting installed code. It exists so EXEC is reachable and testable
// without embedding a real scripting language; Initialize only validates
// that fn names a registered function.
type BuiltinExecutor struct {
	fns map[string]BuiltinFn
}

// NewBuiltinExecutor constructs an executor with arithmetic and string
// builtins: add, sub, mul, concat, len.
func NewBuiltinExecutor() *BuiltinExecutor {
	e := &BuiltinExecutor{fns: make(map[string]BuiltinFn)}
	e.fns["add"] = arithFold(func(a, b int64) int64 { return a + b }, 0)
	e.fns["sub"] = arithReduce(func(a, b int64) int64 { return a - b })
	e.fns["mul"] = arithFold(func(a, b int64) int64 { return a * b }, 1)
	e.fns["concat"] = func(args [][]byte) ([]byte, error) {
		var out []byte
		for _, a := range args {
			out = append(out, a...)
		}
		return out, nil
	}
	e.fns["len"] = func(args [][]byte) ([]byte, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("len takes exactly one argument, got %d", len(args))
		}
		return []byte(strconv.Itoa(len(args[0]))), nil
	}
	return e
}

func parseArithArg(b []byte) (int64, error) {
	return strconv.ParseInt(string(b), 10, 64)
}

func arithFold(op func(a, b int64) int64, identity int64) BuiltinFn {
	return func(args [][]byte) ([]byte, error) {
		acc := identity
		for _, a := range args {
			v, err := parseArithArg(a)
			if err != nil {
				return nil, err
			}
			acc = op(acc, v)
		}
		return []byte(strconv.FormatInt(acc, 10)), nil
	}
}

func arithReduce(op func(a, b int64) int64) BuiltinFn {
	return func(args [][]byte) ([]byte, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("requires at least one argument")
		}
		acc, err := parseArithArg(args[0])
		if err != nil {
			return nil, err
		}
		for _, a := range args[1:] {
			v, err := parseArithArg(a)
			if err != nil {
				return nil, err
			}
			acc = op(acc, v)
		}
		return []byte(strconv.FormatInt(acc, 10)), nil
	}
}

// Initialize validates that fn is registered. BuiltinExecutor has no real
// code to install, so code is ignored beyond computing its content hash for
// the caller's cache bookkeeping.
func (e *BuiltinExecutor) Initialize(fn string, code []byte) (Handle, error) {
	if _, ok := e.fns[fn]; !ok {
		return Handle{}, &ExecutorError{Fn: fn, Err: fmt.Errorf("no builtin registered")}
	}
	return Handle{Fn: fn}, nil
}

// Execute runs the registered function for h.Fn, cancelling partway through
// is not possible for a builtin - they're expected to return promptly - but
// ctx is still checked before running so a computation that already blew
// its deadline waiting for a worker slot fails fast.
func (e *BuiltinExecutor) Execute(ctx context.Context, h Handle, args [][]byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fn, ok := e.fns[h.Fn]
	if !ok {
		return nil, &ExecutorError{Fn: h.Fn, Err: fmt.Errorf("handle not initialized")}
	}
	out, err := fn(args)
	if err != nil {
		return nil, &ExecutorError{Fn: h.Fn, Err: err}
	}
	return out, nil
}

// codeCache records, per content hash, that a piece of code has already
// been installed - so a repeated NFN expression referencing the same code
// skips re-initializing it. The in-memory map answers hot lookups; Badger
// persists the same fact so it survives a restart.
type codeCache struct {
	mu   sync.Mutex
	seen map[uint64]string // content hash -> fn name
	db   *badger.DB
}

func newCodeCache(dir string) (*codeCache, error) {
	c := &codeCache{seen: make(map[uint64]string)}
	if dir == "" {
		return c, nil
	}
	db, err := badger.Open(badger.DefaultOptions(dir))
	if err != nil {
		return nil, fmt.Errorf("open code cache: %w", err)
	}
	c.db = db
	return c, nil
}

func hashCode(code []byte) uint64 { return xxhash.Sum64(code) }

// markInstalled records that fn's code has been installed, returning true
// if it was already recorded (Initialize can then be skipped).
func (c *codeCache) markInstalled(fn string, code []byte) (alreadyInstalled bool, err error) {
	h := hashCode(code)
	key := []byte(fmt.Sprintf("installed/%016x", h))

	c.mu.Lock()
	if existing, ok := c.seen[h]; ok {
		c.mu.Unlock()
		return existing == fn, nil
	}
	if c.db != nil {
		var stored []byte
		if err := c.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(key)
			if err != nil {
				return err
			}
			stored, err = item.ValueCopy(nil)
			return err
		}); err == nil {
			c.seen[h] = string(stored)
			c.mu.Unlock()
			return string(stored) == fn, nil
		}
	}
	c.seen[h] = fn
	c.mu.Unlock()

	if c.db == nil {
		return false, nil
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, []byte(fn))
	})
	return false, err
}

func (c *codeCache) close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// task is one unit of work submitted to an ExecutorPool.
type task struct {
	h      Handle
	args   [][]byte
	result chan taskResult
}

type taskResult struct {
	out []byte
	err error
}

// ExecutorPool runs Execute calls on a bounded pool of worker goroutines,
// enforcing a per-task deadline so one slow or looping computation cannot
// starve the others.
type ExecutorPool struct {
	exec     Executor
	deadline time.Duration
	cache    *codeCache
	tasks    chan task
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewExecutorPool starts workers worker goroutines (GOMAXPROCS-sized pool
// if workers <= 0) running against exec, each Execute bounded by deadline.
func NewExecutorPool(exec Executor, workers int, deadline time.Duration, cacheDir string) (*ExecutorPool, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	cache, err := newCodeCache(cacheDir)
	if err != nil {
		return nil, err
	}
	p := &ExecutorPool{
		exec:     exec,
		deadline: deadline,
		cache:    cache,
		tasks:    make(chan task, workers),
		done:     make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p, nil
}

func (p *ExecutorPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case t := <-p.tasks:
			ctx, cancel := context.WithTimeout(context.Background(), p.deadline)
			out, err := p.exec.Execute(ctx, t.h, t.args)
			cancel()
			t.result <- taskResult{out: out, err: err}
		case <-p.done:
			return
		}
	}
}

// Install ensures fn's code is initialized on the underlying Executor,
// skipping re-initialization if an identical content hash was seen before.
func (p *ExecutorPool) Install(fn string, code []byte) (Handle, error) {
	if p.cache != nil {
		already, err := p.cache.markInstalled(fn, code)
		if err == nil && already {
			return Handle{Fn: fn}, nil
		}
	}
	return p.exec.Initialize(fn, code)
}

// Submit queues args for execution under h and blocks until the result is
// ready or ctx is cancelled.
func (p *ExecutorPool) Submit(ctx context.Context, h Handle, args [][]byte) ([]byte, error) {
	t := task{h: h, args: args, result: make(chan taskResult, 1)}
	select {
	case p.tasks <- t:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return nil, fmt.Errorf("executor pool stopped")
	}
	select {
	case r := <-t.result:
		return r.out, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop shuts down every worker goroutine and closes the code cache.
func (p *ExecutorPool) Stop() {
	close(p.done)
	p.wg.Wait()
	p.cache.close()
}
