package nfn

import (
	"context"
	"time"

	"github.com/go-nfn/nfnd/core"
	"github.com/go-nfn/nfnd/defn"
)

// Config carries the subset of forwarder configuration this layer
// consults.
type Config struct {
	ExecutorWorkers  int
	ExecutorDeadline time.Duration
	CodeCacheDir     string
	ComputationGrace time.Duration
}

// execResult carries an executor's outcome back into the layer's main
// loop. The worker goroutine that computes it only ever writes to this
// channel - the Computation it names is read and mutated exclusively by
// Run's goroutine.
type execResult struct {
	name defn.Name
	out  []byte
	err  error
}

// Layer is the NFNLayer: the topmost layer in the pipeline. It has no
// layer above it - an NFN computation either terminates with a Content or
// Nack sent back down toward the requester, or is delegated by re-emitting
// the Interest downward under its own PIT entry.
type Layer struct {
	cfg       Config
	table     *Table
	optimizer *Optimizer
	pool      *ExecutorPool

	FromLower chan *defn.Packet // from TimeoutPreventionLayer
	ToLower   chan *defn.Packet // to TimeoutPreventionLayer

	execResults chan execResult
	queries     chan runningQuery
	done        chan struct{}
}

// runningQuery is how TimeoutPreventionLayer asks whether a computation is
// still tracked, without touching the table from a foreign goroutine.
type runningQuery struct {
	name defn.Name
	resp chan bool
}

func (l *Layer) String() string { return "nfn-layer" }

// NewLayer constructs an NFNLayer running exec against a fresh computation
// table and optimizer.
func NewLayer(cfg Config, exec Executor, queueDepth int) (*Layer, error) {
	pool, err := NewExecutorPool(exec, cfg.ExecutorWorkers, cfg.ExecutorDeadline, cfg.CodeCacheDir)
	if err != nil {
		return nil, err
	}
	return &Layer{
		cfg:         cfg,
		table:       NewTable(),
		optimizer:   NewOptimizer(),
		pool:        pool,
		FromLower:   make(chan *defn.Packet, queueDepth),
		ToLower:     make(chan *defn.Packet, queueDepth),
		execResults: make(chan execResult, queueDepth),
		queries:     make(chan runningQuery),
		done:        make(chan struct{}),
	}, nil
}

// Optimizer exposes the layer's Optimizer so a caller (tests, or a
// management command) can install a ForwardDecider.
func (l *Layer) Optimizer() *Optimizer { return l.optimizer }

// Table exposes the computation table for read-only introspection.
func (l *Layer) Table() *Table { return l.table }

// IsRunning reports whether name has a tracked computation, answered from
// the layer's own goroutine so TimeoutPreventionLayer's keep-alive handler
// never reads the table directly.
func (l *Layer) IsRunning(name defn.Name) bool {
	resp := make(chan bool, 1)
	select {
	case l.queries <- runningQuery{name: name, resp: resp}:
	case <-l.done:
		return false
	}
	select {
	case running := <-resp:
		return running
	case <-l.done:
		return false
	}
}

// Run is the layer's single-threaded main loop.
func (l *Layer) Run(ageing <-chan time.Time) {
	for {
		select {
		case p := <-l.FromLower:
			l.handleFromLower(p)
		case r := <-l.execResults:
			l.handleExecResult(r)
		case q := <-l.queries:
			_, ok := l.table.Get(q.name)
			q.resp <- ok
		case now := <-ageing:
			l.age(now)
		case <-l.done:
			return
		}
	}
}

func (l *Layer) handleFromLower(p *defn.Packet) {
	defer l.recoverToNack(p)
	switch p.Kind {
	case defn.KindInterest:
		l.handleInterest(p)
	case defn.KindContent:
		l.handleContent(p)
	case defn.KindNack:
		l.handleNack(p)
	}
}

func (l *Layer) recoverToNack(p *defn.Packet) {
	if r := recover(); r != nil {
		core.Log.Error(l, "Recovered panic while handling packet", "panic", r, "name", p.Name)
		l.sendDown(defn.NewNack(p.Name, defn.NackNotSet, p))
	}
}

func (l *Layer) handleInterest(p *defn.Packet) {
	if c, ok := l.table.Get(p.Name); ok {
		l.replayIfTerminal(c)
		return
	}

	exprStr, _, err := SplitNFNName(p.Name)
	if err != nil {
		l.sendDown(defn.NewNack(p.Name, defn.NackNotSet, p))
		return
	}
	ast, err := Parse(exprStr)
	if err != nil {
		l.sendDown(defn.NewNack(p.Name, defn.NackNotSet, p))
		return
	}

	c := l.table.Add(p.Name, p, ast)
	c.State = StateFwd
	l.advanceFwd(c)
}

// replayIfTerminal re-emits a FINISHED or FAILED computation's outcome for
// a retransmitted Interest, rather than recomputing it.
func (l *Layer) replayIfTerminal(c *Computation) {
	switch c.State {
	case StateFinished:
		l.sendDown(defn.NewContent(c.Name, c.Result))
	case StateFailed:
		l.sendDown(defn.NewNack(c.Name, defn.NackNotSet, c.OriginalInterest))
	}
}

// advanceFwd computes required data and either moves to PENDING_DATA,
// REWRITE, or straight to EXEC, per the FWD transition table.
func (l *Layer) advanceFwd(c *Computation) {
	required := RequiredData(c.AST, c.ResolvedData)
	if len(required) > 0 {
		for _, name := range required {
			c.RequiredData[name.String()] = name
			l.sendDown(defn.NewInterest(name))
		}
		c.State = StatePendingData
		return
	}

	decision := l.optimizer.ForwardingDecision(c.AST, c.ResolvedData)
	if decision.Forward {
		c.State = StateRewrite
		c.AwaitedResultName = c.Name.String()
		l.sendDown(defn.NewInterest(c.Name))
		return
	}

	l.beginExec(c)
}

// beginExec evaluates c.AST. A Literal or bare NameRef resolves
// synchronously from data already in hand; a Call dispatches to the
// executor pool without blocking the layer's own goroutine.
func (l *Layer) beginExec(c *Computation) {
	c.State = StateExec

	switch ast := c.AST.(type) {
	case *Literal:
		l.finish(c, literalBytes(ast), nil)
	case *NameRef:
		l.finish(c, c.ResolvedData[ast.Name.String()], nil)
	case *Call:
		l.dispatchCall(c, ast)
	default:
		l.finish(c, nil, &ExecutorError{Fn: "?", Err: context.Canceled})
	}
}

func literalBytes(l *Literal) []byte {
	if l.IsString {
		return []byte(l.Str)
	}
	return []byte(l.String())
}

func (l *Layer) dispatchCall(c *Computation, call *Call) {
	args := make([][]byte, len(call.Args))
	for i, a := range call.Args {
		switch arg := a.(type) {
		case *Literal:
			args[i] = literalBytes(arg)
		case *NameRef:
			args[i] = c.ResolvedData[arg.Name.String()]
		default:
			l.finish(c, nil, &ExecutorError{Fn: call.Fn, Err: context.Canceled})
			return
		}
	}

	h, err := l.pool.Install(call.Fn, []byte(call.Fn))
	if err != nil {
		l.finish(c, nil, err)
		return
	}

	name := c.Name
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), l.cfg.ExecutorDeadline)
		defer cancel()
		out, err := l.pool.Submit(ctx, h, args)
		l.execResults <- execResult{name: name, out: out, err: err}
	}()
}

func (l *Layer) handleExecResult(r execResult) {
	c, ok := l.table.Get(r.name)
	if !ok || c.State != StateExec {
		return
	}
	l.finish(c, r.out, r.err)
}

func (l *Layer) finish(c *Computation, result []byte, err error) {
	c.Finished = time.Now()
	if err != nil {
		c.State = StateFailed
		c.Err = err
		l.sendDown(defn.NewNack(c.Name, defn.NackNotSet, c.OriginalInterest))
		return
	}
	c.State = StateFinished
	c.Result = result
	l.sendDown(defn.NewContent(c.Name, result))
}

func (l *Layer) handleContent(p *defn.Packet) {
	if c, ok := l.table.AwaitingRewrite(p.Name); ok {
		c.Result = p.Payload
		c.Finished = time.Now()
		c.State = StateFinished
		l.sendDown(defn.NewContent(c.Name, p.Payload))
		return
	}

	for _, c := range l.table.AwaitingData(p.Name) {
		c.ResolvedData[p.Name.String()] = p.Payload
		if len(c.ResolvedData) >= len(c.RequiredData) {
			l.beginExec(c)
		}
	}
}

func (l *Layer) handleNack(p *defn.Packet) {
	if c, ok := l.table.AwaitingRewrite(p.Name); ok {
		l.finish(c, nil, &ExecutorError{Fn: "rewrite", Err: context.Canceled})
		return
	}

	for _, c := range l.table.AwaitingData(p.Name) {
		l.finish(c, nil, &ExecutorError{Fn: "fetch", Err: context.Canceled})
	}
}

// age removes FINISHED/FAILED computations older than ComputationGrace.
func (l *Layer) age(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			core.Log.Warn(l, "Exception during ageing, continuing", "panic", r)
		}
	}()

	for _, c := range l.table.Expired(now, l.cfg.ComputationGrace) {
		l.table.Remove(c.Name)
	}
}

func (l *Layer) sendDown(p *defn.Packet) {
	select {
	case l.ToLower <- p:
	default:
		core.Log.Warn(l, "Dropping outbound packet, queue full", "name", p.Name)
	}
}

// Stop shuts the layer's main loop and executor pool down.
func (l *Layer) Stop() {
	close(l.done)
	l.pool.Stop()
}
