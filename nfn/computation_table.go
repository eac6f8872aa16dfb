package nfn

import (
	"time"

	"github.com/go-nfn/nfnd/defn"
)

// State is a computation's position in the NFN lifecycle.
type State int

const (
	StateReceived State = iota
	StateFwd
	StatePendingData
	StateRewrite
	StateExec
	StateFinished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "RECEIVED"
	case StateFwd:
		return "FWD"
	case StatePendingData:
		return "PENDING_DATA"
	case StateRewrite:
		return "REWRITE"
	case StateExec:
		return "EXEC"
	case StateFinished:
		return "FINISHED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Computation is one in-flight (or recently completed) NFN evaluation.
type Computation struct {
	Name              defn.Name
	OriginalInterest  *defn.Packet
	AST               Expr
	State             State
	RequiredData      map[string]defn.Name // names still needed, keyed by Name.String()
	ResolvedData      map[string][]byte    // names already fetched, keyed by Name.String()
	AwaitedResultName string                // set in REWRITE: the name whose Content completes this entry
	Result            []byte
	Err               error
	Started           time.Time
	Finished          time.Time
}

// Table is the NFN Computation Table: at most one entry per Name.
type Table struct {
	entries map[string]*Computation
}

// NewTable constructs an empty computation table.
func NewTable() *Table {
	return &Table{entries: make(map[string]*Computation)}
}

// Add creates a new RECEIVED-state computation for name. Callers must
// check Get first; Add always creates a fresh entry.
func (t *Table) Add(name defn.Name, interest *defn.Packet, ast Expr) *Computation {
	c := &Computation{
		Name:             name,
		OriginalInterest: interest,
		AST:              ast,
		State:            StateReceived,
		RequiredData:     make(map[string]defn.Name),
		ResolvedData:     make(map[string][]byte),
		Started:          time.Now(),
	}
	t.entries[name.String()] = c
	return c
}

// Get performs an exact-match lookup by name.
func (t *Table) Get(name defn.Name) (*Computation, bool) {
	c, ok := t.entries[name.String()]
	return c, ok
}

// Remove deletes the entry for name, if any.
func (t *Table) Remove(name defn.Name) {
	delete(t.entries, name.String())
}

// Len returns the number of tracked computations.
func (t *Table) Len() int { return len(t.entries) }

// AwaitingData returns every PENDING_DATA computation whose RequiredData
// still includes name.
func (t *Table) AwaitingData(name defn.Name) []*Computation {
	key := name.String()
	var out []*Computation
	for _, c := range t.entries {
		if c.State != StatePendingData {
			continue
		}
		if _, needed := c.RequiredData[key]; needed {
			if _, got := c.ResolvedData[key]; !got {
				out = append(out, c)
			}
		}
	}
	return out
}

// AwaitingRewrite returns the REWRITE-state computation whose delegated
// Interest was for name, if any.
func (t *Table) AwaitingRewrite(name defn.Name) (*Computation, bool) {
	key := name.String()
	for _, c := range t.entries {
		if c.State == StateRewrite && c.AwaitedResultName == key {
			return c, true
		}
	}
	return nil, false
}

// Expired returns every FINISHED/FAILED computation older than grace, for
// the ageing tick to evict.
func (t *Table) Expired(now time.Time, grace time.Duration) []*Computation {
	var out []*Computation
	for _, c := range t.entries {
		if c.State != StateFinished && c.State != StateFailed {
			continue
		}
		if now.Sub(c.Finished) > grace {
			out = append(out, c)
		}
	}
	return out
}
