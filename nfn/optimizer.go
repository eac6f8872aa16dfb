package nfn

import "github.com/go-nfn/nfnd/defn"

// RequiredData returns the distinct Names referenced anywhere in ast that
// are not yet present in resolved. The NFN layer fetches these before a
// forwarding decision can be made.
func RequiredData(ast Expr, resolved map[string][]byte) []defn.Name {
	seen := make(map[string]bool)
	var out []defn.Name
	Walk(ast, func(n *NameRef) {
		key := n.Name.String()
		if seen[key] {
			return
		}
		seen[key] = true
		if _, ok := resolved[key]; ok {
			return
		}
		out = append(out, n.Name)
	})
	return out
}

// Decision is the outcome of a forwarding decision: evaluate here, or
// delegate the whole computation to whichever node the network routes it
// to next.
type Decision struct {
	Forward bool
}

// Optimizer implements the "to-data-first" policy: by default every
// computation with all its data resolved runs locally. Placing a
// computation at whichever node owns the largest remote input requires
// cluster-wide data location knowledge this forwarder does not have, so
// ForwardDecider is a seam a caller can install to override LOCAL for
// specific computations (used by tests exercising the REWRITE state)
// rather than a real cross-node placement algorithm.
type Optimizer struct {
	ForwardDecider func(ast Expr, resolved map[string][]byte) bool
}

// NewOptimizer constructs an Optimizer with the default always-local
// policy.
func NewOptimizer() *Optimizer {
	return &Optimizer{}
}

// ForwardingDecision returns LOCAL unless ForwardDecider is set and opts
// to delegate.
func (o *Optimizer) ForwardingDecision(ast Expr, resolved map[string][]byte) Decision {
	if o.ForwardDecider != nil && o.ForwardDecider(ast, resolved) {
		return Decision{Forward: true}
	}
	return Decision{Forward: false}
}
