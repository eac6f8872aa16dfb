// Package nfn implements the NFNLayer: parsing NFN-tagged Interest names
// into an expression tree, deciding whether to evaluate locally or
// delegate, running executors, and tracking each in-flight computation's
// state in a table.
package nfn

import (
	"strconv"
	"strings"

	"github.com/go-nfn/nfnd/defn"
)

// Expr is a node in a parsed NFN expression tree: Call, NameRef, or
// Literal.
type Expr interface {
	isExpr()
	String() string
}

// Call invokes Fn on Args, e.g. "add(/a, 3)".
type Call struct {
	Fn   string
	Args []Expr
}

func (*Call) isExpr() {}

func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return c.Fn + "(" + strings.Join(args, ",") + ")"
}

// NameRef is a bare Name used as an operand, resolved by fetching Content
// for it.
type NameRef struct {
	Name defn.Name
}

func (*NameRef) isExpr() {}

func (n *NameRef) String() string { return n.Name.String() }

// Literal is an inline integer or string constant.
type Literal struct {
	IsString bool
	Str      string
	Int      int64
}

func (*Literal) isExpr() {}

func (l *Literal) String() string {
	if l.IsString {
		return strconv.Quote(l.Str)
	}
	return strconv.FormatInt(l.Int, 10)
}

// Walk calls visit for every NameRef leaf in e, depth-first.
func Walk(e Expr, visit func(*NameRef)) {
	switch n := e.(type) {
	case *NameRef:
		visit(n)
	case *Call:
		for _, a := range n.Args {
			Walk(a, visit)
		}
	}
}
