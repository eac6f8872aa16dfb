// Package defn holds the shared wire-agnostic data model every layer
// operates on: Name, Packet (Interest/Content/Nack), and face ids.
package defn

import (
	"bytes"
	"strings"
)

// Component is a single opaque name component. There is no TLV type tag
// here: a Name is an ordered sequence of opaque byte components, nothing
// more.
type Component []byte

// Equal reports whether two components hold the same bytes.
func (c Component) Equal(o Component) bool {
	return bytes.Equal(c, o)
}

// String renders the component as text for names composed of printable
// bytes - the only kind the text wire encoder and the NFN grammar produce.
func (c Component) String() string {
	return string(c)
}

// NFNMarker is the distinguished trailing component that marks a name as
// an NFN function-evaluation request.
const NFNMarker = "NFN"

// KeepAliveMarker is the component placed immediately before NFNMarker to
// mark a keep-alive message.
const KeepAliveMarker = "KEEPALIVE"

// Name is an ordered sequence of opaque components. Equality is
// componentwise; Name is a value type and safe to share, but components
// should be treated as immutable once built.
type Name []Component

// NameFromString splits a slash-delimited string like "/a/b/c" into a
// Name. A leading slash is optional; empty components (from a doubled
// slash) are dropped.
func NameFromString(s string) Name {
	parts := strings.Split(s, "/")
	n := make(Name, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		n = append(n, Component(p))
	}
	return n
}

// String renders the Name back to slash-delimited text.
func (n Name) String() string {
	var sb strings.Builder
	for _, c := range n {
		sb.WriteByte('/')
		sb.Write(c)
	}
	if len(n) == 0 {
		return "/"
	}
	return sb.String()
}

// Equal reports whether two Names have the same components in the same
// order.
func (n Name) Equal(o Name) bool {
	if len(n) != len(o) {
		return false
	}
	for i := range n {
		if !n[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// IsPrefixOf reports whether n is a (non-strict) prefix of o: every
// component of n matches the corresponding component of o, in order.
func (n Name) IsPrefixOf(o Name) bool {
	if len(n) > len(o) {
		return false
	}
	for i := range n {
		if !n[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the Name, safe to mutate independently.
func (n Name) Clone() Name {
	c := make(Name, len(n))
	for i, comp := range n {
		c[i] = append(Component(nil), comp...)
	}
	return c
}

// Append returns a new Name with the given components appended, without
// mutating n.
func (n Name) Append(comps ...Component) Name {
	out := make(Name, 0, len(n)+len(comps))
	out = append(out, n...)
	out = append(out, comps...)
	return out
}

// IsNFN reports whether the name's trailing component is the NFN marker.
func (n Name) IsNFN() bool {
	return len(n) > 0 && n[len(n)-1].Equal(Component(NFNMarker))
}

// IsKeepAlive reports whether the name is an NFN name whose penultimate
// component is the KEEPALIVE marker.
func (n Name) IsKeepAlive() bool {
	return len(n) >= 2 && n.IsNFN() && n[len(n)-2].Equal(Component(KeepAliveMarker))
}

// AddKeepAlive inserts KEEPALIVE immediately before a trailing NFN
// component, returning n unchanged if it does not end in NFN. This
// operates strictly on the penultimate position rather than searching for
// and removing a marker by value, which is ambiguous when a real name
// component happens to equal the marker string.
func AddKeepAlive(n Name) Name {
	if !n.IsNFN() {
		return n
	}
	out := make(Name, 0, len(n)+1)
	out = append(out, n[:len(n)-1]...)
	out = append(out, Component(KeepAliveMarker), n[len(n)-1])
	return out
}

// RemoveKeepAlive removes a penultimate KEEPALIVE component, returning n
// unchanged if it is not a keep-alive name. It is the exact inverse of
// AddKeepAlive: RemoveKeepAlive(AddKeepAlive(n)) == n for every n ending
// in NFN.
func RemoveKeepAlive(n Name) Name {
	if !n.IsKeepAlive() {
		return n
	}
	out := make(Name, 0, len(n)-1)
	out = append(out, n[:len(n)-2]...)
	out = append(out, n[len(n)-1])
	return out
}
