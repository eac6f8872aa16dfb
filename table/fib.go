package table

import (
	"sort"

	"github.com/go-nfn/nfnd/defn"
)

// fibEntry binds a name prefix to the face it should be forwarded to.
type fibEntry struct {
	prefix defn.Name
	face   defn.FaceID
}

// ForwardingInformationBase is the NamePrefix -> FaceID longest-prefix
// match table ICNLayer owns. Entries are kept sorted by descending prefix
// length so LongestPrefixMatch can return on the first match; there are no duplicate
// prefixes.
//
// A sorted-slice scan, not a trie, is the right size for this table: see
// DESIGN.md for why github.com/gaissmai/bart's IP-prefix trie does not
// transfer to arbitrary-length Name prefixes.
type ForwardingInformationBase struct {
	entries []fibEntry
}

// NewForwardingInformationBase constructs an empty FIB.
func NewForwardingInformationBase() *ForwardingInformationBase {
	return &ForwardingInformationBase{}
}

// Insert adds or replaces the next hop for prefix, keeping entries sorted
// by descending component count.
func (f *ForwardingInformationBase) Insert(prefix defn.Name, face defn.FaceID) {
	for i, e := range f.entries {
		if e.prefix.Equal(prefix) {
			f.entries[i].face = face
			return
		}
	}
	f.entries = append(f.entries, fibEntry{prefix: prefix, face: face})
	sort.SliceStable(f.entries, func(i, j int) bool {
		return len(f.entries[i].prefix) > len(f.entries[j].prefix)
	})
}

// Remove deletes the next hop entry for prefix, if any.
func (f *ForwardingInformationBase) Remove(prefix defn.Name) {
	for i, e := range f.entries {
		if e.prefix.Equal(prefix) {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return
		}
	}
}

// LongestPrefixMatch returns the face bound to the longest prefix of name
// present in the FIB, or ok=false if no prefix matches.
func (f *ForwardingInformationBase) LongestPrefixMatch(name defn.Name) (defn.FaceID, bool) {
	for _, e := range f.entries {
		if e.prefix.IsPrefixOf(name) {
			return e.face, true
		}
	}
	return 0, false
}

// HasPrefixMatch reports whether any FIB prefix matches name, used by
// ICNLayer to decide whether an NFN Interest with no route should be
// handed to the local application instead.
func (f *ForwardingInformationBase) HasPrefixMatch(name defn.Name) bool {
	_, ok := f.LongestPrefixMatch(name)
	return ok
}

// Len returns the number of distinct prefixes in the FIB.
func (f *ForwardingInformationBase) Len() int { return len(f.entries) }

// Entries returns a snapshot of every (prefix, face) pair, sorted longest
// prefix first, for management introspection (mgmt's "getfib" verb).
func (f *ForwardingInformationBase) Entries() []struct {
	Prefix defn.Name
	Face   defn.FaceID
} {
	out := make([]struct {
		Prefix defn.Name
		Face   defn.FaceID
	}, len(f.entries))
	for i, e := range f.entries {
		out[i].Prefix = e.prefix
		out[i].Face = e.face
	}
	return out
}
