package table

import (
	"time"

	"github.com/go-nfn/nfnd/defn"

	"golang.org/x/exp/maps"
)

// PitEntry tracks the faces awaiting Content for a Name in flight.
// Invariant: a PIT entry exists iff at least one waiter remains and the
// request is in flight upstream or toward the local application - the
// caller is responsible for calling Remove once the last waiter is
// served, never leaving an entry with zero incoming faces lying around.
type PitEntry struct {
	Name          defn.Name
	IncomingFaces map[defn.FaceID]struct{}
	FirstArrival  time.Time
	IsFwd         bool
	OutgoingFace  defn.FaceID
	HasOutgoing   bool
	LocalApp      bool
}

// IncomingFaceList returns a snapshot of the waiting faces, independent of
// the entry's internal set.
func (e *PitEntry) IncomingFaceList() []defn.FaceID {
	return maps.Keys(e.IncomingFaces)
}

// PendingInterestTable is the exact-match Name -> PitEntry table ICNLayer
// owns.
type PendingInterestTable struct {
	entries map[string]*PitEntry
}

// NewPendingInterestTable constructs an empty PIT.
func NewPendingInterestTable() *PendingInterestTable {
	return &PendingInterestTable{entries: make(map[string]*PitEntry)}
}

// Get performs an exact-match lookup.
func (p *PendingInterestTable) Get(name defn.Name) (*PitEntry, bool) {
	e, ok := p.entries[key(name)]
	return e, ok
}

// Insert creates a new PIT entry for name awaiting Content from a single
// waiter, incomingFace; isLocalApp additionally sets LocalApp to mark a
// request handed to the local application. Callers must check Get first;
// Insert always creates a fresh entry.
func (p *PendingInterestTable) Insert(name defn.Name, incomingFace defn.FaceID, isLocalApp bool) *PitEntry {
	e := &PitEntry{
		Name:          name,
		IncomingFaces: map[defn.FaceID]struct{}{incomingFace: {}},
		FirstArrival:  time.Now(),
		LocalApp:      isLocalApp,
	}
	p.entries[key(name)] = e
	return e
}

// AddIncomingFace aggregates a duplicate Interest onto an existing entry:
// the face is added to its incoming set and the Interest itself is
// dropped rather than forwarded again.
func (e *PitEntry) AddIncomingFace(face defn.FaceID) {
	e.IncomingFaces[face] = struct{}{}
}

// SetOutgoing marks the entry as forwarded out a FIB-resolved face.
func (e *PitEntry) SetOutgoing(face defn.FaceID) {
	e.OutgoingFace = face
	e.HasOutgoing = true
	e.IsFwd = true
}

// Remove deletes the PIT entry for name, if any.
func (p *PendingInterestTable) Remove(name defn.Name) {
	delete(p.entries, key(name))
}

// Len returns the number of pending entries.
func (p *PendingInterestTable) Len() int { return len(p.entries) }

// Entries returns a snapshot of every pending entry, for management
// introspection (mgmt's "getpit" verb).
func (p *PendingInterestTable) Entries() []*PitEntry {
	out := make([]*PitEntry, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e)
	}
	return out
}

// Expired returns every entry whose FirstArrival is older than timeout as
// of now, for the ageing tick to evict.
func (p *PendingInterestTable) Expired(now time.Time, timeout time.Duration) []*PitEntry {
	var out []*PitEntry
	for _, e := range p.entries {
		if now.Sub(e.FirstArrival) > timeout {
			out = append(out, e)
		}
	}
	return out
}
