// Package table holds the three tables ICNLayer owns and mutates
// exclusively from its own goroutine: the Content Store, the Pending
// Interest Table, and the Forwarding Information Base.
package table

import (
	"container/list"
	"time"

	"github.com/go-nfn/nfnd/defn"
)

// csEntry is one Content Store slot: the cached Content plus the
// bookkeeping LRU eviction and TTL ageing need.
type csEntry struct {
	name      defn.Name
	content   *defn.Packet
	inserted  time.Time
	lruElem   *list.Element // element in ContentStore.lru, keyed by name
}

// ContentStore is a capacity-bounded, TTL-aware Name -> Content cache with
// LRU eviction. No two entries share a name - Insert overwrites in place
// and keeps it the most-recently-used.
//
// Not safe for concurrent use: the CS is mutated only from ICNLayer's own
// goroutine (main loop or its ageing ticker, serialized through the same
// input channel).
type ContentStore struct {
	capacity int
	ttl      time.Duration
	entries  map[string]*csEntry
	lru      *list.List // front = most recently used
}

// NewContentStore constructs a Content Store with the given capacity and
// a TTL that applies to every entry; entries carry no TTL of their own.
func NewContentStore(capacity int, ttl time.Duration) *ContentStore {
	return &ContentStore{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*csEntry),
		lru:      list.New(),
	}
}

func key(n defn.Name) string { return n.String() }

// Get performs an exact-match lookup, promoting the entry to
// most-recently-used on hit.
func (cs *ContentStore) Get(name defn.Name) (*defn.Packet, bool) {
	e, ok := cs.entries[key(name)]
	if !ok {
		return nil, false
	}
	cs.lru.MoveToFront(e.lruElem)
	return e.content, true
}

// Insert adds or replaces the Content entry for name, evicting the least
// recently used entry if the store is at capacity. Inserting the same
// Content twice leaves the store in the same state as inserting it once,
// aside from refreshing recency and insertion time.
func (cs *ContentStore) Insert(name defn.Name, content *defn.Packet) {
	k := key(name)
	if e, ok := cs.entries[k]; ok {
		e.content = content
		e.inserted = time.Now()
		cs.lru.MoveToFront(e.lruElem)
		return
	}

	if cs.capacity > 0 && len(cs.entries) >= cs.capacity {
		cs.evictOldest()
	}

	e := &csEntry{name: name, content: content, inserted: time.Now()}
	e.lruElem = cs.lru.PushFront(k)
	cs.entries[k] = e
}

func (cs *ContentStore) evictOldest() {
	back := cs.lru.Back()
	if back == nil {
		return
	}
	cs.lru.Remove(back)
	delete(cs.entries, back.Value.(string))
}

// Remove deletes the entry for name, if any.
func (cs *ContentStore) Remove(name defn.Name) {
	k := key(name)
	e, ok := cs.entries[k]
	if !ok {
		return
	}
	cs.lru.Remove(e.lruElem)
	delete(cs.entries, k)
}

// Len returns the number of entries currently cached.
func (cs *ContentStore) Len() int { return len(cs.entries) }

// Entries returns a snapshot of every cached entry's name, payload size,
// and insertion time, for management introspection (mgmt's "getcs" verb).
func (cs *ContentStore) Entries() []struct {
	Name     defn.Name
	Size     int
	Inserted time.Time
} {
	out := make([]struct {
		Name     defn.Name
		Size     int
		Inserted time.Time
	}, 0, len(cs.entries))
	for _, e := range cs.entries {
		out = append(out, struct {
			Name     defn.Name
			Size     int
			Inserted time.Time
		}{Name: e.name, Size: len(e.content.Payload), Inserted: e.inserted})
	}
	return out
}

// AgeOut evicts every entry older than the store's TTL, as of now. It is
// called from ICNLayer's ageing tick, after PIT ageing.
func (cs *ContentStore) AgeOut(now time.Time) {
	var expired []string
	for k, e := range cs.entries {
		if now.Sub(e.inserted) > cs.ttl {
			expired = append(expired, k)
		}
	}
	for _, k := range expired {
		e := cs.entries[k]
		cs.lru.Remove(e.lruElem)
		delete(cs.entries, k)
	}
}
