// Package timeoutprevention implements the R2C sidecar positioned between
// ChunkLayer and NFNLayer: it emits periodic keep-alive Interests for
// outstanding long-running NFN computations and answers incoming
// keep-alives on their behalf, so intermediate PIT entries along the path
// to a delegated computation don't time out while it runs.
package timeoutprevention

import (
	"time"

	"github.com/go-nfn/nfnd/defn"
)

// messageDictEntry records when a tracked Interest name was last refreshed.
type messageDictEntry struct {
	timestamp time.Time
}

// messageDict tracks one entry per outstanding NFN Interest this layer is
// keeping alive - two entries per computation, one for the original name
// and one for its KEEPALIVE-tagged variant.
type messageDict struct {
	entries map[string]*messageDictEntry
}

func newMessageDict() *messageDict {
	return &messageDict{entries: make(map[string]*messageDictEntry)}
}

func (d *messageDict) get(name defn.Name) (*messageDictEntry, bool) {
	e, ok := d.entries[name.String()]
	return e, ok
}

func (d *messageDict) create(name defn.Name) {
	d.entries[name.String()] = &messageDictEntry{timestamp: time.Now()}
}

func (d *messageDict) remove(name defn.Name) {
	delete(d.entries, name.String())
}

// refresh resets an existing entry's timestamp, ignoring names with no
// entry.
func (d *messageDict) refresh(name defn.Name) {
	if _, ok := d.entries[name.String()]; ok {
		d.entries[name.String()] = &messageDictEntry{timestamp: time.Now()}
	}
}

// names returns every tracked name, snapshotted for the ageing pass to
// iterate while the dict itself may be mutated.
func (d *messageDict) names() []defn.Name {
	out := make([]defn.Name, 0, len(d.entries))
	for k := range d.entries {
		out = append(out, defn.NameFromString(k))
	}
	return out
}
