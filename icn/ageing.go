package icn

import (
	"time"

	"github.com/go-nfn/nfnd/core"
	"github.com/go-nfn/nfnd/defn"
)

// age runs one ageing tick. PIT ageing always precedes CS ageing, so a
// request that just timed out can't be answered from a stale cache entry
// in the same tick. A panic during ageing is recovered and logged so the
// tick schedule keeps running rather than killing the goroutine.
func (l *Layer) age(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			core.Log.Warn(l, "Exception during ageing, continuing", "panic", r)
		}
	}()

	l.agePit(now)
	l.cs.AgeOut(now)
}

func (l *Layer) agePit(now time.Time) {
	expired := l.pit.Expired(now, l.cfg.PitTimeout)
	for _, entry := range expired {
		nack := defn.NewNack(entry.Name, defn.NackNotSet, nil)
		l.fanOutNack(entry, nack)
		l.pit.Remove(entry.Name)
	}
}
