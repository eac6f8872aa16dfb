package icn

import (
	"github.com/go-nfn/nfnd/defn"
	"github.com/go-nfn/nfnd/table"
)

// handleInterest handles an Interest arriving from below or from above -
// the two cases differ only in which face the waiter is recorded under
// (a real face, or the APP pseudo-face) and whether a direct answer (a CS
// hit or a NO_ROUTE Nack) is emitted upward or down to that face.
func (l *Layer) handleInterest(face defn.FaceID, interest *defn.Packet, fromAbove bool) {
	name := interest.Name

	// 1. CS hit.
	if content, ok := l.cs.Get(name); ok {
		l.emitTo(face, fromAbove, content)
		return
	}

	// 2. Aggregate onto an existing PIT entry.
	if entry, ok := l.pit.Get(name); ok {
		entry.AddIncomingFace(face)
		return
	}

	// 3. Unmatched NFN Interest with no route, handed to the local app.
	if l.cfg.InterestToApp && name.IsNFN() && !l.fib.HasPrefixMatch(name) {
		l.pit.Insert(name, face, true)
		l.sendUp(interest)
		return
	}

	// 4. Longest-prefix FIB lookup. A route may point at the local
	// application (AppFace) just as well as at a peer - registering such
	// a route is how a producer announces a namespace it serves locally.
	fibFace, ok := l.fib.LongestPrefixMatch(name)
	if !ok {
		l.emitTo(face, fromAbove, defn.NewNack(name, defn.NackNoRoute, interest))
		return
	}

	entry := l.pit.Insert(name, face, fibFace == defn.AppFace)
	entry.SetOutgoing(fibFace)
	if fibFace == defn.AppFace {
		l.sendUp(interest)
		return
	}
	l.sendDown(fibFace, interest)
}

// handleContent fans Content out to every PIT waiter, inserts it into the
// CS (subject to the unsolicited caching policy when there was no PIT
// entry), and removes the PIT entry.
func (l *Layer) handleContent(face defn.FaceID, content *defn.Packet, fromAbove bool) {
	name := content.Name

	entry, ok := l.pit.Get(name)
	if !ok {
		if l.cfg.UnsolicitedCaching {
			l.cs.Insert(name, content)
		}
		return
	}

	l.fanOut(entry, content, fromAbove)

	if !fromAbove || l.cfg.UnsolicitedCaching {
		l.cs.Insert(name, content)
	}
	l.pit.Remove(name)
}

// handleNack propagates a Nack to every waiter, removes the entry, and
// never caches it.
func (l *Layer) handleNack(nack *defn.Packet) {
	entry, ok := l.pit.Get(nack.Name)
	if !ok {
		return
	}
	l.fanOutNack(entry, nack)
	l.pit.Remove(nack.Name)
}

// fanOut sends content to every face awaiting it, and upward if the
// waiter is the local application. Content satisfying a from-above
// request is not re-sent upward - it came from there.
func (l *Layer) fanOut(entry *table.PitEntry, content *defn.Packet, fromAbove bool) {
	for _, f := range entry.IncomingFaceList() {
		if f == defn.AppFace {
			if !fromAbove {
				l.sendUp(content)
			}
			continue
		}
		l.sendDown(f, content)
	}
}

func (l *Layer) fanOutNack(entry *table.PitEntry, nack *defn.Packet) {
	for _, f := range entry.IncomingFaceList() {
		if f == defn.AppFace {
			l.sendUp(nack)
			continue
		}
		l.sendDown(f, nack)
	}
}

// emitTo sends p either upward (the request came from the local app) or
// downward to face (the request came from a peer).
func (l *Layer) emitTo(face defn.FaceID, fromAbove bool, p *defn.Packet) {
	if fromAbove {
		l.sendUp(p)
		return
	}
	l.sendDown(face, p)
}
