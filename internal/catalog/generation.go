package catalog

import "sync/atomic"

// Generation issues monotonically increasing request tickets. Only the most
// recently issued ticket is current.
type Generation struct {
	latest atomic.Uint64
}

// Ticket identifies one request issued by a Generation.
type Ticket struct {
	gen *Generation
	seq uint64
}

// Begin issues a new ticket, superseding every ticket issued before it.
func (g *Generation) Begin() Ticket {
	return Ticket{gen: g, seq: g.latest.Add(1)}
}

// Current reports whether no newer ticket has been issued since t.
func (t Ticket) Current() bool {
	if t.gen == nil {
		return false
	}
	return t.gen.latest.Load() == t.seq
}

// Seq returns the ticket's sequence number.
func (t Ticket) Seq() uint64 { return t.seq }

// Observe returns a ticket for the current generation without superseding
// anything. It stays current until the next Begin.
func (g *Generation) Observe() Ticket {
	return Ticket{gen: g, seq: g.latest.Load()}
}
