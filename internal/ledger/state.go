// Package ledger provides the in-memory land ledger: the authoritative
// square→owner map, the owner→inventory sets kept in lockstep with it, and the
// table of pending swap offers. Every mutation runs under one lock and emits
// notifications in commit order.
package ledger

import (
	"sort"

	"threesquare.land/tsl/internal/types"
)

// State is a point-in-time copy of the full ledger. It shares nothing with
// the live ledger and is safe to serialize or mutate.
type State struct {
	Seq         uint64                         `json:"seq"`
	Owners      map[types.Square]types.Owner   `json:"owners"`
	Inventories map[types.Owner][]types.Square `json:"inventories"`
	Offers      []types.SwapOffer              `json:"offers"`
}

// NewState returns an empty State.
func NewState() *State {
	return &State{
		Owners:      make(map[types.Square]types.Owner),
		Inventories: make(map[types.Owner][]types.Square),
		Offers:      []types.SwapOffer{},
	}
}

// Snapshot copies the committed ledger state.
func (l *Ledger) Snapshot() *State {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st := NewState()
	st.Seq = l.feed.seq
	for sq, owner := range l.owners {
		st.Owners[sq] = owner
	}
	for owner, set := range l.inventory {
		st.Inventories[owner] = sortedSquares(set)
	}
	now := l.now()
	for _, offer := range l.offers {
		if l.expiredLocked(offer, now) {
			continue
		}
		st.Offers = append(st.Offers, offer)
	}
	sort.Slice(st.Offers, func(i, j int) bool { return st.Offers[i].ID < st.Offers[j].ID })
	return st
}

func sortedSquares(set map[types.Square]struct{}) []types.Square {
	out := make([]types.Square, 0, len(set))
	for sq := range set {
		out = append(out, sq)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
