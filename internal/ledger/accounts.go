package ledger

import (
	"time"

	"threesquare.land/tsl/internal/types"
)

// DeleteUserAndReleaseLands releases every square still owned by caller and
// clears caller's inventory. A square whose ownership has drifted away from
// caller is skipped rather than failing the whole call. The released squares
// are returned in name order.
func (l *Ledger) DeleteUserAndReleaseLands(caller types.Owner) ([]types.Square, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deleteUserLocked(caller, l.now())
}

func (l *Ledger) deleteUserLocked(caller types.Owner, at time.Time) ([]types.Square, error) {
	if caller.IsZero() {
		return nil, invalidInput("caller is required")
	}

	held := sortedSquares(l.inventory[caller])
	released := make([]types.Square, 0, len(held))
	events := make([]types.Event, 0, len(held)+1)
	for _, sq := range held {
		if l.owners[sq] != caller {
			continue
		}
		delete(l.owners, sq)
		released = append(released, sq)
		events = append(events, types.Event{Type: types.EventReleased, Actor: caller, Square: sq})
	}
	delete(l.inventory, caller)

	events = append(events, types.Event{Type: types.EventUserDeleted, Actor: caller})
	l.emitLocked(at, events...)
	return released, nil
}
