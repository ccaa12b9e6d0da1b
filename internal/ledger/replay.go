package ledger

import (
	"fmt"

	"threesquare.land/tsl/internal/types"
)

// Replay rebuilds ledger state by re-executing journaled events in order.
// Each event is re-validated against the state built so far, so a journal
// that does not describe a legal history is rejected. Replayed events keep
// their original sequence number, ID and timestamp, and offer expiry is
// suspended for the duration of the replay.
func (l *Ledger) Replay(events []types.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer func() { l.replaying = nil }()

	for i := range events {
		ev := events[i]
		l.replaying = &ev
		if err := l.replayLocked(ev); err != nil {
			return fmt.Errorf("replay event %d (%s): %w", ev.Seq, ev.Type, err)
		}
	}
	return nil
}

func (l *Ledger) replayLocked(ev types.Event) error {
	switch ev.Type {
	case types.EventClaimed:
		return l.claimLocked(ev.Square, ev.Actor, ev.At)

	case types.EventReleased:
		return l.releaseLocked(ev.Square, ev.Actor, ev.At)

	case types.EventSwapRequested:
		res, err := l.swapLocked(ev.Square, ev.CounterpartySquare, ev.Counterparty, ev.Actor, ev.At)
		if err != nil {
			return err
		}
		if res.Status != types.SwapPending {
			return fmt.Errorf("swap request for %s unexpectedly completed", ev.OfferID)
		}
		return nil

	case types.EventSwapped:
		res, err := l.swapLocked(ev.Square, ev.CounterpartySquare, ev.Counterparty, ev.Actor, ev.At)
		if err != nil {
			return err
		}
		if res.Status != types.SwapCompleted {
			return fmt.Errorf("no pending offer %s to complete", ev.OfferID)
		}
		return nil

	case types.EventSwapCancelled:
		return l.cancelLocked(ev.OfferID, ev.Actor, ev.At)

	case types.EventSwapExpired:
		offer, ok := l.offers[ev.OfferID]
		if !ok {
			return fmt.Errorf("expired offer %s not pending", ev.OfferID)
		}
		delete(l.offers, ev.OfferID)
		l.emitLocked(ev.At, expiredEvent(offer))
		return nil

	case types.EventUserDeleted:
		_, err := l.deleteUserLocked(ev.Actor, ev.At)
		return err

	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
}
