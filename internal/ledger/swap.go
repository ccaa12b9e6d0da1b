package ledger

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"golang.org/x/crypto/sha3"

	apperrors "threesquare.land/tsl/internal/errors"
	"threesquare.land/tsl/internal/types"
)

// OfferFingerprint derives the deterministic offer key from the four fields
// of a proposal. Each field is length-prefixed before hashing so that
// ("ab","c") and ("a","bc") never collide.
func OfferFingerprint(requester, counterparty types.Owner, requesterSquare, counterpartySquare types.Square) types.OfferID {
	h := sha3.NewLegacyKeccak256()
	var lenBuf [binary.MaxVarintLen64]byte
	for _, field := range []string{string(requester), string(counterparty), string(requesterSquare), string(counterpartySquare)} {
		n := binary.PutUvarint(lenBuf[:], uint64(len(field)))
		h.Write(lenBuf[:n])
		h.Write([]byte(field))
	}
	return types.OfferID(hex.EncodeToString(h.Sum(nil)))
}

// Swap proposes, or completes, an exchange of mySquare (owned by caller) for
// theirSquare (owned by otherUser). The first call records a pending offer;
// the counterparty's reciprocal call commits the exchange atomically.
func (l *Ledger) Swap(mySquare, theirSquare types.Square, otherUser, caller types.Owner) (types.SwapResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.swapLocked(mySquare, theirSquare, otherUser, caller, l.now())
}

func (l *Ledger) swapLocked(mySquare, theirSquare types.Square, otherUser, caller types.Owner, at time.Time) (types.SwapResult, error) {
	if err := validSquare(mySquare); err != nil {
		return types.SwapResult{}, err
	}
	if err := validSquare(theirSquare); err != nil {
		return types.SwapResult{}, err
	}
	if caller.IsZero() {
		return types.SwapResult{}, invalidInput("caller is required")
	}
	if otherUser.IsZero() || otherUser == caller {
		return types.SwapResult{}, apperrors.WithMetadata(apperrors.CodeInvalidCounterparty,
			"counterparty must be another account",
			map[string]string{"counterparty": string(otherUser)})
	}
	if l.owners[mySquare] != caller {
		return types.SwapResult{}, notOwner(mySquare, caller)
	}
	if l.owners[theirSquare] != otherUser {
		return types.SwapResult{}, counterpartyMismatch(theirSquare, otherUser)
	}

	proposal := types.SwapOffer{
		ID:                 OfferFingerprint(caller, otherUser, mySquare, theirSquare),
		Requester:          caller,
		Counterparty:       otherUser,
		RequesterSquare:    mySquare,
		CounterpartySquare: theirSquare,
		CreatedAt:          at,
	}
	reverseID := OfferFingerprint(otherUser, caller, theirSquare, mySquare)

	var pending []types.Event
	if offer, ok := l.offers[reverseID]; ok && offer.Requester == otherUser {
		if !l.expiredLocked(offer, at) {
			if err := l.acceptLocked(offer, proposal); err != nil {
				return types.SwapResult{}, err
			}
			l.exchangeLocked(offer)
			delete(l.offers, reverseID)
			l.emitLocked(at, types.Event{
				Type:               types.EventSwapped,
				Actor:              caller,
				Counterparty:       otherUser,
				Square:             mySquare,
				CounterpartySquare: theirSquare,
				OfferID:            reverseID,
			})
			return types.SwapResult{Status: types.SwapCompleted, OfferID: reverseID}, nil
		}
		delete(l.offers, reverseID)
		pending = append(pending, expiredEvent(offer))
	}

	l.offers[proposal.ID] = proposal
	pending = append(pending, types.Event{
		Type:               types.EventSwapRequested,
		Actor:              caller,
		Counterparty:       otherUser,
		Square:             mySquare,
		CounterpartySquare: theirSquare,
		OfferID:            proposal.ID,
	})
	l.emitLocked(at, pending...)
	return types.SwapResult{Status: types.SwapPending, OfferID: proposal.ID}, nil
}

// acceptLocked is the Proposed → Accepted transition. It re-checks current
// ownership of both squares against the stored offer before any mutation.
func (l *Ledger) acceptLocked(offer, proposal types.SwapOffer) error {
	if !offer.Mirrors(proposal) {
		return apperrors.WithMetadata(apperrors.CodeOfferNotFound,
			"pending offer does not mirror the proposal",
			map[string]string{"offer_id": string(offer.ID)})
	}
	if l.owners[offer.RequesterSquare] != offer.Requester {
		return counterpartyMismatch(offer.RequesterSquare, offer.Requester)
	}
	if l.owners[offer.CounterpartySquare] != offer.Counterparty {
		return notOwner(offer.CounterpartySquare, offer.Counterparty)
	}
	return nil
}

func (l *Ledger) exchangeLocked(offer types.SwapOffer) {
	l.owners[offer.RequesterSquare] = offer.Counterparty
	l.owners[offer.CounterpartySquare] = offer.Requester

	l.removeFromInventory(offer.Requester, offer.RequesterSquare)
	l.removeFromInventory(offer.Counterparty, offer.CounterpartySquare)
	l.addToInventory(offer.Counterparty, offer.RequesterSquare)
	l.addToInventory(offer.Requester, offer.CounterpartySquare)
}

// CancelSwapRequest withdraws a pending offer. Only its requester may cancel.
func (l *Ledger) CancelSwapRequest(id types.OfferID, caller types.Owner) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancelLocked(id, caller, l.now())
}

func (l *Ledger) cancelLocked(id types.OfferID, caller types.Owner, at time.Time) error {
	offer, ok := l.offers[id]
	if !ok || l.expiredLocked(offer, at) {
		return apperrors.WithMetadata(apperrors.CodeOfferNotFound,
			fmt.Sprintf("no pending swap offer %s", id),
			map[string]string{"offer_id": string(id)})
	}
	if caller.IsZero() || offer.Requester != caller {
		return apperrors.WithMetadata(apperrors.CodeNotRequester,
			fmt.Sprintf("%s did not request offer %s", caller, id),
			map[string]string{"offer_id": string(id), "caller": string(caller)})
	}

	delete(l.offers, id)
	l.emitLocked(at, types.Event{
		Type:               types.EventSwapCancelled,
		Actor:              caller,
		Counterparty:       offer.Counterparty,
		Square:             offer.RequesterSquare,
		CounterpartySquare: offer.CounterpartySquare,
		OfferID:            id,
	})
	return nil
}

// PendingOffer returns the live offer stored under id.
func (l *Ledger) PendingOffer(id types.OfferID) (types.SwapOffer, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	offer, ok := l.offers[id]
	if !ok || l.expiredLocked(offer, l.now()) {
		return types.SwapOffer{}, false
	}
	return offer, true
}

// PendingOffers lists live offers in which owner is requester or
// counterparty, ordered by creation time.
func (l *Ledger) PendingOffers(owner types.Owner) []types.SwapOffer {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := l.now()
	var out []types.SwapOffer
	for _, offer := range l.offers {
		if offer.Requester != owner && offer.Counterparty != owner {
			continue
		}
		if l.expiredLocked(offer, now) {
			continue
		}
		out = append(out, offer)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// PruneExpiredOffers deletes every expired offer and returns how many were
// removed. It is a no-op when expiry is disabled.
func (l *Ledger) PruneExpiredOffers() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var expired []types.SwapOffer
	for _, offer := range l.offers {
		if l.expiredLocked(offer, now) {
			expired = append(expired, offer)
		}
	}
	if len(expired) == 0 {
		return 0
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ID < expired[j].ID })

	events := make([]types.Event, 0, len(expired))
	for _, offer := range expired {
		delete(l.offers, offer.ID)
		events = append(events, expiredEvent(offer))
	}
	l.emitLocked(now, events...)
	return len(expired)
}

func (l *Ledger) expiredLocked(offer types.SwapOffer, at time.Time) bool {
	if l.offerTTL <= 0 || l.replaying != nil {
		return false
	}
	return at.Sub(offer.CreatedAt) >= l.offerTTL
}

func expiredEvent(offer types.SwapOffer) types.Event {
	return types.Event{
		Type:               types.EventSwapExpired,
		Actor:              offer.Requester,
		Counterparty:       offer.Counterparty,
		Square:             offer.RequesterSquare,
		CounterpartySquare: offer.CounterpartySquare,
		OfferID:            offer.ID,
	}
}

func counterpartyMismatch(square types.Square, counterparty types.Owner) error {
	return apperrors.WithMetadata(apperrors.CodeCounterpartyOwnershipMismatch,
		fmt.Sprintf("%s does not own square %s", counterparty, square),
		map[string]string{"square": string(square), "counterparty": string(counterparty)})
}
