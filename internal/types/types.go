// Package types defines the core domain models for the three-square land
// ledger (tsl). It contains the square, owner and swap-offer models plus the
// notification events emitted by the ledger. Squares are identified by a
// three-word geocode and are only ever referenced by name.
package types

import (
	"strings"
	"time"
)

// Version is the current version of tsl
const Version = "0.3.0"

// BuildTime is set at build time via -ldflags
var BuildTime = "dev"

// Square is a uniquely named parcel, keyed by its three-word geocode
// (for example "filled.count.soap").
type Square string

// Owner is an opaque account identifier. The daemon uses the hex-encoded
// ed25519 public key of the signer.
type Owner string

// Unowned is the sentinel owner of a free square.
const Unowned Owner = ""

// IsZero reports whether the owner is the null identity.
func (o Owner) IsZero() bool {
	return strings.TrimSpace(string(o)) == ""
}

// OfferID is the deterministic fingerprint of a swap offer.
type OfferID string

// SwapOffer is one side of a proposed exchange. The requester offers
// RequesterSquare in exchange for the counterparty's CounterpartySquare.
type SwapOffer struct {
	ID                 OfferID   `json:"id"`
	Requester          Owner     `json:"requester"`
	Counterparty       Owner     `json:"counterparty"`
	RequesterSquare    Square    `json:"requester_square"`
	CounterpartySquare Square    `json:"counterparty_square"`
	CreatedAt          time.Time `json:"created_at"`
}

// Mirrors reports whether other is the exact reciprocal of o.
func (o SwapOffer) Mirrors(other SwapOffer) bool {
	return o.Requester == other.Counterparty &&
		o.Counterparty == other.Requester &&
		o.RequesterSquare == other.CounterpartySquare &&
		o.CounterpartySquare == other.RequesterSquare
}

// SwapStatus describes the outcome of a swap call.
type SwapStatus string

const (
	SwapPending   SwapStatus = "pending"   // offer recorded, waiting for the reciprocal call
	SwapCompleted SwapStatus = "completed" // reciprocal offer matched, ownership exchanged
)

// SwapResult is returned by a successful swap call.
type SwapResult struct {
	Status  SwapStatus `json:"status"`
	OfferID OfferID    `json:"offer_id"`
}

// EventType names a ledger notification.
type EventType string

const (
	EventClaimed       EventType = "claimed"
	EventReleased      EventType = "released"
	EventSwapRequested EventType = "swap_requested"
	EventSwapped       EventType = "swapped"
	EventSwapCancelled EventType = "swap_cancelled"
	EventSwapExpired   EventType = "swap_expired"
	EventUserDeleted   EventType = "user_deleted"
)

// Event is a notification emitted after a committed ledger mutation.
// Seq is assigned by the ledger and increases by one per event.
type Event struct {
	Seq                uint64    `json:"seq"`
	ID                 string    `json:"id"`
	Type               EventType `json:"type"`
	Actor              Owner     `json:"actor"`
	Counterparty       Owner     `json:"counterparty,omitempty"`
	Square             Square    `json:"square,omitempty"`
	CounterpartySquare Square    `json:"counterparty_square,omitempty"`
	OfferID            OfferID   `json:"offer_id,omitempty"`
	At                 time.Time `json:"at"`
}
