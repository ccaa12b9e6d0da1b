package api

import (
	"net/http"

	apperrors "threesquare.land/tsl/internal/errors"
	"threesquare.land/tsl/internal/types"
)

// @Title: Get Square Owner
// @Route: GET /api/squares/owner?square=
// @Description: Returns the current owner of a square; an empty owner means unowned
// @Response: {"square": "filled.count.soap", "owner": "...", "claimed": true}
func (s *Service) HandleSquareOwner(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	square := types.Square(r.URL.Query().Get("square"))
	if square == "" {
		s.writeLedgerError(w, apperrors.New(apperrors.CodeInvalidInput, "square is required"))
		return
	}
	owner := s.ledger.SquareOwner(square)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"square":  square,
		"owner":   owner,
		"claimed": owner != types.Unowned,
	})
}

// @Title: Get Inventory
// @Route: GET /api/inventory?owner=
// @Description: Returns the squares held by an owner, sorted
// @Response: {"owner": "...", "squares": ["..."]}
func (s *Service) HandleInventory(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	owner := types.Owner(r.URL.Query().Get("owner"))
	if owner.IsZero() {
		s.writeLedgerError(w, apperrors.New(apperrors.CodeInvalidInput, "owner is required"))
		return
	}
	squares := s.ledger.UserInventory(owner)
	if squares == nil {
		squares = []types.Square{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"owner":   owner,
		"squares": squares,
	})
}

// @Title: List Pending Offers
// @Route: GET /api/offers?owner=
// @Description: Returns pending swap offers where the owner is requester or counterparty
// @Response: Array of SwapOffer objects
func (s *Service) HandleOffers(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	owner := types.Owner(r.URL.Query().Get("owner"))
	if owner.IsZero() {
		s.writeLedgerError(w, apperrors.New(apperrors.CodeInvalidInput, "owner is required"))
		return
	}
	offers := s.ledger.PendingOffers(owner)
	if offers == nil {
		offers = []types.SwapOffer{}
	}
	s.writeJSON(w, http.StatusOK, offers)
}

// @Title: Get Offer
// @Route: GET /api/offers/id?id=
// @Description: Returns one pending swap offer by its fingerprint
// @Response: SwapOffer object, 404 when not pending
func (s *Service) HandleOffer(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	id := types.OfferID(r.URL.Query().Get("id"))
	if id == "" {
		s.writeLedgerError(w, apperrors.New(apperrors.CodeInvalidInput, "id is required"))
		return
	}
	offer, ok := s.ledger.PendingOffer(id)
	if !ok {
		s.writeLedgerError(w, apperrors.WithMetadata(apperrors.CodeOfferNotFound, "offer not found",
			map[string]string{"offer_id": string(id)}))
		return
	}
	s.writeJSON(w, http.StatusOK, offer)
}

// @Title: Get Snapshot
// @Route: GET /api/snapshot
// @Description: Returns a consistent copy of ownership, inventories and pending offers
// @Response: {"seq": 42, "owners": {...}, "inventories": {...}, "offers": [...]}
func (s *Service) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.ledger.Snapshot())
}
