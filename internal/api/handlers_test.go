package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"

	apperrors "threesquare.land/tsl/internal/errors"
	"threesquare.land/tsl/internal/ledger"
	"threesquare.land/tsl/internal/types"
)

func TestHandleHealth(t *testing.T) {
	svc, _ := setupTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()

	svc.HandleHealth(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status OK, got %v", resp.Status)
	}
}

func TestHandleVersion(t *testing.T) {
	_, mux := setupTest(t)
	var body map[string]string
	if w := get(t, mux, "/api/version", &body); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body["version"] != types.Version {
		t.Fatalf("version = %q", body["version"])
	}
}

func TestClaimAndQuery(t *testing.T) {
	_, mux := setupTest(t)
	alice := newIdentity(t)

	w, res := submit(t, mux, "/api/tx", alice, types.TxClaim, types.ClaimPayload{Square: "filled.count.soap"})
	if w.Code != http.StatusOK || !res.IsOK() {
		t.Fatalf("claim: status=%d res=%+v", w.Code, res)
	}

	var owner struct {
		Owner   types.Owner `json:"owner"`
		Claimed bool        `json:"claimed"`
	}
	get(t, mux, "/api/squares/owner?square=filled.count.soap", &owner)
	if owner.Owner != alice.Owner() || !owner.Claimed {
		t.Fatalf("owner = %+v", owner)
	}

	var inv struct {
		Squares []types.Square `json:"squares"`
	}
	get(t, mux, "/api/inventory?owner="+url.QueryEscape(string(alice.Owner())), &inv)
	if len(inv.Squares) != 1 || inv.Squares[0] != "filled.count.soap" {
		t.Fatalf("inventory = %+v", inv)
	}

	var snap ledger.State
	get(t, mux, "/api/snapshot", &snap)
	if snap.Owners["filled.count.soap"] != alice.Owner() || snap.Seq != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}

	var events []types.Event
	get(t, mux, "/api/events?since=0", &events)
	if len(events) != 1 || events[0].Type != types.EventClaimed {
		t.Fatalf("events = %+v", events)
	}
}

func TestLedgerErrorsMapToStatus(t *testing.T) {
	_, mux := setupTest(t)
	alice, bob := newIdentity(t), newIdentity(t)

	submit(t, mux, "/api/tx", alice, types.TxClaim, types.ClaimPayload{Square: "a.b.c"})

	cases := []struct {
		name    string
		txType  types.TransactionType
		payload any
		status  int
		reason  apperrors.Code
	}{
		{"already claimed", types.TxClaim, types.ClaimPayload{Square: "a.b.c"}, http.StatusConflict, apperrors.CodeAlreadyClaimed},
		{"not owner", types.TxRelease, types.ReleasePayload{Square: "a.b.c"}, http.StatusForbidden, apperrors.CodeNotOwner},
		{"not claimed", types.TxRelease, types.ReleasePayload{Square: "x.y.z"}, http.StatusUnprocessableEntity, apperrors.CodeNotClaimed},
		{"offer not found", types.TxCancelSwap, types.CancelSwapPayload{OfferID: "nope"}, http.StatusNotFound, apperrors.CodeOfferNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, res := submit(t, mux, "/api/tx", bob, tc.txType, tc.payload)
			if w.Code != tc.status || res.Reason != tc.reason {
				t.Fatalf("status=%d reason=%s, want %d %s", w.Code, res.Reason, tc.status, tc.reason)
			}
		})
	}
}

func TestSubmitRejectsBadBodies(t *testing.T) {
	_, mux := setupTest(t)

	req := httptest.NewRequest(http.MethodPost, "/api/tx", bytes.NewReader([]byte("{")))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad json status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/tx", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty body status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/tx", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d", w.Code)
	}
}

func TestCheckDoesNotApply(t *testing.T) {
	_, mux := setupTest(t)
	alice := newIdentity(t)

	w, res := submit(t, mux, "/api/tx/check", alice, types.TxClaim, types.ClaimPayload{Square: "a.b.c"})
	if w.Code != http.StatusOK || !res.IsOK() {
		t.Fatalf("check: status=%d res=%+v", w.Code, res)
	}
	var owner struct {
		Claimed bool `json:"claimed"`
	}
	get(t, mux, "/api/squares/owner?square=a.b.c", &owner)
	if owner.Claimed {
		t.Fatalf("check must not claim")
	}
}

func TestSwapOffersEndpoints(t *testing.T) {
	_, mux := setupTest(t)
	alice, bob := newIdentity(t), newIdentity(t)
	submit(t, mux, "/api/tx", alice, types.TxClaim, types.ClaimPayload{Square: "x.x.x"})
	submit(t, mux, "/api/tx", bob, types.TxClaim, types.ClaimPayload{Square: "y.y.y"})

	_, res := submit(t, mux, "/api/tx", alice, types.TxSwap, types.SwapPayload{MySquare: "x.x.x", TheirSquare: "y.y.y", OtherUser: bob.Owner()})
	var sr types.SwapResult
	if err := json.Unmarshal(res.Data, &sr); err != nil {
		t.Fatalf("decode swap result: %v", err)
	}

	var offers []types.SwapOffer
	get(t, mux, "/api/offers?owner="+url.QueryEscape(string(bob.Owner())), &offers)
	if len(offers) != 1 || offers[0].ID != sr.OfferID {
		t.Fatalf("offers = %+v", offers)
	}

	var offer types.SwapOffer
	if w := get(t, mux, "/api/offers/id?id="+string(sr.OfferID), &offer); w.Code != http.StatusOK {
		t.Fatalf("offer status = %d", w.Code)
	}
	if offer.Requester != alice.Owner() {
		t.Fatalf("offer = %+v", offer)
	}

	submit(t, mux, "/api/tx", bob, types.TxSwap, types.SwapPayload{MySquare: "y.y.y", TheirSquare: "x.x.x", OtherUser: alice.Owner()})
	if w := get(t, mux, "/api/offers/id?id="+string(sr.OfferID), nil); w.Code != http.StatusNotFound {
		t.Fatalf("completed offer status = %d", w.Code)
	}
}

func TestQueryValidation(t *testing.T) {
	_, mux := setupTest(t)
	for _, target := range []string{"/api/squares/owner", "/api/inventory", "/api/offers", "/api/offers/id", "/api/events?since=-1", "/api/events?limit=0"} {
		if w := get(t, mux, target, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", target, w.Code)
		}
	}
}

func TestHandleBackup(t *testing.T) {
	_, mux := setupTest(t)
	submit(t, mux, "/api/tx", newIdentity(t), types.TxClaim, types.ClaimPayload{Square: "a.b.c"})

	req := httptest.NewRequest(http.MethodPost, "/api/journal/backup", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("backup status = %d body=%s", w.Code, w.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := os.Stat(body["path"]); err != nil {
		t.Fatalf("backup file missing: %v", err)
	}
}
