package ledger

import (
	"reflect"
	"testing"
	"time"

	"threesquare.land/tsl/internal/types"
)

func TestReplayRebuildsIdenticalState(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	src := New(Options{OfferTTL: time.Hour, Now: clock})
	mustClaim(t, src, "x.x.x", alice)
	mustClaim(t, src, "y.y.y", bob)
	mustClaim(t, src, "z.z.z", carol)
	mustClaim(t, src, "w.w.w", carol)
	if _, err := src.Swap("x.x.x", "y.y.y", bob, alice); err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if _, err := src.Swap("y.y.y", "x.x.x", alice, bob); err != nil {
		t.Fatalf("Swap match: %v", err)
	}
	res, err := src.Swap("z.z.z", "x.x.x", bob, carol)
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if err := src.CancelSwapRequest(res.OfferID, carol); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := src.Swap("w.w.w", "y.y.y", alice, carol); err != nil {
		t.Fatalf("Swap: %v", err)
	}
	now = now.Add(2 * time.Hour)
	if n := src.PruneExpiredOffers(); n != 1 {
		t.Fatalf("pruned %d", n)
	}
	if _, err := src.Swap("z.z.z", "x.x.x", bob, carol); err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if err := src.Release("y.y.y", alice); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := src.DeleteUserAndReleaseLands(carol); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	journal := src.EventsSince(0)

	// Replay long after the fact; expiry must not interfere.
	now = now.Add(48 * time.Hour)
	dst := New(Options{OfferTTL: time.Minute, Now: clock})
	if err := dst.Replay(journal); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	assertConsistent(t, dst)

	if !reflect.DeepEqual(dst.EventsSince(0), journal) {
		t.Fatalf("replayed events differ from journal")
	}
	if dst.LastSeq() != src.LastSeq() {
		t.Fatalf("seq = %d, want %d", dst.LastSeq(), src.LastSeq())
	}

	a, b := src.Snapshot(), dst.Snapshot()
	if !reflect.DeepEqual(a.Owners, b.Owners) || !reflect.DeepEqual(a.Inventories, b.Inventories) {
		t.Fatalf("replayed ownership differs:\n%v\n%v", a, b)
	}
}

func TestReplayRejectsIllegalHistory(t *testing.T) {
	l := New(Options{})
	events := []types.Event{
		{Seq: 1, Type: types.EventClaimed, Actor: alice, Square: "a.b.c"},
		{Seq: 2, Type: types.EventClaimed, Actor: bob, Square: "a.b.c"},
	}
	if err := l.Replay(events); err == nil {
		t.Fatalf("expected replay to fail on double claim")
	}

	l = New(Options{})
	events = []types.Event{
		{Seq: 1, Type: types.EventClaimed, Actor: alice, Square: "x.x.x"},
		{Seq: 2, Type: types.EventClaimed, Actor: bob, Square: "y.y.y"},
		{Seq: 3, Type: types.EventSwapped, Actor: bob, Counterparty: alice, Square: "y.y.y", CounterpartySquare: "x.x.x"},
	}
	if err := l.Replay(events); err == nil {
		t.Fatalf("expected replay to fail on swap without offer")
	}

	if err := New(Options{}).Replay([]types.Event{{Seq: 1, Type: "bogus"}}); err == nil {
		t.Fatalf("expected replay to fail on unknown type")
	}
}
