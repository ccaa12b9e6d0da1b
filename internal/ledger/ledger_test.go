package ledger

import (
	"errors"
	"testing"

	apperrors "threesquare.land/tsl/internal/errors"
	"threesquare.land/tsl/internal/types"
)

const (
	alice types.Owner = "alice"
	bob   types.Owner = "bob"
	carol types.Owner = "carol"
)

func mustClaim(t *testing.T, l *Ledger, sq types.Square, owner types.Owner) {
	t.Helper()
	if err := l.Claim(sq, owner); err != nil {
		t.Fatalf("Claim(%s, %s): %v", sq, owner, err)
	}
}

func assertConsistent(t *testing.T, l *Ledger) {
	t.Helper()
	if err := l.CheckInvariants(); err != nil {
		t.Fatalf("invariant violated: %v", err)
	}
}

func assertCode(t *testing.T, err error, want apperrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := apperrors.CodeOf(err); got != want {
		t.Fatalf("error code = %s, want %s (%v)", got, want, err)
	}
}

func TestClaimAssignsOwnerAndInventory(t *testing.T) {
	l := New(Options{})
	mustClaim(t, l, "filled.count.soap", alice)

	if got := l.SquareOwner("filled.count.soap"); got != alice {
		t.Fatalf("owner = %q, want %q", got, alice)
	}
	inv := l.UserInventory(alice)
	if len(inv) != 1 || inv[0] != "filled.count.soap" {
		t.Fatalf("inventory = %v", inv)
	}
	assertConsistent(t, l)
}

func TestClaimAlreadyClaimedLeavesStateUnchanged(t *testing.T) {
	l := New(Options{})
	mustClaim(t, l, "a.b.c", alice)
	before := l.LastSeq()

	for i := 0; i < 3; i++ {
		err := l.Claim("a.b.c", bob)
		assertCode(t, err, apperrors.CodeAlreadyClaimed)
		if !errors.Is(err, apperrors.ErrAlreadyClaimed) {
			t.Fatalf("expected errors.Is ErrAlreadyClaimed")
		}
	}
	// Re-claiming your own square is also rejected.
	assertCode(t, l.Claim("a.b.c", alice), apperrors.CodeAlreadyClaimed)

	if got := l.SquareOwner("a.b.c"); got != alice {
		t.Fatalf("owner changed to %q", got)
	}
	if inv := l.UserInventory(bob); len(inv) != 0 {
		t.Fatalf("bob inventory = %v, want empty", inv)
	}
	if l.LastSeq() != before {
		t.Fatalf("failed claims emitted events: seq %d -> %d", before, l.LastSeq())
	}
	assertConsistent(t, l)
}

func TestClaimRejectsInvalidInput(t *testing.T) {
	l := New(Options{})
	assertCode(t, l.Claim("", alice), apperrors.CodeInvalidInput)
	assertCode(t, l.Claim("   ", alice), apperrors.CodeInvalidInput)
	assertCode(t, l.Claim("a.b.c", types.Unowned), apperrors.CodeInvalidInput)
	if l.LastSeq() != 0 {
		t.Fatalf("expected no events, seq = %d", l.LastSeq())
	}
}

func TestClaimReleaseRoundTrip(t *testing.T) {
	l := New(Options{})
	mustClaim(t, l, "a.b.c", alice)

	if err := l.Release("a.b.c", alice); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got := l.SquareOwner("a.b.c"); got != types.Unowned {
		t.Fatalf("owner = %q, want unowned", got)
	}
	if inv := l.UserInventory(alice); len(inv) != 0 {
		t.Fatalf("inventory = %v, want empty", inv)
	}
	assertConsistent(t, l)

	// The square is free again.
	mustClaim(t, l, "a.b.c", bob)
	assertConsistent(t, l)
}

func TestReleaseErrors(t *testing.T) {
	l := New(Options{})
	mustClaim(t, l, "a.b.c", alice)

	assertCode(t, l.Release("a.b.c", bob), apperrors.CodeNotOwner)
	assertCode(t, l.Release("x.y.z", alice), apperrors.CodeNotClaimed)
	assertCode(t, l.Release("", alice), apperrors.CodeInvalidInput)

	if got := l.SquareOwner("a.b.c"); got != alice {
		t.Fatalf("owner = %q after failed release", got)
	}
	assertConsistent(t, l)
}

func TestReleaseKeepsOtherSquares(t *testing.T) {
	l := New(Options{})
	for _, sq := range []types.Square{"p.p.p", "q.q.q", "r.r.r"} {
		mustClaim(t, l, sq, alice)
	}
	if err := l.Release("q.q.q", alice); err != nil {
		t.Fatalf("Release: %v", err)
	}

	inv := l.UserInventory(alice)
	if len(inv) != 2 || inv[0] != "p.p.p" || inv[1] != "r.r.r" {
		t.Fatalf("inventory = %v", inv)
	}
	assertConsistent(t, l)
}

func TestSnapshotIsDetached(t *testing.T) {
	l := New(Options{})
	mustClaim(t, l, "a.b.c", alice)
	mustClaim(t, l, "d.e.f", bob)
	if _, err := l.Swap("a.b.c", "d.e.f", bob, alice); err != nil {
		t.Fatalf("Swap: %v", err)
	}

	st := l.Snapshot()
	if st.Seq != l.LastSeq() {
		t.Fatalf("snapshot seq = %d, want %d", st.Seq, l.LastSeq())
	}
	if st.Owners["a.b.c"] != alice || st.Owners["d.e.f"] != bob {
		t.Fatalf("owners = %v", st.Owners)
	}
	if len(st.Offers) != 1 {
		t.Fatalf("offers = %v", st.Offers)
	}

	st.Owners["a.b.c"] = carol
	st.Inventories[alice] = nil
	if l.SquareOwner("a.b.c") != alice {
		t.Fatalf("mutating snapshot leaked into ledger")
	}
	assertConsistent(t, l)
}
