package ledger

import (
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "threesquare.land/tsl/internal/errors"
	"threesquare.land/tsl/internal/types"
)

const defaultHistory = 1024

// Observer receives every committed event synchronously, in commit order,
// while the ledger lock is held. Observers must not call back into the ledger.
type Observer interface {
	Observe(types.Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(types.Event)

// Observe calls f(ev).
func (f ObserverFunc) Observe(ev types.Event) { f(ev) }

// Options configures a Ledger. The zero value is usable.
type Options struct {
	// OfferTTL expires pending offers older than the TTL. Zero disables expiry.
	OfferTTL time.Duration
	// History bounds the in-memory event history served by EventsSince.
	History int
	// Observers are invoked for every committed event.
	Observers []Observer
	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

// Ledger is the authoritative store of square ownership.
type Ledger struct {
	mu        sync.RWMutex
	owners    map[types.Square]types.Owner
	inventory map[types.Owner]map[types.Square]struct{}
	offers    map[types.OfferID]types.SwapOffer
	offerTTL  time.Duration
	now       func() time.Time
	observers []Observer
	feed      *feed

	// replaying is set while Replay re-executes journaled events. Offer
	// expiry is disabled and event identity comes from the journal.
	replaying *types.Event
}

// New creates an empty ledger.
func New(opts Options) *Ledger {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.History <= 0 {
		opts.History = defaultHistory
	}
	return &Ledger{
		owners:    make(map[types.Square]types.Owner),
		inventory: make(map[types.Owner]map[types.Square]struct{}),
		offers:    make(map[types.OfferID]types.SwapOffer),
		offerTTL:  opts.OfferTTL,
		now:       opts.Now,
		observers: append([]Observer(nil), opts.Observers...),
		feed:      newFeed(opts.History),
	}
}

// AddObserver registers an observer for events committed from now on.
func (l *Ledger) AddObserver(o Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, o)
}

// Claim assigns a free square to claimant.
func (l *Ledger) Claim(square types.Square, claimant types.Owner) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.claimLocked(square, claimant, l.now())
}

func (l *Ledger) claimLocked(square types.Square, claimant types.Owner, at time.Time) error {
	if err := validSquare(square); err != nil {
		return err
	}
	if claimant.IsZero() {
		return invalidInput("claimant is required")
	}
	if owner, ok := l.owners[square]; ok {
		return apperrors.WithMetadata(apperrors.CodeAlreadyClaimed,
			fmt.Sprintf("square %s is already claimed", square),
			map[string]string{"square": string(square), "owner": string(owner)})
	}

	l.owners[square] = claimant
	l.addToInventory(claimant, square)
	l.emitLocked(at, types.Event{Type: types.EventClaimed, Actor: claimant, Square: square})
	return nil
}

// Release returns a square owned by caller to the unowned state.
func (l *Ledger) Release(square types.Square, caller types.Owner) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.releaseLocked(square, caller, l.now())
}

func (l *Ledger) releaseLocked(square types.Square, caller types.Owner, at time.Time) error {
	if err := validSquare(square); err != nil {
		return err
	}
	if caller.IsZero() {
		return invalidInput("caller is required")
	}
	owner, ok := l.owners[square]
	if !ok {
		return apperrors.WithMetadata(apperrors.CodeNotClaimed,
			fmt.Sprintf("square %s is not claimed", square),
			map[string]string{"square": string(square)})
	}
	if owner != caller {
		return notOwner(square, caller)
	}

	delete(l.owners, square)
	l.removeFromInventory(caller, square)
	l.emitLocked(at, types.Event{Type: types.EventReleased, Actor: caller, Square: square})
	return nil
}

// SquareOwner returns the owner of square, or types.Unowned.
func (l *Ledger) SquareOwner(square types.Square) types.Owner {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.owners[square]
}

// UserInventory returns the squares held by owner, sorted by name.
func (l *Ledger) UserInventory(owner types.Owner) []types.Square {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return sortedSquares(l.inventory[owner])
}

// CheckInvariants verifies that the ownership map and the inventories agree.
func (l *Ledger) CheckInvariants() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for sq, owner := range l.owners {
		if owner.IsZero() {
			return fmt.Errorf("square %s stored with unowned sentinel", sq)
		}
		if _, ok := l.inventory[owner][sq]; !ok {
			return fmt.Errorf("square %s owned by %s missing from inventory", sq, owner)
		}
	}
	for owner, set := range l.inventory {
		if len(set) == 0 {
			return fmt.Errorf("empty inventory retained for %s", owner)
		}
		for sq := range set {
			if l.owners[sq] != owner {
				return fmt.Errorf("square %s in inventory of %s but owned by %q", sq, owner, l.owners[sq])
			}
		}
	}
	return nil
}

func (l *Ledger) addToInventory(owner types.Owner, square types.Square) {
	set, ok := l.inventory[owner]
	if !ok {
		set = make(map[types.Square]struct{})
		l.inventory[owner] = set
	}
	set[square] = struct{}{}
}

func (l *Ledger) removeFromInventory(owner types.Owner, square types.Square) {
	set, ok := l.inventory[owner]
	if !ok {
		return
	}
	delete(set, square)
	if len(set) == 0 {
		delete(l.inventory, owner)
	}
}

func validSquare(square types.Square) error {
	if strings.TrimSpace(string(square)) == "" {
		return invalidInput("square name is required")
	}
	return nil
}

func invalidInput(msg string) error {
	return apperrors.New(apperrors.CodeInvalidInput, msg)
}

func notOwner(square types.Square, caller types.Owner) error {
	return apperrors.WithMetadata(apperrors.CodeNotOwner,
		fmt.Sprintf("%s does not own square %s", caller, square),
		map[string]string{"square": string(square), "caller": string(caller)})
}
