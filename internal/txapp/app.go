// Package txapp contains the transaction application that connects signed
// client requests to the land ledger. It implements transaction validation
// (CheckTx) and execution (DeliverTx): signatures, payload shape, timestamp
// window and replay protection are checked here before the ledger sees the
// operation, and ledger outcomes are mapped to numeric result codes.
package txapp

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	apperrors "threesquare.land/tsl/internal/errors"
	"threesquare.land/tsl/internal/ledger"
	"threesquare.land/tsl/internal/types"
)

const (
	CodeTypeOK            uint32 = 0
	CodeTypeEncodingError uint32 = 1
	CodeTypeAuthError     uint32 = 2
	CodeTypeInvalidTx     uint32 = 3
	CodeTypeRejected      uint32 = 4 // ledger refused the operation; Reason holds the error code
	CodeTypeReplay        uint32 = 5
	CodeTypeInternal      uint32 = 6 // replay record could not be persisted
)

const (
	DefaultMaxTxAge        = 5 * time.Minute
	DefaultReplayCacheSize = 10000
)

// Result is the outcome of CheckTx or DeliverTx.
type Result struct {
	Code   uint32          `json:"code"`
	Log    string          `json:"log,omitempty"`
	Reason apperrors.Code  `json:"reason,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// IsOK reports whether the transaction was accepted.
func (r Result) IsOK() bool { return r.Code == CodeTypeOK }

// DeleteAccountResult is the Data of a successful delete_account transaction.
type DeleteAccountResult struct {
	Owner    types.Owner    `json:"owner"`
	Released []types.Square `json:"released"`
}

// SeenStore persists the signatures of delivered transactions so replay
// protection survives a restart. *journal.Journal implements it.
type SeenStore interface {
	// MarkSeen records sig and reports whether it was new.
	MarkSeen(sig string, txTime time.Time) (bool, error)
	// RecentSeen returns up to limit records, newest transaction first.
	RecentSeen(limit int) ([]types.SeenTx, error)
}

// Options configures an Application. Zero values fall back to the defaults;
// a negative MaxTxAge disables the timestamp window.
type Options struct {
	MaxTxAge        time.Duration
	ReplayCacheSize int
	Seen            SeenStore
	Now             func() time.Time
}

// Application validates and executes signed transactions against a ledger.
type Application struct {
	ledger   *ledger.Ledger
	store    SeenStore
	maxTxAge time.Duration
	now      func() time.Time

	mu   sync.Mutex
	seen *lru.Cache[string, time.Time]
	// floor is the newest timestamp evicted from seen. Transactions at or
	// before it can no longer be told apart from replays and are refused.
	floor time.Time
}

// NewApplication creates a transaction application bound to l. When
// opts.Seen is set, the most recent signatures are loaded from it.
func NewApplication(l *ledger.Ledger, opts Options) (*Application, error) {
	if l == nil {
		return nil, fmt.Errorf("nil ledger")
	}
	if opts.MaxTxAge == 0 {
		opts.MaxTxAge = DefaultMaxTxAge
	}
	if opts.ReplayCacheSize <= 0 {
		opts.ReplayCacheSize = DefaultReplayCacheSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	app := &Application{
		ledger:   l,
		store:    opts.Seen,
		maxTxAge: opts.MaxTxAge,
		now:      opts.Now,
	}
	// The callback runs synchronously inside Add, which is only called with
	// app.mu held.
	seen, err := lru.NewWithEvict(opts.ReplayCacheSize, func(_ string, ts time.Time) {
		if ts.After(app.floor) {
			app.floor = ts
		}
	})
	if err != nil {
		return nil, fmt.Errorf("create replay cache: %w", err)
	}
	app.seen = seen

	if app.store != nil {
		// One extra record is evicted on load and sets the floor.
		recent, err := app.store.RecentSeen(opts.ReplayCacheSize + 1)
		if err != nil {
			return nil, fmt.Errorf("load seen transactions: %w", err)
		}
		app.mu.Lock()
		for i := len(recent) - 1; i >= 0; i-- {
			app.seen.Add(recent[i].Signature, recent[i].Timestamp)
		}
		app.mu.Unlock()
		if len(recent) > 0 {
			log.Printf("INFO: loaded %d seen transactions for replay protection", len(recent))
		}
	}
	return app, nil
}

// Ledger returns the ledger the application executes against.
func (app *Application) Ledger() *ledger.Ledger {
	return app.ledger
}

// decoded is a transaction that passed the stateless checks. payload holds
// the typed payload for tx.Type.
type decoded struct {
	signer  types.Owner
	sigKey  string
	tx      *types.Transaction
	payload any
}

// CheckTx runs every stateless check plus a lookup in the replay cache. It
// never touches the ledger or records the transaction.
func (app *Application) CheckTx(raw []byte) Result {
	d, res := app.check(raw)
	if !res.IsOK() {
		return res
	}
	app.mu.Lock()
	defer app.mu.Unlock()
	if res := app.replayedLocked(d); !res.IsOK() {
		return res
	}
	return Result{Code: CodeTypeOK}
}

// DeliverTx validates raw and applies it to the ledger. A transaction that
// reaches the ledger is recorded as seen whether or not the ledger accepts
// it; resubmitting requires a fresh nonce.
func (app *Application) DeliverTx(raw []byte) Result {
	d, res := app.check(raw)
	if !res.IsOK() {
		return res
	}
	if res := app.admit(d); !res.IsOK() {
		return res
	}

	switch p := d.payload.(type) {
	case types.ClaimPayload:
		if err := app.ledger.Claim(p.Square, d.signer); err != nil {
			return rejected(err)
		}
		log.Printf("INFO: %s claimed %s", short(d.signer), p.Square)
		return Result{Code: CodeTypeOK}

	case types.ReleasePayload:
		if err := app.ledger.Release(p.Square, d.signer); err != nil {
			return rejected(err)
		}
		log.Printf("INFO: %s released %s", short(d.signer), p.Square)
		return Result{Code: CodeTypeOK}

	case types.SwapPayload:
		swap, err := app.ledger.Swap(p.MySquare, p.TheirSquare, p.OtherUser, d.signer)
		if err != nil {
			return rejected(err)
		}
		log.Printf("INFO: swap %s by %s: %s for %s (%s)", swap.Status, short(d.signer), p.MySquare, p.TheirSquare, swap.OfferID)
		return withData(swap)

	case types.CancelSwapPayload:
		if err := app.ledger.CancelSwapRequest(p.OfferID, d.signer); err != nil {
			return rejected(err)
		}
		log.Printf("INFO: %s cancelled offer %s", short(d.signer), p.OfferID)
		return Result{Code: CodeTypeOK}

	case types.DeleteAccountPayload:
		released, err := app.ledger.DeleteUserAndReleaseLands(d.signer)
		if err != nil {
			return rejected(err)
		}
		log.Printf("INFO: deleted account %s, released %d squares", short(d.signer), len(released))
		if released == nil {
			released = []types.Square{}
		}
		return withData(DeleteAccountResult{Owner: d.signer, Released: released})
	}

	return Result{Code: CodeTypeInvalidTx, Log: "unknown transaction type"}
}

// admit records d as seen, in the store first so a crash after the ledger
// commit cannot forget it.
func (app *Application) admit(d *decoded) Result {
	app.mu.Lock()
	defer app.mu.Unlock()

	if res := app.replayedLocked(d); !res.IsOK() {
		return res
	}
	if app.store != nil {
		fresh, err := app.store.MarkSeen(d.sigKey, d.tx.Timestamp)
		if err != nil {
			log.Printf("WARNING: recording transaction %s failed: %v", d.sigKey[:16], err)
			return Result{Code: CodeTypeInternal, Log: "failed to record transaction"}
		}
		if !fresh {
			app.seen.Add(d.sigKey, d.tx.Timestamp)
			return Result{Code: CodeTypeReplay, Log: "transaction already processed"}
		}
	}
	app.seen.Add(d.sigKey, d.tx.Timestamp)
	return Result{Code: CodeTypeOK}
}

func (app *Application) replayedLocked(d *decoded) Result {
	if app.seen.Contains(d.sigKey) {
		return Result{Code: CodeTypeReplay, Log: "transaction already processed"}
	}
	if !app.floor.IsZero() && !d.tx.Timestamp.After(app.floor) {
		return Result{Code: CodeTypeReplay, Log: "transaction is older than the replay window"}
	}
	return Result{Code: CodeTypeOK}
}

func (app *Application) check(raw []byte) (*decoded, Result) {
	var signedTx types.SignedTransaction
	if err := json.Unmarshal(raw, &signedTx); err != nil {
		return nil, Result{Code: CodeTypeEncodingError, Log: "failed to decode signed tx"}
	}

	if !signedTx.Verify() {
		return nil, Result{Code: CodeTypeAuthError, Log: "invalid signature"}
	}

	tx, err := signedTx.GetTransaction()
	if err != nil {
		return nil, Result{Code: CodeTypeEncodingError, Log: "failed to decode inner tx"}
	}

	if app.maxTxAge > 0 {
		skew := app.now().Sub(tx.Timestamp)
		if skew < 0 {
			skew = -skew
		}
		if skew > app.maxTxAge {
			return nil, Result{Code: CodeTypeInvalidTx, Log: "transaction timestamp outside accepted window"}
		}
	}

	payload, res := decodePayload(tx)
	if !res.IsOK() {
		return nil, res
	}

	return &decoded{
		signer:  signedTx.Signer(),
		sigKey:  hex.EncodeToString(signedTx.Signature),
		tx:      tx,
		payload: payload,
	}, Result{Code: CodeTypeOK}
}

// decodePayload decodes and validates the payload for tx.Type and returns it
// by value.
func decodePayload(tx *types.Transaction) (any, Result) {
	missing := func(field string) Result {
		return Result{Code: CodeTypeInvalidTx, Log: field + " is required", Reason: apperrors.CodeInvalidInput}
	}
	decode := func(v any) Result {
		if len(tx.Payload) == 0 {
			return Result{Code: CodeTypeEncodingError, Log: fmt.Sprintf("missing %s payload", tx.Type)}
		}
		if err := json.Unmarshal(tx.Payload, v); err != nil {
			return Result{Code: CodeTypeEncodingError, Log: fmt.Sprintf("failed to decode %s payload", tx.Type)}
		}
		return Result{Code: CodeTypeOK}
	}

	switch tx.Type {
	case types.TxClaim:
		var p types.ClaimPayload
		if res := decode(&p); !res.IsOK() {
			return nil, res
		}
		if p.Square == "" {
			return nil, missing("square")
		}
		return p, Result{Code: CodeTypeOK}
	case types.TxRelease:
		var p types.ReleasePayload
		if res := decode(&p); !res.IsOK() {
			return nil, res
		}
		if p.Square == "" {
			return nil, missing("square")
		}
		return p, Result{Code: CodeTypeOK}
	case types.TxSwap:
		var p types.SwapPayload
		if res := decode(&p); !res.IsOK() {
			return nil, res
		}
		if p.MySquare == "" {
			return nil, missing("my_square")
		}
		if p.TheirSquare == "" {
			return nil, missing("their_square")
		}
		if p.OtherUser.IsZero() {
			return nil, missing("other_user")
		}
		return p, Result{Code: CodeTypeOK}
	case types.TxCancelSwap:
		var p types.CancelSwapPayload
		if res := decode(&p); !res.IsOK() {
			return nil, res
		}
		if p.OfferID == "" {
			return nil, missing("offer_id")
		}
		return p, Result{Code: CodeTypeOK}
	case types.TxDeleteAccount:
		return types.DeleteAccountPayload{}, Result{Code: CodeTypeOK}
	default:
		return nil, Result{Code: CodeTypeInvalidTx, Log: "unknown transaction type"}
	}
}

func rejected(err error) Result {
	return Result{Code: CodeTypeRejected, Log: err.Error(), Reason: apperrors.CodeOf(err)}
}

func withData(v any) Result {
	data, err := json.Marshal(v)
	if err != nil {
		return Result{Code: CodeTypeEncodingError, Log: "failed to encode result"}
	}
	return Result{Code: CodeTypeOK, Data: data}
}

func short(o types.Owner) string {
	if len(o) > 12 {
		return string(o[:12])
	}
	return string(o)
}
