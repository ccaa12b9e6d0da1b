package types

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TransactionType names a ledger operation carried by a signed transaction.
type TransactionType string

const (
	TxClaim         TransactionType = "claim"
	TxRelease       TransactionType = "release"
	TxSwap          TransactionType = "swap"
	TxCancelSwap    TransactionType = "cancel_swap"
	TxDeleteAccount TransactionType = "delete_account"
)

// Transaction is the unsigned body of a ledger operation. Nonce makes two
// otherwise identical transactions distinguishable for replay protection.
type Transaction struct {
	Type      TransactionType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Nonce     string          `json:"nonce"`
	Payload   json.RawMessage `json:"payload"`
}

// ClaimPayload is the payload of a TxClaim transaction.
type ClaimPayload struct {
	Square Square `json:"square"`
}

// ReleasePayload is the payload of a TxRelease transaction.
type ReleasePayload struct {
	Square Square `json:"square"`
}

// SwapPayload is the payload of a TxSwap transaction.
type SwapPayload struct {
	MySquare    Square `json:"my_square"`
	TheirSquare Square `json:"their_square"`
	OtherUser   Owner  `json:"other_user"`
}

// CancelSwapPayload is the payload of a TxCancelSwap transaction.
type CancelSwapPayload struct {
	OfferID OfferID `json:"offer_id"`
}

// DeleteAccountPayload is the (empty) payload of a TxDeleteAccount transaction.
type DeleteAccountPayload struct{}

// Signer signs transaction bytes. *identity.Identity satisfies it.
type Signer interface {
	Sign(message []byte) []byte
	PublicKey() ed25519.PublicKey
}

// SignedTransaction wraps the JSON encoding of a Transaction with the
// signer's public key and signature.
type SignedTransaction struct {
	Tx        []byte `json:"tx"`
	PublicKey []byte `json:"public_key"`
	Signature []byte `json:"signature"`
}

// NewTransaction builds a transaction of the given type with a fresh nonce.
func NewTransaction(txType TransactionType, payload any) (*Transaction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Transaction{
		Type:      txType,
		Timestamp: time.Now().UTC(),
		Nonce:     uuid.New().String(),
		Payload:   raw,
	}, nil
}

// Sign encodes the transaction and signs it with s.
func (tx *Transaction) Sign(s Signer) (*SignedTransaction, error) {
	if s == nil {
		return nil, errors.New("nil signer")
	}
	body, err := json.Marshal(tx)
	if err != nil {
		return nil, err
	}
	return &SignedTransaction{
		Tx:        body,
		PublicKey: []byte(s.PublicKey()),
		Signature: s.Sign(body),
	}, nil
}

// Verify checks the signature against the embedded public key.
func (st *SignedTransaction) Verify() bool {
	if len(st.PublicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(st.PublicKey), st.Tx, st.Signature)
}

// Signer returns the owner identity of the signing key.
func (st *SignedTransaction) Signer() Owner {
	return Owner(hex.EncodeToString(st.PublicKey))
}

// GetTransaction decodes the inner transaction.
func (st *SignedTransaction) GetTransaction() (*Transaction, error) {
	var tx Transaction
	if err := json.Unmarshal(st.Tx, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// SeenTx is a delivered transaction remembered for replay protection.
type SeenTx struct {
	Signature string    `json:"signature"`
	Timestamp time.Time `json:"timestamp"`
}
