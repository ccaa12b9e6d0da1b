package identity

import (
	"crypto/ed25519"
	"encoding/hex"

	"threesquare.land/tsl/internal/types"
)

// Identity is an owner's signing key.
type Identity struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	owner      types.Owner
}

// NewIdentity creates a new Identity from a private key
func NewIdentity(privKey ed25519.PrivateKey) *Identity {
	pubKey := privKey.Public().(ed25519.PublicKey)
	return &Identity{
		privateKey: privKey,
		publicKey:  pubKey,
		owner:      types.Owner(hex.EncodeToString(pubKey)),
	}
}

// Sign signs the provided message with the identity's private key
func (i *Identity) Sign(message []byte) []byte {
	return ed25519.Sign(i.privateKey, message)
}

// Verify verifies a signature against a message using the identity's public key
func (i *Identity) Verify(message, signature []byte) bool {
	return ed25519.Verify(i.publicKey, message, signature)
}

// PublicKey returns the raw public key
func (i *Identity) PublicKey() ed25519.PublicKey {
	return i.publicKey
}

// Owner returns the ledger identity of this key: its hex-encoded public key.
func (i *Identity) Owner() types.Owner {
	return i.owner
}

// SignTransaction signs tx on behalf of this identity.
func (i *Identity) SignTransaction(tx *types.Transaction) (*types.SignedTransaction, error) {
	return tx.Sign(i)
}
