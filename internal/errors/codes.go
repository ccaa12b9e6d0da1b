// Package errors provides the coded ledger errors shared by the ledger,
// the transaction application and the HTTP API.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an error that did not originate in the ledger.
	CodeUnknown Code = "UNKNOWN"

	// Input errors
	CodeInvalidInput        Code = "INVALID_INPUT"
	CodeInvalidCounterparty Code = "INVALID_COUNTERPARTY"

	// Ownership errors
	CodeAlreadyClaimed                Code = "ALREADY_CLAIMED"
	CodeNotClaimed                    Code = "NOT_CLAIMED"
	CodeNotOwner                      Code = "NOT_OWNER"
	CodeCounterpartyOwnershipMismatch Code = "COUNTERPARTY_OWNERSHIP_MISMATCH"

	// Offer errors
	CodeNotRequester  Code = "NOT_REQUESTER"
	CodeOfferNotFound Code = "OFFER_NOT_FOUND"
)

// HTTPStatus maps the code to the status the API responds with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidInput, CodeInvalidCounterparty:
		return http.StatusBadRequest
	case CodeNotOwner, CodeNotRequester:
		return http.StatusForbidden
	case CodeOfferNotFound:
		return http.StatusNotFound
	case CodeAlreadyClaimed:
		return http.StatusConflict
	case CodeNotClaimed, CodeCounterpartyOwnershipMismatch:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
