package errors

import stderrors "errors"

// Sentinels for errors.Is checks. Matching is by code, so any *Error carrying
// the same code matches regardless of message or metadata.
var (
	ErrInvalidInput                  = New(CodeInvalidInput, "invalid input")
	ErrInvalidCounterparty           = New(CodeInvalidCounterparty, "invalid counterparty")
	ErrAlreadyClaimed                = New(CodeAlreadyClaimed, "square already claimed")
	ErrNotClaimed                    = New(CodeNotClaimed, "square not claimed")
	ErrNotOwner                      = New(CodeNotOwner, "caller does not own square")
	ErrCounterpartyOwnershipMismatch = New(CodeCounterpartyOwnershipMismatch, "counterparty does not own square")
	ErrNotRequester                  = New(CodeNotRequester, "caller is not the offer requester")
	ErrOfferNotFound                 = New(CodeOfferNotFound, "swap offer not found")
)

// Error is the ledger error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Human-readable message
	Metadata map[string]string // Identifiers involved (square, owner, offer)
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple ledger error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithMetadata creates a ledger error carrying the identifiers involved.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates a ledger error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf extracts the code from the first *Error in err's chain.
// It returns CodeUnknown for foreign errors and "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
