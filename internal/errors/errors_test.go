package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := WithMetadata(CodeNotOwner, "caller bob does not own a.b.c", map[string]string{"square": "a.b.c"})

	if !stderrors.Is(err, ErrNotOwner) {
		t.Fatalf("expected errors.Is to match ErrNotOwner")
	}
	if stderrors.Is(err, ErrNotClaimed) {
		t.Fatalf("expected errors.Is not to match ErrNotClaimed")
	}

	wrapped := fmt.Errorf("deliver: %w", err)
	if !stderrors.Is(wrapped, ErrNotOwner) {
		t.Fatalf("expected wrapped error to match ErrNotOwner")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{name: "nil", err: nil, want: ""},
		{name: "ledger error", err: ErrOfferNotFound, want: CodeOfferNotFound},
		{name: "wrapped", err: fmt.Errorf("x: %w", ErrAlreadyClaimed), want: CodeAlreadyClaimed},
		{name: "foreign", err: stderrors.New("boom"), want: CodeUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CodeOf(tc.err); got != tc.want {
				t.Fatalf("CodeOf = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestWrapUnwrapsCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(CodeUnknown, "journal append failed", cause)

	if !stderrors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable through Unwrap")
	}
	if err.Error() != "journal append failed" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestErrorFallsBackToCode(t *testing.T) {
	err := &Error{Code: CodeNotRequester}
	if got := err.Error(); got != string(CodeNotRequester) {
		t.Fatalf("Error() = %q, want %q", got, CodeNotRequester)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := map[Code]int{
		CodeInvalidInput:                  http.StatusBadRequest,
		CodeInvalidCounterparty:           http.StatusBadRequest,
		CodeNotOwner:                      http.StatusForbidden,
		CodeNotRequester:                  http.StatusForbidden,
		CodeOfferNotFound:                 http.StatusNotFound,
		CodeAlreadyClaimed:                http.StatusConflict,
		CodeNotClaimed:                    http.StatusUnprocessableEntity,
		CodeCounterpartyOwnershipMismatch: http.StatusUnprocessableEntity,
		CodeUnknown:                       http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := code.HTTPStatus(); got != want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", code, got, want)
		}
	}
}
