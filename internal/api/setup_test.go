package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"threesquare.land/tsl/internal/identity"
	"threesquare.land/tsl/internal/journal"
	"threesquare.land/tsl/internal/ledger"
	"threesquare.land/tsl/internal/logger"
	"threesquare.land/tsl/internal/txapp"
	"threesquare.land/tsl/internal/types"
)

// setupTest creates a journaled ledger and a service over it.
func setupTest(t *testing.T) (*Service, *http.ServeMux) {
	t.Helper()

	j, err := journal.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })

	l := ledger.New(ledger.Options{})
	l.AddObserver(j)

	app, err := txapp.NewApplication(l, txapp.Options{})
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}

	lg := logger.New(100)
	lg.SetMirror(false)

	svc := NewService(app, j, lg, 5)
	mux := http.NewServeMux()
	svc.Register(mux)
	return svc, mux
}

func newIdentity(t *testing.T) *identity.Identity {
	t.Helper()
	id, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return id
}

// submit signs a transaction and posts it to path.
func submit(t *testing.T, mux http.Handler, path string, id *identity.Identity, txType types.TransactionType, payload any) (*httptest.ResponseRecorder, txapp.Result) {
	t.Helper()
	tx, err := types.NewTransaction(txType, payload)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	stx, err := id.SignTransaction(tx)
	if err != nil {
		t.Fatalf("SignTransaction: %v", err)
	}
	body, _ := json.Marshal(stx)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	var res txapp.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result %q: %v", w.Body.String(), err)
	}
	return w, res
}

func get(t *testing.T, mux http.Handler, target string, into any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if into != nil && w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), into); err != nil {
			t.Fatalf("decode %s: %v", target, err)
		}
	}
	return w
}
