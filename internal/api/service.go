// Package api exposes the land ledger over HTTP. Handlers carry
// @Title/@Route/@Description/@Response annotations that cmd/docgen turns into
// the API reference.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	apperrors "threesquare.land/tsl/internal/errors"
	"threesquare.land/tsl/internal/ledger"
	"threesquare.land/tsl/internal/logger"
	"threesquare.land/tsl/internal/txapp"
	"threesquare.land/tsl/internal/types"
)

// maxBodyBytes bounds a submitted transaction.
const maxBodyBytes = 64 << 10

// Journal is the part of the event journal the API needs.
type Journal interface {
	Backup(maxBackups int) (string, error)
	Since(ctx context.Context, seq uint64, limit int) ([]types.Event, error)
}

// Service handles API requests
type Service struct {
	app        *txapp.Application
	ledger     *ledger.Ledger
	journal    Journal
	log        *logger.Component
	maxBackups int
}

// NewService creates a new API service. journal may be nil, in which case
// event queries are served from the ledger's in-memory history and backups
// are unavailable.
func NewService(app *txapp.Application, journal Journal, log *logger.Logger, maxBackups int) *Service {
	return &Service{
		app:        app,
		ledger:     app.Ledger(),
		journal:    journal,
		log:        log.Component("api"),
		maxBackups: maxBackups,
	}
}

// Register mounts every handler on mux.
func (s *Service) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/tx", s.HandleSubmitTx)
	mux.HandleFunc("/api/tx/check", s.HandleCheckTx)
	mux.HandleFunc("/api/squares/owner", s.HandleSquareOwner)
	mux.HandleFunc("/api/inventory", s.HandleInventory)
	mux.HandleFunc("/api/offers", s.HandleOffers)
	mux.HandleFunc("/api/offers/id", s.HandleOffer)
	mux.HandleFunc("/api/events", s.HandleEvents)
	mux.HandleFunc("/api/snapshot", s.HandleSnapshot)
	mux.HandleFunc("/api/journal/backup", s.HandleBackup)
	mux.HandleFunc("/api/health", s.HandleHealth)
	mux.HandleFunc("/api/version", s.HandleVersion)
}

// writeJSON writes a JSON response
func (s *Service) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Service) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeLedgerError writes err with the status its code maps to.
func (s *Service) writeLedgerError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	s.writeJSON(w, code.HTTPStatus(), map[string]string{
		"error": err.Error(),
		"code":  string(code),
	})
}

func allowMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	return false
}
