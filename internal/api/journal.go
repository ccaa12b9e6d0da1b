package api

import (
	"net/http"
	"strconv"

	"threesquare.land/tsl/internal/types"
)

const defaultEventPage = 500

// @Title: List Events
// @Route: GET /api/events?since=&limit=
// @Description: Returns committed ledger events with a sequence number greater than since, oldest first
// @Response: Array of Event objects
func (s *Service) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	q := r.URL.Query()
	var since uint64
	if v := q.Get("since"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
		since = parsed
	}
	limit := defaultEventPage
	if v := q.Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	var events []types.Event
	if s.journal != nil {
		var err error
		events, err = s.journal.Since(r.Context(), since, limit)
		if err != nil {
			s.log.Errorf("read journal: %v", err)
			s.writeError(w, http.StatusInternalServerError, "Failed to read journal")
			return
		}
	} else {
		events = s.ledger.EventsSince(since)
		if len(events) > limit {
			events = events[:limit]
		}
	}
	if events == nil {
		events = []types.Event{}
	}
	s.writeJSON(w, http.StatusOK, events)
}

// @Title: Backup Journal
// @Route: POST /api/journal/backup
// @Description: Write a timestamped copy of the event journal and prune old copies
// @Response: {"status": "ok", "path": "..."}
func (s *Service) HandleBackup(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if s.journal == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Journal is not configured")
		return
	}

	backupPath, err := s.journal.Backup(s.maxBackups)
	if err != nil {
		s.log.Errorf("Failed to create journal backup: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to create journal backup")
		return
	}

	s.log.Infof("Created journal backup at: %s", backupPath)
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"path":   backupPath,
	})
}
