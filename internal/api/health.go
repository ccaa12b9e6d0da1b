package api

import (
	"fmt"
	"net/http"
	"os"
	"runtime"

	"threesquare.land/tsl/internal/types"
)

// @Title: Get Health
// @Route: GET /api/health
// @Description: Returns server health status
// @Response: {"status": "ok", "seq": 42}
func (s *Service) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"seq":             s.ledger.LastSeq(),
		"dropped_events":  s.ledger.Dropped(),
		"journal_enabled": s.journal != nil,
	})
}

// @Title: Get Version
// @Route: GET /api/version
// @Description: Returns tsl version and build information
// @Response: {"version": "...", "status": "ok", "hostname": "..."}
func (s *Service) HandleVersion(w http.ResponseWriter, r *http.Request) {
	hostname, _ := os.Hostname()

	s.writeJSON(w, http.StatusOK, map[string]string{
		"version":    types.Version,
		"build_time": types.BuildTime,
		"status":     "ok",
		"hostname":   hostname,
		"go_ver":     runtime.Version(),
		"os_arch":    fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	})
}
