// Package web implements the HTTP server for the tsl daemon. It mounts the
// JSON API, the websocket feeds for ledger events and status messages, and
// the rendered operator documentation.
package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"

	"threesquare.land/tsl/internal/api"
	"threesquare.land/tsl/internal/docs"
	"threesquare.land/tsl/internal/ledger"
	"threesquare.land/tsl/internal/logger"
	"threesquare.land/tsl/internal/types"
)

// TemplateData holds the data to be passed to the docs templates.
type TemplateData struct {
	CurrentVersion string
	BuildTime      string
	DocList        []string
	DocContent     template.HTML
	CurrentDoc     string
}

// Server is the web server for the API, websocket feeds and docs.
type Server struct {
	port       int
	ledger     *ledger.Ledger
	templates  *template.Template
	logger     *logger.Logger
	log        *logger.Component
	apiService *api.Service
	docService *docs.Service
	httpServer *http.Server
}

// NewServer creates a new web server.
func NewServer(port int, l *ledger.Ledger, apiService *api.Service, docService *docs.Service, lg *logger.Logger) (*Server, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		port:       port,
		ledger:     l,
		templates:  templates,
		logger:     lg,
		log:        lg.Component("web"),
		apiService: apiService,
		docService: docService,
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Infof("tsl server initialized")
	return s, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.apiService.Register(mux)

	// WebSocket routes
	mux.HandleFunc("/ws/events", s.handleEventsWS)
	mux.HandleFunc("/ws/status", s.handleStatusWS)
	mux.HandleFunc("/ws/diagnostics", s.handleDiagnosticsWS)

	// Docs
	mux.HandleFunc("/docs", s.handleDocsIndex)
	mux.HandleFunc("/docs/view", s.handleDocsView)

	return mux
}

// Start runs the server in the background. The returned channel receives
// the error that stopped it; a clean Shutdown closes it without a value.
func (s *Server) Start() <-chan error {
	log.Printf("INFO: Starting API server on http://localhost:%d", s.port)

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}

// Shutdown stops accepting connections and waits for active requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleDocsIndex(w http.ResponseWriter, r *http.Request) {
	docList, err := s.docService.ListDocs()
	if err != nil {
		s.log.Warningf("Failed to list docs: %v", err)
	}
	s.renderDocs(w, TemplateData{DocList: docList})
}

func (s *Server) handleDocsView(w http.ResponseWriter, r *http.Request) {
	docName := r.URL.Query().Get("file")
	docList, _ := s.docService.ListDocs()

	content, err := s.docService.GetDoc(r.Context(), docName)
	if err != nil {
		if errors.Is(err, docs.ErrInvalidName) {
			http.Error(w, "Invalid document name", http.StatusBadRequest)
			return
		}
		s.log.Errorf("Failed to load doc %s: %v", docName, err)
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}

	s.renderDocs(w, TemplateData{
		DocList:    docList,
		DocContent: template.HTML(content),
		CurrentDoc: docName,
	})
}

func (s *Server) renderDocs(w http.ResponseWriter, data TemplateData) {
	data.CurrentVersion = types.Version
	data.BuildTime = types.BuildTime

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "docs.html", data); err != nil {
		log.Printf("Error executing docs template: %s", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	s.setCacheHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// setCacheHeaders sets cache-busting headers to prevent browser caching.
func (s *Server) setCacheHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}
