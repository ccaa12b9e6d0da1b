package web

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"threesquare.land/tsl/internal/api"
	"threesquare.land/tsl/internal/docs"
	"threesquare.land/tsl/internal/ledger"
	"threesquare.land/tsl/internal/logger"
	"threesquare.land/tsl/internal/txapp"
	"threesquare.land/tsl/internal/types"
)

func newTestServer(t *testing.T) (*ledger.Ledger, *logger.Logger, *httptest.Server) {
	t.Helper()

	l := ledger.New(ledger.Options{})
	app, err := txapp.NewApplication(l, txapp.Options{})
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}
	lg := logger.New(50)
	lg.SetMirror(false)

	docsDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(docsDir, "ledger.adoc"), []byte("= Ledger\n\nHello *squares*.\n"), 0o644); err != nil {
		t.Fatalf("write doc: %v", err)
	}

	s, err := NewServer(0, l, api.NewService(app, nil, lg, 5), docs.NewService(docsDir), lg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return l, lg, ts
}

func dial(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestEventsWSSendsHistoryThenLive(t *testing.T) {
	l, _, ts := newTestServer(t)

	if err := l.Claim("a.a.a", "alice"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := l.Claim("b.b.b", "bob"); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	conn := dial(t, ts, "/ws/events?since=1")
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var ev types.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read history: %v", err)
	}
	if ev.Seq != 2 || ev.Square != "b.b.b" {
		t.Fatalf("history event = %+v", ev)
	}

	if err := l.Release("a.a.a", "alice"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read live: %v", err)
	}
	if ev.Seq != 3 || ev.Type != types.EventReleased {
		t.Fatalf("live event = %+v", ev)
	}
}

func TestEventsWSRejectsBadSince(t *testing.T) {
	_, _, ts := newTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/events?since=abc"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("response = %v", resp)
	}
}

func TestStatusWSSendsRecentLogs(t *testing.T) {
	_, lg, ts := newTestServer(t)
	lg.Component("test").Infof("hello %s", "status")

	conn := dial(t, ts, "/ws/status")
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	// NewServer logs its own startup line first.
	for i := 0; i < 2; i++ {
		var msg logger.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Text == "hello status" {
			return
		}
	}
	t.Fatalf("status message not received")
}

func TestDocsPages(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/docs")
	if err != nil {
		t.Fatalf("GET /docs: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "ledger.adoc") {
		t.Fatalf("index status=%d body=%s", resp.StatusCode, body)
	}

	resp, err = http.Get(ts.URL + "/docs/view?file=ledger.adoc")
	if err != nil {
		t.Fatalf("GET /docs/view: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "<strong>squares</strong>") {
		t.Fatalf("view status=%d body=%s", resp.StatusCode, body)
	}

	resp, err = http.Get(ts.URL + "/docs/view?file=../go.mod")
	if err != nil {
		t.Fatalf("GET traversal: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("traversal status = %d", resp.StatusCode)
	}
}

func TestAPIMounted(t *testing.T) {
	_, _, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
