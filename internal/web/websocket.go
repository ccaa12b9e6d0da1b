package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"threesquare.land/tsl/internal/logger"
	"threesquare.land/tsl/internal/types"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	eventBuffer  = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// readPump drains client frames so control messages are processed, and
// closes the returned channel when the connection goes away. A hijacked
// connection does not cancel the request context.
func readPump(conn *websocket.Conn) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return done
}

// handleEventsWS streams ledger events. History after ?since= is sent first,
// then live events. Events are deduplicated by sequence number, and a gap
// caused by a lagging subscription is filled from the ledger history.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if v := r.URL.Query().Get("since"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "since must be a non-negative integer", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warningf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Subscribe before reading history so nothing committed in between is lost.
	events, cancel := s.ledger.Subscribe(eventBuffer)
	defer cancel()
	done := readPump(conn)

	last := since
	send := func(ev types.Event) error {
		if ev.Seq <= last {
			return nil
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ev); err != nil {
			return err
		}
		last = ev.Seq
		return nil
	}
	backfill := func() error {
		for _, ev := range s.ledger.EventsSince(last) {
			if err := send(ev); err != nil {
				return err
			}
		}
		return nil
	}

	if err := backfill(); err != nil {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Seq > last+1 {
				if err := backfill(); err != nil {
					return
				}
			}
			if err := send(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// handleStatusWS handles WebSocket connections for status messages
func (s *Server) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warningf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	done := readPump(conn)

	// Send initial history (last 50 logs), oldest first.
	initialLogs := s.logger.GetRecent(50)
	for i := len(initialLogs) - 1; i >= 0; i-- {
		if err := conn.WriteJSON(initialLogs[i]); err != nil {
			return
		}
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var lastLogTime time.Time
	if len(initialLogs) > 0 {
		lastLogTime = initialLogs[0].Timestamp
	}

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			recent := s.logger.GetRecent(20)

			var newLogs []logger.Message
			for _, msg := range recent {
				if msg.Timestamp.After(lastLogTime) {
					newLogs = append(newLogs, msg)
				}
			}

			// Send new logs (oldest first)
			for i := len(newLogs) - 1; i >= 0; i-- {
				msg := newLogs[i]
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
				if msg.Timestamp.After(lastLogTime) {
					lastLogTime = msg.Timestamp
				}
			}
		}
	}
}

// handleDiagnosticsWS pushes ledger counters every two seconds.
func (s *Server) handleDiagnosticsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warningf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	done := readPump(conn)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		msg := map[string]interface{}{
			"time":           time.Now().Format("2006-01-02 15:04:05"),
			"version":        types.Version,
			"seq":            s.ledger.LastSeq(),
			"dropped_events": s.ledger.Dropped(),
		}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}

		select {
		case <-done:
			return
		case <-ticker.C:
		}
	}
}
