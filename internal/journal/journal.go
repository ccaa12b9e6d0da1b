// Package journal persists ledger events to SQLite so the ledger can be
// rebuilt after a restart. The journal is a ledger observer: every committed
// event is appended in sequence order, and Replay feeds the stored events back
// through the ledger on startup. It also keeps the signatures of delivered
// transactions for replay protection across restarts.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"threesquare.land/tsl/internal/ledger"
	"threesquare.land/tsl/internal/types"

	_ "modernc.org/sqlite"
)

const (
	defaultDBFile        = "ledger.db"
	defaultBackupDirName = "backups"
	maxBusyTimeoutMs     = 5000
	defaultMaxBackups    = 20
)

// Journal is an append-only event log backed by a SQLite database file.
type Journal struct {
	mu        sync.RWMutex
	db        *sql.DB
	file      string
	backupDir string
	updates   chan struct{}
	appendErr error
}

// Open opens (or creates) the journal at filePath. A database that cannot be
// opened is replaced by the newest backup, or by an empty journal when no
// backup exists.
func Open(filePath string) (*Journal, error) {
	if filePath == "" {
		filePath = defaultDBFile
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("resolve journal path: %w", err)
	}

	j := &Journal{
		file:      absPath,
		backupDir: filepath.Join(filepath.Dir(absPath), defaultBackupDirName),
		updates:   make(chan struct{}, 1),
	}

	if err := os.MkdirAll(j.backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	if err := j.tryOpenOrRecover(); err != nil {
		return nil, err
	}

	if err := j.ensureSchema(); err != nil {
		// A file that opens but is not a database only fails here.
		if recErr := j.recoverDatabase(err); recErr != nil {
			_ = j.closeDB()
			return nil, recErr
		}
		if err := j.ensureSchema(); err != nil {
			_ = j.closeDB()
			return nil, err
		}
	}

	return j, nil
}

// Path returns the absolute path of the journal database.
func (j *Journal) Path() string {
	return j.file
}

// Updates returns a channel that receives a value whenever an event is appended.
func (j *Journal) Updates() <-chan struct{} {
	return j.updates
}

func (j *Journal) notify() {
	select {
	case j.updates <- struct{}{}:
	default:
	}
}

// Close releases the underlying database connection.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeDB()
}

// Observe appends ev. It runs inside the ledger's commit, so a failure cannot
// be returned to the caller; it is logged and kept for Err.
func (j *Journal) Observe(ev types.Event) {
	if err := j.Append(ev); err != nil {
		log.Printf("WARNING: journal append of event %d failed: %v", ev.Seq, err)
		j.mu.Lock()
		if j.appendErr == nil {
			j.appendErr = err
		}
		j.mu.Unlock()
	}
}

// Err returns the first append failure seen by Observe.
func (j *Journal) Err() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.appendErr
}

// Append stores one event. Sequence numbers are unique.
func (j *Journal) Append(ev types.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.db == nil {
		return errors.New("journal is closed")
	}

	_, err := j.db.Exec(`INSERT INTO events (
		seq, id, type, actor, counterparty, square, counterparty_square, offer_id, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, eventToArgs(ev)...)
	if err != nil {
		return fmt.Errorf("insert event %d: %w", ev.Seq, err)
	}
	j.notify()
	return nil
}

// Since returns events with a sequence number greater than seq in order. A
// limit of zero or less returns all of them.
func (j *Journal) Since(ctx context.Context, seq uint64, limit int) ([]types.Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.db == nil {
		return nil, errors.New("journal is closed")
	}

	query := `SELECT seq, id, type, actor, counterparty, square, counterparty_square, offer_id, at
		FROM events WHERE seq > ? ORDER BY seq`
	args := []any{int64(seq)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []types.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// LastSeq returns the highest stored sequence number, or zero when empty.
func (j *Journal) LastSeq(ctx context.Context) (uint64, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.db == nil {
		return 0, errors.New("journal is closed")
	}

	var seq sql.NullInt64
	if err := j.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM events`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return uint64(seq.Int64), nil
}

// Replay loads every stored event into l and returns how many were applied.
// l must be empty and must not have the journal registered as an observer yet.
func (j *Journal) Replay(ctx context.Context, l *ledger.Ledger) (int, error) {
	events, err := j.Since(ctx, 0, 0)
	if err != nil {
		return 0, err
	}
	for i, ev := range events {
		if want := uint64(i + 1); ev.Seq != want {
			return 0, fmt.Errorf("journal gap: expected seq %d, found %d", want, ev.Seq)
		}
	}
	if err := l.Replay(events); err != nil {
		return 0, err
	}
	return len(events), nil
}

func (j *Journal) tryOpenOrRecover() error {
	if err := j.openDB(); err != nil {
		if recErr := j.recoverDatabase(err); recErr != nil {
			return recErr
		}
	}
	return nil
}

func (j *Journal) openDB() error {
	if err := os.MkdirAll(filepath.Dir(j.file), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s", filepath.Clean(j.file))

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", maxBusyTimeoutMs)); err != nil {
		db.Close()
		return fmt.Errorf("set busy timeout: %w", err)
	}

	j.db = db
	return nil
}

func (j *Journal) recoverDatabase(openErr error) error {
	if err := j.restoreLatestBackup(); err != nil {
		if errors.Is(err, errNoBackups) {
			log.Printf("WARNING: journal %s unusable (%v) and no backups found, starting empty", filepath.Base(j.file), openErr)
			if cleanErr := j.resetDatabaseFiles(); cleanErr != nil {
				return fmt.Errorf("reset database after %v: %w", openErr, cleanErr)
			}
			if err := j.openDB(); err != nil {
				return fmt.Errorf("create fresh database after %v: %w", openErr, err)
			}
			return nil
		}
		return fmt.Errorf("restore database after %v: %w", openErr, err)
	}
	log.Printf("INFO: journal %s restored from latest backup after: %v", filepath.Base(j.file), openErr)
	return nil
}

func (j *Journal) closeDB() error {
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

func (j *Journal) resetDatabaseFiles() error {
	_ = j.closeDB()

	var firstErr error
	for _, path := range []string{j.file, j.file + "-wal", j.file + "-shm"} {
		if err := os.Remove(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("remove %s: %w", filepath.Base(path), err)
			}
		}
	}
	return firstErr
}

func (j *Journal) ensureSchema() error {
	_, err := j.db.Exec(`CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		actor TEXT,
		counterparty TEXT,
		square TEXT,
		counterparty_square TEXT,
		offer_id TEXT,
		at TEXT
	)`)
	if err != nil {
		return fmt.Errorf("create events table: %w", err)
	}

	if _, err := j.db.Exec(`CREATE INDEX IF NOT EXISTS events_square ON events (square)`); err != nil {
		return fmt.Errorf("create events index: %w", err)
	}

	_, err = j.db.Exec(`CREATE TABLE IF NOT EXISTS seen_tx (
		signature TEXT PRIMARY KEY,
		tx_time INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create seen_tx table: %w", err)
	}

	if _, err := j.db.Exec(`CREATE INDEX IF NOT EXISTS seen_tx_time ON seen_tx (tx_time)`); err != nil {
		return fmt.Errorf("create seen_tx index: %w", err)
	}

	var mode string
	if err := j.db.QueryRow("PRAGMA journal_mode=WAL").Scan(&mode); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	return nil
}

func eventToArgs(ev types.Event) []any {
	return []any{
		int64(ev.Seq),
		ev.ID,
		string(ev.Type),
		string(ev.Actor),
		string(ev.Counterparty),
		string(ev.Square),
		string(ev.CounterpartySquare),
		string(ev.OfferID),
		formatTime(ev.At),
	}
}

func scanEvent(scanner interface{ Scan(dest ...any) error }) (types.Event, error) {
	var (
		seq                               int64
		id, typ                           string
		actor, counterparty               sql.NullString
		square, counterpartySquare, offer sql.NullString
		at                                sql.NullString
	)

	if err := scanner.Scan(&seq, &id, &typ, &actor, &counterparty, &square, &counterpartySquare, &offer, &at); err != nil {
		return types.Event{}, err
	}

	return types.Event{
		Seq:                uint64(seq),
		ID:                 id,
		Type:               types.EventType(typ),
		Actor:              types.Owner(actor.String),
		Counterparty:       types.Owner(counterparty.String),
		Square:             types.Square(square.String),
		CounterpartySquare: types.Square(counterpartySquare.String),
		OfferID:            types.OfferID(offer.String),
		At:                 parseTime(at.String),
	}, nil
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	return time.Time{}
}

func backupPrefix(file string) (prefix, ext string) {
	base := filepath.Base(file)
	ext = filepath.Ext(base)
	prefix = strings.TrimSuffix(base, ext)
	if prefix == "" {
		prefix = base
	}
	return prefix, ext
}
