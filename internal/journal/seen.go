package journal

import (
	"errors"
	"fmt"
	"time"

	"threesquare.land/tsl/internal/types"
)

// MarkSeen records the signature of a delivered transaction and reports
// whether it was not stored before.
func (j *Journal) MarkSeen(sig string, txTime time.Time) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.db == nil {
		return false, errors.New("journal is closed")
	}

	res, err := j.db.Exec(`INSERT OR IGNORE INTO seen_tx (signature, tx_time) VALUES (?, ?)`,
		sig, txTime.UnixNano())
	if err != nil {
		return false, fmt.Errorf("insert seen tx: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("seen tx rows affected: %w", err)
	}
	return n == 1, nil
}

// RecentSeen returns up to limit seen transactions, newest first.
func (j *Journal) RecentSeen(limit int) ([]types.SeenTx, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.db == nil {
		return nil, errors.New("journal is closed")
	}

	rows, err := j.db.Query(`SELECT signature, tx_time FROM seen_tx
		ORDER BY tx_time DESC, signature LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query seen tx: %w", err)
	}
	defer rows.Close()

	var out []types.SeenTx
	for rows.Next() {
		var (
			sig string
			ns  int64
		)
		if err := rows.Scan(&sig, &ns); err != nil {
			return nil, fmt.Errorf("scan seen tx: %w", err)
		}
		out = append(out, types.SeenTx{Signature: sig, Timestamp: time.Unix(0, ns).UTC()})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seen tx: %w", err)
	}
	return out, nil
}

// PruneSeen deletes records of transactions timestamped before cutoff and
// returns how many were removed. Only call it when such transactions are
// already refused by their timestamp.
func (j *Journal) PruneSeen(cutoff time.Time) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.db == nil {
		return 0, errors.New("journal is closed")
	}

	res, err := j.db.Exec(`DELETE FROM seen_tx WHERE tx_time < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune seen tx: %w", err)
	}
	return res.RowsAffected()
}
