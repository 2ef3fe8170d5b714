package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"monitorbot/internal/domain"
)

// ErrNotFound is returned by MarkNotified when no processed record exists for
// the given item ID. Given the call ordering in the monitor this indicates a
// bug, not a normal condition.
var ErrNotFound = errors.New("processed record not found")

const previewMaxChars = 500

// Store is the process-wide dedup and notification-audit store. Opened once at
// startup and passed explicitly; tests open isolated stores in temp dirs.
type Store struct {
	db *sql.DB
}

// Open creates the database file (and parent directory) if needed and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS processed_items (
		id             TEXT PRIMARY KEY,
		source         TEXT NOT NULL,
		group_name     TEXT,
		text_preview   TEXT,
		url            TEXT,
		classification TEXT,
		processed_at   DATETIME NOT NULL,
		notified       BOOLEAN DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_processed_at ON processed_items(processed_at);
	CREATE INDEX IF NOT EXISTS idx_source ON processed_items(source);

	CREATE TABLE IF NOT EXISTS notification_log (
		id      INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id TEXT,
		sent_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sent_at ON notification_log(sent_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// IsProcessed reports whether an item has already been seen. Safe to call
// before any classification work.
func (s *Store) IsProcessed(itemID string) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM processed_items WHERE id = ?", itemID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkProcessed inserts a processed record if absent. Re-inserting an existing
// ID is a no-op: the first write wins and is never overwritten. classification
// may be empty (e.g. text too short to classify).
func (s *Store) MarkProcessed(itemID, source, groupName, textPreview, url, classification string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO processed_items
		 (id, source, group_name, text_preview, url, classification, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		itemID, source, groupName, truncateRunes(textPreview, previewMaxChars),
		url, classification, time.Now().UTC(),
	)
	return err
}

// MarkNotified flips the notified flag and appends to the notification log in
// one transaction, so the flag and the rate window can never disagree.
// Returns ErrNotFound if the item was never marked processed.
func (s *Store) MarkNotified(itemID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec("UPDATE processed_items SET notified = 1 WHERE id = ?", itemID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("mark notified %s: %w", itemID, ErrNotFound)
	}
	if _, err := tx.Exec(
		"INSERT INTO notification_log (item_id, sent_at) VALUES (?, ?)",
		itemID, time.Now().UTC(),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// CountNotificationsSince counts log entries newer than the instant. The
// dispatcher calls this with now-1h for the rolling rate window.
func (s *Store) CountNotificationsSince(since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM notification_log WHERE sent_at > ?", since.UTC(),
	).Scan(&count)
	return count, err
}

// PurgeOlderThan deletes processed records and log entries older than the
// retention period. Best-effort housekeeping.
func (s *Store) PurgeOlderThan(retention time.Duration) error {
	cutoff := time.Now().UTC().Add(-retention)
	if _, err := s.db.Exec("DELETE FROM processed_items WHERE processed_at < ?", cutoff); err != nil {
		return err
	}
	_, err := s.db.Exec("DELETE FROM notification_log WHERE sent_at < ?", cutoff)
	return err
}

// GetProcessed loads one record by item ID.
func (s *Store) GetProcessed(itemID string) (domain.ProcessedRecord, error) {
	var rec domain.ProcessedRecord
	var groupName, preview, url, classification sql.NullString
	err := s.db.QueryRow(
		`SELECT id, source, group_name, text_preview, url, classification, processed_at, notified
		 FROM processed_items WHERE id = ?`, itemID,
	).Scan(&rec.ID, &rec.Source, &groupName, &preview, &url, &classification, &rec.ProcessedAt, &rec.Notified)
	if err == sql.ErrNoRows {
		return rec, fmt.Errorf("get processed %s: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return rec, err
	}
	rec.GroupName = groupName.String
	rec.TextPreview = preview.String
	rec.URL = url.String
	rec.Classification = classification.String
	return rec, nil
}

// Stats returns aggregate processing counters.
func (s *Store) Stats() (domain.Stats, error) {
	stats := domain.Stats{BySource: make(map[string]int)}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM processed_items").Scan(&stats.TotalProcessed); err != nil {
		return stats, err
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM processed_items WHERE notified = 1").Scan(&stats.TotalNotified); err != nil {
		return stats, err
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	if err := s.db.QueryRow(
		"SELECT COUNT(*) FROM processed_items WHERE processed_at >= ?", today,
	).Scan(&stats.TodayProcessed); err != nil {
		return stats, err
	}

	rows, err := s.db.Query("SELECT source, COUNT(*) FROM processed_items GROUP BY source")
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return stats, err
		}
		stats.BySource[source] = count
	}
	return stats, rows.Err()
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
