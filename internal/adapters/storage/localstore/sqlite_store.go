package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"snooze/internal/adapters/storage"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  storage.SQLDB
	now func() time.Time
}

// NewSQLiteStore creates a new local storage store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// GetItem retrieves one value.
// PRE: visitorID and key are non-empty
// POST: Returns ok == false if nothing is stored under key
// INVARIANT: Store state is not mutated
func (s *SQLiteStore) GetItem(ctx context.Context, visitorID, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(storage.Op(ctx, "localstore.GetItem"),
		`SELECT value FROM local_storage WHERE visitor_id = ? AND key = ?`, visitorID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// SetItems upserts every item in one transaction.
// PRE: visitorID is non-empty
// POST: Either all items are stored or none are
// INVARIANT: Keys not in items are untouched
func (s *SQLiteStore) SetItems(ctx context.Context, visitorID string, items map[string]string) error {
	ctx = storage.Op(ctx, "localstore.SetItems")
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := s.now().UTC().Format(time.RFC3339)
	for key, value := range items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO local_storage (visitor_id, key, value, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (visitor_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, visitorID, key, value, now); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// Clear erases everything stored for a visitor.
// PRE: visitorID is non-empty
// POST: GetItem returns ok == false for every key
func (s *SQLiteStore) Clear(ctx context.Context, visitorID string) error {
	_, err := s.db.ExecContext(storage.Op(ctx, "localstore.Clear"),
		`DELETE FROM local_storage WHERE visitor_id = ?`, visitorID)
	return err
}

// DeleteStale removes visitors whose entries were last written before the cutoff.
// POST: Returns the number of rows removed
func (s *SQLiteStore) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(storage.Op(ctx, "localstore.DeleteStale"), `
		DELETE FROM local_storage WHERE visitor_id IN (
			SELECT visitor_id FROM local_storage GROUP BY visitor_id HAVING MAX(updated_at) < ?
		)
	`, before.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
