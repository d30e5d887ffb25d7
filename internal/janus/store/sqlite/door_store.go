package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/janus/internal/db"
	"github.com/BrandonDHaskell/janus/internal/janus/store"
)

type DoorStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewDoorStore(db *sql.DB, writer *dbpkg.Worker) *DoorStore {
	return &DoorStore{db: db, writer: writer}
}

// IsKnown treats a door as known when it has a row with enabled=1.
// Doors are enabled by an administrator or the dev seeder.
func (s *DoorStore) IsKnown(ctx context.Context, doorID string) (bool, error) {
	doorID = strings.TrimSpace(doorID)
	if doorID == "" {
		return false, nil
	}

	var enabled int
	err := s.db.QueryRowContext(ctx, `
SELECT enabled FROM doors WHERE door_id = ?;
`, doorID).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("IsKnown query: %w", err)
	}
	return enabled == 1, nil
}

// MarkSeen records the door's last request. Unknown doors get a disabled
// row so they show up for an administrator to enable.
func (s *DoorStore) MarkSeen(ctx context.Context, doorID string, t time.Time) error {
	doorID = strings.TrimSpace(doorID)
	if doorID == "" {
		return nil
	}
	if t.IsZero() {
		t = time.Now().UTC()
	}
	ms := t.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO doors(door_id, enabled, last_seen_at_ms, created_at_ms, updated_at_ms)
VALUES (?, 0, ?, ?, ?)
ON CONFLICT(door_id) DO UPDATE SET
  last_seen_at_ms = excluded.last_seen_at_ms,
  updated_at_ms   = excluded.updated_at_ms;
`, doorID, ms, ms, ms); err != nil {
			return fmt.Errorf("MarkSeen %s: %w", doorID, err)
		}
		return nil
	})
}

// Door returns the stored record for doorID.
func (s *DoorStore) Door(ctx context.Context, doorID string) (store.DoorRecord, bool, error) {
	var (
		r        store.DoorRecord
		name     sql.NullString
		enabled  int
		lastSeen sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT door_id, name, enabled, last_seen_at_ms FROM doors WHERE door_id = ?;
`, doorID).Scan(&r.DoorID, &name, &enabled, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return store.DoorRecord{}, false, nil
	}
	if err != nil {
		return store.DoorRecord{}, false, fmt.Errorf("Door query: %w", err)
	}
	r.Name = name.String
	r.Enabled = enabled == 1
	r.LastSeen = msPtr(lastSeen)
	return r, true, nil
}
