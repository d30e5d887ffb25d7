package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/janus/internal/db"
	"github.com/BrandonDHaskell/janus/internal/janus/decision"
	"github.com/BrandonDHaskell/janus/internal/janus/store"
)

type AccessEventStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAccessEventStore(db *sql.DB, writer *dbpkg.Worker) *AccessEventStore {
	return &AccessEventStore{db: db, writer: writer}
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *AccessEventStore) RecordEvent(ctx context.Context, rec store.AccessEventRecord) error {
	if rec.DecidedAt.IsZero() {
		rec.DecidedAt = time.Now().UTC()
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = rec.DecidedAt
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO access_events(
  door_id, subject_id, method, outcome, reason, received_at_ms, decided_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?);
`,
			nullString(rec.DoorID), nullString(rec.SubjectID),
			string(rec.Method), string(rec.Outcome), string(rec.Reason),
			rec.ReceivedAt.UTC().UnixMilli(), rec.DecidedAt.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("RecordEvent insert: %w", err)
		}
		return nil
	})
}

// RecentEvents returns up to limit events, newest first.
func (s *AccessEventStore) RecentEvents(ctx context.Context, limit int) ([]store.AccessEventRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT door_id, subject_id, method, outcome, reason, received_at_ms, decided_at_ms
FROM access_events
ORDER BY decided_at_ms DESC, event_id DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("RecentEvents: %w", err)
	}
	defer rows.Close()

	var out []store.AccessEventRecord
	for rows.Next() {
		var (
			rec                  store.AccessEventRecord
			door, subject        sql.NullString
			method, outc, reason string
			received, decided    int64
		)
		if err := rows.Scan(&door, &subject, &method, &outc, &reason, &received, &decided); err != nil {
			return nil, fmt.Errorf("RecentEvents scan: %w", err)
		}
		rec.DoorID = door.String
		rec.SubjectID = subject.String
		rec.Method = decision.Method(method)
		rec.Outcome = decision.Outcome(outc)
		rec.Reason = decision.Reason(reason)
		rec.ReceivedAt = fromMs(received)
		rec.DecidedAt = fromMs(decided)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *AccessEventStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM access_events WHERE decided_at_ms < ?;`, cutoff.UTC().UnixMilli())
		if err != nil {
			return fmt.Errorf("PruneOlderThan: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}
