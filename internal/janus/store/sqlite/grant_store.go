package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/janus/internal/db"
	"github.com/BrandonDHaskell/janus/internal/janus/decision"
	"github.com/BrandonDHaskell/janus/internal/janus/store"
)

type GrantStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewGrantStore(db *sql.DB, writer *dbpkg.Worker) *GrantStore {
	return &GrantStore{db: db, writer: writer}
}

// InsertGrant checks for an overlapping grant and inserts inside one
// writer transaction, so concurrent inserts cannot both succeed.
func (s *GrantStore) InsertGrant(ctx context.Context, g decision.Grant) (decision.Grant, error) {
	if err := store.ValidateGrant(g); err != nil {
		return decision.Grant{}, err
	}
	g.Start, g.End = g.Start.UTC(), g.End.UTC()
	startMs, endMs := g.Start.UnixMilli(), g.End.UnixMilli()

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM subjects WHERE subject_id = ?;`, g.SubjectID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrSubjectNotFound
		}
		if err != nil {
			return fmt.Errorf("InsertGrant subject lookup: %w", err)
		}

		var clash int64
		err = tx.QueryRowContext(ctx, `
SELECT grant_id FROM schedule_grants
WHERE subject_id = ? AND start_ms < ? AND ? < end_ms
LIMIT 1;
`, g.SubjectID, endMs, startMs).Scan(&clash)
		if err == nil {
			return store.ErrGrantOverlap
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("InsertGrant overlap check: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
INSERT INTO schedule_grants(subject_id, start_ms, end_ms, created_at_ms)
VALUES (?, ?, ?, ?);
`, g.SubjectID, startMs, endMs, time.Now().UTC().UnixMilli())
		if err != nil {
			return fmt.Errorf("InsertGrant insert: %w", err)
		}
		g.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return decision.Grant{}, err
	}
	return g, nil
}

func (s *GrantStore) GrantsForSubject(ctx context.Context, subjectID string) ([]decision.Grant, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT grant_id, subject_id, start_ms, end_ms
FROM schedule_grants
WHERE subject_id = ?
ORDER BY start_ms;
`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("GrantsForSubject: %w", err)
	}
	defer rows.Close()

	var out []decision.Grant
	for rows.Next() {
		var (
			g              decision.Grant
			startMs, endMs int64
		)
		if err := rows.Scan(&g.ID, &g.SubjectID, &startMs, &endMs); err != nil {
			return nil, fmt.Errorf("GrantsForSubject scan: %w", err)
		}
		g.Start, g.End = fromMs(startMs), fromMs(endMs)
		out = append(out, g)
	}
	return out, rows.Err()
}
