package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/janus/internal/db"
	"github.com/BrandonDHaskell/janus/internal/janus/store"
)

type SubjectStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewSubjectStore(db *sql.DB, writer *dbpkg.Worker) *SubjectStore {
	return &SubjectStore{db: db, writer: writer}
}

const subjectColumns = `subject_id, allowed, face_template, approved_at_ms, created_at_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubject(r rowScanner) (store.SubjectRecord, error) {
	var (
		rec      store.SubjectRecord
		allowed  int
		approved sql.NullInt64
		created  int64
	)
	if err := r.Scan(&rec.SubjectID, &allowed, &rec.Template, &approved, &created); err != nil {
		return store.SubjectRecord{}, err
	}
	rec.Allowed = allowed == 1
	rec.ApprovedAt = msPtr(approved)
	rec.CreatedAt = fromMs(created)
	return rec, nil
}

func (s *SubjectStore) GetSubject(ctx context.Context, subjectID string) (store.SubjectRecord, bool, error) {
	rec, err := scanSubject(s.db.QueryRowContext(ctx,
		`SELECT `+subjectColumns+` FROM subjects WHERE subject_id = ?;`, subjectID))
	if errors.Is(err, sql.ErrNoRows) {
		return store.SubjectRecord{}, false, nil
	}
	if err != nil {
		return store.SubjectRecord{}, false, fmt.Errorf("GetSubject: %w", err)
	}
	return rec, true, nil
}

func (s *SubjectStore) EnsureSubject(ctx context.Context, subjectID string, t time.Time) (store.SubjectRecord, error) {
	ms := t.UTC().UnixMilli()
	var rec store.SubjectRecord
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO subjects(subject_id, allowed, created_at_ms, updated_at_ms)
VALUES (?, 0, ?, ?);
`, subjectID, ms, ms); err != nil {
			return fmt.Errorf("EnsureSubject insert: %w", err)
		}
		var err error
		rec, err = scanSubject(tx.QueryRowContext(ctx,
			`SELECT `+subjectColumns+` FROM subjects WHERE subject_id = ?;`, subjectID))
		if err != nil {
			return fmt.Errorf("EnsureSubject read: %w", err)
		}
		return nil
	})
	return rec, err
}

func (s *SubjectStore) SetAllowed(ctx context.Context, subjectID string, allowed bool, t time.Time) error {
	ms := t.UTC().UnixMilli()
	var approvedMs any
	if allowed {
		approvedMs = ms
	}
	return s.update(ctx, "SetAllowed", `
UPDATE subjects SET allowed = ?, approved_at_ms = ?, updated_at_ms = ?
WHERE subject_id = ?;
`, boolInt(allowed), approvedMs, ms, subjectID)
}

func (s *SubjectStore) SetTemplate(ctx context.Context, subjectID string, template []byte, t time.Time) error {
	return s.update(ctx, "SetTemplate", `
UPDATE subjects SET face_template = ?, updated_at_ms = ?
WHERE subject_id = ?;
`, template, t.UTC().UnixMilli(), subjectID)
}

func (s *SubjectStore) update(ctx context.Context, op, query string, args ...any) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%s rows affected: %w", op, err)
		}
		if n == 0 {
			return store.ErrSubjectNotFound
		}
		return nil
	})
}

func (s *SubjectStore) ListSubjects(ctx context.Context) ([]store.SubjectRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+subjectColumns+` FROM subjects ORDER BY subject_id;`)
	if err != nil {
		return nil, fmt.Errorf("ListSubjects: %w", err)
	}
	defer rows.Close()

	var out []store.SubjectRecord
	for rows.Next() {
		rec, err := scanSubject(rows)
		if err != nil {
			return nil, fmt.Errorf("ListSubjects scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
