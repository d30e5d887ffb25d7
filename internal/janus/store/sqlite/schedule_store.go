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

type ScheduleStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewScheduleStore(db *sql.DB, writer *dbpkg.Worker) *ScheduleStore {
	return &ScheduleStore{db: db, writer: writer}
}

func scanDay(r rowScanner) (decision.DaySchedule, error) {
	var (
		d               decision.DaySchedule
		wd              int
		openAt, closeAt sql.NullInt64
		force           int
	)
	if err := r.Scan(&wd, &openAt, &closeAt, &force); err != nil {
		return decision.DaySchedule{}, err
	}
	d.Weekday = time.Weekday(wd)
	d.Open = clockPtr(openAt)
	d.Close = clockPtr(closeAt)
	d.ForceUnlocked = force == 1
	return d, nil
}

func clockPtr(v sql.NullInt64) *decision.Clock {
	if !v.Valid {
		return nil
	}
	c := decision.Clock(v.Int64)
	return &c
}

func clockArg(c *decision.Clock) any {
	if c == nil {
		return nil
	}
	return int64(*c)
}

// DaySchedule returns nil when no row exists for wd.
func (s *ScheduleStore) DaySchedule(ctx context.Context, wd time.Weekday) (*decision.DaySchedule, error) {
	d, err := scanDay(s.db.QueryRowContext(ctx, `
SELECT weekday, open_min, close_min, force_unlocked FROM day_schedules WHERE weekday = ?;
`, int(wd)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("DaySchedule: %w", err)
	}
	return &d, nil
}

func (s *ScheduleStore) PutDaySchedule(ctx context.Context, d decision.DaySchedule) error {
	if err := store.ValidateWeekday(d.Weekday); err != nil {
		return err
	}
	ms := time.Now().UTC().UnixMilli()
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO day_schedules(weekday, open_min, close_min, force_unlocked, updated_at_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(weekday) DO UPDATE SET
  open_min       = excluded.open_min,
  close_min      = excluded.close_min,
  force_unlocked = excluded.force_unlocked,
  updated_at_ms  = excluded.updated_at_ms;
`, int(d.Weekday), clockArg(d.Open), clockArg(d.Close), boolInt(d.ForceUnlocked), ms); err != nil {
			return fmt.Errorf("PutDaySchedule %s: %w", d.Weekday, err)
		}
		return nil
	})
}

func (s *ScheduleStore) WeekSchedule(ctx context.Context) ([]decision.DaySchedule, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT weekday, open_min, close_min, force_unlocked FROM day_schedules ORDER BY weekday;
`)
	if err != nil {
		return nil, fmt.Errorf("WeekSchedule: %w", err)
	}
	defer rows.Close()

	var out []decision.DaySchedule
	for rows.Next() {
		d, err := scanDay(rows)
		if err != nil {
			return nil, fmt.Errorf("WeekSchedule scan: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
