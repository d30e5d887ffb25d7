package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type SeedDevOptions struct {
	// KnownDoors are created enabled. Defaults to "door-001".
	KnownDoors []string
	// WeekdayHours seeds Monday-Friday 09:00-17:00 when no schedule exists.
	WeekdayHours bool
}

// SeedDev prepares a development database: enabled doors and, optionally,
// a default weekday schedule. It is idempotent.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	now := time.Now().UTC().UnixMilli()

	doors := opt.KnownDoors
	if len(doors) == 0 {
		doors = []string{"door-001"}
	}
	for _, id := range doors {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, `
INSERT INTO doors(door_id, name, enabled, created_at_ms, updated_at_ms)
VALUES (?, ?, 1, ?, ?)
ON CONFLICT(door_id) DO UPDATE SET
  enabled = 1,
  updated_at_ms = excluded.updated_at_ms;
`, id, id, now, now); err != nil {
			return fmt.Errorf("seed door %s: %w", id, err)
		}
	}

	if !opt.WeekdayHours {
		return nil
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM day_schedules;`).Scan(&n); err != nil {
		return fmt.Errorf("seed schedule: %w", err)
	}
	if n > 0 {
		return nil
	}
	for wd := 1; wd <= 5; wd++ {
		if _, err := db.ExecContext(ctx, `
INSERT INTO day_schedules(weekday, open_min, close_min, force_unlocked, updated_at_ms)
VALUES (?, ?, ?, 0, ?);
`, wd, 9*60, 17*60, now); err != nil {
			return fmt.Errorf("seed schedule weekday %d: %w", wd, err)
		}
	}
	return nil
}
