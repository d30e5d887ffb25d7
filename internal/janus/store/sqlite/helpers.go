package sqlite

import (
	"database/sql"
	"time"
)

func fromMs(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func msPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMs(v.Int64)
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
