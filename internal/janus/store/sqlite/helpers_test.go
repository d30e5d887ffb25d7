package sqlite_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/BrandonDHaskell/janus/internal/db"
)

// openTestDB returns an in-memory SQLite connection with the same PRAGMAs
// and schema as production.  The connection is closed automatically when the
// test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// The shared-cache URI keeps the database alive for the lifetime of the
	// pool; each test gets its own name.
	name := "test_" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := db.OpenDSN(context.Background(), db.MemoryDSN(name))
	if err != nil {
		t.Fatalf("openTestDB: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Worker backed by conn.  The worker is closed
// automatically when the test finishes.
func newTestWriter(t *testing.T, conn *sql.DB) *db.Worker {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return w
}

// seedSubject inserts a subject row directly, bypassing the store.
func seedSubject(t *testing.T, conn *sql.DB, subjectID string, allowed bool) {
	t.Helper()
	nowMs := time.Now().UTC().UnixMilli()
	a := 0
	if allowed {
		a = 1
	}
	_, err := conn.ExecContext(context.Background(), `
INSERT OR IGNORE INTO subjects(subject_id, allowed, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?);`, subjectID, a, nowMs, nowMs)
	if err != nil {
		t.Fatalf("seedSubject(%s): %v", subjectID, err)
	}
}

const (
	alice = "+15551234567"
	bob   = "+15557654321"
)

var day = time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)
