package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/janus/internal/janus/decision"
)

// AccessEventRecord captures a single access decision for the audit log.
type AccessEventRecord struct {
	DoorID     string
	SubjectID  string
	Method     decision.Method
	Outcome    decision.Outcome
	Reason     decision.Reason
	ReceivedAt time.Time
	DecidedAt  time.Time
}

// AccessEventStore persists access decisions as an append-only audit log.
type AccessEventStore interface {
	RecordEvent(ctx context.Context, rec AccessEventRecord) error
	RecentEvents(ctx context.Context, limit int) ([]AccessEventRecord, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
