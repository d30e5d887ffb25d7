package store

import (
	"context"
	"time"
)

type DoorRecord struct {
	DoorID   string
	Name     string
	Enabled  bool
	LastSeen *time.Time
}

type DoorStore interface {
	IsKnown(ctx context.Context, doorID string) (bool, error)
	MarkSeen(ctx context.Context, doorID string, t time.Time) error
}
