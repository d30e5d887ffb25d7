package service

import (
	"context"
	"strings"
	"time"

	"github.com/BrandonDHaskell/janus/internal/janus/store"
)

type DoorRegistry struct {
	store store.DoorStore
	now   func() time.Time
}

func NewDoorRegistry(st store.DoorStore) *DoorRegistry {
	return &DoorRegistry{store: st, now: time.Now}
}

func (r *DoorRegistry) IsKnown(ctx context.Context, doorID string) (bool, error) {
	doorID = strings.TrimSpace(doorID)
	if doorID == "" {
		return false, nil
	}
	return r.store.IsKnown(ctx, doorID)
}

func (r *DoorRegistry) NoteSeen(ctx context.Context, doorID string) error {
	doorID = strings.TrimSpace(doorID)
	if doorID == "" {
		return nil
	}
	return r.store.MarkSeen(ctx, doorID, r.now().UTC())
}
