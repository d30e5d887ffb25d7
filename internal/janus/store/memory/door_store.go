package memory

import (
	"context"
	"strings"
	"sync"
	"time"
)

type DoorStore struct {
	mu    sync.RWMutex
	known map[string]struct{}
	seen  map[string]time.Time
}

func NewDoorStore(knownDoors []string) *DoorStore {
	k := make(map[string]struct{}, len(knownDoors))
	for _, d := range knownDoors {
		d = strings.TrimSpace(d)
		if d != "" {
			k[d] = struct{}{}
		}
	}
	return &DoorStore{
		known: k,
		seen:  make(map[string]time.Time),
	}
}

func (s *DoorStore) IsKnown(_ context.Context, doorID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.known[doorID]
	return ok, nil
}

func (s *DoorStore) MarkSeen(_ context.Context, doorID string, t time.Time) error {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[doorID] = t
	return nil
}

// LastSeen returns when doorID last made a request.
func (s *DoorStore) LastSeen(doorID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.seen[doorID]
	return t, ok
}
