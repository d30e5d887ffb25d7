package memory

import (
	"context"
	"sync"
	"time"

	"github.com/BrandonDHaskell/janus/internal/janus/decision"
	"github.com/BrandonDHaskell/janus/internal/janus/store"
)

type ScheduleStore struct {
	mu   sync.RWMutex
	days map[time.Weekday]decision.DaySchedule
}

func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{days: make(map[time.Weekday]decision.DaySchedule)}
}

// DaySchedule returns nil when no entry exists for wd.
func (s *ScheduleStore) DaySchedule(_ context.Context, wd time.Weekday) (*decision.DaySchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.days[wd]
	if !ok {
		return nil, nil
	}
	return cloneDay(d), nil
}

func (s *ScheduleStore) PutDaySchedule(_ context.Context, d decision.DaySchedule) error {
	if err := store.ValidateWeekday(d.Weekday); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.days[d.Weekday] = *cloneDay(d)
	return nil
}

func (s *ScheduleStore) WeekSchedule(_ context.Context) ([]decision.DaySchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []decision.DaySchedule
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if d, ok := s.days[wd]; ok {
			out = append(out, *cloneDay(d))
		}
	}
	return out, nil
}

func cloneDay(d decision.DaySchedule) *decision.DaySchedule {
	if d.Open != nil {
		v := *d.Open
		d.Open = &v
	}
	if d.Close != nil {
		v := *d.Close
		d.Close = &v
	}
	return &d
}
