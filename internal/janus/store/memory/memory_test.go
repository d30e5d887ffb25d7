package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BrandonDHaskell/janus/internal/janus/decision"
	"github.com/BrandonDHaskell/janus/internal/janus/store"
	"github.com/BrandonDHaskell/janus/internal/janus/store/memory"
)

const alice = "+15551234567"

var day = time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)

func TestSubjectStore_GrantOverlap(t *testing.T) {
	s := memory.NewSubjectStore()
	ctx := context.Background()

	g := decision.Grant{SubjectID: alice, Start: day.Add(18 * time.Hour), End: day.Add(22 * time.Hour)}
	if _, err := s.InsertGrant(ctx, g); !errors.Is(err, store.ErrSubjectNotFound) {
		t.Fatalf("expected ErrSubjectNotFound, got %v", err)
	}
	if _, err := s.EnsureSubject(ctx, alice, day); err != nil {
		t.Fatalf("EnsureSubject: %v", err)
	}
	first, err := s.InsertGrant(ctx, g)
	if err != nil {
		t.Fatalf("InsertGrant: %v", err)
	}
	if first.ID == 0 {
		t.Error("expected id to be assigned")
	}

	overlap := decision.Grant{SubjectID: alice, Start: day.Add(21 * time.Hour), End: day.Add(23 * time.Hour)}
	if _, err := s.InsertGrant(ctx, overlap); !errors.Is(err, store.ErrGrantOverlap) {
		t.Errorf("expected ErrGrantOverlap, got %v", err)
	}
	adjacent := decision.Grant{SubjectID: alice, Start: day.Add(22 * time.Hour), End: day.Add(23 * time.Hour)}
	if _, err := s.InsertGrant(ctx, adjacent); err != nil {
		t.Errorf("expected adjacent grant accepted, got %v", err)
	}

	grants, _ := s.GrantsForSubject(ctx, alice)
	if len(grants) != 2 {
		t.Errorf("expected 2 grants, got %d", len(grants))
	}
}

func TestSubjectStore_ReturnsCopies(t *testing.T) {
	s := memory.NewSubjectStore()
	ctx := context.Background()
	_, _ = s.EnsureSubject(ctx, alice, day)
	_ = s.SetTemplate(ctx, alice, []byte{1, 2, 3}, day)

	rec, _, _ := s.GetSubject(ctx, alice)
	rec.Template[0] = 9
	again, _, _ := s.GetSubject(ctx, alice)
	if again.Template[0] != 1 {
		t.Error("caller mutation leaked into the store")
	}
}

func TestScheduleStore(t *testing.T) {
	s := memory.NewScheduleStore()
	ctx := context.Background()

	if d, _ := s.DaySchedule(ctx, time.Monday); d != nil {
		t.Fatalf("expected nil, got %+v", d)
	}
	open, closeAt := decision.Clock(9*60), decision.Clock(17*60)
	if err := s.PutDaySchedule(ctx, decision.DaySchedule{Weekday: time.Monday, Open: &open, Close: &closeAt}); err != nil {
		t.Fatalf("PutDaySchedule: %v", err)
	}
	open = 0
	d, _ := s.DaySchedule(ctx, time.Monday)
	if d == nil || *d.Open != 9*60 {
		t.Fatalf("expected stored copy of schedule, got %+v", d)
	}
	if err := s.PutDaySchedule(ctx, decision.DaySchedule{Weekday: -1}); !errors.Is(err, store.ErrInvalidWeekday) {
		t.Errorf("expected ErrInvalidWeekday, got %v", err)
	}
}

func TestAccessEventStore_Prune(t *testing.T) {
	s := memory.NewAccessEventStore()
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_ = s.RecordEvent(ctx, store.AccessEventRecord{SubjectID: alice, DecidedAt: day.Add(time.Duration(i) * time.Hour)})
	}
	n, _ := s.PruneOlderThan(ctx, day.Add(2*time.Hour))
	if n != 2 || len(s.Events()) != 2 {
		t.Fatalf("expected 2 pruned and 2 kept, got %d and %d", n, len(s.Events()))
	}
	recent, _ := s.RecentEvents(ctx, 1)
	if len(recent) != 1 || !recent[0].DecidedAt.Equal(day.Add(3*time.Hour)) {
		t.Errorf("expected newest event, got %+v", recent)
	}
}
