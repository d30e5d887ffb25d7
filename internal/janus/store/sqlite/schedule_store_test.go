package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/BrandonDHaskell/janus/internal/janus/decision"
	sqlitestore "github.com/BrandonDHaskell/janus/internal/janus/store/sqlite"
)

func clockPtr(t *testing.T, s string) *decision.Clock {
	t.Helper()
	c, err := decision.ParseClock(s)
	if err != nil {
		t.Fatal(err)
	}
	return &c
}

func TestScheduleStore_PutAndGet(t *testing.T) {
	conn := openTestDB(t)
	ss := sqlitestore.NewScheduleStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	if d, err := ss.DaySchedule(ctx, time.Monday); err != nil || d != nil {
		t.Fatalf("expected no schedule, got %+v (%v)", d, err)
	}

	mon := decision.DaySchedule{Weekday: time.Monday, Open: clockPtr(t, "09:00"), Close: clockPtr(t, "17:30")}
	if err := ss.PutDaySchedule(ctx, mon); err != nil {
		t.Fatalf("PutDaySchedule: %v", err)
	}
	got, err := ss.DaySchedule(ctx, time.Monday)
	if err != nil || got == nil {
		t.Fatalf("DaySchedule: %+v (%v)", got, err)
	}
	if *got.Open != *mon.Open || *got.Close != *mon.Close || got.ForceUnlocked {
		t.Errorf("unexpected schedule %+v", got)
	}

	// Replace with a force-unlocked day without hours.
	if err := ss.PutDaySchedule(ctx, decision.DaySchedule{Weekday: time.Monday, ForceUnlocked: true}); err != nil {
		t.Fatalf("PutDaySchedule replace: %v", err)
	}
	got, _ = ss.DaySchedule(ctx, time.Monday)
	if !got.ForceUnlocked || got.Open != nil || got.Close != nil {
		t.Errorf("expected force unlock with no hours, got %+v", got)
	}
}

func TestScheduleStore_MalformedEntryStoredVerbatim(t *testing.T) {
	conn := openTestDB(t)
	ss := sqlitestore.NewScheduleStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	if err := ss.PutDaySchedule(ctx, decision.DaySchedule{Weekday: time.Tuesday, Open: clockPtr(t, "09:00")}); err != nil {
		t.Fatalf("PutDaySchedule: %v", err)
	}
	got, _ := ss.DaySchedule(ctx, time.Tuesday)
	if got == nil || !got.Malformed() {
		t.Fatalf("expected malformed single-bound entry, got %+v", got)
	}
}

func TestScheduleStore_WeekAndValidation(t *testing.T) {
	conn := openTestDB(t)
	ss := sqlitestore.NewScheduleStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	for _, wd := range []time.Weekday{time.Friday, time.Sunday} {
		if err := ss.PutDaySchedule(ctx, decision.DaySchedule{Weekday: wd, Open: clockPtr(t, "08:00"), Close: clockPtr(t, "12:00")}); err != nil {
			t.Fatalf("PutDaySchedule: %v", err)
		}
	}
	week, err := ss.WeekSchedule(ctx)
	if err != nil {
		t.Fatalf("WeekSchedule: %v", err)
	}
	if len(week) != 2 || week[0].Weekday != time.Sunday || week[1].Weekday != time.Friday {
		t.Errorf("unexpected week %+v", week)
	}

	if err := ss.PutDaySchedule(ctx, decision.DaySchedule{Weekday: 7}); err == nil {
		t.Error("expected error for weekday 7")
	}
}
