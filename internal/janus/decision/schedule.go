package decision

import (
	"fmt"
	"strings"
	"time"
)

// Clock is a wall-clock time of day at minute resolution, counted in
// minutes since midnight in the site's local time zone.
type Clock int

// ParseClock parses an "HH:MM" string.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

// ClockOf returns the time of day of t, truncated to the minute.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// ParseWeekday accepts full or three-letter English day names in any case.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		name := strings.ToLower(wd.String())
		if s == name || s == name[:3] {
			return wd, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

func (c Clock) valid() bool {
	return c >= 0 && c < 24*60
}

// DaySchedule is the global schedule for one weekday. A nil Open or Close
// means there is no scheduled window that day.
type DaySchedule struct {
	Weekday       time.Weekday
	Open          *Clock
	Close         *Clock
	ForceUnlocked bool
}

// window reports the open window for the day and whether it is usable.
// Entries with a single bound, bounds out of range, or open after close
// have no window.
func (d *DaySchedule) window() (Clock, Clock, bool) {
	if d == nil || d.Open == nil || d.Close == nil {
		return 0, 0, false
	}
	open, closeAt := *d.Open, *d.Close
	if !open.valid() || !closeAt.valid() || open > closeAt {
		return 0, 0, false
	}
	return open, closeAt, true
}

// Malformed reports whether the entry carries a window that cannot be used.
// Callers log these; the engine treats them as "no global access".
func (d *DaySchedule) Malformed() bool {
	if d == nil {
		return false
	}
	if d.Open == nil && d.Close == nil {
		return false
	}
	_, _, ok := d.window()
	return !ok
}

// Grant is a time-bounded, per-subject access exception.
type Grant struct {
	ID        int64
	SubjectID string
	Start     time.Time
	End       time.Time
}

// Covers reports whether now lies within the grant, bounds inclusive.
func (g Grant) Covers(now time.Time) bool {
	return !now.Before(g.Start) && !now.After(g.End)
}

// Overlaps reports whether two grants intersect as half-open intervals.
// Grants that merely touch (one ends where the other starts) do not overlap.
func (g Grant) Overlaps(o Grant) bool {
	return g.Start.Before(o.End) && o.Start.Before(g.End)
}

// CoveringGrant returns the first grant for subjectID covering now.
func CoveringGrant(grants []Grant, subjectID string, now time.Time) (Grant, bool) {
	for _, g := range grants {
		if g.SubjectID != subjectID {
			continue
		}
		if g.Covers(now) {
			return g, true
		}
	}
	return Grant{}, false
}
