package store

import (
	"context"
	"errors"
	"time"

	"github.com/BrandonDHaskell/janus/internal/janus/decision"
)

var (
	ErrSubjectNotFound = errors.New("subject not found")
	ErrGrantOverlap    = errors.New("grant overlaps an existing grant for subject")
	ErrInvalidGrant    = errors.New("grant end must be after start")
	ErrInvalidWeekday  = errors.New("weekday out of range")
)

// SubjectRecord is a person known to the site, keyed by phone number.
// Subjects created on first contact start with Allowed=false.
type SubjectRecord struct {
	SubjectID  string
	Allowed    bool
	Template   []byte // encoded face template; nil until enrolled
	CreatedAt  time.Time
	ApprovedAt *time.Time
}

type SubjectStore interface {
	GetSubject(ctx context.Context, subjectID string) (SubjectRecord, bool, error)
	// EnsureSubject returns the subject, creating a pending record if absent.
	EnsureSubject(ctx context.Context, subjectID string, t time.Time) (SubjectRecord, error)
	SetAllowed(ctx context.Context, subjectID string, allowed bool, t time.Time) error
	SetTemplate(ctx context.Context, subjectID string, template []byte, t time.Time) error
	ListSubjects(ctx context.Context) ([]SubjectRecord, error)
}

type GrantStore interface {
	// InsertGrant stores g and returns it with its ID set. It fails with
	// ErrGrantOverlap if g overlaps another grant for the same subject.
	InsertGrant(ctx context.Context, g decision.Grant) (decision.Grant, error)
	GrantsForSubject(ctx context.Context, subjectID string) ([]decision.Grant, error)
}

// ScheduleStore holds at most one global DaySchedule per weekday.
type ScheduleStore interface {
	DaySchedule(ctx context.Context, wd time.Weekday) (*decision.DaySchedule, error)
	PutDaySchedule(ctx context.Context, d decision.DaySchedule) error
	WeekSchedule(ctx context.Context) ([]decision.DaySchedule, error)
}

// ValidateGrant checks the shape of a grant before it is stored.
func ValidateGrant(g decision.Grant) error {
	if g.SubjectID == "" || !g.End.After(g.Start) {
		return ErrInvalidGrant
	}
	return nil
}

// ValidateWeekday checks that wd names a day of the week.
func ValidateWeekday(wd time.Weekday) error {
	if wd < time.Sunday || wd > time.Saturday {
		return ErrInvalidWeekday
	}
	return nil
}
