package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/BrandonDHaskell/janus/internal/janus/biometric"
	"github.com/BrandonDHaskell/janus/internal/janus/bus"
	"github.com/BrandonDHaskell/janus/internal/janus/correlate"
	"github.com/BrandonDHaskell/janus/internal/janus/decision"
	"github.com/BrandonDHaskell/janus/internal/janus/store"
)

var (
	ErrInvalidSchedule = errors.New("invalid schedule entry")
	ErrInvalidDoor     = errors.New("invalid door id")
	ErrNoBus           = errors.New("no door bus configured")
)

// AdminService covers the approval workflow: the weekly schedule,
// subject approval, grants and face enrollment. With a bus it also pushes
// schedule changes and remote lock commands to the doors.
type AdminService struct {
	subjects store.SubjectStore
	grants   store.GrantStore
	schedule store.ScheduleStore
	events   store.AccessEventStore
	bus      bus.Bus
	codec    correlate.Codec
	logger   *log.Logger
	now      func() time.Time
}

// NewAdminService builds the service. b may be nil, in which case schedule
// changes are stored but not broadcast and door commands fail with ErrNoBus.
// A nil codec means JSON.
func NewAdminService(subjects store.SubjectStore, grants store.GrantStore, schedule store.ScheduleStore, events store.AccessEventStore, b bus.Bus, codec correlate.Codec, logger *log.Logger) *AdminService {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if codec == nil {
		codec = correlate.JSONCodec{}
	}
	return &AdminService{
		subjects: subjects,
		grants:   grants,
		schedule: schedule,
		events:   events,
		bus:      b,
		codec:    codec,
		logger:   logger,
		now:      time.Now,
	}
}

func (a *AdminService) Schedule(ctx context.Context) ([]decision.DaySchedule, error) {
	return a.schedule.WeekSchedule(ctx)
}

// PutSchedule replaces the given weekdays. Every entry is validated before
// any is written; a malformed window is rejected.
func (a *AdminService) PutSchedule(ctx context.Context, days []decision.DaySchedule) error {
	seen := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		if err := store.ValidateWeekday(d.Weekday); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}
		if seen[d.Weekday] {
			return fmt.Errorf("%w: %s listed twice", ErrInvalidSchedule, d.Weekday)
		}
		seen[d.Weekday] = true
		if d.Malformed() {
			return fmt.Errorf("%w: %s needs both open and close with open before close", ErrInvalidSchedule, d.Weekday)
		}
	}
	for _, d := range days {
		if err := a.schedule.PutDaySchedule(ctx, d); err != nil {
			return err
		}
	}
	a.logger.Printf("admin: schedule updated for %d day(s)", len(days))
	a.broadcastSchedule(ctx)
	return nil
}

// LoadSchedule seeds the schedule from a file at startup. Malformed
// entries are stored as given and logged; the engine treats them as
// closed.
func (a *AdminService) LoadSchedule(ctx context.Context, days []decision.DaySchedule) error {
	for _, d := range days {
		if d.Malformed() {
			a.logger.Printf("schedule file: %s entry is malformed and grants no global access", d.Weekday)
		}
		if err := a.schedule.PutDaySchedule(ctx, d); err != nil {
			return fmt.Errorf("load schedule %s: %w", d.Weekday, err)
		}
	}
	a.broadcastSchedule(ctx)
	return nil
}

// broadcastSchedule publishes the stored week on the schedule topic. The
// write has already succeeded, so a failed publish is logged and the doors
// pick up the week on the next change.
func (a *AdminService) broadcastSchedule(ctx context.Context) {
	if a.bus == nil {
		return
	}
	week, err := a.schedule.WeekSchedule(ctx)
	if err != nil {
		a.logger.Printf("admin: schedule broadcast: read week: %v", err)
		return
	}
	msg := correlate.ScheduleUpdate{Days: make([]correlate.ScheduleDay, 0, len(week)), UpdatedAt: a.now().UTC()}
	for _, d := range week {
		sd := correlate.ScheduleDay{Weekday: strings.ToLower(d.Weekday.String()), ForceUnlocked: d.ForceUnlocked}
		if d.Open != nil {
			sd.Open = d.Open.String()
		}
		if d.Close != nil {
			sd.Close = d.Close.String()
		}
		msg.Days = append(msg.Days, sd)
	}
	payload, err := a.codec.Marshal(msg)
	if err != nil {
		a.logger.Printf("admin: schedule broadcast: encode: %v", err)
		return
	}
	if err := a.bus.Publish(ctx, correlate.ScheduleTopic, payload); err != nil {
		a.logger.Printf("admin: schedule broadcast: %v", err)
		return
	}
	a.logger.Printf("admin: schedule broadcast to doors (%d day(s))", len(msg.Days))
}

func (a *AdminService) UnlockDoor(ctx context.Context, doorID string) error {
	return a.sendCommand(ctx, doorID, correlate.CommandUnlock)
}

func (a *AdminService) LockDoor(ctx context.Context, doorID string) error {
	return a.sendCommand(ctx, doorID, correlate.CommandLock)
}

func (a *AdminService) sendCommand(ctx context.Context, doorID string, kind correlate.DoorCommandKind) error {
	doorID = strings.TrimSpace(doorID)
	if !correlate.ValidSubject(doorID) {
		return ErrInvalidDoor
	}
	if a.bus == nil {
		return ErrNoBus
	}
	payload, err := a.codec.Marshal(correlate.DoorCommand{DoorID: doorID, Command: kind, IssuedAt: a.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode door command: %w", err)
	}
	if err := a.bus.Publish(ctx, correlate.CommandTopic, payload); err != nil {
		return fmt.Errorf("publish door command: %w", err)
	}
	a.logger.Printf("admin: %s sent to door %s", kind, doorID)
	return nil
}

// Approve sets whether subjectID may request entry outside global hours.
func (a *AdminService) Approve(ctx context.Context, subjectID string, allowed bool) error {
	subjectID = strings.TrimSpace(subjectID)
	if !correlate.ValidSubject(subjectID) {
		return ErrInvalidSubject
	}
	if err := a.subjects.SetAllowed(ctx, subjectID, allowed, a.now().UTC()); err != nil {
		return err
	}
	a.logger.Printf("admin: subject %s allowed=%v", subjectID, allowed)
	return nil
}

func (a *AdminService) Subjects(ctx context.Context) ([]store.SubjectRecord, error) {
	return a.subjects.ListSubjects(ctx)
}

func (a *AdminService) AddGrant(ctx context.Context, g decision.Grant) (decision.Grant, error) {
	g.SubjectID = strings.TrimSpace(g.SubjectID)
	if !correlate.ValidSubject(g.SubjectID) {
		return decision.Grant{}, ErrInvalidSubject
	}
	out, err := a.grants.InsertGrant(ctx, g)
	if err != nil {
		return decision.Grant{}, err
	}
	a.logger.Printf("admin: grant %d for %s %s..%s", out.ID, out.SubjectID,
		out.Start.Format(time.RFC3339), out.End.Format(time.RFC3339))
	return out, nil
}

func (a *AdminService) Grants(ctx context.Context, subjectID string) ([]decision.Grant, error) {
	return a.grants.GrantsForSubject(ctx, strings.TrimSpace(subjectID))
}

// EnrollFace stores a face template for an existing subject.
func (a *AdminService) EnrollFace(ctx context.Context, subjectID string, t biometric.Template) error {
	subjectID = strings.TrimSpace(subjectID)
	if !correlate.ValidSubject(subjectID) {
		return ErrInvalidSubject
	}
	b, err := biometric.Encode(t)
	if err != nil {
		return err
	}
	if err := a.subjects.SetTemplate(ctx, subjectID, b, a.now().UTC()); err != nil {
		return err
	}
	a.logger.Printf("admin: face template enrolled for %s (%d dims)", subjectID, len(t))
	return nil
}

func (a *AdminService) Events(ctx context.Context, limit int) ([]store.AccessEventRecord, error) {
	return a.events.RecentEvents(ctx, limit)
}
