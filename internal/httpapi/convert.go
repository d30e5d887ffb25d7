package httpapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/BrandonDHaskell/janus/internal/janus/decision"
	"github.com/BrandonDHaskell/janus/internal/janus/liveness"
	"github.com/BrandonDHaskell/janus/internal/janus/store"
	"github.com/BrandonDHaskell/janus/internal/janus/types"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ── Schedule ─────────────────────────────────────────────────────────────────

func scheduleToTypes(days []decision.DaySchedule) []types.ScheduleDay {
	out := make([]types.ScheduleDay, 0, len(days))
	for _, d := range days {
		sd := types.ScheduleDay{
			Weekday:       strings.ToLower(d.Weekday.String()),
			ForceUnlocked: d.ForceUnlocked,
		}
		if d.Open != nil {
			sd.Open = d.Open.String()
		}
		if d.Close != nil {
			sd.Close = d.Close.String()
		}
		out = append(out, sd)
	}
	return out
}

func scheduleFromTypes(days []types.ScheduleDay) ([]decision.DaySchedule, error) {
	out := make([]decision.DaySchedule, 0, len(days))
	for _, sd := range days {
		wd, err := decision.ParseWeekday(sd.Weekday)
		if err != nil {
			return nil, err
		}
		d := decision.DaySchedule{Weekday: wd, ForceUnlocked: sd.ForceUnlocked}
		if d.Open, err = clockField(sd.Open); err != nil {
			return nil, fmt.Errorf("%s open: %w", wd, err)
		}
		if d.Close, err = clockField(sd.Close); err != nil {
			return nil, fmt.Errorf("%s close: %w", wd, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func clockField(s string) (*decision.Clock, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	c, err := decision.ParseClock(s)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ── Subjects & grants ────────────────────────────────────────────────────────

func subjectToType(r store.SubjectRecord) types.SubjectResponse {
	out := types.SubjectResponse{
		Subject:     r.SubjectID,
		Allowed:     r.Allowed,
		HasTemplate: len(r.Template) > 0,
		CreatedAt:   formatTime(r.CreatedAt),
	}
	if r.ApprovedAt != nil {
		out.ApprovedAt = formatTime(*r.ApprovedAt)
	}
	return out
}

func grantFromRequest(req types.GrantRequest) (decision.Grant, error) {
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.Start))
	if err != nil {
		return decision.Grant{}, fmt.Errorf("start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(req.End))
	if err != nil {
		return decision.Grant{}, fmt.Errorf("end: %w", err)
	}
	return decision.Grant{SubjectID: strings.TrimSpace(req.Subject), Start: start, End: end}, nil
}

func grantToType(g decision.Grant) types.GrantResponse {
	return types.GrantResponse{
		ID:      g.ID,
		Subject: g.SubjectID,
		Start:   formatTime(g.Start),
		End:     formatTime(g.End),
	}
}

// ── Events ───────────────────────────────────────────────────────────────────

func eventToType(e store.AccessEventRecord) types.AccessEvent {
	return types.AccessEvent{
		DoorID:     e.DoorID,
		Subject:    e.SubjectID,
		Method:     string(e.Method),
		Outcome:    string(e.Outcome),
		Reason:     string(e.Reason),
		ReceivedAt: formatTime(e.ReceivedAt),
		DecidedAt:  formatTime(e.DecidedAt),
	}
}

// ── Liveness ─────────────────────────────────────────────────────────────────

func sessionToType(s *liveness.Session) types.LivenessSessionResponse {
	return types.LivenessSessionResponse{
		SessionID: s.ID,
		StartedAt: formatTime(s.Started()),
		Deadline:  formatTime(s.Deadline()),
	}
}

func resultToType(id string, r liveness.Result) types.LivenessResultResponse {
	return types.LivenessResultResponse{
		SessionID:      id,
		Confirmed:      r.Confirmed,
		BlinkCount:     r.BlinkCount,
		NaturalPattern: r.NaturalPattern,
		TextureScore:   r.TextureScore,
		TexturePassed:  r.TexturePassed,
		TimedOut:       r.TimedOut,
	}
}

func sampleTime(s types.EARSample, received time.Time) (time.Time, error) {
	if strings.TrimSpace(s.At) == "" {
		return received, nil
	}
	return time.Parse(time.RFC3339Nano, s.At)
}
