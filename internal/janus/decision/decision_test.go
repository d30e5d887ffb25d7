package decision_test

import (
	"testing"
	"time"

	"github.com/BrandonDHaskell/janus/internal/janus/decision"
)

func clock(t *testing.T, s string) *decision.Clock {
	t.Helper()
	c, err := decision.ParseClock(s)
	if err != nil {
		t.Fatalf("ParseClock(%q): %v", s, err)
	}
	return &c
}

// 2026-02-16 is a Monday.
func monday(hh, mm int) time.Time {
	return time.Date(2026, 2, 16, hh, mm, 30, 0, time.UTC)
}

func officeHours(t *testing.T) *decision.DaySchedule {
	return &decision.DaySchedule{
		Weekday: time.Monday,
		Open:    clock(t, "09:00"),
		Close:   clock(t, "17:00"),
	}
}

const phone = "+15551234567"

// ── Global rules ─────────────────────────────────────────────────────────────

func TestDecide_ForceUnlock_ApprovesWithoutVerification(t *testing.T) {
	day := officeHours(t)
	day.ForceUnlocked = true

	d := decision.Decide(decision.Input{
		Subject: decision.Subject{ID: phone},
		Now:     monday(3, 0),
		Day:     day,
	})

	if d.Outcome != decision.Approved {
		t.Fatalf("expected approved, got %s", d.Outcome)
	}
	if d.Reason != decision.ReasonGlobalForceUnlock {
		t.Errorf("expected reason=%s, got %s", decision.ReasonGlobalForceUnlock, d.Reason)
	}
	if d.Method != decision.MethodSchedule {
		t.Errorf("expected method=schedule, got %s", d.Method)
	}
}

func TestDecide_ScheduleHours_InclusiveBounds(t *testing.T) {
	for _, tc := range []struct {
		name string
		now  time.Time
		want decision.Outcome
	}{
		{"at open", monday(9, 0), decision.Approved},
		{"midday", monday(12, 30), decision.Approved},
		{"at close", monday(17, 0), decision.Approved},
		{"before open", monday(8, 59), decision.Denied},
		{"after close", monday(17, 1), decision.Denied},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d := decision.Decide(decision.Input{
				Subject: decision.Subject{ID: phone},
				Now:     tc.now,
				Day:     officeHours(t),
			})
			if d.Outcome != tc.want {
				t.Fatalf("expected %s, got %s (%s)", tc.want, d.Outcome, d.Reason)
			}
			if tc.want == decision.Approved && d.Reason != decision.ReasonGlobalScheduleHours {
				t.Errorf("expected reason=%s, got %s", decision.ReasonGlobalScheduleHours, d.Reason)
			}
		})
	}
}

func TestDecide_ScheduleForOtherWeekday_Ignored(t *testing.T) {
	day := officeHours(t)
	day.Weekday = time.Tuesday
	day.ForceUnlocked = true

	d := decision.Decide(decision.Input{
		Subject: decision.Subject{ID: phone},
		Now:     monday(12, 0),
		Day:     day,
	})
	if d.Outcome != decision.Denied || d.Reason != decision.ReasonNoValidAccess {
		t.Fatalf("expected denied/no_valid_access, got %s/%s", d.Outcome, d.Reason)
	}
}

func TestDecide_MalformedSchedule_NeverFailsOpen(t *testing.T) {
	for _, tc := range []struct {
		name string
		day  *decision.DaySchedule
	}{
		{"missing entry", nil},
		{"open only", &decision.DaySchedule{Weekday: time.Monday, Open: clock(t, "00:00")}},
		{"close only", &decision.DaySchedule{Weekday: time.Monday, Close: clock(t, "23:59")}},
		{"open after close", &decision.DaySchedule{Weekday: time.Monday, Open: clock(t, "18:00"), Close: clock(t, "08:00")}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d := decision.Decide(decision.Input{
				Subject: decision.Subject{ID: phone},
				Now:     monday(12, 0),
				Day:     tc.day,
			})
			if d.Outcome != decision.Denied {
				t.Fatalf("expected denied, got %s (%s)", d.Outcome, d.Reason)
			}
		})
	}
}

// ── Allowed subjects ─────────────────────────────────────────────────────────

func TestDecide_AllowedSubject_VerificationMapping(t *testing.T) {
	for _, tc := range []struct {
		name    string
		v       decision.Verification
		outcome decision.Outcome
		reason  decision.Reason
	}{
		{"not yet verified", decision.Verification{}, decision.Pending, decision.ReasonVerificationRequired},
		{"otp approved", decision.Verification{Outcome: decision.VerificationApproved}, decision.Approved, decision.ReasonOtpVerified},
		{"otp denied", decision.Verification{Outcome: decision.VerificationDenied}, decision.Denied, decision.ReasonInvalidCode},
		{"provider error", decision.Verification{Outcome: decision.VerificationProviderError}, decision.Denied, decision.ReasonProviderError},
		{"timed out", decision.Verification{Outcome: decision.VerificationTimedOut}, decision.Pending, decision.ReasonVerificationTimeout},
		{"face approved", decision.Verification{Method: decision.MethodFace, Outcome: decision.VerificationApproved}, decision.Approved, decision.ReasonFaceVerified},
		{"face denied", decision.Verification{Method: decision.MethodFace, Outcome: decision.VerificationDenied}, decision.Denied, decision.ReasonFaceRejected},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d := decision.Decide(decision.Input{
				Subject:      decision.Subject{ID: phone, Known: true, Allowed: true},
				Now:          monday(20, 0),
				Day:          officeHours(t),
				Verification: tc.v,
			})
			if d.Outcome != tc.outcome {
				t.Errorf("expected outcome=%s, got %s", tc.outcome, d.Outcome)
			}
			if d.Reason != tc.reason {
				t.Errorf("expected reason=%s, got %s", tc.reason, d.Reason)
			}
		})
	}
}

func TestDecide_UnknownSubject_FallsThroughToDeny(t *testing.T) {
	d := decision.Decide(decision.Input{
		Subject:      decision.Subject{ID: phone, Allowed: true},
		Now:          monday(20, 0),
		Verification: decision.Verification{Outcome: decision.VerificationApproved},
	})
	if d.Outcome != decision.Denied || d.Reason != decision.ReasonNoValidAccess {
		t.Fatalf("expected denied/no_valid_access, got %s/%s", d.Outcome, d.Reason)
	}
}

// ── Grants ───────────────────────────────────────────────────────────────────

func TestDecide_CoveringGrant_RequiresVerification(t *testing.T) {
	now := monday(20, 0)
	grants := []decision.Grant{{
		SubjectID: phone,
		Start:     now.Add(-time.Hour),
		End:       now.Add(time.Hour),
	}}
	subject := decision.Subject{ID: phone, Known: true}

	d := decision.Decide(decision.Input{Subject: subject, Now: now, Grants: grants})
	if d.Outcome != decision.Pending {
		t.Fatalf("expected pending, got %s", d.Outcome)
	}

	d = decision.Decide(decision.Input{
		Subject:      subject,
		Now:          now,
		Grants:       grants,
		Verification: decision.Verification{Outcome: decision.VerificationApproved},
	})
	if d.Outcome != decision.Approved || d.Reason != decision.ReasonUserScheduleHours {
		t.Fatalf("expected approved/user_schedule_hours, got %s/%s", d.Outcome, d.Reason)
	}
}

func TestDecide_GrantBoundsInclusive(t *testing.T) {
	now := monday(20, 0)
	subject := decision.Subject{ID: phone, Known: true}
	v := decision.Verification{Outcome: decision.VerificationApproved}

	for _, g := range []decision.Grant{
		{SubjectID: phone, Start: now, End: now.Add(time.Hour)},
		{SubjectID: phone, Start: now.Add(-time.Hour), End: now},
	} {
		d := decision.Decide(decision.Input{Subject: subject, Now: now, Grants: []decision.Grant{g}, Verification: v})
		if d.Outcome != decision.Approved {
			t.Errorf("grant [%s, %s]: expected approved at %s, got %s", g.Start, g.End, now, d.Outcome)
		}
	}
}

func TestDecide_GrantForOtherSubject_Ignored(t *testing.T) {
	now := monday(20, 0)
	d := decision.Decide(decision.Input{
		Subject: decision.Subject{ID: phone, Known: true},
		Now:     now,
		Grants: []decision.Grant{{
			SubjectID: "+15550000000",
			Start:     now.Add(-time.Hour),
			End:       now.Add(time.Hour),
		}},
		Verification: decision.Verification{Outcome: decision.VerificationApproved},
	})
	if d.Outcome != decision.Denied || d.Reason != decision.ReasonNoValidAccess {
		t.Fatalf("expected denied/no_valid_access, got %s/%s", d.Outcome, d.Reason)
	}
}

func TestGrant_Overlaps_HalfOpen(t *testing.T) {
	base := monday(0, 0)
	a := decision.Grant{Start: base, End: base.Add(2 * time.Hour)}

	if !a.Overlaps(decision.Grant{Start: base.Add(time.Hour), End: base.Add(3 * time.Hour)}) {
		t.Error("expected intersecting grants to overlap")
	}
	if a.Overlaps(decision.Grant{Start: base.Add(2 * time.Hour), End: base.Add(3 * time.Hour)}) {
		t.Error("expected adjacent grants not to overlap")
	}
}

func TestParseClock(t *testing.T) {
	c, err := decision.ParseClock("07:45")
	if err != nil {
		t.Fatalf("ParseClock: %v", err)
	}
	if c.String() != "07:45" {
		t.Errorf("expected 07:45, got %s", c)
	}
	if _, err := decision.ParseClock("25:00"); err == nil {
		t.Error("expected error for 25:00")
	}
}
