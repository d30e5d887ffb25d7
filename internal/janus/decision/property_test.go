package decision_test

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/BrandonDHaskell/janus/internal/janus/decision"
)

// minuteOfWeek is generated instead of time.Time so shrinking stays readable.
func atMinuteOfWeek(m int) time.Time {
	// 2026-02-15 is a Sunday.
	return time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC).Add(time.Duration(m) * time.Minute)
}

func TestDecideProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	minute := gen.IntRange(0, 7*24*60-1)
	outcome := gen.IntRange(int(decision.VerificationNone), int(decision.VerificationTimedOut))

	properties.Property("force unlock dominates allowed flag, grants and verification", prop.ForAll(
		func(m int, allowed bool, hasGrant bool, v int) bool {
			now := atMinuteOfWeek(m)
			in := decision.Input{
				Subject:      decision.Subject{ID: phone, Known: true, Allowed: allowed},
				Now:          now,
				Day:          &decision.DaySchedule{Weekday: now.Weekday(), ForceUnlocked: true},
				Verification: decision.Verification{Outcome: decision.VerificationOutcome(v)},
			}
			if hasGrant {
				in.Grants = []decision.Grant{{SubjectID: phone, Start: now.Add(-time.Hour), End: now.Add(time.Hour)}}
			}
			return decision.Decide(in).Outcome == decision.Approved
		},
		minute, gen.Bool(), gen.Bool(), outcome,
	))

	properties.Property("outside open hours, not allowed and no grant is denied", prop.ForAll(
		func(m int, v int) bool {
			now := atMinuteOfWeek(m)
			open, closeAt := decision.Clock(9*60), decision.Clock(17*60)
			c := decision.ClockOf(now)
			if c >= open && c <= closeAt {
				return true
			}
			d := decision.Decide(decision.Input{
				Subject:      decision.Subject{ID: phone, Known: true},
				Now:          now,
				Day:          &decision.DaySchedule{Weekday: now.Weekday(), Open: &open, Close: &closeAt},
				Verification: decision.Verification{Outcome: decision.VerificationOutcome(v)},
			})
			return d.Outcome == decision.Denied && d.Reason == decision.ReasonNoValidAccess
		},
		minute, outcome,
	))

	properties.Property("decide is deterministic", prop.ForAll(
		func(m int, allowed bool, v int, grantOffset int) bool {
			now := atMinuteOfWeek(m)
			open, closeAt := decision.Clock(8*60), decision.Clock(12*60)
			in := decision.Input{
				Subject: decision.Subject{ID: phone, Known: true, Allowed: allowed},
				Now:     now,
				Day:     &decision.DaySchedule{Weekday: now.Weekday(), Open: &open, Close: &closeAt},
				Grants: []decision.Grant{{
					SubjectID: phone,
					Start:     now.Add(time.Duration(grantOffset) * time.Minute),
					End:       now.Add(time.Duration(grantOffset+90) * time.Minute),
				}},
				Verification: decision.Verification{Outcome: decision.VerificationOutcome(v)},
			}
			return decision.Decide(in) == decision.Decide(in)
		},
		minute, gen.Bool(), outcome, gen.IntRange(-180, 180),
	))

	properties.Property("only approved verification or a global rule approves", prop.ForAll(
		func(m int, allowed bool, v int) bool {
			now := atMinuteOfWeek(m)
			d := decision.Decide(decision.Input{
				Subject:      decision.Subject{ID: phone, Known: true, Allowed: allowed},
				Now:          now,
				Verification: decision.Verification{Outcome: decision.VerificationOutcome(v)},
			})
			if d.Outcome != decision.Approved {
				return true
			}
			return decision.VerificationOutcome(v) == decision.VerificationApproved
		},
		minute, gen.Bool(), outcome,
	))

	properties.TestingRun(t)
}
