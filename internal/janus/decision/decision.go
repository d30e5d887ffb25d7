// Package decision arbitrates the schedule, subject permissions and an
// optional verification outcome into a single access decision.
//
// Decide is a pure function: it reads its arguments and returns a value.
// Unlocking hardware and writing the audit record belong to the caller.
package decision

import (
	"time"
)

// Outcome is the result of an access decision.
type Outcome string

const (
	Approved Outcome = "approved"
	Denied   Outcome = "denied"
	Pending  Outcome = "pending"
)

// Reason explains an outcome for the audit log.
type Reason string

const (
	ReasonGlobalForceUnlock    Reason = "global_force_unlock"
	ReasonGlobalScheduleHours  Reason = "global_schedule_hours"
	ReasonOtpVerified          Reason = "otp_verified"
	ReasonFaceVerified         Reason = "face_verified"
	ReasonUserScheduleHours    Reason = "user_schedule_hours"
	ReasonInvalidCode          Reason = "invalid_code"
	ReasonFaceRejected         Reason = "face_rejected"
	ReasonVerificationRequired Reason = "verification_required"
	ReasonVerificationTimeout  Reason = "verification_timeout"
	ReasonProviderError        Reason = "provider_error"
	ReasonNoValidAccess        Reason = "no_valid_access"
)

// Method is how the subject presented themselves at the door.
type Method string

const (
	MethodSchedule Method = "schedule"
	MethodOTP      Method = "otp"
	MethodFace     Method = "face"
)

// VerificationOutcome is the result of the verification step, if any.
// The zero value means no verification has been supplied yet.
type VerificationOutcome int

const (
	VerificationNone VerificationOutcome = iota
	VerificationApproved
	VerificationDenied
	VerificationProviderError
	VerificationTimedOut
)

func (v VerificationOutcome) String() string {
	switch v {
	case VerificationNone:
		return "none"
	case VerificationApproved:
		return "approved"
	case VerificationDenied:
		return "denied"
	case VerificationProviderError:
		return "provider_error"
	case VerificationTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Verification carries the verification outcome and the method that
// produced it. Method defaults to MethodOTP.
type Verification struct {
	Method  Method
	Outcome VerificationOutcome
}

// Subject is the decision-relevant view of a subject record. Unknown
// subjects are represented with Known=false and Allowed=false.
type Subject struct {
	ID      string
	Known   bool
	Allowed bool
}

// Input is everything Decide looks at.
type Input struct {
	Subject      Subject
	Now          time.Time
	Day          *DaySchedule
	Grants       []Grant
	Verification Verification
}

// Decision is an immutable access decision.
type Decision struct {
	Outcome   Outcome
	Reason    Reason
	Subject   string
	Method    Method
	Timestamp time.Time
}

// Granted reports whether the door should open.
func (d Decision) Granted() bool { return d.Outcome == Approved }

// Decide applies the access rules in fixed precedence order:
//
//  1. force-unlocked weekday
//  2. global open hours (inclusive)
//  3. subject allowed, with verification
//  4. covering per-subject grant, with verification
//  5. deny
//
// Every path that is not an explicit approval ends in Denied or Pending.
func Decide(in Input) Decision {
	d := Decision{
		Subject:   in.Subject.ID,
		Method:    MethodSchedule,
		Timestamp: in.Now,
	}

	day := in.Day
	if day != nil && day.Weekday != in.Now.Weekday() {
		day = nil
	}

	if day != nil && day.ForceUnlocked {
		d.Outcome, d.Reason = Approved, ReasonGlobalForceUnlock
		return d
	}

	if open, closeAt, ok := day.window(); ok {
		now := ClockOf(in.Now)
		if open <= now && now <= closeAt {
			d.Outcome, d.Reason = Approved, ReasonGlobalScheduleHours
			return d
		}
	}

	subject := in.Subject
	if !subject.Known {
		subject.Allowed = false
	}

	if subject.Allowed {
		return verified(d, in.Verification, approvalReason(in.Verification.Method))
	}

	if subject.Known {
		if _, ok := CoveringGrant(in.Grants, subject.ID, in.Now); ok {
			return verified(d, in.Verification, ReasonUserScheduleHours)
		}
	}

	d.Outcome, d.Reason = Denied, ReasonNoValidAccess
	return d
}

// verified maps a verification outcome onto a decision once a rule has
// established that the subject may enter after verifying.
func verified(d Decision, v Verification, approved Reason) Decision {
	d.Method = v.Method
	if d.Method == "" {
		d.Method = MethodOTP
	}

	switch v.Outcome {
	case VerificationApproved:
		d.Outcome, d.Reason = Approved, approved
	case VerificationDenied:
		d.Outcome = Denied
		if d.Method == MethodFace {
			d.Reason = ReasonFaceRejected
		} else {
			d.Reason = ReasonInvalidCode
		}
	case VerificationProviderError:
		d.Outcome, d.Reason = Denied, ReasonProviderError
	case VerificationTimedOut:
		d.Outcome, d.Reason = Pending, ReasonVerificationTimeout
	case VerificationNone:
		d.Outcome, d.Reason = Pending, ReasonVerificationRequired
	default:
		d.Outcome, d.Reason = Denied, ReasonProviderError
	}
	return d
}

func approvalReason(m Method) Reason {
	if m == MethodFace {
		return ReasonFaceVerified
	}
	return ReasonOtpVerified
}
