package service

import (
	"context"
	"errors"

	"github.com/BrandonDHaskell/janus/internal/janus/biometric"
	"github.com/BrandonDHaskell/janus/internal/janus/correlate"
	"github.com/BrandonDHaskell/janus/internal/janus/decision"
	"github.com/BrandonDHaskell/janus/internal/janus/store"
	"github.com/BrandonDHaskell/janus/internal/janus/types"
)

// verifyCode submits code over the bus and maps the answer onto the
// engine's verification outcome.
func (s *AccessService) verifyCode(ctx context.Context, subjectID, code string) decision.VerificationOutcome {
	if s.deps.Verifier == nil {
		return decision.VerificationProviderError
	}
	resp, err := s.deps.Verifier.Request(ctx, subjectID, code, s.cfg.VerifyTimeout)
	switch {
	case errors.Is(err, correlate.ErrTimedOut):
		s.deps.Logger.Printf("verify %s: no response within %s", subjectID, s.cfg.VerifyTimeout)
		return decision.VerificationTimedOut
	case errors.Is(err, correlate.ErrInFlight):
		s.deps.Logger.Printf("verify %s: another verification is in flight", subjectID)
		return decision.VerificationNone
	case err != nil:
		s.deps.Logger.Printf("verify %s: %v", subjectID, err)
		return decision.VerificationProviderError
	}

	switch resp.Status {
	case correlate.StatusApproved:
		return decision.VerificationApproved
	case correlate.StatusDenied:
		return decision.VerificationDenied
	default:
		s.deps.Logger.Printf("verify %s: provider error: %s", subjectID, resp.Message)
		return decision.VerificationProviderError
	}
}

// verifyFace requires a confirmed liveness session and a face encoding
// within threshold of the enrolled template.
func (s *AccessService) verifyFace(ctx context.Context, rec store.SubjectRecord, req types.AccessRequest) decision.VerificationOutcome {
	subjectID := rec.SubjectID

	if s.deps.Liveness == nil {
		return decision.VerificationProviderError
	}
	sess, err := s.deps.Liveness.Dispose(req.LivenessSessionID)
	if err != nil {
		s.deps.Logger.Printf("face %s: liveness session %q: %v", subjectID, req.LivenessSessionID, err)
		return decision.VerificationDenied
	}
	if res := sess.Result(); !res.Confirmed {
		s.deps.Logger.Printf("face %s: liveness not confirmed (blinks=%d natural=%v texture=%v timed_out=%v)",
			subjectID, res.BlinkCount, res.NaturalPattern, res.TexturePassed, res.TimedOut)
		return decision.VerificationDenied
	}

	if len(rec.Template) == 0 {
		s.deps.Logger.Printf("face %s: no enrolled template", subjectID)
		return decision.VerificationDenied
	}
	enrolled, err := biometric.Decode(rec.Template)
	if err != nil {
		s.deps.Logger.Printf("face %s: stored template unreadable: %v", subjectID, err)
		return decision.VerificationProviderError
	}
	ok, dist, err := biometric.Match(enrolled, biometric.Template(req.FaceEncoding), s.cfg.FaceThreshold)
	if err != nil {
		s.deps.Logger.Printf("face %s: %v", subjectID, err)
		return decision.VerificationDenied
	}
	if !ok {
		s.deps.Logger.Printf("face %s: distance %.3f above threshold", subjectID, dist)
		return decision.VerificationDenied
	}
	return decision.VerificationApproved
}
