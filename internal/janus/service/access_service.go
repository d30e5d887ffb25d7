package service

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"github.com/BrandonDHaskell/janus/internal/janus/correlate"
	"github.com/BrandonDHaskell/janus/internal/janus/decision"
	"github.com/BrandonDHaskell/janus/internal/janus/liveness"
	"github.com/BrandonDHaskell/janus/internal/janus/store"
	"github.com/BrandonDHaskell/janus/internal/janus/types"
)

var (
	ErrInvalidDoorID  = errors.New("door_id is required")
	ErrInvalidSubject = errors.New("subject must be a phone number without spaces or separators")
	ErrInvalidMethod  = errors.New("method must be \"otp\" or \"face\"")
)

// ReasonUnknownDoor is recorded when a door that is not registered asks
// for a decision. The engine is not consulted.
const ReasonUnknownDoor decision.Reason = "unknown_door"

// Verifier resolves a submitted code over the bus.
type Verifier interface {
	Request(ctx context.Context, subject, code string, timeout time.Duration) (correlate.VerifyResponse, error)
}

// Challenger asks the provider to send a code to the subject.
type Challenger interface {
	Send(ctx context.Context, subject string) (string, error)
}

// LivenessSessions hands over a finished liveness session.
type LivenessSessions interface {
	Dispose(id string) (*liveness.Session, error)
}

// Auditor receives every decision.
type Auditor interface {
	Record(rec store.AccessEventRecord)
}

type AccessConfig struct {
	// Location is the site time zone the schedule is written in.
	Location      *time.Location
	VerifyTimeout time.Duration
	FaceThreshold float64
	// Now defaults to time.Now.
	Now func() time.Time
}

type AccessDeps struct {
	Doors      *DoorRegistry
	Subjects   store.SubjectStore
	Grants     store.GrantStore
	Schedule   store.ScheduleStore
	Verifier   Verifier
	Challenger Challenger
	Liveness   LivenessSessions
	Audit      Auditor
	Logger     *log.Logger
}

// AccessService gathers everything the decision engine needs, runs the
// verification step when the engine asks for one, and records the result.
type AccessService struct {
	cfg  AccessConfig
	deps AccessDeps
	now  func() time.Time
}

func NewAccessService(cfg AccessConfig, deps AccessDeps) *AccessService {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.VerifyTimeout <= 0 {
		cfg.VerifyTimeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard, "", 0)
	}
	return &AccessService{cfg: cfg, deps: deps, now: cfg.Now}
}

func parseMethod(s string) (decision.Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(decision.MethodOTP):
		return decision.MethodOTP, nil
	case string(decision.MethodFace):
		return decision.MethodFace, nil
	default:
		return "", ErrInvalidMethod
	}
}

func (s *AccessService) Decide(ctx context.Context, req types.AccessRequest) (types.AccessResponse, error) {
	received := s.now().UTC()

	doorID := strings.TrimSpace(req.DoorID)
	subjectID := strings.TrimSpace(req.Subject)
	if doorID == "" {
		return types.AccessResponse{}, ErrInvalidDoorID
	}
	if !correlate.ValidSubject(subjectID) {
		return types.AccessResponse{}, ErrInvalidSubject
	}
	method, err := parseMethod(req.Method)
	if err != nil {
		return types.AccessResponse{}, err
	}

	known, err := s.deps.Doors.IsKnown(ctx, doorID)
	if err != nil {
		return types.AccessResponse{}, err
	}
	if err := s.deps.Doors.NoteSeen(ctx, doorID); err != nil {
		s.deps.Logger.Printf("door %s: note seen: %v", doorID, err)
	}

	if !known {
		d := decision.Decision{
			Outcome:   decision.Denied,
			Reason:    ReasonUnknownDoor,
			Subject:   subjectID,
			Method:    method,
			Timestamp: received,
		}
		s.record(doorID, d, received)
		return s.respond(doorID, false, d, false), nil
	}

	rec, subjectKnown, err := s.loadSubject(ctx, subjectID, received)
	if err != nil {
		return types.AccessResponse{}, err
	}

	local := received.In(s.cfg.Location)
	in := decision.Input{
		Subject: decision.Subject{
			ID:      subjectID,
			Known:   subjectKnown,
			Allowed: subjectKnown && rec.Allowed,
		},
		Now:          local,
		Day:          s.daySchedule(ctx, local.Weekday()),
		Verification: decision.Verification{Method: method},
	}
	if subjectKnown {
		in.Grants = s.grants(ctx, subjectID)
	}

	d := decision.Decide(in)
	challengeSent := false

	if d.Outcome == decision.Pending && d.Reason == decision.ReasonVerificationRequired {
		switch {
		case method == decision.MethodFace:
			in.Verification.Outcome = s.verifyFace(ctx, rec, req)
			d = decision.Decide(in)
		case strings.TrimSpace(req.Code) != "":
			in.Verification.Outcome = s.verifyCode(ctx, subjectID, strings.TrimSpace(req.Code))
			d = decision.Decide(in)
		default:
			challengeSent = s.sendChallenge(ctx, subjectID)
		}
	}

	s.record(doorID, d, received)
	return s.respond(doorID, true, d, challengeSent), nil
}

// loadSubject returns the subject record and whether it existed before
// this request. First contact registers a pending subject.
func (s *AccessService) loadSubject(ctx context.Context, subjectID string, now time.Time) (store.SubjectRecord, bool, error) {
	rec, ok, err := s.deps.Subjects.GetSubject(ctx, subjectID)
	if err != nil {
		return store.SubjectRecord{}, false, err
	}
	if ok {
		return rec, true, nil
	}
	rec, err = s.deps.Subjects.EnsureSubject(ctx, subjectID, now)
	if err != nil {
		s.deps.Logger.Printf("subject %s: register pending: %v", subjectID, err)
		return store.SubjectRecord{SubjectID: subjectID}, false, nil
	}
	s.deps.Logger.Printf("subject %s: registered, awaiting approval", subjectID)
	return rec, false, nil
}

// daySchedule loads today's global schedule. Read failures and malformed
// entries mean no global access for the day.
func (s *AccessService) daySchedule(ctx context.Context, wd time.Weekday) *decision.DaySchedule {
	day, err := s.deps.Schedule.DaySchedule(ctx, wd)
	if err != nil {
		s.deps.Logger.Printf("schedule %s: %v (treating as closed)", wd, err)
		return nil
	}
	if day.Malformed() {
		s.deps.Logger.Printf("schedule %s: malformed entry ignored", wd)
	}
	return day
}

func (s *AccessService) grants(ctx context.Context, subjectID string) []decision.Grant {
	gs, err := s.deps.Grants.GrantsForSubject(ctx, subjectID)
	if err != nil {
		s.deps.Logger.Printf("grants %s: %v (treating as none)", subjectID, err)
		return nil
	}
	return gs
}

func (s *AccessService) sendChallenge(ctx context.Context, subjectID string) bool {
	if s.deps.Challenger == nil {
		return false
	}
	id, err := s.deps.Challenger.Send(ctx, subjectID)
	if err != nil {
		s.deps.Logger.Printf("challenge %s: %v", subjectID, err)
		return false
	}
	s.deps.Logger.Printf("challenge %s: sent (%s)", subjectID, id)
	return true
}

func (s *AccessService) record(doorID string, d decision.Decision, received time.Time) {
	if s.deps.Audit == nil {
		return
	}
	s.deps.Audit.Record(store.AccessEventRecord{
		DoorID:     doorID,
		SubjectID:  d.Subject,
		Method:     d.Method,
		Outcome:    d.Outcome,
		Reason:     d.Reason,
		ReceivedAt: received,
		DecidedAt:  s.now().UTC(),
	})
}

func (s *AccessService) respond(doorID string, known bool, d decision.Decision, challengeSent bool) types.AccessResponse {
	return types.AccessResponse{
		OK:            known,
		Known:         known,
		Granted:       d.Granted(),
		Outcome:       string(d.Outcome),
		Reason:        string(d.Reason),
		Method:        string(d.Method),
		DoorID:        doorID,
		Subject:       d.Subject,
		ChallengeSent: challengeSent,
		ServerTime:    s.now().UTC().Format(time.RFC3339Nano),
	}
}
