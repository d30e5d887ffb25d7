package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/BrandonDHaskell/janus/internal/janus/biometric"
	"github.com/BrandonDHaskell/janus/internal/janus/correlate"
	"github.com/BrandonDHaskell/janus/internal/janus/liveness"
	"github.com/BrandonDHaskell/janus/internal/janus/service"
	"github.com/BrandonDHaskell/janus/internal/janus/store"
	"github.com/BrandonDHaskell/janus/internal/janus/types"
)

type Dependencies struct {
	Logger        *log.Logger
	Addr          string
	AccessService *service.AccessService
	AdminService  *service.AdminService
	Liveness      *liveness.Sessions
	// Location is reported with the schedule.
	Location *time.Location
	// AdminToken guards the admin routes. Empty disables them.
	AdminToken string
}

type Server struct {
	httpServer    *http.Server
	logger        *log.Logger
	mux           *http.ServeMux
	accessService *service.AccessService
	adminService  *service.AdminService
	liveness      *liveness.Sessions
	location      *time.Location
	now           func() time.Time
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:        d.Logger,
		mux:           mux,
		accessService: d.AccessService,
		adminService:  d.AdminService,
		liveness:      d.Liveness,
		location:      d.Location,
		now:           time.Now,
	}
	if s.location == nil {
		s.location = time.Local
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /v1/access", s.handleAccess)

	mux.HandleFunc("POST /v1/liveness/sessions", s.handleLivenessCreate)
	mux.HandleFunc("POST /v1/liveness/sessions/{id}/samples", s.handleLivenessSamples)
	mux.HandleFunc("POST /v1/liveness/sessions/{id}/texture", s.handleLivenessTexture)
	mux.HandleFunc("GET /v1/liveness/sessions/{id}/result", s.handleLivenessResult)
	mux.HandleFunc("DELETE /v1/liveness/sessions/{id}", s.handleLivenessDispose)

	admin := func(h http.HandlerFunc) http.HandlerFunc { return requireAdmin(d.AdminToken, h) }
	mux.HandleFunc("GET /v1/schedule", admin(s.handleGetSchedule))
	mux.HandleFunc("PUT /v1/schedule", admin(s.handlePutSchedule))
	mux.HandleFunc("GET /v1/subjects", admin(s.handleListSubjects))
	mux.HandleFunc("POST /v1/subjects/{id}/approve", admin(s.handleApprove))
	mux.HandleFunc("PUT /v1/subjects/{id}/template", admin(s.handleEnrollFace))
	mux.HandleFunc("GET /v1/subjects/{id}/grants", admin(s.handleListGrants))
	mux.HandleFunc("POST /v1/grants", admin(s.handleAddGrant))
	mux.HandleFunc("GET /v1/events", admin(s.handleEvents))
	mux.HandleFunc("POST /v1/doors/{id}/unlock", admin(s.handleDoorCommand(correlate.CommandUnlock)))
	mux.HandleFunc("POST /v1/doors/{id}/lock", admin(s.handleDoorCommand(correlate.CommandLock)))

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Printf("%s error: %v", op, err)
	writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, types.OKResponse{OK: true})
}

// ── Access ───────────────────────────────────────────────────────────────────

func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request) {
	var req types.AccessRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_body", "invalid request body")
		return
	}

	resp, err := s.accessService.Decide(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDoorID):
			writeError(w, http.StatusBadRequest, "invalid_door_id", err.Error())
		case errors.Is(err, service.ErrInvalidSubject):
			writeError(w, http.StatusBadRequest, "invalid_subject", err.Error())
		case errors.Is(err, service.ErrInvalidMethod):
			writeError(w, http.StatusBadRequest, "invalid_method", err.Error())
		default:
			s.internalError(w, "access", err)
		}
		return
	}

	if !resp.Known {
		// Unknown doors are blocked from the access flow.
		reply(w, r, http.StatusForbidden, resp)
		return
	}
	reply(w, r, http.StatusOK, resp)
}

// ── Liveness ─────────────────────────────────────────────────────────────────

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*liveness.Session, bool) {
	sess, err := s.liveness.Get(r.PathValue("id"))
	if err != nil {
		s.livenessError(w, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) livenessError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, liveness.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, liveness.ErrInvalidSessionID):
		writeError(w, http.StatusBadRequest, "invalid_session_id", err.Error())
	case errors.Is(err, liveness.ErrTooManySessions):
		writeError(w, http.StatusTooManyRequests, "too_many_sessions", err.Error())
	default:
		s.internalError(w, "liveness", err)
	}
}

func (s *Server) handleLivenessCreate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.liveness.Create()
	if err != nil {
		s.livenessError(w, err)
		return
	}
	reply(w, r, http.StatusCreated, sessionToType(sess))
}

func (s *Server) handleLivenessSamples(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req types.EARSamplesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_body", "invalid request body")
		return
	}
	if len(req.Samples) == 0 {
		writeError(w, http.StatusBadRequest, "no_samples", "at least one sample is required")
		return
	}

	received := s.now()
	var resp types.EARSamplesResponse
	for _, sample := range req.Samples {
		at, err := sampleTime(sample, received)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_sample_time", err.Error())
			return
		}
		tr := sess.Update(sample.Value, at)
		resp.State = tr.State.String()
		resp.BlinkCount = tr.BlinkCount
		if tr.Held {
			resp.Held++
		}
	}
	reply(w, r, http.StatusOK, resp)
}

func (s *Server) handleLivenessTexture(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req types.TextureRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_body", "invalid request body")
		return
	}
	var analysisErr error
	if req.Error != "" {
		analysisErr = errors.New(req.Error)
	}
	sess.ObserveTexture(req.Score, analysisErr)
	reply(w, r, http.StatusOK, resultToType(sess.ID, sess.Result()))
}

func (s *Server) handleLivenessResult(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	reply(w, r, http.StatusOK, resultToType(sess.ID, sess.Result()))
}

func (s *Server) handleLivenessDispose(w http.ResponseWriter, r *http.Request) {
	if _, err := s.liveness.Dispose(r.PathValue("id")); err != nil {
		s.livenessError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Admin ────────────────────────────────────────────────────────────────────

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	days, err := s.adminService.Schedule(r.Context())
	if err != nil {
		s.internalError(w, "schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, types.ScheduleResponse{
		TimeZone: s.location.String(),
		Days:     scheduleToTypes(days),
	})
}

func (s *Server) handlePutSchedule(w http.ResponseWriter, r *http.Request) {
	var req types.ScheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	days, err := scheduleFromTypes(req.Days)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_schedule", err.Error())
		return
	}
	if err := s.adminService.PutSchedule(r.Context(), days); err != nil {
		if errors.Is(err, service.ErrInvalidSchedule) {
			writeError(w, http.StatusBadRequest, "invalid_schedule", err.Error())
			return
		}
		s.internalError(w, "put schedule", err)
		return
	}
	s.handleGetSchedule(w, r)
}

func (s *Server) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	recs, err := s.adminService.Subjects(r.Context())
	if err != nil {
		s.internalError(w, "subjects", err)
		return
	}
	out := types.SubjectsResponse{Subjects: make([]types.SubjectResponse, 0, len(recs))}
	for _, rec := range recs {
		out.Subjects = append(out.Subjects, subjectToType(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

// subjectError maps errors shared by the per-subject admin routes.
func (s *Server) subjectError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidSubject):
		writeError(w, http.StatusBadRequest, "invalid_subject", err.Error())
	case errors.Is(err, store.ErrSubjectNotFound):
		writeError(w, http.StatusNotFound, "subject_not_found", err.Error())
	default:
		s.internalError(w, op, err)
	}
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req types.ApproveRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
			return
		}
	}
	allowed := true
	if req.Allowed != nil {
		allowed = *req.Allowed
	}
	if err := s.adminService.Approve(r.Context(), r.PathValue("id"), allowed); err != nil {
		s.subjectError(w, "approve", err)
		return
	}
	writeJSON(w, http.StatusOK, types.OKResponse{OK: true})
}

func (s *Server) handleEnrollFace(w http.ResponseWriter, r *http.Request) {
	var req types.TemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	err := s.adminService.EnrollFace(r.Context(), r.PathValue("id"), biometric.Template(req.Encoding))
	if err != nil {
		if errors.Is(err, biometric.ErrInvalidTemplate) {
			writeError(w, http.StatusBadRequest, "invalid_template", err.Error())
			return
		}
		s.subjectError(w, "enroll face", err)
		return
	}
	writeJSON(w, http.StatusOK, types.OKResponse{OK: true})
}

func (s *Server) handleListGrants(w http.ResponseWriter, r *http.Request) {
	gs, err := s.adminService.Grants(r.Context(), r.PathValue("id"))
	if err != nil {
		s.internalError(w, "grants", err)
		return
	}
	out := types.GrantsResponse{Grants: make([]types.GrantResponse, 0, len(gs))}
	for _, g := range gs {
		out.Grants = append(out.Grants, grantToType(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddGrant(w http.ResponseWriter, r *http.Request) {
	var req types.GrantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	g, err := grantFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_grant", err.Error())
		return
	}
	g, err = s.adminService.AddGrant(r.Context(), g)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrGrantOverlap):
			writeError(w, http.StatusConflict, "grant_overlap", err.Error())
		case errors.Is(err, store.ErrInvalidGrant):
			writeError(w, http.StatusBadRequest, "invalid_grant", err.Error())
		default:
			s.subjectError(w, "add grant", err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, grantToType(g))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	evs, err := s.adminService.Events(r.Context(), limit)
	if err != nil {
		s.internalError(w, "events", err)
		return
	}
	out := types.EventsResponse{Events: make([]types.AccessEvent, 0, len(evs))}
	for _, e := range evs {
		out.Events = append(out.Events, eventToType(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// ── Door commands ────────────────────────────────────────────────────────────

func (s *Server) handleDoorCommand(kind correlate.DoorCommandKind) http.HandlerFunc {
	send := s.adminService.UnlockDoor
	if kind == correlate.CommandLock {
		send = s.adminService.LockDoor
	}
	return func(w http.ResponseWriter, r *http.Request) {
		err := send(r.Context(), r.PathValue("id"))
		switch {
		case err == nil:
			writeJSON(w, http.StatusAccepted, types.OKResponse{OK: true})
		case errors.Is(err, service.ErrInvalidDoor):
			writeError(w, http.StatusBadRequest, "invalid_door", err.Error())
		case errors.Is(err, service.ErrNoBus):
			writeError(w, http.StatusServiceUnavailable, "no_door_bus", err.Error())
		default:
			s.internalError(w, string(kind), err)
		}
	}
}
