package liveness

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound  = errors.New("liveness session not found")
	ErrTooManySessions  = errors.New("too many concurrent liveness sessions")
	ErrInvalidSessionID = errors.New("liveness session id is required")
)

// SessionsConfig holds the parameters for NewSessions.
type SessionsConfig struct {
	Detector Config
	Timeout  time.Duration
	// MaxSessions caps concurrently open sessions. Defaults to 16.
	MaxSessions int
	// Grace is how long an expired session is kept for result pickup before
	// the sweeper discards it. Defaults to one minute.
	Grace time.Duration
}

// Sessions tracks open liveness sessions by id. Each recognition attempt
// creates a session, feeds it, and disposes of it when done.
type Sessions struct {
	cfg    SessionsConfig
	logger *log.Logger
	now    func() time.Time

	mu    sync.Mutex
	items map[string]*Session
}

func NewSessions(cfg SessionsConfig, logger *log.Logger) (*Sessions, error) {
	if err := cfg.Detector.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		return nil, errors.New("liveness session timeout must be positive")
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 16
	}
	if cfg.Grace <= 0 {
		cfg.Grace = time.Minute
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Sessions{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		items:  make(map[string]*Session),
	}, nil
}

// Create opens a new session with a fresh machine.
func (r *Sessions) Create() (*Session, error) {
	m, err := New(r.cfg.Detector, r.logger)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) >= r.cfg.MaxSessions {
		return nil, ErrTooManySessions
	}
	s := newSession(uuid.NewString(), m, r.cfg.Timeout, r.now)
	r.items[s.ID] = s
	return s, nil
}

func (r *Sessions) Get(id string) (*Session, error) {
	if id == "" {
		return nil, ErrInvalidSessionID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Dispose removes the session and returns it so the caller can read its
// final result. A disposed session is never handed out again.
func (r *Sessions) Dispose(id string) (*Session, error) {
	if id == "" {
		return nil, ErrInvalidSessionID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	delete(r.items, id)
	return s, nil
}

func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Sweep discards sessions whose deadline plus grace has passed.
func (r *Sessions) Sweep() int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.items {
		if now.After(s.deadline.Add(r.cfg.Grace)) {
			delete(r.items, id)
			n++
		}
	}
	return n
}

// RunSweeper sweeps on interval until ctx is cancelled.
func (r *Sessions) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Printf("liveness: swept %d abandoned sessions", n)
			}
		}
	}
}
