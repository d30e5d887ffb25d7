package liveness

import (
	"context"
	"sync"
	"time"
)

// Session is one liveness attempt: a fresh Machine bounded by a wall-clock
// deadline. Sessions are never reused across attempts.
type Session struct {
	ID string

	mu       sync.Mutex
	m        *Machine
	minBlink int
	started  time.Time
	deadline time.Time
	now      func() time.Time
}

func newSession(id string, m *Machine, timeout time.Duration, now func() time.Time) *Session {
	started := now()
	return &Session{
		ID:       id,
		m:        m,
		minBlink: m.cfg.MinBlinks,
		started:  started,
		deadline: started.Add(timeout),
		now:      now,
	}
}

// NewSession starts a session on m, which must be freshly created or reset.
func NewSession(id string, m *Machine, timeout time.Duration) *Session {
	return newSession(id, m, timeout, time.Now)
}

func (s *Session) Started() time.Time  { return s.started }
func (s *Session) Deadline() time.Time { return s.deadline }

// Expired reports whether the session deadline has passed.
func (s *Session) Expired() bool {
	return !s.now().Before(s.deadline)
}

// Update feeds a sample. Samples arriving after the deadline are held.
func (s *Session) Update(value float64, at time.Time) Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Expired() {
		return Transition{State: s.m.State(), BlinkCount: s.m.BlinkCount(), Held: true}
	}
	return s.m.Update(value, at)
}

// ObserveTexture records an external texture verdict.
func (s *Session) ObserveTexture(score float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Expired() {
		return
	}
	s.m.ObserveTexture(score, err)
}

// Result returns the current verdict. Once the deadline passes with fewer
// than the minimum number of blinks the session is rejected outright.
func (s *Session) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.m.Result()
	if s.Expired() {
		r.TimedOut = true
		if r.BlinkCount < s.minBlink {
			r.Confirmed = false
		}
	}
	return r
}

// Run drains samples published by a capture task into s until the channel
// closes, ctx ends, the deadline passes or a natural blink pattern is
// confirmed. The capture task owns the camera; Run only sees samples.
func Run(ctx context.Context, samples <-chan Sample, s *Session) Result {
	timer := time.NewTimer(time.Until(s.deadline))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.Result()
		case <-timer.C:
			return s.Result()
		case sample, ok := <-samples:
			if !ok {
				return s.Result()
			}
			s.Update(sample.Value, sample.At)
			if r := s.Result(); r.NaturalPattern {
				return r
			}
		}
	}
}
