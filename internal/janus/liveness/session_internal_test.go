package liveness

import (
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestSessions(t *testing.T, clk *fakeClock) *Sessions {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Adaptive = false
	r, err := NewSessions(SessionsConfig{Detector: cfg, Timeout: 10 * time.Second, MaxSessions: 2, Grace: time.Second}, nil)
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}
	r.now = clk.Now
	return r
}

func blinkAt(s *Session, start time.Time) {
	for i, v := range []float64{0.30, 0.10, 0.10, 0.30, 0.30} {
		s.Update(v, start.Add(time.Duration(i)*100*time.Millisecond))
	}
}

func TestSession_TimeoutWithOneBlink_Rejected(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 2, 16, 9, 0, 0, 0, time.UTC)}
	r := newTestSessions(t, clk)

	s, err := r.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	blinkAt(s, clk.now)
	s.ObserveTexture(8.0, nil)

	if res := s.Result(); !res.Confirmed {
		t.Fatalf("expected texture to confirm before timeout, got %+v", res)
	}

	clk.Advance(11 * time.Second)

	res := s.Result()
	if !res.TimedOut {
		t.Error("expected timed out")
	}
	if res.Confirmed {
		t.Error("expected timeout with one blink to be rejected")
	}
	if res.BlinkCount != 1 {
		t.Errorf("expected 1 blink, got %d", res.BlinkCount)
	}
}

func TestSession_TimeoutAfterNaturalBlinks_StillConfirmed(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 2, 16, 9, 0, 0, 0, time.UTC)}
	r := newTestSessions(t, clk)

	s, _ := r.Create()
	blinkAt(s, clk.now)
	blinkAt(s, clk.now.Add(2500*time.Millisecond))
	clk.Advance(11 * time.Second)

	res := s.Result()
	if !res.TimedOut || !res.Confirmed {
		t.Fatalf("expected confirmed natural session at timeout, got %+v", res)
	}
}

func TestSession_SamplesAfterDeadline_Held(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 2, 16, 9, 0, 0, 0, time.UTC)}
	r := newTestSessions(t, clk)

	s, _ := r.Create()
	clk.Advance(10 * time.Second)

	if tr := s.Update(0.10, clk.now); !tr.Held {
		t.Error("expected sample after deadline to be held")
	}
}

func TestSessions_LifecycleAndSweep(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 2, 16, 9, 0, 0, 0, time.UTC)}
	r := newTestSessions(t, clk)

	a, _ := r.Create()
	b, _ := r.Create()
	if a.ID == b.ID {
		t.Fatal("expected distinct session ids")
	}
	if _, err := r.Create(); err != ErrTooManySessions {
		t.Fatalf("expected ErrTooManySessions, got %v", err)
	}

	if _, err := r.Dispose(a.ID); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if _, err := r.Get(a.ID); err != ErrSessionNotFound {
		t.Errorf("expected disposed session to be gone, got %v", err)
	}

	clk.Advance(12 * time.Second)
	if n := r.Sweep(); n != 1 {
		t.Errorf("expected 1 swept session, got %d", n)
	}
	if r.Len() != 0 {
		t.Errorf("expected no sessions left, got %d", r.Len())
	}
}

func TestSessions_FreshMachinePerSession(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 2, 16, 9, 0, 0, 0, time.UTC)}
	r := newTestSessions(t, clk)

	a, _ := r.Create()
	blinkAt(a, clk.now)
	_, _ = r.Dispose(a.ID)

	b, _ := r.Create()
	if res := b.Result(); res.BlinkCount != 0 {
		t.Fatalf("expected new session to start with no blinks, got %d", res.BlinkCount)
	}
}
