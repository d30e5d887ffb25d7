package verify

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Challenger sends codes through a Provider, throttled per subject so a
// door cannot be used to flood a phone with messages.
type Challenger struct {
	provider Provider
	logger   *log.Logger
	limit    rate.Limit
	burst    int
	now      func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewChallenger allows perMinute sends per subject. perMinute <= 0
// disables the throttle.
func NewChallenger(p Provider, perMinute int, logger *log.Logger) *Challenger {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	c := &Challenger{
		provider: p,
		logger:   logger,
		limit:    rate.Inf,
		burst:    1,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
	if perMinute > 0 {
		c.limit = rate.Every(time.Minute / time.Duration(perMinute))
		c.burst = perMinute
	}
	return c
}

func (c *Challenger) allow(subject string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	v, ok := c.visitors[subject]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.visitors[subject] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Send asks the provider to deliver a code to subject over SMS.
func (c *Challenger) Send(ctx context.Context, subject string) (string, error) {
	if !c.allow(subject) {
		c.logger.Printf("challenge: rate limited %s", subject)
		return "", ErrRateLimited
	}
	id, err := c.provider.Send(ctx, subject, ChannelSMS)
	if err != nil {
		return "", fmt.Errorf("send challenge: %w", err)
	}
	return id, nil
}

// Sweep forgets subjects idle for longer than idle.
func (c *Challenger) Sweep(idle time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := c.now().Add(-idle)
	n := 0
	for s, v := range c.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(c.visitors, s)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (c *Challenger) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Sweep(3 * interval)
		}
	}
}
