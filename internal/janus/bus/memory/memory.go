// Package memory is an in-process bus for single-binary deployments and
// tests.
package memory

import (
	"context"
	"io"
	"log"
	"sync"

	"github.com/BrandonDHaskell/janus/internal/janus/bus"
)

// queueSize bounds each subscription's backlog. Messages beyond it are
// dropped, as a real broker would under a slow consumer.
const queueSize = 256

type message struct {
	topic   string
	payload []byte
}

type subscription struct {
	b       *Bus
	pattern string
	h       bus.Handler
	queue   chan message
	done    chan struct{}
	once    sync.Once
}

func (s *subscription) loop() {
	defer close(s.done)
	for m := range s.queue {
		s.h(m.topic, m.payload)
	}
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.b.remove(s)
		close(s.queue)
	})
	<-s.done
	return nil
}

// Bus delivers each published message to every matching subscription on
// that subscription's own goroutine, in publish order.
type Bus struct {
	logger *log.Logger

	mu     sync.RWMutex
	subs   map[*subscription]struct{}
	closed bool
}

func New(logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Bus{
		logger: logger,
		subs:   make(map[*subscription]struct{}),
	}
}

func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return bus.ErrClosed
	}
	for s := range b.subs {
		if !bus.Match(s.pattern, topic) {
			continue
		}
		cp := make([]byte, len(payload))
		copy(cp, payload)
		select {
		case s.queue <- message{topic: topic, payload: cp}:
		default:
			b.logger.Printf("bus: dropping message on %s: subscriber %s is full", topic, s.pattern)
		}
	}
	return nil
}

func (b *Bus) Subscribe(_ context.Context, pattern string, h bus.Handler) (bus.Subscription, error) {
	s := &subscription{
		b:       b,
		pattern: pattern,
		h:       h,
		queue:   make(chan message, queueSize),
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, bus.ErrClosed
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go s.loop()
	return s, nil
}

func (b *Bus) remove(s *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, s)
}

// Close stops every subscription and rejects further publishes.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		_ = s.Close()
	}
	return nil
}
