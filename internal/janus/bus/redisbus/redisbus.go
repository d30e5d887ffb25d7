// Package redisbus carries bus traffic over Redis pub/sub, so the door and
// the decision service can run as separate processes.
package redisbus

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/BrandonDHaskell/janus/internal/janus/bus"
)

// Options configures Dial.
type Options struct {
	Addr     string
	Password string
	DB       int
}

type Bus struct {
	client *redis.Client
	logger *log.Logger
	owned  bool
}

// New wraps an existing client. The caller keeps ownership of it.
func New(client *redis.Client, logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Bus{client: client, logger: logger}
}

// Dial connects to Redis and verifies the connection with a PING.
func Dial(ctx context.Context, opt Options, logger *log.Logger) (*Bus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opt.Addr,
		Password: opt.Password,
		DB:       opt.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opt.Addr, err)
	}
	b := New(client, logger)
	b.owned = true
	return b, nil
}

func (b *Bus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe uses PSUBSCRIBE for patterns ending in "*" and SUBSCRIBE
// otherwise. It returns once Redis has confirmed the subscription.
func (b *Bus) Subscribe(ctx context.Context, pattern string, h bus.Handler) (bus.Subscription, error) {
	var ps *redis.PubSub
	if strings.HasSuffix(pattern, "*") {
		ps = b.client.PSubscribe(ctx, pattern)
	} else {
		ps = b.client.Subscribe(ctx, pattern)
	}

	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", pattern, err)
	}

	s := &subscription{ps: ps, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		for msg := range ps.Channel() {
			h(msg.Channel, []byte(msg.Payload))
		}
	}()
	return s, nil
}

func (b *Bus) Close() error {
	if !b.owned {
		return nil
	}
	return b.client.Close()
}

type subscription struct {
	ps   *redis.PubSub
	done chan struct{}
	once sync.Once
	err  error
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.err = s.ps.Close()
		<-s.done
	})
	return s.err
}
