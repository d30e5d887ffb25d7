// Package bus defines the fire-and-forget publish/subscribe transport the
// door and the decision service talk over.
package bus

import (
	"context"
	"errors"
	"strings"
)

var ErrClosed = errors.New("bus closed")

// Handler receives one message. Handlers run on the transport's delivery
// goroutine and must not block for long.
type Handler func(topic string, payload []byte)

type Subscription interface {
	Close() error
}

// Bus is an at-most-once pub/sub transport. A pattern is either an exact
// topic or a prefix followed by a single trailing "*".
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, pattern string, h Handler) (Subscription, error)
	Close() error
}

// Match reports whether topic matches pattern.
func Match(pattern, topic string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(topic, prefix)
	}
	return pattern == topic
}
