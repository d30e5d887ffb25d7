package memory_test

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/BrandonDHaskell/janus/internal/janus/bus"
	"github.com/BrandonDHaskell/janus/internal/janus/bus/memory"
)

type recorder struct {
	mu     sync.Mutex
	topics []string
	got    chan struct{}
}

func newRecorder() *recorder { return &recorder{got: make(chan struct{}, 64)} }

func (r *recorder) handle(topic string, _ []byte) {
	r.mu.Lock()
	r.topics = append(r.topics, topic)
	r.mu.Unlock()
	r.got <- struct{}{}
}

func (r *recorder) wait(t *testing.T, n int) []string {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.got:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for message %d of %d", i+1, n)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.topics...)
}

func newBus(t *testing.T) *memory.Bus {
	t.Helper()
	b := memory.New(log.New(io.Discard, "", 0))
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBus_WildcardAndExact(t *testing.T) {
	b := newBus(t)
	ctx := context.Background()

	all := newRecorder()
	one := newRecorder()
	if _, err := b.Subscribe(ctx, "verify/response/*", all.handle); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := b.Subscribe(ctx, "verify/response/+15551234567", one.handle); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	_ = b.Publish(ctx, "verify/response/+15551234567", []byte("a"))
	_ = b.Publish(ctx, "verify/response/+15557654321", []byte("b"))
	_ = b.Publish(ctx, "verify/request/+15551234567", []byte("c"))

	got := all.wait(t, 2)
	if len(got) != 2 || got[0] != "verify/response/+15551234567" || got[1] != "verify/response/+15557654321" {
		t.Errorf("wildcard subscriber got %v", got)
	}
	if got := one.wait(t, 1); len(got) != 1 {
		t.Errorf("exact subscriber got %v", got)
	}
}

func TestBus_PayloadIsCopied(t *testing.T) {
	b := newBus(t)
	ctx := context.Background()

	seen := make(chan string, 1)
	_, _ = b.Subscribe(ctx, "t", func(_ string, p []byte) { seen <- string(p) })

	buf := []byte("hello")
	_ = b.Publish(ctx, "t", buf)
	copy(buf, "XXXXX")

	select {
	case s := <-seen:
		if s != "hello" {
			t.Errorf("expected subscriber to see original payload, got %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("no delivery")
	}
}

func TestBus_SubscriptionClose_StopsDelivery(t *testing.T) {
	b := newBus(t)
	ctx := context.Background()

	r := newRecorder()
	sub, _ := b.Subscribe(ctx, "t", r.handle)
	_ = b.Publish(ctx, "t", nil)
	r.wait(t, 1)

	if err := sub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_ = sub.Close()
	_ = b.Publish(ctx, "t", nil)

	select {
	case <-r.got:
		t.Fatal("delivery after Close")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestBus_Closed(t *testing.T) {
	b := memory.New(nil)
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Publish(context.Background(), "t", nil); !errors.Is(err, bus.ErrClosed) {
		t.Errorf("expected ErrClosed on publish, got %v", err)
	}
	if _, err := b.Subscribe(context.Background(), "t", func(string, []byte) {}); !errors.Is(err, bus.ErrClosed) {
		t.Errorf("expected ErrClosed on subscribe, got %v", err)
	}
}

func TestMatch(t *testing.T) {
	cases := []struct {
		pattern, topic string
		want           bool
	}{
		{"verify/response/*", "verify/response/x", true},
		{"verify/response/*", "verify/request/x", false},
		{"verify/response/x", "verify/response/x", true},
		{"verify/response/x", "verify/response/xy", false},
		{"*", "anything", true},
	}
	for _, c := range cases {
		if got := bus.Match(c.pattern, c.topic); got != c.want {
			t.Errorf("Match(%q, %q) = %v, want %v", c.pattern, c.topic, got, c.want)
		}
	}
}
