// Package correlate lets the door ask the decision service a verification
// question over a fire-and-forget bus and receive exactly one matching
// answer, or a timeout.
//
// The correlation key is the subject: at most one request per subject may
// be in flight. Each request also carries a correlation id which the
// responder echoes back; a response echoing a different id is ignored.
package correlate

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/janus/internal/janus/bus"
)

var (
	ErrTimedOut       = errors.New("verification response timed out")
	ErrInFlight       = errors.New("verification already in flight for subject")
	ErrInvalidTimeout = errors.New("timeout must be positive")
	ErrBrokerClosed   = errors.New("broker closed")
)

const shardCount = 32

type pending struct {
	req  VerificationRequest
	done chan VerifyResponse
}

type shard struct {
	mu      sync.Mutex
	pending map[string]*pending
}

// Broker publishes verification requests and routes responses back to the
// waiting caller.
type Broker struct {
	bus    bus.Bus
	codec  Codec
	logger *log.Logger
	now    func() time.Time

	shards [shardCount]shard

	subMu  sync.Mutex
	sub    bus.Subscription
	closed bool
}

func NewBroker(b bus.Bus, codec Codec, logger *log.Logger) *Broker {
	if codec == nil {
		codec = JSONCodec{}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	br := &Broker{bus: b, codec: codec, logger: logger, now: time.Now}
	for i := range br.shards {
		br.shards[i].pending = make(map[string]*pending)
	}
	return br
}

func (b *Broker) shardFor(subject string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(subject))
	return &b.shards[h.Sum32()%shardCount]
}

// Start subscribes to the response topics. Request calls Start on demand;
// calling it at boot surfaces transport errors early.
func (b *Broker) Start(ctx context.Context) error {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	if b.closed {
		return ErrBrokerClosed
	}
	if b.sub != nil {
		return nil
	}
	sub, err := b.bus.Subscribe(ctx, ResponsePrefix+"*", b.deliver)
	if err != nil {
		return fmt.Errorf("subscribe responses: %w", err)
	}
	b.sub = sub
	return nil
}

// Close drops the response subscription. Outstanding requests run to
// their timeout.
func (b *Broker) Close() error {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	b.closed = true
	if b.sub == nil {
		return nil
	}
	err := b.sub.Close()
	b.sub = nil
	return err
}

// InFlight returns the number of unresolved requests.
func (b *Broker) InFlight() int {
	n := 0
	for i := range b.shards {
		s := &b.shards[i]
		s.mu.Lock()
		n += len(s.pending)
		s.mu.Unlock()
	}
	return n
}

// Request publishes a verification request for subject and waits for the
// matching response. It returns ErrTimedOut if none arrives in time and
// ErrInFlight if subject already has an unresolved request.
func (b *Broker) Request(ctx context.Context, subject, code string, timeout time.Duration) (VerifyResponse, error) {
	if !ValidSubject(subject) {
		return VerifyResponse{}, fmt.Errorf("%w: %q", ErrInvalidSubject, subject)
	}
	if timeout <= 0 {
		return VerifyResponse{}, ErrInvalidTimeout
	}
	if err := b.Start(ctx); err != nil {
		return VerifyResponse{}, err
	}

	issued := b.now()
	p := &pending{
		req: VerificationRequest{
			Subject:       subject,
			IssuedAt:      issued,
			ExpiresAt:     issued.Add(timeout),
			CorrelationID: uuid.NewString(),
		},
		done: make(chan VerifyResponse, 1),
	}

	sh := b.shardFor(subject)
	sh.mu.Lock()
	if _, busy := sh.pending[subject]; busy {
		sh.mu.Unlock()
		return VerifyResponse{}, ErrInFlight
	}
	sh.pending[subject] = p
	sh.mu.Unlock()

	payload, err := b.codec.Marshal(VerifyRequest{
		Subject:       subject,
		Code:          code,
		CorrelationID: p.req.CorrelationID,
	})
	if err != nil {
		b.abandon(sh, p)
		return VerifyResponse{}, fmt.Errorf("encode verify request: %w", err)
	}
	if err := b.bus.Publish(ctx, RequestTopic(subject), payload); err != nil {
		b.abandon(sh, p)
		return VerifyResponse{}, fmt.Errorf("publish verify request: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-p.done:
		return resp, nil
	case <-timer.C:
		if resp, ok := b.settle(sh, p); ok {
			return resp, nil
		}
		return VerifyResponse{}, ErrTimedOut
	case <-ctx.Done():
		if resp, ok := b.settle(sh, p); ok {
			return resp, nil
		}
		return VerifyResponse{}, ctx.Err()
	}
}

func (b *Broker) abandon(sh *shard, p *pending) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.pending[p.req.Subject] == p {
		delete(sh.pending, p.req.Subject)
	}
}

// settle removes p if it is still registered. If a response won the race
// against the timeout it is returned instead.
func (b *Broker) settle(sh *shard, p *pending) (VerifyResponse, bool) {
	sh.mu.Lock()
	if sh.pending[p.req.Subject] == p {
		delete(sh.pending, p.req.Subject)
		sh.mu.Unlock()
		return VerifyResponse{}, false
	}
	sh.mu.Unlock()
	return <-p.done, true
}

// deliver handles one message from the response subscription. Responses
// with no matching pending request are dropped.
func (b *Broker) deliver(topic string, payload []byte) {
	subject, ok := SubjectFromTopic(ResponsePrefix, topic)
	if !ok {
		b.logger.Printf("broker: ignoring response on malformed topic %q", topic)
		return
	}

	var resp VerifyResponse
	if err := b.codec.Unmarshal(payload, &resp); err != nil {
		b.logger.Printf("broker: dropping undecodable response for %s: %v", subject, err)
		return
	}
	if strings.TrimSpace(resp.Subject) != subject {
		b.logger.Printf("broker: dropping response for %q published on %s", resp.Subject, topic)
		return
	}
	switch resp.Status {
	case StatusApproved, StatusDenied, StatusError:
	default:
		resp.Message = fmt.Sprintf("unrecognised status %q", resp.Status)
		resp.Status = StatusError
	}

	sh := b.shardFor(subject)
	sh.mu.Lock()
	p, ok := sh.pending[subject]
	if !ok {
		sh.mu.Unlock()
		return
	}
	if resp.CorrelationID != "" && resp.CorrelationID != p.req.CorrelationID {
		sh.mu.Unlock()
		b.logger.Printf("broker: dropping stale response for %s (correlation %s)", subject, resp.CorrelationID)
		return
	}
	delete(sh.pending, subject)
	sh.mu.Unlock()

	p.done <- resp
}
