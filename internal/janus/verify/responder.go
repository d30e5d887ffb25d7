package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/BrandonDHaskell/janus/internal/janus/bus"
	"github.com/BrandonDHaskell/janus/internal/janus/correlate"
)

var ErrResponderStarted = errors.New("responder already started")

type ResponderConfig struct {
	// CheckTimeout bounds one provider call. Defaults to 10s.
	CheckTimeout time.Duration
	// MaxConcurrent bounds provider calls in flight. Defaults to 8.
	MaxConcurrent int
}

// Responder is the decision-service side of the verification exchange.
// It checks each code published on a request topic and answers on the
// subject's response topic, echoing the correlation id.
type Responder struct {
	bus      bus.Bus
	codec    correlate.Codec
	provider Provider
	logger   *log.Logger
	cfg      ResponderConfig

	sem chan struct{}
	wg  sync.WaitGroup

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	sub    bus.Subscription
}

func NewResponder(b bus.Bus, codec correlate.Codec, p Provider, cfg ResponderConfig, logger *log.Logger) *Responder {
	if codec == nil {
		codec = correlate.JSONCodec{}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 10 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	return &Responder{
		bus:      b,
		codec:    codec,
		provider: p,
		logger:   logger,
		cfg:      cfg,
		sem:      make(chan struct{}, cfg.MaxConcurrent),
	}
}

// Start subscribes to verification requests. Handling stops when ctx is
// cancelled or Stop is called.
func (r *Responder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub != nil {
		return ErrResponderStarted
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	sub, err := r.bus.Subscribe(r.ctx, correlate.RequestPrefix+"*", r.handle)
	if err != nil {
		r.cancel()
		return fmt.Errorf("subscribe verify requests: %w", err)
	}
	r.sub = sub
	r.logger.Printf("verification responder listening on %s*", correlate.RequestPrefix)
	return nil
}

// Stop unsubscribes and waits for in-flight checks to finish.
func (r *Responder) Stop() {
	r.mu.Lock()
	sub, cancel := r.sub, r.cancel
	r.sub = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		_ = sub.Close()
	}
	r.wg.Wait()
}

func (r *Responder) handle(topic string, payload []byte) {
	subject, ok := correlate.SubjectFromTopic(correlate.RequestPrefix, topic)
	if !ok {
		r.logger.Printf("responder: ignoring request on malformed topic %q", topic)
		return
	}
	var req correlate.VerifyRequest
	if err := r.codec.Unmarshal(payload, &req); err != nil {
		r.logger.Printf("responder: undecodable request for %s: %v", subject, err)
		return
	}
	if req.Subject != subject {
		r.logger.Printf("responder: request for %q published on %s", req.Subject, topic)
		return
	}

	ctx := r.ctx
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() { <-r.sem }()
		r.answer(ctx, req)
	}()
}

func (r *Responder) answer(ctx context.Context, req correlate.VerifyRequest) {
	checkCtx, cancel := context.WithTimeout(ctx, r.cfg.CheckTimeout)
	status, err := r.provider.Check(checkCtx, req.Subject, req.Code)
	cancel()

	resp := correlate.VerifyResponse{
		Subject:       req.Subject,
		CorrelationID: req.CorrelationID,
	}
	switch {
	case err != nil:
		r.logger.Printf("responder: provider check for %s failed: %v", req.Subject, err)
		resp.Status = correlate.StatusError
		resp.Message = "verification provider unavailable"
	case status == StatusApproved:
		resp.Status = correlate.StatusApproved
		resp.Message = "code accepted"
	case status == StatusDenied:
		resp.Status = correlate.StatusDenied
		resp.Message = "invalid code"
	default:
		resp.Status = correlate.StatusError
		resp.Message = fmt.Sprintf("unexpected provider status %q", status)
	}

	data, err := r.codec.Marshal(resp)
	if err != nil {
		r.logger.Printf("responder: encode response for %s: %v", req.Subject, err)
		return
	}
	if err := r.bus.Publish(ctx, correlate.ResponseTopic(req.Subject), data); err != nil {
		r.logger.Printf("responder: publish response for %s: %v", req.Subject, err)
	}
}
