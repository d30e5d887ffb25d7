package service

import (
	"context"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BrandonDHaskell/janus/internal/janus/store"
)

// AuditSink appends access decisions to the event store on a background
// goroutine. Record never blocks the decision path: when the buffer is
// full the record is dropped and counted.
type AuditSink struct {
	store        store.AccessEventStore
	logger       *log.Logger
	writeTimeout time.Duration

	ch      chan store.AccessEventRecord
	done    chan struct{}
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// NewAuditSink starts the sink. buffer <= 0 defaults to 256.
func NewAuditSink(st store.AccessEventStore, buffer int, logger *log.Logger) *AuditSink {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	a := &AuditSink{
		store:        st,
		logger:       logger,
		writeTimeout: 5 * time.Second,
		ch:           make(chan store.AccessEventRecord, buffer),
		done:         make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *AuditSink) Record(rec store.AccessEventRecord) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.drop(rec, "sink closed")
		return
	}
	select {
	case a.ch <- rec:
	default:
		a.drop(rec, "buffer full")
	}
}

func (a *AuditSink) drop(rec store.AccessEventRecord, why string) {
	a.dropped.Add(1)
	a.logger.Printf("audit: dropped %s/%s for %s: %s", rec.Outcome, rec.Reason, rec.SubjectID, why)
}

// Dropped returns how many records were discarded.
func (a *AuditSink) Dropped() int64 { return a.dropped.Load() }

// Close flushes buffered records and stops the sink.
func (a *AuditSink) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.ch)
	}
	a.mu.Unlock()
	<-a.done
}

func (a *AuditSink) loop() {
	defer close(a.done)
	for rec := range a.ch {
		ctx, cancel := context.WithTimeout(context.Background(), a.writeTimeout)
		if err := a.store.RecordEvent(ctx, rec); err != nil {
			a.logger.Printf("audit: write failed for %s: %v", rec.SubjectID, err)
		}
		cancel()
	}
}
