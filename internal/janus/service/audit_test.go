package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BrandonDHaskell/janus/internal/janus/decision"
	"github.com/BrandonDHaskell/janus/internal/janus/service"
	"github.com/BrandonDHaskell/janus/internal/janus/store"
	"github.com/BrandonDHaskell/janus/internal/janus/store/memory"
)

// blockingStore holds every write until release is closed.
type blockingStore struct {
	*memory.AccessEventStore
	release chan struct{}
}

func (b *blockingStore) RecordEvent(ctx context.Context, rec store.AccessEventRecord) error {
	<-b.release
	return b.AccessEventStore.RecordEvent(ctx, rec)
}

type failingStore struct{ *memory.AccessEventStore }

func (failingStore) RecordEvent(context.Context, store.AccessEventRecord) error {
	return errors.New("disk full")
}

func TestAuditSink_FlushesOnClose(t *testing.T) {
	es := memory.NewAccessEventStore()
	sink := service.NewAuditSink(es, 16, silentLogger())

	for i := 0; i < 5; i++ {
		sink.Record(store.AccessEventRecord{SubjectID: phone, Outcome: decision.Approved})
	}
	sink.Close()
	sink.Close()

	if n := len(es.Events()); n != 5 {
		t.Fatalf("expected 5 events after close, got %d", n)
	}
	if sink.Dropped() != 0 {
		t.Errorf("expected no drops, got %d", sink.Dropped())
	}
}

func TestAuditSink_NeverBlocks(t *testing.T) {
	bs := &blockingStore{AccessEventStore: memory.NewAccessEventStore(), release: make(chan struct{})}
	sink := service.NewAuditSink(bs, 2, silentLogger())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			sink.Record(store.AccessEventRecord{SubjectID: phone})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a slow store")
	}
	if sink.Dropped() == 0 {
		t.Error("expected records beyond the buffer to be dropped")
	}

	close(bs.release)
	sink.Close()

	if sink.Dropped()+int64(len(bs.Events())) != 10 {
		t.Errorf("every record must be written or counted as dropped: dropped=%d written=%d",
			sink.Dropped(), len(bs.Events()))
	}

	sink.Record(store.AccessEventRecord{SubjectID: phone})
	if sink.Dropped()+int64(len(bs.Events())) != 11 {
		t.Error("record after close must be counted as dropped")
	}
}

func TestAuditSink_WriteErrorIsAbsorbed(t *testing.T) {
	sink := service.NewAuditSink(failingStore{memory.NewAccessEventStore()}, 4, silentLogger())
	sink.Record(store.AccessEventRecord{SubjectID: phone})
	sink.Close()
}

// ── Pruner ───────────────────────────────────────────────────────────────────

func TestAuditPruner_DisabledWhenRetentionZero(t *testing.T) {
	es := memory.NewAccessEventStore()
	_ = es.RecordEvent(context.Background(), store.AccessEventRecord{DecidedAt: time.Now().Add(-365 * 24 * time.Hour)})

	p := service.NewAuditPruner(es, service.PrunerConfig{RetentionDays: 0}, silentLogger())
	p.Start(context.Background())
	p.Stop()

	if n := len(es.Events()); n != 1 {
		t.Fatalf("expected pruner to leave events alone, got %d", n)
	}
}

func TestAuditPruner_PrunesOldEvents(t *testing.T) {
	es := memory.NewAccessEventStore()
	ctx := context.Background()
	now := time.Now().UTC()
	_ = es.RecordEvent(ctx, store.AccessEventRecord{SubjectID: "old", DecidedAt: now.Add(-10 * 24 * time.Hour)})
	_ = es.RecordEvent(ctx, store.AccessEventRecord{SubjectID: "new", DecidedAt: now.Add(-time.Hour)})

	p := service.NewAuditPruner(es, service.PrunerConfig{RetentionDays: 7, IntervalHours: 1}, silentLogger())
	p.Start(ctx)
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for len(es.Events()) != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("expected old event pruned, have %d events", len(es.Events()))
		}
		time.Sleep(5 * time.Millisecond)
	}
	if es.Events()[0].SubjectID != "new" {
		t.Errorf("wrong event kept: %+v", es.Events()[0])
	}
}

func TestAuditPruner_StopIsIdempotent(t *testing.T) {
	p := service.NewAuditPruner(memory.NewAccessEventStore(), service.PrunerConfig{RetentionDays: 1}, silentLogger())
	p.Start(context.Background())
	p.Stop()
	p.Stop()
}
