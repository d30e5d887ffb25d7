package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BrandonDHaskell/janus/internal/janus/decision"
	"github.com/BrandonDHaskell/janus/internal/janus/store"
	sqlitestore "github.com/BrandonDHaskell/janus/internal/janus/store/sqlite"
)

func grant(subject string, startH, endH int) decision.Grant {
	return decision.Grant{
		SubjectID: subject,
		Start:     day.Add(time.Duration(startH) * time.Hour),
		End:       day.Add(time.Duration(endH) * time.Hour),
	}
}

func TestGrantStore_InsertAndList(t *testing.T) {
	conn := openTestDB(t)
	gs := sqlitestore.NewGrantStore(conn, newTestWriter(t, conn))
	ctx := context.Background()
	seedSubject(t, conn, alice, false)

	second, err := gs.InsertGrant(ctx, grant(alice, 20, 22))
	if err != nil {
		t.Fatalf("InsertGrant: %v", err)
	}
	first, err := gs.InsertGrant(ctx, grant(alice, 6, 8))
	if err != nil {
		t.Fatalf("InsertGrant: %v", err)
	}
	if first.ID == 0 || second.ID == 0 || first.ID == second.ID {
		t.Fatalf("expected distinct ids, got %d and %d", first.ID, second.ID)
	}

	got, err := gs.GrantsForSubject(ctx, alice)
	if err != nil {
		t.Fatalf("GrantsForSubject: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 grants, got %d", len(got))
	}
	if !got[0].Start.Equal(first.Start) || !got[1].End.Equal(second.End) {
		t.Errorf("expected grants ordered by start, got %+v", got)
	}
}

func TestGrantStore_RejectsOverlapForSameSubject(t *testing.T) {
	conn := openTestDB(t)
	gs := sqlitestore.NewGrantStore(conn, newTestWriter(t, conn))
	ctx := context.Background()
	seedSubject(t, conn, alice, false)
	seedSubject(t, conn, bob, false)

	if _, err := gs.InsertGrant(ctx, grant(alice, 18, 22)); err != nil {
		t.Fatalf("InsertGrant: %v", err)
	}

	if _, err := gs.InsertGrant(ctx, grant(alice, 21, 23)); !errors.Is(err, store.ErrGrantOverlap) {
		t.Errorf("expected ErrGrantOverlap, got %v", err)
	}
	if _, err := gs.InsertGrant(ctx, grant(alice, 19, 20)); !errors.Is(err, store.ErrGrantOverlap) {
		t.Errorf("expected ErrGrantOverlap for contained grant, got %v", err)
	}
	// Touching grants do not overlap.
	if _, err := gs.InsertGrant(ctx, grant(alice, 22, 23)); err != nil {
		t.Errorf("expected adjacent grant to be accepted, got %v", err)
	}
	// Another subject may hold the same window.
	if _, err := gs.InsertGrant(ctx, grant(bob, 18, 22)); err != nil {
		t.Errorf("expected grant for other subject to be accepted, got %v", err)
	}
}

func TestGrantStore_Validation(t *testing.T) {
	conn := openTestDB(t)
	gs := sqlitestore.NewGrantStore(conn, newTestWriter(t, conn))
	ctx := context.Background()
	seedSubject(t, conn, alice, false)

	if _, err := gs.InsertGrant(ctx, grant(alice, 10, 10)); !errors.Is(err, store.ErrInvalidGrant) {
		t.Errorf("expected ErrInvalidGrant, got %v", err)
	}
	if _, err := gs.InsertGrant(ctx, grant(bob, 10, 12)); !errors.Is(err, store.ErrSubjectNotFound) {
		t.Errorf("expected ErrSubjectNotFound, got %v", err)
	}
}
