package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BrandonDHaskell/janus/internal/janus/decision"
	"github.com/BrandonDHaskell/janus/internal/janus/store"
)

// SubjectStore keeps subjects and their grants. Grants live alongside
// subjects so an insert can check for overlap under the same lock.
type SubjectStore struct {
	mu       sync.RWMutex
	subjects map[string]store.SubjectRecord
	grants   map[string][]decision.Grant
	nextID   int64
}

func NewSubjectStore() *SubjectStore {
	return &SubjectStore{
		subjects: make(map[string]store.SubjectRecord),
		grants:   make(map[string][]decision.Grant),
	}
}

func (s *SubjectStore) GetSubject(_ context.Context, subjectID string) (store.SubjectRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.subjects[subjectID]
	return cloneSubject(rec), ok, nil
}

func (s *SubjectStore) EnsureSubject(_ context.Context, subjectID string, t time.Time) (store.SubjectRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.subjects[subjectID]; ok {
		return cloneSubject(rec), nil
	}
	rec := store.SubjectRecord{SubjectID: subjectID, CreatedAt: t.UTC()}
	s.subjects[subjectID] = rec
	return rec, nil
}

func (s *SubjectStore) SetAllowed(_ context.Context, subjectID string, allowed bool, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.subjects[subjectID]
	if !ok {
		return store.ErrSubjectNotFound
	}
	rec.Allowed = allowed
	if allowed {
		at := t.UTC()
		rec.ApprovedAt = &at
	} else {
		rec.ApprovedAt = nil
	}
	s.subjects[subjectID] = rec
	return nil
}

func (s *SubjectStore) SetTemplate(_ context.Context, subjectID string, template []byte, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.subjects[subjectID]
	if !ok {
		return store.ErrSubjectNotFound
	}
	rec.Template = append([]byte(nil), template...)
	s.subjects[subjectID] = rec
	return nil
}

func (s *SubjectStore) ListSubjects(_ context.Context) ([]store.SubjectRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.SubjectRecord, 0, len(s.subjects))
	for _, rec := range s.subjects {
		out = append(out, cloneSubject(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectID < out[j].SubjectID })
	return out, nil
}

func (s *SubjectStore) InsertGrant(_ context.Context, g decision.Grant) (decision.Grant, error) {
	if err := store.ValidateGrant(g); err != nil {
		return decision.Grant{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subjects[g.SubjectID]; !ok {
		return decision.Grant{}, store.ErrSubjectNotFound
	}
	for _, existing := range s.grants[g.SubjectID] {
		if existing.Overlaps(g) {
			return decision.Grant{}, store.ErrGrantOverlap
		}
	}
	s.nextID++
	g.ID = s.nextID
	g.Start, g.End = g.Start.UTC(), g.End.UTC()
	s.grants[g.SubjectID] = append(s.grants[g.SubjectID], g)
	return g, nil
}

func (s *SubjectStore) GrantsForSubject(_ context.Context, subjectID string) ([]decision.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]decision.Grant, len(s.grants[subjectID]))
	copy(out, s.grants[subjectID])
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func cloneSubject(rec store.SubjectRecord) store.SubjectRecord {
	if rec.Template != nil {
		rec.Template = append([]byte(nil), rec.Template...)
	}
	if rec.ApprovedAt != nil {
		at := *rec.ApprovedAt
		rec.ApprovedAt = &at
	}
	return rec
}
