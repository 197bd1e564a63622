package report

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-sweep/internal/cleanup"
)

// MemoryStore accumulates run records in memory for tests and for
// embedders that do not need durable reports.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*Record
	byRunID map[string]uuid.UUID
	clock   func() time.Time
	err     error
}

var _ Store = (*MemoryStore)(nil)

// MemoryOption configures the in-memory store.
type MemoryOption func(*MemoryStore)

// WithMemoryClock overrides the CreatedAt timestamp source.
func WithMemoryClock(clock func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewMemoryStore constructs an empty in-memory report store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		byID:    map[uuid.UUID]*Record{},
		byRunID: map[string]uuid.UUID{},
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fail configures the store to return the supplied error on subsequent
// Save calls.
func (s *MemoryStore) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *MemoryStore) Save(_ context.Context, runReport *cleanup.Report) error {
	if runReport == nil {
		return ErrReportRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	record := NewRecord(runReport)
	if _, exists := s.byID[record.ID]; exists {
		return ErrDuplicateRun
	}
	record.CreatedAt = s.clock().UTC()
	s.byID[record.ID] = record
	s.byRunID[record.RunID] = record.ID
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.byID[id]
	if !ok {
		return nil, &NotFoundError{Key: id.String()}
	}
	return cloneRecord(record), nil
}

func (s *MemoryStore) GetByRunID(_ context.Context, runID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byRunID[runID]
	if !ok {
		return nil, &NotFoundError{Key: runID}
	}
	return cloneRecord(s.byID[id]), nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked(), nil
}

func (s *MemoryStore) Prune(_ context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.sortedLocked()
	if len(records) <= keep {
		return 0, nil
	}
	removed := 0
	for _, record := range records[keep:] {
		delete(s.byID, record.ID)
		delete(s.byRunID, record.RunID)
		removed++
	}
	return removed, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID = map[uuid.UUID]*Record{}
	s.byRunID = map[string]uuid.UUID{}
	return nil
}

// sortedLocked returns cloned records newest first, ties broken by run
// id for stable listings under fixed clocks.
func (s *MemoryStore) sortedLocked() []*Record {
	records := make([]*Record, 0, len(s.byID))
	for _, record := range s.byID {
		records = append(records, cloneRecord(record))
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].RanAt.Equal(records[j].RanAt) {
			return records[i].RunID < records[j].RunID
		}
		return records[i].RanAt.After(records[j].RanAt)
	})
	return records
}
