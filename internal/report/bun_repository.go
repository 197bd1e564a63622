package report

import (
	"context"
	"fmt"

	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-cache/cache"
	repositorycache "github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-sweep/internal/cleanup"
)

// BunStore implements Store over a bun database with optional caching.
type BunStore struct {
	repo repository.Repository[*Record]
}

var _ Store = (*BunStore)(nil)

// NewBunStore creates a report store without caching.
func NewBunStore(db *bun.DB) *BunStore {
	return NewBunStoreWithCache(db, nil, nil)
}

// NewBunStoreWithCache creates a report store with caching support.
func NewBunStoreWithCache(db *bun.DB, cacheService cache.CacheService, serializer cache.KeySerializer) *BunStore {
	base := NewReportRepository(db)
	if cacheService != nil && serializer != nil {
		base = repositorycache.New(base, cacheService, serializer)
	}
	return &BunStore{repo: base}
}

func (s *BunStore) Save(ctx context.Context, runReport *cleanup.Report) error {
	if runReport == nil {
		return ErrReportRequired
	}
	record := NewRecord(runReport)

	_, err := s.repo.GetByID(ctx, record.ID.String())
	if err == nil {
		return ErrDuplicateRun
	}
	if !errors.IsCategory(err, repository.CategoryDatabaseNotFound) {
		return fmt.Errorf("report store lookup: %w", err)
	}

	if _, err := s.repo.Create(ctx, record); err != nil {
		return fmt.Errorf("report store save: %w", err)
	}
	return nil
}

func (s *BunStore) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	record, err := s.repo.GetByID(ctx, id.String())
	if err != nil {
		return nil, mapStoreError(err, id.String())
	}
	return record, nil
}

func (s *BunStore) GetByRunID(ctx context.Context, runID string) (*Record, error) {
	record, err := s.repo.GetByIdentifier(ctx, runID)
	if err != nil {
		return nil, mapStoreError(err, runID)
	}
	return record, nil
}

func (s *BunStore) List(ctx context.Context) ([]*Record, error) {
	records, _, err := s.repo.List(ctx, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.OrderExpr("?TableAlias.ran_at DESC, ?TableAlias.run_id ASC")
	}))
	return records, err
}

func (s *BunStore) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	records, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(records) <= keep {
		return 0, nil
	}
	removed := 0
	for _, record := range records[keep:] {
		if err := s.repo.Delete(ctx, &Record{ID: record.ID}); err != nil {
			return removed, fmt.Errorf("report store prune: %w", err)
		}
		removed++
	}
	return removed, nil
}

func (s *BunStore) Clear(ctx context.Context) error {
	_, err := s.Prune(ctx, 0)
	return err
}

func mapStoreError(err error, key string) error {
	if err == nil {
		return nil
	}
	if errors.IsCategory(err, repository.CategoryDatabaseNotFound) {
		return &NotFoundError{Key: key}
	}
	return fmt.Errorf("report store error: %w", err)
}
