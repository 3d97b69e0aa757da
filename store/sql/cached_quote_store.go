package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/labforge/go-quotes/core"
)

const quoteCacheKeyPrefix = "go-quotes::quote::v1"

// CachedQuoteStore fronts quote reads with a cache and invalidates the entry
// on every write. Transition commits flow through it too so the cached row
// can never lag behind a status change.
type CachedQuoteStore struct {
	base  *QuoteStore
	cache repositorycache.CacheService
}

func NewCachedQuoteStore(base *QuoteStore, cacheService repositorycache.CacheService) (*CachedQuoteStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base quote store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: quote cache service is required")
	}
	return &CachedQuoteStore{base: base, cache: cacheService}, nil
}

// QuoteCacheKey returns the deterministic cache key contract for quote reads:
// go-quotes::quote::v1::<quote_id> with the id URL-path escaped.
func QuoteCacheKey(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("sqlstore: quote id is required")
	}
	return quoteCacheKeyPrefix + "::" + url.PathEscape(id), nil
}

func (s *CachedQuoteStore) Create(ctx context.Context, input core.CreateQuoteInput) (*core.Quote, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached quote store is not configured")
	}
	return s.base.Create(ctx, input)
}

func (s *CachedQuoteStore) GetByID(ctx context.Context, id string) (*core.Quote, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached quote store is not configured")
	}
	cacheKey, err := QuoteCacheKey(id)
	if err != nil {
		return nil, err
	}
	quote, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Quote, error) {
		fetched, fetchErr := s.base.GetByID(ctx, id)
		if fetchErr != nil {
			return core.Quote{}, fetchErr
		}
		return *fetched, nil
	})
	if err != nil {
		return nil, err
	}
	cloned := quote
	return &cloned, nil
}

// GetByTrackingNumber bypasses the cache: tracking lookups run inside the
// sync worker where a stale row would mask a concurrent transition.
func (s *CachedQuoteStore) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*core.Quote, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached quote store is not configured")
	}
	return s.base.GetByTrackingNumber(ctx, trackingNumber)
}

func (s *CachedQuoteStore) ListSyncCandidates(ctx context.Context, input core.ListSyncCandidatesInput) ([]*core.Quote, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached quote store is not configured")
	}
	return s.base.ListSyncCandidates(ctx, input)
}

func (s *CachedQuoteStore) UpdateFields(ctx context.Context, id string, patch core.QuoteFieldPatch) (*core.Quote, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached quote store is not configured")
	}
	updated, err := s.base.UpdateFields(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if err := s.invalidate(ctx, id); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *CachedQuoteStore) UpdateStatusCAS(ctx context.Context, input core.StatusCASInput) (*core.Quote, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached quote store is not configured")
	}
	updated, err := s.base.UpdateStatusCAS(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := s.invalidate(ctx, input.QuoteID); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *CachedQuoteStore) CommitTransition(ctx context.Context, cas core.StatusCASInput, entry core.ActivityEntry) (*core.Quote, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached quote store is not configured")
	}
	committed, err := s.base.CommitTransition(ctx, cas, entry)
	if err != nil {
		return nil, err
	}
	if err := s.invalidate(ctx, cas.QuoteID); err != nil {
		return nil, err
	}
	return committed, nil
}

func (s *CachedQuoteStore) DeleteDraft(ctx context.Context, id string) error {
	if s == nil || s.base == nil {
		return fmt.Errorf("sqlstore: cached quote store is not configured")
	}
	if err := s.base.DeleteDraft(ctx, id); err != nil {
		return err
	}
	return s.invalidate(ctx, id)
}

func (s *CachedQuoteStore) invalidate(ctx context.Context, id string) error {
	cacheKey, err := QuoteCacheKey(id)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

var (
	_ core.QuoteStore       = (*CachedQuoteStore)(nil)
	_ core.TransitionWriter = (*CachedQuoteStore)(nil)
)
