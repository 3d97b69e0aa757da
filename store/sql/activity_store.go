package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/labforge/go-quotes/core"
	"github.com/uptrace/bun"
)

type ActivityStore struct {
	db   *bun.DB
	repo repository.Repository[*activityLogRecord]
}

func NewActivityStore(db *bun.DB) (*ActivityStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*activityLogRecord](db, activityHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid activity repository wiring: %w", err)
		}
	}
	return &ActivityStore{db: db, repo: repo}, nil
}

func (s *ActivityStore) Append(ctx context.Context, entry core.ActivityEntry) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: activity store is not configured")
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	record := activityRecordFromEntry(entry, time.Now().UTC())
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	_, err := s.repo.Create(ctx, record)
	return err
}

func (s *ActivityStore) List(ctx context.Context, input core.ListActivityInput) ([]core.ActivityEntry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: activity store is not configured")
	}
	quoteID := strings.TrimSpace(input.QuoteID)
	if quoteID == "" {
		return nil, fmt.Errorf("sqlstore: quote id is required")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	records := []*activityLogRecord{}
	query := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.quote_id = ?", quoteID).
		OrderExpr("?TableAlias.created_at DESC").
		Limit(limit).
		Offset(offset)
	if len(input.Types) > 0 {
		types := make([]string, 0, len(input.Types))
		for _, entryType := range input.Types {
			if trimmed := strings.TrimSpace(string(entryType)); trimmed != "" {
				types = append(types, trimmed)
			}
		}
		if len(types) > 0 {
			query = query.Where("?TableAlias.entry_type IN (?)", bun.In(types))
		}
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}

	entries := make([]core.ActivityEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, record.toDomain())
	}
	return entries, nil
}

func (s *ActivityStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: activity store is not configured")
	}
	res, err := s.db.NewDelete().
		Model((*activityLogRecord)(nil)).
		Where("created_at < ?", cutoff.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

var _ core.ActivityStore = (*ActivityStore)(nil)
