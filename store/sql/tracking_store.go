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

type TrackingHistoryStore struct {
	db   *bun.DB
	repo repository.Repository[*trackingHistoryRecord]
}

func NewTrackingHistoryStore(db *bun.DB) (*TrackingHistoryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*trackingHistoryRecord](db, trackingHistoryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid tracking history repository wiring: %w", err)
		}
	}
	return &TrackingHistoryStore{db: db, repo: repo}, nil
}

func (s *TrackingHistoryStore) Append(ctx context.Context, entry core.TrackingHistoryEntry) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: tracking history store is not configured")
	}
	quoteID := strings.TrimSpace(entry.QuoteID)
	if quoteID == "" {
		return fmt.Errorf("sqlstore: quote id is required")
	}
	if !core.ValidQuoteStatus(entry.Status) {
		return fmt.Errorf("%w: %q", core.ErrInvalidQuoteStatus, entry.Status)
	}
	id := strings.TrimSpace(entry.ID)
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := entry.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	source := entry.Source
	if source == "" {
		source = core.TrackingSourceAutomatic
	}
	record := &trackingHistoryRecord{
		ID:             id,
		QuoteID:        quoteID,
		Status:         string(entry.Status),
		TrackingNumber: strings.TrimSpace(entry.TrackingNumber),
		Source:         string(source),
		CarrierDetail:  copyAnyMap(entry.CarrierDetail),
		CreatedAt:      createdAt,
	}
	_, err := s.repo.Create(ctx, record)
	return err
}

func (s *TrackingHistoryStore) List(ctx context.Context, quoteID string) ([]core.TrackingHistoryEntry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: tracking history store is not configured")
	}
	quoteID = strings.TrimSpace(quoteID)
	if quoteID == "" {
		return nil, fmt.Errorf("sqlstore: quote id is required")
	}
	records := []*trackingHistoryRecord{}
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.quote_id = ?", quoteID).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]core.TrackingHistoryEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, record.toDomain())
	}
	return entries, nil
}

var _ core.TrackingHistoryStore = (*TrackingHistoryStore)(nil)
