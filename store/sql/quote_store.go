package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/labforge/go-quotes/core"
	"github.com/uptrace/bun"
)

type QuoteStore struct {
	db   *bun.DB
	repo repository.Repository[*quoteRecord]
}

func NewQuoteStore(db *bun.DB) (*QuoteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*quoteRecord](db, quoteHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid quote repository wiring: %w", err)
		}
	}
	return &QuoteStore{db: db, repo: repo}, nil
}

func (s *QuoteStore) Create(ctx context.Context, input core.CreateQuoteInput) (*core.Quote, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: quote store is not configured")
	}
	customerID := strings.TrimSpace(input.CustomerID)
	labID := strings.TrimSpace(input.LabID)
	if customerID == "" || labID == "" {
		return nil, fmt.Errorf("sqlstore: customer id and lab id are required")
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "USD"
	}
	now := time.Now().UTC()
	record := &quoteRecord{
		ID:          uuid.NewString(),
		CustomerID:  customerID,
		LabID:       labID,
		Description: strings.TrimSpace(input.Description),
		SampleCount: input.SampleCount,
		AmountCents: input.AmountCents,
		Currency:    currency,
		Status:      string(core.QuoteStatusDraft),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return nil, err
	}
	return created.toDomain(), nil
}

func (s *QuoteStore) GetByID(ctx context.Context, id string) (*core.Quote, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: quote store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("sqlstore: quote id is required")
	}
	record := &quoteRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", core.ErrQuoteNotFound, id)
		}
		return nil, err
	}
	return record.toDomain(), nil
}

func (s *QuoteStore) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*core.Quote, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: quote store is not configured")
	}
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, fmt.Errorf("sqlstore: tracking number is required")
	}
	record := &quoteRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.tracking_number = ?", trackingNumber).
		OrderExpr("?TableAlias.updated_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: tracking %s", core.ErrQuoteNotFound, trackingNumber)
		}
		return nil, err
	}
	return record.toDomain(), nil
}

func (s *QuoteStore) ListSyncCandidates(ctx context.Context, input core.ListSyncCandidatesInput) ([]*core.Quote, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: quote store is not configured")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 100
	}
	records := []*quoteRecord{}
	query := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.status IN (?)", bun.In([]string{
			string(core.QuoteStatusPaidAwaitingShipping),
			string(core.QuoteStatusInTransit),
		})).
		Where("?TableAlias.tracking_number <> ''").
		OrderExpr("?TableAlias.updated_at ASC").
		Limit(limit)
	if trackingNumber := strings.TrimSpace(input.TrackingNumber); trackingNumber != "" {
		query = query.Where("?TableAlias.tracking_number = ?", trackingNumber)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	quotes := make([]*core.Quote, 0, len(records))
	for _, record := range records {
		quotes = append(quotes, record.toDomain())
	}
	return quotes, nil
}

func (s *QuoteStore) UpdateFields(ctx context.Context, id string, patch core.QuoteFieldPatch) (*core.Quote, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: quote store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("sqlstore: quote id is required")
	}
	if patch.IsZero() {
		return s.GetByID(ctx, id)
	}

	var out *core.Quote
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findQuoteTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("%w: %s", core.ErrQuoteNotFound, id)
		}
		applyQuotePatch(record, patch)
		record.UpdatedAt = time.Now().UTC()
		if _, updateErr := tx.NewUpdate().Model(record).Where("id = ?", record.ID).Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStatusCAS moves the status column only while the stored value still
// equals Expected. A row that moved underneath the caller surfaces as
// ErrStaleQuoteState without touching any column.
func (s *QuoteStore) UpdateStatusCAS(ctx context.Context, input core.StatusCASInput) (*core.Quote, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: quote store is not configured")
	}
	var out *core.Quote
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, casErr := casStatusTx(ctx, tx, input)
		if casErr != nil {
			return casErr
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CommitTransition performs the compare-and-set status write and appends the
// audit entry inside one transaction. A lost race rolls back both writes.
func (s *QuoteStore) CommitTransition(ctx context.Context, cas core.StatusCASInput, entry core.ActivityEntry) (*core.Quote, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: quote store is not configured")
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	var out *core.Quote
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, casErr := casStatusTx(ctx, tx, cas)
		if casErr != nil {
			return casErr
		}
		logRecord := activityRecordFromEntry(entry, time.Now().UTC())
		if logRecord.ID == "" {
			logRecord.ID = uuid.NewString()
		}
		if _, insertErr := tx.NewInsert().Model(logRecord).Exec(ctx); insertErr != nil {
			return insertErr
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *QuoteStore) DeleteDraft(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: quote store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: quote id is required")
	}
	res, err := s.db.NewDelete().
		Model((*quoteRecord)(nil)).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.status = ?", string(core.QuoteStatusDraft)).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		existing, lookupErr := s.GetByID(ctx, id)
		if lookupErr != nil {
			return lookupErr
		}
		return fmt.Errorf("%w: quote %s is %s, only drafts can be deleted",
			core.ErrTransitionPrecondition, id, existing.Status)
	}
	return nil
}

func casStatusTx(ctx context.Context, tx bun.Tx, input core.StatusCASInput) (*quoteRecord, error) {
	id := strings.TrimSpace(input.QuoteID)
	if id == "" {
		return nil, fmt.Errorf("sqlstore: quote id is required")
	}
	if !core.ValidQuoteStatus(input.Expected) || !core.ValidQuoteStatus(input.Next) {
		return nil, fmt.Errorf("%w: %s -> %s", core.ErrInvalidQuoteStatus, input.Expected, input.Next)
	}
	now := time.Now().UTC()

	query := tx.NewUpdate().
		Model((*quoteRecord)(nil)).
		Set("status = ?", string(input.Next)).
		Set("updated_at = ?", now)
	if input.Patch.Description != nil {
		query = query.Set("description = ?", *input.Patch.Description)
	}
	if input.Patch.SampleCount != nil {
		query = query.Set("sample_count = ?", *input.Patch.SampleCount)
	}
	if input.Patch.AmountCents != nil {
		query = query.Set("amount_cents = ?", *input.Patch.AmountCents)
	}
	if input.Patch.TrackingNumber != nil {
		query = query.Set("tracking_number = ?", *input.Patch.TrackingNumber)
	}
	if input.Patch.CarrierCode != nil {
		query = query.Set("carrier_code = ?", *input.Patch.CarrierCode)
	}
	if input.Patch.TransactionRef != nil {
		query = query.Set("transaction_ref = ?", *input.Patch.TransactionRef)
	}
	if input.Patch.PaidAt != nil {
		query = query.Set("paid_at = ?", input.Patch.PaidAt.UTC())
	}
	if input.Patch.ShippedDate != nil {
		query = query.Set("shipped_date = ?", input.Patch.ShippedDate.UTC())
	}
	if input.Patch.DeliveredDate != nil {
		query = query.Set("delivered_date = ?", input.Patch.DeliveredDate.UTC())
	}
	if input.Patch.TrackingLastCheckedAt != nil {
		query = query.Set("tracking_last_checked_at = ?", input.Patch.TrackingLastCheckedAt.UTC())
	}

	res, err := query.
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.status = ?", string(input.Expected)).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		record, findErr := findQuoteTx(ctx, tx, id)
		if findErr != nil {
			return nil, findErr
		}
		if record == nil {
			return nil, fmt.Errorf("%w: %s", core.ErrQuoteNotFound, id)
		}
		return nil, fmt.Errorf("%w: expected %s, found %s",
			core.ErrStaleQuoteState, input.Expected, record.Status)
	}

	record, err := findQuoteTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrQuoteNotFound, id)
	}
	return record, nil
}

func findQuoteTx(ctx context.Context, tx bun.Tx, id string) (*quoteRecord, error) {
	record := &quoteRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func applyQuotePatch(record *quoteRecord, patch core.QuoteFieldPatch) {
	if record == nil {
		return
	}
	if patch.Description != nil {
		record.Description = *patch.Description
	}
	if patch.SampleCount != nil {
		record.SampleCount = *patch.SampleCount
	}
	if patch.AmountCents != nil {
		record.AmountCents = *patch.AmountCents
	}
	if patch.TrackingNumber != nil {
		record.TrackingNumber = *patch.TrackingNumber
	}
	if patch.CarrierCode != nil {
		record.CarrierCode = *patch.CarrierCode
	}
	if patch.TransactionRef != nil {
		record.TransactionRef = *patch.TransactionRef
	}
	if patch.PaidAt != nil {
		record.PaidAt = cloneTimePointer(patch.PaidAt)
	}
	if patch.ShippedDate != nil {
		record.ShippedDate = cloneTimePointer(patch.ShippedDate)
	}
	if patch.DeliveredDate != nil {
		record.DeliveredDate = cloneTimePointer(patch.DeliveredDate)
	}
	if patch.TrackingLastCheckedAt != nil {
		record.TrackingLastCheckedAt = cloneTimePointer(patch.TrackingLastCheckedAt)
	}
}

var (
	_ core.QuoteStore       = (*QuoteStore)(nil)
	_ core.TransitionWriter = (*QuoteStore)(nil)
)
