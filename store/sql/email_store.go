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

type OutboundEmailStore struct {
	db   *bun.DB
	repo repository.Repository[*outboundEmailRecord]
}

func NewOutboundEmailStore(db *bun.DB) (*OutboundEmailStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*outboundEmailRecord](db, outboundEmailHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid outbound email repository wiring: %w", err)
		}
	}
	return &OutboundEmailStore{db: db, repo: repo}, nil
}

func (s *OutboundEmailStore) Create(ctx context.Context, email core.OutboundEmail) (*core.OutboundEmail, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: outbound email store is not configured")
	}
	quoteID := strings.TrimSpace(email.QuoteID)
	recipient := strings.TrimSpace(email.Recipient)
	if quoteID == "" || recipient == "" {
		return nil, fmt.Errorf("sqlstore: quote id and recipient are required")
	}
	id := strings.TrimSpace(email.ID)
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	sentAt := email.SentAt.UTC()
	if sentAt.IsZero() {
		sentAt = now
	}
	record := &outboundEmailRecord{
		ID:        id,
		QuoteID:   quoteID,
		Recipient: recipient,
		MessageID: strings.TrimSpace(email.MessageID),
		Kind:      strings.TrimSpace(email.Kind),
		Subject:   email.Subject,
		SentAt:    sentAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if record.Kind == "" {
		record.Kind = "notification"
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return nil, err
	}
	return created.toDomain(), nil
}

func (s *OutboundEmailStore) GetByMessageID(ctx context.Context, messageID string) (*core.OutboundEmail, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: outbound email store is not configured")
	}
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return nil, fmt.Errorf("sqlstore: message id is required")
	}
	record := &outboundEmailRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.message_id = ?", messageID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: message %s", core.ErrEmailRecordNotFound, messageID)
		}
		return nil, err
	}
	return record.toDomain(), nil
}

func (s *OutboundEmailStore) LatestByRecipient(ctx context.Context, recipient string) (*core.OutboundEmail, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: outbound email store is not configured")
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return nil, fmt.Errorf("sqlstore: recipient is required")
	}
	record := &outboundEmailRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.recipient = ?", recipient).
		OrderExpr("?TableAlias.sent_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: recipient %s", core.ErrEmailRecordNotFound, recipient)
		}
		return nil, err
	}
	return record.toDomain(), nil
}

// ApplyEngagement unions new engagement facts into the row. A timestamp that
// is already set stays untouched so replayed or out-of-order webhook events
// can only add information.
func (s *OutboundEmailStore) ApplyEngagement(ctx context.Context, id string, update core.EngagementUpdate) (*core.OutboundEmail, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: outbound email store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("sqlstore: email id is required")
	}
	if update.IsZero() {
		return s.getByID(ctx, id)
	}

	var out *core.OutboundEmail
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &outboundEmailRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.id = ?", id).
			Limit(1).
			Scan(ctx)
		if err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("%w: %s", core.ErrEmailRecordNotFound, id)
			}
			return err
		}

		changed := false
		if update.DeliveredAt != nil && record.DeliveredAt == nil {
			record.DeliveredAt = cloneTimePointer(update.DeliveredAt)
			changed = true
		}
		if update.OpenedAt != nil && record.OpenedAt == nil {
			record.OpenedAt = cloneTimePointer(update.OpenedAt)
			changed = true
		}
		if update.ClickedAt != nil && record.ClickedAt == nil {
			record.ClickedAt = cloneTimePointer(update.ClickedAt)
			changed = true
		}
		if update.BouncedAt != nil && record.BouncedAt == nil {
			record.BouncedAt = cloneTimePointer(update.BouncedAt)
			if reason := strings.TrimSpace(update.BounceReason); reason != "" {
				record.BounceReason = reason
			}
			changed = true
		}
		if update.FailedAt != nil && record.FailedAt == nil {
			record.FailedAt = cloneTimePointer(update.FailedAt)
			if reason := strings.TrimSpace(update.FailureReason); reason != "" {
				record.FailureReason = reason
			}
			changed = true
		}
		if !changed {
			out = record.toDomain()
			return nil
		}

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

func (s *OutboundEmailStore) getByID(ctx context.Context, id string) (*core.OutboundEmail, error) {
	record := &outboundEmailRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", core.ErrEmailRecordNotFound, id)
		}
		return nil, err
	}
	return record.toDomain(), nil
}

var _ core.OutboundEmailStore = (*OutboundEmailStore)(nil)
