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

// NotificationDispatchStore is the idempotency ledger behind the outbox
// dispatcher. The idempotency_key column carries a unique index, so the
// insert itself is the claim.
type NotificationDispatchStore struct {
	repo repository.Repository[*notificationDispatchRecord]
}

func NewNotificationDispatchStore(db *bun.DB) (*NotificationDispatchStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*notificationDispatchRecord](db, notificationDispatchHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid notification dispatch repository wiring: %w", err)
		}
	}
	return &NotificationDispatchStore{repo: repo}, nil
}

func (s *NotificationDispatchStore) Record(ctx context.Context, idempotencyKey string, at time.Time) (bool, error) {
	if s == nil || s.repo == nil {
		return false, fmt.Errorf("sqlstore: notification dispatch store is not configured")
	}
	key := strings.TrimSpace(idempotencyKey)
	if key == "" {
		return false, fmt.Errorf("sqlstore: idempotency key is required")
	}
	dispatchedAt := at.UTC()
	if dispatchedAt.IsZero() {
		dispatchedAt = time.Now().UTC()
	}
	record := &notificationDispatchRecord{
		ID:             uuid.NewString(),
		IdempotencyKey: key,
		DispatchedAt:   dispatchedAt,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := s.repo.Create(ctx, record)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

var _ core.NotificationDispatchLedger = (*NotificationDispatchStore)(nil)
