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

type NotificationOutboxStore struct {
	db   *bun.DB
	repo repository.Repository[*notificationOutboxRecord]
}

func NewNotificationOutboxStore(db *bun.DB) (*NotificationOutboxStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*notificationOutboxRecord](db, notificationOutboxHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid notification outbox repository wiring: %w", err)
		}
	}
	return &NotificationOutboxStore{db: db, repo: repo}, nil
}

func (s *NotificationOutboxStore) Enqueue(ctx context.Context, notification core.Notification) (*core.Notification, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: notification outbox store is not configured")
	}
	quoteID := strings.TrimSpace(notification.QuoteID)
	template := strings.TrimSpace(notification.Template)
	key := strings.TrimSpace(notification.IdempotencyKey)
	if quoteID == "" || template == "" || key == "" {
		return nil, fmt.Errorf("sqlstore: quote id, template, and idempotency key are required")
	}
	channel := strings.TrimSpace(notification.Channel)
	if channel == "" {
		channel = "email"
	}
	id := strings.TrimSpace(notification.ID)
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	record := &notificationOutboxRecord{
		ID:             id,
		QuoteID:        quoteID,
		Recipient:      strings.TrimSpace(notification.Recipient),
		Channel:        channel,
		Template:       template,
		IdempotencyKey: key,
		Payload:        copyAnyMap(notification.Payload),
		Status:         string(core.NotificationStatusPending),
		Attempts:       0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		if isUniqueViolation(err) {
			return s.getByIdempotencyKey(ctx, key)
		}
		return nil, err
	}
	out := created.toDomain()
	return &out, nil
}

func (s *NotificationOutboxStore) ListPending(ctx context.Context, limit int, now time.Time) ([]core.Notification, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: notification outbox store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	records := []*notificationOutboxRecord{}
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.status = ?", string(core.NotificationStatusPending)).
		Where("?TableAlias.next_attempt_at IS NULL OR ?TableAlias.next_attempt_at <= ?", now.UTC()).
		OrderExpr("?TableAlias.created_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	notifications := make([]core.Notification, 0, len(records))
	for _, record := range records {
		notifications = append(notifications, record.toDomain())
	}
	return notifications, nil
}

func (s *NotificationOutboxStore) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: notification outbox store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: notification id is required")
	}
	dispatchedAt := at.UTC()
	res, err := s.db.NewUpdate().
		Model((*notificationOutboxRecord)(nil)).
		Set("status = ?", string(core.NotificationStatusDispatched)).
		Set("dispatched_at = ?", dispatchedAt).
		Set("next_attempt_at = NULL").
		Set("last_error = ''").
		Set("updated_at = ?", time.Now().UTC()).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("sqlstore: notification %s not found", id)
	}
	return nil
}

// MarkFailed records a failed attempt. A nil nextAttemptAt parks the row as
// failed; otherwise the row stays pending and becomes claimable again at the
// given time.
func (s *NotificationOutboxStore) MarkFailed(ctx context.Context, id string, attempts int, nextAttemptAt *time.Time, lastError string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: notification outbox store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: notification id is required")
	}
	status := core.NotificationStatusFailed
	if nextAttemptAt != nil {
		status = core.NotificationStatusPending
	}
	query := s.db.NewUpdate().
		Model((*notificationOutboxRecord)(nil)).
		Set("status = ?", string(status)).
		Set("attempts = ?", attempts).
		Set("last_error = ?", strings.TrimSpace(lastError)).
		Set("updated_at = ?", time.Now().UTC())
	if nextAttemptAt != nil {
		query = query.Set("next_attempt_at = ?", nextAttemptAt.UTC())
	} else {
		query = query.Set("next_attempt_at = NULL")
	}
	res, err := query.Where("?TableAlias.id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("sqlstore: notification %s not found", id)
	}
	return nil
}

func (s *NotificationOutboxStore) getByIdempotencyKey(ctx context.Context, key string) (*core.Notification, error) {
	record := &notificationOutboxRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.idempotency_key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("sqlstore: notification with key %s not found", key)
		}
		return nil, err
	}
	out := record.toDomain()
	return &out, nil
}

var _ core.NotificationOutboxStore = (*NotificationOutboxStore)(nil)
