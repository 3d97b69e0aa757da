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

// SyncCooldownStore persists the last manual refresh time per caller session
// so the cooldown window survives restarts.
type SyncCooldownStore struct {
	db   *bun.DB
	repo repository.Repository[*syncCooldownRecord]
}

func NewSyncCooldownStore(db *bun.DB) (*SyncCooldownStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*syncCooldownRecord](db, syncCooldownHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid sync cooldown repository wiring: %w", err)
		}
	}
	return &SyncCooldownStore{db: db, repo: repo}, nil
}

func (s *SyncCooldownStore) LastTriggeredAt(ctx context.Context, sessionKey string) (*time.Time, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: sync cooldown store is not configured")
	}
	sessionKey = strings.TrimSpace(sessionKey)
	if sessionKey == "" {
		return nil, fmt.Errorf("sqlstore: session key is required")
	}
	record := &syncCooldownRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.session_key = ?", sessionKey).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	value := record.LastTriggeredAt.UTC()
	return &value, nil
}

func (s *SyncCooldownStore) Touch(ctx context.Context, sessionKey string, at time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: sync cooldown store is not configured")
	}
	sessionKey = strings.TrimSpace(sessionKey)
	if sessionKey == "" {
		return fmt.Errorf("sqlstore: session key is required")
	}
	triggeredAt := at.UTC()
	if triggeredAt.IsZero() {
		triggeredAt = time.Now().UTC()
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &syncCooldownRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.session_key = ?", sessionKey).
			Limit(1).
			Scan(ctx)
		if err != nil && err != sql.ErrNoRows {
			return err
		}
		now := time.Now().UTC()
		if err == sql.ErrNoRows {
			record = &syncCooldownRecord{
				ID:              uuid.NewString(),
				SessionKey:      sessionKey,
				LastTriggeredAt: triggeredAt,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
				if !isUniqueViolation(insertErr) {
					return insertErr
				}
				// lost the insert race, fall through to the update
			} else {
				return nil
			}
		}
		_, updateErr := tx.NewUpdate().
			Model((*syncCooldownRecord)(nil)).
			Set("last_triggered_at = ?", triggeredAt).
			Set("updated_at = ?", now).
			Where("?TableAlias.session_key = ?", sessionKey).
			Exec(ctx)
		return updateErr
	})
}

var _ core.SyncCooldownStore = (*SyncCooldownStore)(nil)
