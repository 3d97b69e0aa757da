package core

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

type NotificationDispatcherConfig struct {
	BatchSize      int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultNotificationDispatcherConfig() NotificationDispatcherConfig {
	return NotificationDispatcherConfig{
		BatchSize:      50,
		MaxAttempts:    5,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     5 * time.Minute,
	}
}

type DispatchStats struct {
	Claimed   int
	Delivered int
	Retried   int
	Failed    int
	Skipped   int
}

// NotificationDispatcher drains the queued outbox. Delivery is best effort
// and at-least-once: a failed send is retried with bounded backoff and, past
// the attempt budget, parked as failed. Nothing here can unwind the
// transition that produced the notification.
type NotificationDispatcher struct {
	store    NotificationOutboxStore
	notifier Notifier
	ledger   NotificationDispatchLedger
	logger   Logger
	config   NotificationDispatcherConfig
	now      func() time.Time
}

func NewNotificationDispatcher(
	store NotificationOutboxStore,
	notifier Notifier,
	ledger NotificationDispatchLedger,
	config NotificationDispatcherConfig,
	logger Logger,
) (*NotificationDispatcher, error) {
	if store == nil {
		return nil, fmt.Errorf("core: notification outbox store is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("core: notifier is required")
	}
	defaults := DefaultNotificationDispatcherConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	return &NotificationDispatcher{
		store:    store,
		notifier: notifier,
		ledger:   ledger,
		logger:   logger,
		config:   config,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (d *NotificationDispatcher) DispatchPending(ctx context.Context, batchSize int) (DispatchStats, error) {
	if d == nil || d.store == nil {
		return DispatchStats{}, fmt.Errorf("core: notification dispatcher is not configured")
	}
	limit := batchSize
	if limit <= 0 {
		limit = d.config.BatchSize
	}
	pending, err := d.store.ListPending(ctx, limit, d.now())
	if err != nil {
		return DispatchStats{}, err
	}

	stats := DispatchStats{Claimed: len(pending)}
	var dispatchErr error
	for _, notification := range pending {
		outcome, err := d.dispatchOne(ctx, notification)
		stats.Delivered += outcome.Delivered
		stats.Retried += outcome.Retried
		stats.Failed += outcome.Failed
		stats.Skipped += outcome.Skipped
		if err != nil {
			dispatchErr = joinErrors(dispatchErr, err)
		}
	}
	return stats, dispatchErr
}

func (d *NotificationDispatcher) dispatchOne(ctx context.Context, notification Notification) (DispatchStats, error) {
	now := d.now()

	if d.ledger != nil {
		key := strings.TrimSpace(notification.IdempotencyKey)
		if key != "" {
			fresh, err := d.ledger.Record(ctx, key, now)
			if err != nil {
				return DispatchStats{}, err
			}
			if !fresh {
				if err := d.store.MarkDispatched(ctx, notification.ID, now); err != nil {
					return DispatchStats{Skipped: 1}, err
				}
				return DispatchStats{Skipped: 1}, nil
			}
		}
	}

	if err := d.notifier.Send(ctx, notification); err != nil {
		sendErr := fmt.Errorf("%w: notification %s: %v", ErrUpstreamFailure, notification.ID, err)
		attempts := notification.Attempts + 1
		if attempts >= d.config.MaxAttempts {
			if markErr := d.store.MarkFailed(ctx, notification.ID, attempts, nil, err.Error()); markErr != nil {
				return DispatchStats{Failed: 1}, joinErrors(sendErr, markErr)
			}
			return DispatchStats{Failed: 1}, sendErr
		}
		nextAttemptAt := now.Add(d.nextBackoffDelay(attempts))
		if markErr := d.store.MarkFailed(ctx, notification.ID, attempts, &nextAttemptAt, err.Error()); markErr != nil {
			return DispatchStats{Retried: 1}, joinErrors(sendErr, markErr)
		}
		return DispatchStats{Retried: 1}, sendErr
	}

	if err := d.store.MarkDispatched(ctx, notification.ID, now); err != nil {
		return DispatchStats{Delivered: 1}, err
	}
	return DispatchStats{Delivered: 1}, nil
}

func (d *NotificationDispatcher) nextBackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(d.config.InitialBackoff)
	multiplier := math.Pow(2, float64(attempt-1))
	next := time.Duration(base * multiplier)
	if next < 0 {
		return d.config.MaxBackoff
	}
	if next > d.config.MaxBackoff {
		return d.config.MaxBackoff
	}
	return next
}

func joinErrors(existing error, next error) error {
	if existing == nil {
		return next
	}
	if next == nil {
		return existing
	}
	return fmt.Errorf("%w; %v", existing, next)
}
