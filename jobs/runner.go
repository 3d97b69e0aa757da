package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/labforge/go-quotes/adapters/gojob"
	"github.com/labforge/go-quotes/core"
	quotesync "github.com/labforge/go-quotes/sync"
)

type TrackingSyncService interface {
	Run(ctx context.Context, opts quotesync.RunOptions) (quotesync.RunReport, error)
}

type NotificationDispatcher interface {
	DispatchPending(ctx context.Context, batchSize int) (core.DispatchStats, error)
}

// Runner drains the background job queue and routes each delivery to the
// subsystem its job id names. Failed handlers nack with a requeue delay;
// deliveries nobody claims are dead-lettered rather than spun forever.
type Runner struct {
	dequeuer   core.JobDequeuer
	syncer     TrackingSyncService
	dispatcher NotificationDispatcher
	logger     core.Logger
	nackDelay  time.Duration
}

type RunnerOption func(*Runner)

func WithTrackingSync(syncer TrackingSyncService) RunnerOption {
	return func(r *Runner) {
		r.syncer = syncer
	}
}

func WithNotificationDispatcher(dispatcher NotificationDispatcher) RunnerOption {
	return func(r *Runner) {
		r.dispatcher = dispatcher
	}
}

func WithRunnerLogger(logger core.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithNackDelay(delay time.Duration) RunnerOption {
	return func(r *Runner) {
		if delay > 0 {
			r.nackDelay = delay
		}
	}
}

func NewRunner(dequeuer core.JobDequeuer, options ...RunnerOption) (*Runner, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("jobs: dequeuer is required")
	}
	runner := &Runner{
		dequeuer:  dequeuer,
		nackDelay: 30 * time.Second,
	}
	for _, option := range options {
		if option != nil {
			option(runner)
		}
	}
	if runner.logger == nil {
		_, runner.logger = glog.Resolve("jobs", nil, nil)
	}
	return runner, nil
}

// Run consumes deliveries until the context ends.
func (r *Runner) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.HandleNext(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Error("handle job delivery failed", "error", err)
		}
	}
}

// HandleNext processes exactly one delivery.
func (r *Runner) HandleNext(ctx context.Context) error {
	if r == nil || r.dequeuer == nil {
		return fmt.Errorf("jobs: runner is not configured")
	}
	delivery, err := r.dequeuer.Dequeue(ctx)
	if err != nil {
		return fmt.Errorf("jobs: dequeue: %w", err)
	}

	msg := delivery.Message()
	if msg == nil {
		return delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     "empty execution message",
		})
	}

	if err := r.dispatch(ctx, msg); err != nil {
		r.logger.Warn("job failed", "job_id", msg.JobID, "error", err)
		return delivery.Nack(ctx, core.JobNackOptions{
			Requeue: true,
			Delay:   r.nackDelay,
			Reason:  err.Error(),
		})
	}
	return delivery.Ack(ctx)
}

func (r *Runner) dispatch(ctx context.Context, msg *core.JobExecutionMessage) error {
	switch strings.TrimSpace(msg.JobID) {
	case gojob.JobIDTrackingSync:
		if r.syncer == nil {
			return fmt.Errorf("jobs: tracking sync service is not configured")
		}
		report, err := r.syncer.Run(ctx, quotesync.RunOptions{
			TrackingNumber: stringParameter(msg.Parameters, "tracking_number"),
			Source:         core.TrackingSourceAutomatic,
		})
		if err != nil {
			return err
		}
		r.logger.Info("tracking sync sweep done", "processed", report.Processed)
		return nil
	case gojob.JobIDNotifyDispatch:
		if r.dispatcher == nil {
			return fmt.Errorf("jobs: notification dispatcher is not configured")
		}
		stats, err := r.dispatcher.DispatchPending(ctx, intParameter(msg.Parameters, "batch_size"))
		if err != nil {
			return err
		}
		r.logger.Info("notification dispatch done",
			"claimed", stats.Claimed,
			"delivered", stats.Delivered,
			"retried", stats.Retried,
			"failed", stats.Failed,
		)
		return nil
	default:
		return fmt.Errorf("jobs: unknown job id %q", msg.JobID)
	}
}

// NewTrackingSyncMessage builds the scheduled sweep request. The idempotency
// key collapses duplicate enqueues for the same shipment within one sweep
// window.
func NewTrackingSyncMessage(trackingNumber string, at time.Time) *core.JobExecutionMessage {
	trackingNumber = strings.TrimSpace(trackingNumber)
	parameters := map[string]any{}
	if trackingNumber != "" {
		parameters["tracking_number"] = trackingNumber
	}
	return &core.JobExecutionMessage{
		JobID:          gojob.JobIDTrackingSync,
		Parameters:     parameters,
		IdempotencyKey: fmt.Sprintf("%s:%s:%s", gojob.JobIDTrackingSync, trackingNumber, at.UTC().Format("2006-01-02T15:04")),
	}
}

func NewNotifyDispatchMessage(batchSize int, at time.Time) *core.JobExecutionMessage {
	parameters := map[string]any{}
	if batchSize > 0 {
		parameters["batch_size"] = batchSize
	}
	return &core.JobExecutionMessage{
		JobID:          gojob.JobIDNotifyDispatch,
		Parameters:     parameters,
		IdempotencyKey: fmt.Sprintf("%s:%s", gojob.JobIDNotifyDispatch, at.UTC().Format("2006-01-02T15:04")),
	}
}

func stringParameter(parameters map[string]any, key string) string {
	if raw, ok := parameters[key]; ok {
		if value, ok := raw.(string); ok {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func intParameter(parameters map[string]any, key string) int {
	switch value := parameters[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	}
	return 0
}
