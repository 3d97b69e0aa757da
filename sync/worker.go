package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
	"github.com/labforge/go-quotes/core"
)

// TransitionApplier is the slice of the lifecycle guard the worker needs.
type TransitionApplier interface {
	ApplyTransition(ctx context.Context, input core.ApplyTransitionInput) (*core.Quote, error)
}

// RunOptions scopes a single sweep. TrackingNumber narrows the batch to one
// shipment. SessionKey identifies the caller for the manual-refresh cooldown;
// scheduled runs leave it empty and are never throttled.
type RunOptions struct {
	TrackingNumber string
	SessionKey     string
	Source         core.TrackingSource
}

// ItemResult is the per-quote outcome of one sweep. Err is non-empty when the
// item failed; the batch keeps going regardless.
type ItemResult struct {
	QuoteID        string           `json:"quoteId"`
	TrackingNumber string           `json:"trackingNumber"`
	Success        bool             `json:"success"`
	OldStatus      core.QuoteStatus `json:"oldStatus"`
	NewStatus      core.QuoteStatus `json:"newStatus"`
	Err            string           `json:"error,omitempty"`
}

type RunReport struct {
	Processed int          `json:"processed"`
	Results   []ItemResult `json:"results"`
}

// Worker sweeps quotes that are waiting on carrier movement and folds the
// upstream view into the lifecycle. Each item fails on its own: a carrier
// error or a lost compare-and-set is recorded in the report and the sweep
// moves on.
type Worker struct {
	quotes      core.QuoteStore
	transitions TransitionApplier
	carrier     core.CarrierClient
	history     core.TrackingHistoryStore
	cooldowns   core.SyncCooldownStore
	config      core.Config
	logger      core.Logger
	now         func() time.Time
}

type WorkerOption func(*Worker)

func WithTrackingHistory(history core.TrackingHistoryStore) WorkerOption {
	return func(w *Worker) {
		w.history = history
	}
}

func WithCooldownStore(cooldowns core.SyncCooldownStore) WorkerOption {
	return func(w *Worker) {
		w.cooldowns = cooldowns
	}
}

func WithWorkerConfig(config core.Config) WorkerOption {
	return func(w *Worker) {
		w.config = config
	}
}

func WithWorkerLogger(logger core.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithWorkerClock(now func() time.Time) WorkerOption {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

func NewWorker(
	quotes core.QuoteStore,
	transitions TransitionApplier,
	carrier core.CarrierClient,
	options ...WorkerOption,
) (*Worker, error) {
	if quotes == nil {
		return nil, fmt.Errorf("sync: quote store is required")
	}
	if transitions == nil {
		return nil, fmt.Errorf("sync: transition applier is required")
	}
	if carrier == nil {
		return nil, fmt.Errorf("sync: carrier client is required")
	}
	worker := &Worker{
		quotes:      quotes,
		transitions: transitions,
		carrier:     carrier,
		config:      core.DefaultConfig(),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, option := range options {
		if option != nil {
			option(worker)
		}
	}
	if worker.logger == nil {
		_, worker.logger = glog.Resolve("tracking-sync", nil, nil)
	}
	return worker, nil
}

// Run executes one sweep and reports every candidate it touched. Manual runs
// carrying a session key are throttled by the persisted cooldown; the sweep
// itself is refused with ErrSyncCooldownActive, nothing is partially done.
func (w *Worker) Run(ctx context.Context, opts RunOptions) (RunReport, error) {
	if w == nil || w.quotes == nil {
		return RunReport{}, fmt.Errorf("sync: worker is not configured")
	}
	source := opts.Source
	if source == "" {
		source = core.TrackingSourceAutomatic
	}

	if err := w.checkCooldown(ctx, source, opts.SessionKey); err != nil {
		return RunReport{}, err
	}

	limit := w.config.Sync.BatchSize
	if limit <= 0 {
		limit = core.DefaultConfig().Sync.BatchSize
	}
	candidates, err := w.quotes.ListSyncCandidates(ctx, core.ListSyncCandidatesInput{
		Limit:          limit,
		TrackingNumber: strings.TrimSpace(opts.TrackingNumber),
	})
	if err != nil {
		return RunReport{}, fmt.Errorf("sync: list candidates: %w", err)
	}

	report := RunReport{Results: make([]ItemResult, 0, len(candidates))}
	for _, quote := range candidates {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		result := w.syncQuote(ctx, quote, source)
		report.Results = append(report.Results, result)
		if !result.Success {
			w.logger.Warn("tracking sync item failed",
				"quote_id", result.QuoteID,
				"tracking_number", result.TrackingNumber,
				"error", result.Err,
			)
		}
	}
	report.Processed = len(report.Results)
	return report, nil
}

func (w *Worker) checkCooldown(ctx context.Context, source core.TrackingSource, sessionKey string) error {
	sessionKey = strings.TrimSpace(sessionKey)
	if source != core.TrackingSourceManual || sessionKey == "" || w.cooldowns == nil {
		return nil
	}
	now := w.now()
	last, err := w.cooldowns.LastTriggeredAt(ctx, sessionKey)
	if err != nil {
		return fmt.Errorf("sync: read cooldown: %w", err)
	}
	cooldown := w.config.Cooldown()
	if last != nil && now.Sub(*last) < cooldown {
		retryAt := last.Add(cooldown)
		return fmt.Errorf("%w: next manual refresh allowed at %s",
			core.ErrSyncCooldownActive, retryAt.UTC().Format(time.RFC3339))
	}
	if err := w.cooldowns.Touch(ctx, sessionKey, now); err != nil {
		// the refresh still runs; only the throttle bookkeeping is degraded
		w.logger.Warn("touch sync cooldown failed", "session_key", sessionKey, "error", err)
	}
	return nil
}

func (w *Worker) syncQuote(ctx context.Context, quote *core.Quote, source core.TrackingSource) ItemResult {
	result := ItemResult{
		QuoteID:        quote.ID,
		TrackingNumber: quote.TrackingNumber,
		OldStatus:      quote.Status,
		NewStatus:      quote.Status,
	}

	status, err := w.carrier.Track(ctx, quote.TrackingNumber)
	if err != nil {
		result.Err = err.Error()
		return result
	}

	target := MapCarrierStatus(status.Code)
	if core.StatusRank(target) <= core.StatusRank(quote.Status) {
		// no forward movement; the shipment never walks backwards here
		if err := w.touchLastChecked(ctx, quote.ID); err != nil {
			result.Err = err.Error()
			return result
		}
		result.Success = true
		return result
	}

	current := quote.Status
	for _, next := range statusPath(current, target) {
		if _, err := w.transitions.ApplyTransition(ctx, core.ApplyTransitionInput{
			QuoteID:         quote.ID,
			Target:          next,
			Actor:           core.SystemActor,
			ExpectedCurrent: current,
			Reason:          carrierReason(status),
			TrackingNumber:  quote.TrackingNumber,
			CarrierCode:     quote.CarrierCode,
			Source:          core.LifecycleSourceSync,
		}); err != nil {
			result.NewStatus = current
			result.Err = err.Error()
			return result
		}
		current = next
	}
	result.NewStatus = current
	result.Success = true

	if err := w.touchLastChecked(ctx, quote.ID); err != nil {
		w.logger.Warn("touch tracking_last_checked_at failed", "quote_id", quote.ID, "error", err)
	}
	w.appendHistory(ctx, quote, current, source, status)
	return result
}

func (w *Worker) touchLastChecked(ctx context.Context, quoteID string) error {
	checkedAt := w.now()
	_, err := w.quotes.UpdateFields(ctx, quoteID, core.QuoteFieldPatch{
		TrackingLastCheckedAt: &checkedAt,
	})
	return err
}

// appendHistory records the observed carrier movement. The transition already
// committed; a history write failure is logged, never surfaced.
func (w *Worker) appendHistory(
	ctx context.Context,
	quote *core.Quote,
	status core.QuoteStatus,
	source core.TrackingSource,
	carrierStatus core.CarrierTrackingStatus,
) {
	if w.history == nil {
		return
	}
	entry := core.TrackingHistoryEntry{
		ID:             uuid.NewString(),
		QuoteID:        quote.ID,
		Status:         status,
		TrackingNumber: quote.TrackingNumber,
		Source:         source,
		CarrierDetail:  carrierDetail(carrierStatus),
		CreatedAt:      w.now(),
	}
	if err := w.history.Append(ctx, entry); err != nil {
		w.logger.Warn("append tracking history failed", "quote_id", quote.ID, "error", err)
	}
}

func carrierReason(status core.CarrierTrackingStatus) string {
	if desc := strings.TrimSpace(status.Description); desc != "" {
		return desc
	}
	return strings.TrimSpace(status.Code)
}

func carrierDetail(status core.CarrierTrackingStatus) map[string]any {
	detail := map[string]any{
		"status_code": status.Code,
	}
	if status.Description != "" {
		detail["description"] = status.Description
	}
	if status.Location != "" {
		detail["location"] = status.Location
	}
	if status.EventTime != nil {
		detail["event_time"] = status.EventTime.UTC().Format(time.RFC3339)
	}
	for key, value := range status.Raw {
		if _, taken := detail[key]; !taken {
			detail[key] = value
		}
	}
	return detail
}

// statusPath lists the forward edges between two shipping statuses so a
// delivered scan against a quote still awaiting shipment walks through
// in_transit instead of skipping it.
func statusPath(from, to core.QuoteStatus) []core.QuoteStatus {
	ladder := []core.QuoteStatus{
		core.QuoteStatusPaidAwaitingShipping,
		core.QuoteStatusInTransit,
		core.QuoteStatusDelivered,
	}
	path := []core.QuoteStatus{}
	collecting := false
	for _, step := range ladder {
		if collecting {
			path = append(path, step)
		}
		if step == from {
			collecting = true
		}
		if step == to {
			break
		}
	}
	return path
}

var carrierStatusMap = map[string]core.QuoteStatus{
	"LABEL_CREATED":       core.QuoteStatusInTransit,
	"ACCEPTED":            core.QuoteStatusInTransit,
	"PICKED_UP":           core.QuoteStatusInTransit,
	"SHIPPED":             core.QuoteStatusInTransit,
	"IN_TRANSIT":          core.QuoteStatusInTransit,
	"ARRIVED_AT_FACILITY": core.QuoteStatusInTransit,
	"DEPARTED_FACILITY":   core.QuoteStatusInTransit,
	"OUT_FOR_DELIVERY":    core.QuoteStatusInTransit,
	"EXCEPTION":           core.QuoteStatusInTransit,
	"DELIVERED":           core.QuoteStatusDelivered,
}

// MapCarrierStatus folds an upstream status code into the internal lifecycle.
// Codes the table does not know mean the shipment is somewhere between pickup
// and delivery, so they map to in_transit.
func MapCarrierStatus(code string) core.QuoteStatus {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	if status, ok := carrierStatusMap[normalized]; ok {
		return status
	}
	return core.QuoteStatusInTransit
}
