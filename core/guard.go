package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Guard is the single choke point for quote lifecycle writes. Every status
// change, whether customer action, lab action, admin action, or automated
// sync, passes through ApplyTransition, so the audit log is complete by
// construction.
type Guard struct {
	quotes   QuoteStore
	writer   TransitionWriter
	activity ActivityStore
	outbox   NotificationOutboxStore
	hooks    *LifecycleHookCoordinator
	logger   Logger
	metrics  MetricsRecorder
	now      func() time.Time
	newID    func() string
}

type GuardOption func(*Guard)

func WithGuardOutbox(outbox NotificationOutboxStore) GuardOption {
	return func(g *Guard) {
		g.outbox = outbox
	}
}

func WithGuardHooks(hooks *LifecycleHookCoordinator) GuardOption {
	return func(g *Guard) {
		g.hooks = hooks
	}
}

func WithGuardLogger(logger Logger) GuardOption {
	return func(g *Guard) {
		g.logger = logger
	}
}

func WithGuardMetrics(recorder MetricsRecorder) GuardOption {
	return func(g *Guard) {
		g.metrics = recorder
	}
}

func WithGuardClock(now func() time.Time) GuardOption {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

func WithGuardIDGenerator(newID func() string) GuardOption {
	return func(g *Guard) {
		if newID != nil {
			g.newID = newID
		}
	}
}

func NewGuard(quotes QuoteStore, writer TransitionWriter, activity ActivityStore, options ...GuardOption) (*Guard, error) {
	if quotes == nil {
		return nil, fmt.Errorf("core: quote store is required")
	}
	if writer == nil {
		return nil, fmt.Errorf("core: transition writer is required")
	}
	if activity == nil {
		return nil, fmt.Errorf("core: activity store is required")
	}
	guard := &Guard{
		quotes:   quotes,
		writer:   writer,
		activity: activity,
		metrics:  NopMetricsRecorder{},
		now: func() time.Time {
			return time.Now().UTC()
		},
		newID: func() string {
			return uuid.NewString()
		},
	}
	for _, option := range options {
		if option != nil {
			option(guard)
		}
	}
	return guard, nil
}

// ApplyTransitionInput carries one requested status change. ExpectedCurrent
// is required: the commit is a compare-and-set write, never a blind one, so
// a racing writer loses with ErrStaleQuoteState instead of clobbering.
type ApplyTransitionInput struct {
	QuoteID         string
	Target          QuoteStatus
	Actor           Actor
	ExpectedCurrent QuoteStatus
	Reason          string
	TransactionRef  string
	TrackingNumber  string
	CarrierCode     string
	Source          string
}

func (in ApplyTransitionInput) Validate() error {
	if strings.TrimSpace(in.QuoteID) == "" {
		return fmt.Errorf("core: quote id is required")
	}
	if !ValidQuoteStatus(in.Target) {
		return fmt.Errorf("%w: %q", ErrInvalidQuoteStatus, in.Target)
	}
	if !ValidQuoteStatus(in.ExpectedCurrent) {
		return fmt.Errorf("%w: expected current %q", ErrInvalidQuoteStatus, in.ExpectedCurrent)
	}
	return in.Actor.Validate()
}

// ApplyTransition validates, in order: the quote exists, the lock policy
// admits the actor, the graph contains the edge, and role preconditions
// hold. On success it commits the status plus status-coupled fields together
// with exactly one activity entry, then queues notification dispatch so a
// send failure can never unwind the committed write.
func (g *Guard) ApplyTransition(ctx context.Context, input ApplyTransitionInput) (*Quote, error) {
	if g == nil || g.quotes == nil || g.writer == nil {
		return nil, fmt.Errorf("core: transition guard is not configured")
	}
	startedAt := g.now()
	quote, err := g.applyTransition(ctx, input)
	g.observeOperation(ctx, startedAt, "apply_transition", err, map[string]any{
		"quote_id":   strings.TrimSpace(input.QuoteID),
		"target":     string(input.Target),
		"actor_role": string(input.Actor.Role),
	})
	return quote, err
}

func (g *Guard) applyTransition(ctx context.Context, input ApplyTransitionInput) (*Quote, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	quote, err := g.quotes.GetByID(ctx, strings.TrimSpace(input.QuoteID))
	if err != nil {
		return nil, err
	}

	current := quote.Status
	if IsLocked(current) && !transitionOverride(input.Actor.Role) {
		return nil, ErrQuoteLocked
	}
	if !TransitionAllowed(current, input.Target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidQuoteStatusTransition, current, input.Target)
	}
	if current != input.ExpectedCurrent {
		return nil, fmt.Errorf("%w: expected %s, found %s", ErrStaleQuoteState, input.ExpectedCurrent, current)
	}

	now := g.now()
	patch, err := g.transitionPatch(quote, input, now)
	if err != nil {
		return nil, err
	}

	entry := g.transitionEntry(quote, input, now)
	event := LifecycleEvent{
		ID:         g.newID(),
		Name:       EventQuoteStatusChanged,
		QuoteID:    quote.ID,
		ActorID:    strings.TrimSpace(input.Actor.ID),
		ActorRole:  string(input.Actor.Role),
		Source:     lifecycleSource(input),
		OccurredAt: now,
		Payload: map[string]any{
			"from": string(current),
			"to":   string(input.Target),
		},
	}
	if input.Target == QuoteStatusPaidAwaitingShipping {
		event.Name = EventQuotePaymentRecorded
	}
	if input.Target == QuoteStatusDelivered {
		event.Name = EventQuoteDelivered
	}

	if err := g.hooks.ExecutePreCommit(ctx, event); err != nil {
		return nil, err
	}

	updated, err := g.writer.CommitTransition(ctx, StatusCASInput{
		QuoteID:  quote.ID,
		Expected: input.ExpectedCurrent,
		Next:     input.Target,
		Patch:    patch,
	}, entry)
	if err != nil {
		return nil, err
	}

	g.enqueueTransitionNotification(ctx, updated, current, input, now)

	if hookErr := g.hooks.ExecutePostCommit(ctx, event); hookErr != nil {
		g.logError(ctx, "post-commit lifecycle hooks failed", map[string]any{
			"quote_id": quote.ID,
			"error":    hookErr.Error(),
		})
	}

	return updated, nil
}

// transitionOverride reports whether a role may move a quote that is already
// past the payment boundary. Customers have nothing left to do post-payment;
// the lab runs the testing workflow and the system runs carrier sync.
func transitionOverride(role ActorRole) bool {
	switch role {
	case ActorRoleSystem, ActorRoleLab, ActorRoleAdmin:
		return true
	}
	return false
}

func (g *Guard) transitionPatch(quote *Quote, input ApplyTransitionInput, now time.Time) (QuoteFieldPatch, error) {
	patch := QuoteFieldPatch{}
	switch input.Target {
	case QuoteStatusPaidAwaitingShipping:
		ref := strings.TrimSpace(input.TransactionRef)
		if ref == "" && !quote.HasPayment() {
			return patch, fmt.Errorf("%w: payment record is required before %s",
				ErrTransitionPrecondition, QuoteStatusPaidAwaitingShipping)
		}
		if ref != "" {
			patch.TransactionRef = &ref
		}
		paidAt := now
		if quote.PaidAt == nil {
			patch.PaidAt = &paidAt
		}
	case QuoteStatusInTransit:
		tracking := strings.TrimSpace(input.TrackingNumber)
		if tracking == "" {
			tracking = strings.TrimSpace(quote.TrackingNumber)
		}
		if tracking == "" {
			return patch, fmt.Errorf("%w: tracking number is required before %s",
				ErrTransitionPrecondition, QuoteStatusInTransit)
		}
		if tracking != quote.TrackingNumber {
			patch.TrackingNumber = &tracking
		}
		if carrier := strings.TrimSpace(input.CarrierCode); carrier != "" && carrier != quote.CarrierCode {
			patch.CarrierCode = &carrier
		}
		if quote.ShippedDate == nil {
			shipped := now
			patch.ShippedDate = &shipped
		}
	case QuoteStatusDelivered:
		if quote.DeliveredDate == nil {
			delivered := now
			patch.DeliveredDate = &delivered
		}
	}
	return patch, nil
}

func (g *Guard) transitionEntry(quote *Quote, input ApplyTransitionInput, now time.Time) ActivityEntry {
	entry := ActivityEntry{
		ID:        g.newID(),
		QuoteID:   quote.ID,
		ActorID:   strings.TrimSpace(input.Actor.ID),
		ActorRole: input.Actor.Role,
		CreatedAt: now,
	}

	statusMeta := StatusChangeMetadata{
		From:   quote.Status,
		To:     input.Target,
		Source: lifecycleSource(input),
		Reason: strings.TrimSpace(input.Reason),
	}

	switch input.Target {
	case QuoteStatusPaidAwaitingShipping:
		ref := strings.TrimSpace(input.TransactionRef)
		if ref == "" {
			ref = quote.TransactionRef
		}
		entry.Type = ActivityPaymentRecorded
		entry.Message = fmt.Sprintf("Payment of %s %s recorded", FormatAmountCents(quote.AmountCents), quote.Currency)
		entry.Metadata = PaymentMetadata{
			AmountCents:    quote.AmountCents,
			Currency:       quote.Currency,
			TransactionRef: ref,
		}
	case QuoteStatusRejected:
		entry.Type = ActivityStatusChange
		if input.Actor.Role == ActorRoleCustomer {
			entry.Type = ActivityCustomerRejection
		}
		if input.Actor.Role == ActorRoleLab {
			entry.Type = ActivityVendorRejection
		}
		entry.Message = fmt.Sprintf("Quote rejected from %s", quote.Status)
		entry.Metadata = statusMeta
	case QuoteStatusAwaitingCustomerApproval:
		entry.Type = ActivityVendorApproval
		entry.Message = "Quote priced and sent for customer approval"
		entry.Metadata = statusMeta
	case QuoteStatusApprovedPaymentPending:
		entry.Type = ActivityCustomerApproval
		entry.Message = "Quote approved by customer, payment pending"
		entry.Metadata = statusMeta
	default:
		entry.Type = ActivityStatusChange
		if input.Actor.IsSystem() {
			entry.Type = ActivityTrackingStatusSync
		}
		entry.Message = fmt.Sprintf("Status changed from %s to %s", quote.Status, input.Target)
		entry.Metadata = statusMeta
	}
	return entry
}

func lifecycleSource(input ApplyTransitionInput) string {
	if source := strings.TrimSpace(input.Source); source != "" {
		return source
	}
	if input.Actor.IsSystem() {
		return LifecycleSourceSync
	}
	return LifecycleSourceUser
}

func (g *Guard) enqueueTransitionNotification(ctx context.Context, quote *Quote, from QuoteStatus, input ApplyTransitionInput, now time.Time) {
	if g.outbox == nil || quote == nil {
		return
	}
	notification := Notification{
		ID:             g.newID(),
		QuoteID:        quote.ID,
		Channel:        "email",
		Template:       "quote_" + string(input.Target),
		IdempotencyKey: fmt.Sprintf("%s:%s:%s", quote.ID, from, input.Target),
		Payload: map[string]any{
			"from":       string(from),
			"to":         string(input.Target),
			"actor_role": string(input.Actor.Role),
		},
		Status:    NotificationStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := g.outbox.Enqueue(ctx, notification); err != nil {
		g.logError(ctx, "enqueue transition notification failed", map[string]any{
			"quote_id": quote.ID,
			"error":    err.Error(),
		})
	}
}

// CreateQuote opens a new draft and records its creation on the timeline.
func (g *Guard) CreateQuote(ctx context.Context, input CreateQuoteInput, actor Actor) (*Quote, error) {
	if g == nil || g.quotes == nil {
		return nil, fmt.Errorf("core: transition guard is not configured")
	}
	startedAt := g.now()
	quote, err := g.createQuote(ctx, input, actor)
	g.observeOperation(ctx, startedAt, "create_quote", err, map[string]any{
		"actor_role": string(actor.Role),
	})
	return quote, err
}

func (g *Guard) createQuote(ctx context.Context, input CreateQuoteInput, actor Actor) (*Quote, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.CustomerID) == "" {
		return nil, fmt.Errorf("core: customer id is required")
	}
	if strings.TrimSpace(input.LabID) == "" {
		return nil, fmt.Errorf("core: lab id is required")
	}
	if input.SampleCount < 0 {
		return nil, fmt.Errorf("core: sample count must not be negative")
	}
	if input.AmountCents < 0 {
		return nil, fmt.Errorf("core: amount must not be negative")
	}
	if strings.TrimSpace(input.Currency) == "" {
		input.Currency = "USD"
	}

	quote, err := g.quotes.Create(ctx, input)
	if err != nil {
		return nil, err
	}

	now := g.now()
	entry := ActivityEntry{
		ID:        g.newID(),
		QuoteID:   quote.ID,
		Type:      ActivityQuoteCreated,
		ActorID:   strings.TrimSpace(actor.ID),
		ActorRole: actor.Role,
		Message:   "Quote created",
		Metadata: GenericMetadata{Extra: map[string]any{
			"sample_count": quote.SampleCount,
			"amount_cents": quote.AmountCents,
		}},
		CreatedAt: now,
	}
	if err := g.activity.Append(ctx, entry); err != nil {
		return nil, err
	}
	return quote, nil
}

// UpdateQuoteInput carries item-level field edits. Amount arrives as the
// submitted decimal string so change detection can compare at cents
// precision instead of trusting form round-trips.
type UpdateQuoteInput struct {
	QuoteID        string
	Actor          Actor
	Description    *string
	SampleCount    *int
	Amount         *string
	TrackingNumber *string
	CarrierCode    *string
}

// UpdateQuoteFields applies item-level edits under the lock policy. Locked
// quotes reject every field mutation; pre-payment edits additionally
// require item-edit rights for the actor's role at the current status.
func (g *Guard) UpdateQuoteFields(ctx context.Context, input UpdateQuoteInput) (*Quote, error) {
	if g == nil || g.quotes == nil {
		return nil, fmt.Errorf("core: transition guard is not configured")
	}
	startedAt := g.now()
	quote, err := g.updateQuoteFields(ctx, input)
	g.observeOperation(ctx, startedAt, "update_quote", err, map[string]any{
		"quote_id":   strings.TrimSpace(input.QuoteID),
		"actor_role": string(input.Actor.Role),
	})
	return quote, err
}

func (g *Guard) updateQuoteFields(ctx context.Context, input UpdateQuoteInput) (*Quote, error) {
	if strings.TrimSpace(input.QuoteID) == "" {
		return nil, fmt.Errorf("core: quote id is required")
	}
	if err := input.Actor.Validate(); err != nil {
		return nil, err
	}

	quote, err := g.quotes.GetByID(ctx, strings.TrimSpace(input.QuoteID))
	if err != nil {
		return nil, err
	}
	if IsLocked(quote.Status) {
		return nil, ErrQuoteLocked
	}

	patch := QuoteFieldPatch{}
	changed := make(map[string]any)

	itemEdit := input.Description != nil || input.SampleCount != nil || input.Amount != nil
	if itemEdit && !CanEditItems(input.Actor.Role, quote.Status) {
		return nil, fmt.Errorf("%w: role %s cannot edit items at status %s",
			ErrTransitionPrecondition, input.Actor.Role, quote.Status)
	}

	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description != quote.Description {
			patch.Description = &description
			changed["description"] = description
		}
	}
	if input.SampleCount != nil {
		if *input.SampleCount < 0 {
			return nil, fmt.Errorf("core: sample count must not be negative")
		}
		if *input.SampleCount != quote.SampleCount {
			patch.SampleCount = input.SampleCount
			changed["sample_count"] = *input.SampleCount
		}
	}
	if input.Amount != nil {
		cents, err := ParseAmountCents(*input.Amount)
		if err != nil {
			return nil, err
		}
		if cents < 0 {
			return nil, fmt.Errorf("core: amount must not be negative")
		}
		if cents != quote.AmountCents {
			patch.AmountCents = &cents
			changed["amount_cents"] = cents
		}
	}
	shippingAdded := false
	if input.TrackingNumber != nil {
		tracking := strings.TrimSpace(*input.TrackingNumber)
		if tracking != quote.TrackingNumber {
			patch.TrackingNumber = &tracking
			changed["tracking_number"] = tracking
			shippingAdded = tracking != ""
		}
	}
	if input.CarrierCode != nil {
		carrier := strings.TrimSpace(*input.CarrierCode)
		if carrier != quote.CarrierCode {
			patch.CarrierCode = &carrier
			changed["carrier"] = carrier
		}
	}

	if patch.IsZero() {
		return quote, nil
	}

	updated, err := g.quotes.UpdateFields(ctx, quote.ID, patch)
	if err != nil {
		return nil, err
	}

	now := g.now()
	entry := ActivityEntry{
		ID:        g.newID(),
		QuoteID:   quote.ID,
		ActorID:   strings.TrimSpace(input.Actor.ID),
		ActorRole: input.Actor.Role,
		CreatedAt: now,
	}
	if shippingAdded {
		entry.Type = ActivityShippingAdded
		entry.Message = fmt.Sprintf("Tracking number %s added", updated.TrackingNumber)
		entry.Metadata = ShippingMetadata{
			TrackingNumber: updated.TrackingNumber,
			CarrierCode:    updated.CarrierCode,
			Source:         TrackingSourceManual,
		}
	} else {
		entry.Type = ActivityQuoteUpdated
		entry.Message = "Quote updated"
		entry.Metadata = GenericMetadata{Extra: changed}
	}
	if err := g.activity.Append(ctx, entry); err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteDraft removes a quote that never left draft. Locked quotes surface
// the lock message; other non-draft statuses fail the precondition.
func (g *Guard) DeleteDraft(ctx context.Context, quoteID string, actor Actor) error {
	if g == nil || g.quotes == nil {
		return fmt.Errorf("core: transition guard is not configured")
	}
	startedAt := g.now()
	err := g.deleteDraft(ctx, quoteID, actor)
	g.observeOperation(ctx, startedAt, "delete_draft", err, map[string]any{
		"quote_id":   strings.TrimSpace(quoteID),
		"actor_role": string(actor.Role),
	})
	return err
}

func (g *Guard) deleteDraft(ctx context.Context, quoteID string, actor Actor) error {
	if strings.TrimSpace(quoteID) == "" {
		return fmt.Errorf("core: quote id is required")
	}
	if err := actor.Validate(); err != nil {
		return err
	}
	quote, err := g.quotes.GetByID(ctx, strings.TrimSpace(quoteID))
	if err != nil {
		return err
	}
	if IsLocked(quote.Status) {
		return ErrQuoteLocked
	}
	if quote.Status != QuoteStatusDraft {
		return fmt.Errorf("%w: only draft quotes can be deleted, found %s",
			ErrTransitionPrecondition, quote.Status)
	}
	return g.quotes.DeleteDraft(ctx, quote.ID)
}
