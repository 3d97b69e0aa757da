package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
	"github.com/labforge/go-quotes/core"
)

const (
	EventDelivery  = "delivery"
	EventOpen      = "open"
	EventClick     = "click"
	EventBounce    = "bounce"
	EventComplaint = "complaint"
)

// InboundRequest is the raw webhook delivery: headers plus unparsed body.
// The processor verifies the signature before the body is decoded.
type InboundRequest struct {
	Headers map[string]string
	Body    []byte
}

type engagementEvent struct {
	Type          string  `json:"type"`
	Email         string  `json:"email"`
	MessageID     string  `json:"message_id"`
	Timestamp     string  `json:"timestamp"`
	BounceType    string  `json:"bounce_type"`
	BounceReason  string  `json:"bounce_reason"`
	FailureReason string  `json:"failure_reason"`
	TimestampUnix float64 `json:"timestamp_unix"`
}

// Result reports which outbound email row absorbed the event.
type Result struct {
	EmailID string
	QuoteID string
	Event   string
}

type Processor struct {
	authenticator Authenticator
	emails        core.OutboundEmailStore
	activity      core.ActivityStore
	logger        core.Logger
	now           func() time.Time
}

type ProcessorOption func(*Processor)

func WithProcessorLogger(logger core.Logger) ProcessorOption {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithProcessorClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

func NewProcessor(
	authenticator Authenticator,
	emails core.OutboundEmailStore,
	activity core.ActivityStore,
	options ...ProcessorOption,
) (*Processor, error) {
	if emails == nil {
		return nil, fmt.Errorf("webhooks: outbound email store is required")
	}
	processor := &Processor{
		authenticator: authenticator,
		emails:        emails,
		activity:      activity,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, option := range options {
		if option != nil {
			option(processor)
		}
	}
	if processor.logger == nil {
		_, processor.logger = glog.Resolve("webhooks", nil, nil)
	}
	return processor, nil
}

// Process verifies, decodes, and applies one engagement event. Verification
// runs against the raw body; nothing is parsed until the signature holds.
func (p *Processor) Process(ctx context.Context, req InboundRequest) (Result, error) {
	if p == nil || p.emails == nil {
		return Result{}, fmt.Errorf("webhooks: processor is not configured")
	}

	if err := p.authenticator.Verify(ctx, req.Headers, req.Body); err != nil {
		return Result{}, err
	}

	var event engagementEvent
	if err := json.Unmarshal(req.Body, &event); err != nil {
		return Result{}, fmt.Errorf("webhooks: decode event payload: %w", err)
	}
	eventType := strings.ToLower(strings.TrimSpace(event.Type))
	switch eventType {
	case EventDelivery, EventOpen, EventClick, EventBounce, EventComplaint:
	default:
		return Result{}, fmt.Errorf("webhooks: unsupported event type %q", event.Type)
	}

	email, err := p.locateEmail(ctx, event)
	if err != nil {
		return Result{}, err
	}

	occurredAt := p.eventTime(event)
	update := engagementUpdateFor(eventType, occurredAt, event)
	updated, err := p.emails.ApplyEngagement(ctx, email.ID, update)
	if err != nil {
		return Result{}, err
	}

	p.appendAuditEntry(ctx, updated, eventType, event)

	return Result{
		EmailID: updated.ID,
		QuoteID: updated.QuoteID,
		Event:   eventType,
	}, nil
}

// locateEmail resolves the outbound email row the event refers to: by
// message id when the provider echoes one, otherwise the most recent email
// sent to the recipient.
func (p *Processor) locateEmail(ctx context.Context, event engagementEvent) (*core.OutboundEmail, error) {
	if messageID := strings.TrimSpace(event.MessageID); messageID != "" {
		email, err := p.emails.GetByMessageID(ctx, messageID)
		if err == nil {
			return email, nil
		}
	}
	recipient := strings.TrimSpace(event.Email)
	if recipient == "" {
		return nil, fmt.Errorf("%w: event carries no message id or recipient", core.ErrEmailRecordNotFound)
	}
	return p.emails.LatestByRecipient(ctx, recipient)
}

func (p *Processor) eventTime(event engagementEvent) time.Time {
	if raw := strings.TrimSpace(event.Timestamp); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			return parsed.UTC()
		}
	}
	if event.TimestampUnix > 0 {
		return time.Unix(int64(event.TimestampUnix), 0).UTC()
	}
	return p.now()
}

func engagementUpdateFor(eventType string, at time.Time, event engagementEvent) core.EngagementUpdate {
	occurred := at
	update := core.EngagementUpdate{}
	switch eventType {
	case EventDelivery:
		update.DeliveredAt = &occurred
	case EventOpen:
		// an open implies delivery; the store only fills what is unset
		update.DeliveredAt = &occurred
		update.OpenedAt = &occurred
	case EventClick:
		update.DeliveredAt = &occurred
		update.OpenedAt = &occurred
		update.ClickedAt = &occurred
	case EventBounce:
		update.BouncedAt = &occurred
		update.BounceReason = bounceReason(event)
	case EventComplaint:
		update.FailedAt = &occurred
		update.FailureReason = strings.TrimSpace(event.FailureReason)
	}
	return update
}

func bounceReason(event engagementEvent) string {
	reason := strings.TrimSpace(event.BounceReason)
	bounceType := strings.TrimSpace(event.BounceType)
	if reason == "" {
		return bounceType
	}
	if bounceType == "" {
		return reason
	}
	return bounceType + ": " + reason
}

// appendAuditEntry writes the parallel activity-log record when the email
// is linked to a quote. Best effort: an audit failure never rejects a
// verified, applied event.
func (p *Processor) appendAuditEntry(ctx context.Context, email *core.OutboundEmail, eventType string, event engagementEvent) {
	if p.activity == nil || email == nil || strings.TrimSpace(email.QuoteID) == "" {
		return
	}
	reason := bounceReason(event)
	if eventType == EventComplaint {
		reason = strings.TrimSpace(event.FailureReason)
	}
	entry := core.ActivityEntry{
		ID:        uuid.NewString(),
		QuoteID:   email.QuoteID,
		Type:      core.ActivityEmailEngagement,
		ActorRole: core.ActorRoleSystem,
		Message:   fmt.Sprintf("email %s event for %s", eventType, email.Recipient),
		Metadata: core.EmailMetadata{
			Recipient: email.Recipient,
			MessageID: email.MessageID,
			Event:     eventType,
			Reason:    reason,
		},
		CreatedAt: p.now(),
	}
	if err := p.activity.Append(ctx, entry); err != nil {
		p.logger.Warn("append email engagement entry failed",
			"quote_id", email.QuoteID,
			"event", eventType,
			"error", err,
		)
	}
}
