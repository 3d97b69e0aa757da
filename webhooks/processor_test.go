package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/labforge/go-quotes/core"
)

type fakeEmailStore struct {
	byID          map[string]*core.OutboundEmail
	byMessage     map[string]string
	latestByRcpt  map[string]string
	applied       []core.EngagementUpdate
	failApply     error
	lookupsByMsg  int
	lookupsByRcpt int
}

func newFakeEmailStore(emails ...*core.OutboundEmail) *fakeEmailStore {
	store := &fakeEmailStore{
		byID:         map[string]*core.OutboundEmail{},
		byMessage:    map[string]string{},
		latestByRcpt: map[string]string{},
	}
	for _, email := range emails {
		store.byID[email.ID] = email
		if email.MessageID != "" {
			store.byMessage[email.MessageID] = email.ID
		}
		store.latestByRcpt[email.Recipient] = email.ID
	}
	return store
}

func (f *fakeEmailStore) Create(_ context.Context, email core.OutboundEmail) (*core.OutboundEmail, error) {
	copied := email
	f.byID[email.ID] = &copied
	return &copied, nil
}

func (f *fakeEmailStore) GetByMessageID(_ context.Context, messageID string) (*core.OutboundEmail, error) {
	f.lookupsByMsg++
	id, ok := f.byMessage[messageID]
	if !ok {
		return nil, fmt.Errorf("%w: message %s", core.ErrEmailRecordNotFound, messageID)
	}
	return f.byID[id], nil
}

func (f *fakeEmailStore) LatestByRecipient(_ context.Context, recipient string) (*core.OutboundEmail, error) {
	f.lookupsByRcpt++
	id, ok := f.latestByRcpt[recipient]
	if !ok {
		return nil, fmt.Errorf("%w: recipient %s", core.ErrEmailRecordNotFound, recipient)
	}
	return f.byID[id], nil
}

func (f *fakeEmailStore) ApplyEngagement(_ context.Context, id string, update core.EngagementUpdate) (*core.OutboundEmail, error) {
	if f.failApply != nil {
		return nil, f.failApply
	}
	email, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrEmailRecordNotFound, id)
	}
	f.applied = append(f.applied, update)
	if update.DeliveredAt != nil && email.DeliveredAt == nil {
		email.DeliveredAt = update.DeliveredAt
	}
	if update.OpenedAt != nil && email.OpenedAt == nil {
		email.OpenedAt = update.OpenedAt
	}
	if update.ClickedAt != nil && email.ClickedAt == nil {
		email.ClickedAt = update.ClickedAt
	}
	if update.BouncedAt != nil && email.BouncedAt == nil {
		email.BouncedAt = update.BouncedAt
		email.BounceReason = update.BounceReason
	}
	if update.FailedAt != nil && email.FailedAt == nil {
		email.FailedAt = update.FailedAt
		email.FailureReason = update.FailureReason
	}
	return email, nil
}

type fakeActivitySink struct {
	entries []core.ActivityEntry
	fail    error
}

func (f *fakeActivitySink) Append(_ context.Context, entry core.ActivityEntry) error {
	if f.fail != nil {
		return f.fail
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeActivitySink) List(context.Context, core.ListActivityInput) ([]core.ActivityEntry, error) {
	return append([]core.ActivityEntry(nil), f.entries...), nil
}

func (f *fakeActivitySink) PruneBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func signedRequest(t *testing.T, auth Authenticator, event map[string]any) InboundRequest {
	t.Helper()
	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return InboundRequest{
		Headers: map[string]string{DefaultSignatureHeader: auth.Sign(body)},
		Body:    body,
	}
}

func newTestProcessor(t *testing.T, emails *fakeEmailStore, activity *fakeActivitySink) (*Processor, Authenticator) {
	t.Helper()
	auth := NewAuthenticator("shh")
	processor, err := NewProcessor(auth, emails, activity)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	return processor, auth
}

func TestProcessorRejectsBadSignatureBeforeParsing(t *testing.T) {
	emails := newFakeEmailStore()
	processor, _ := newTestProcessor(t, emails, nil)

	// deliberately malformed JSON: it must never be parsed
	req := InboundRequest{
		Headers: map[string]string{DefaultSignatureHeader: "00ff"},
		Body:    []byte(`{"type": not-json`),
	}
	_, err := processor.Process(context.Background(), req)
	if !errors.Is(err, core.ErrWebhookUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if emails.lookupsByMsg != 0 || emails.lookupsByRcpt != 0 {
		t.Fatalf("no lookup may happen on rejected delivery")
	}
}

func TestProcessorDeliveryEventByMessageID(t *testing.T) {
	email := &core.OutboundEmail{ID: "e-1", QuoteID: "q-1", Recipient: "a@example.com", MessageID: "msg-1"}
	emails := newFakeEmailStore(email)
	activity := &fakeActivitySink{}
	processor, auth := newTestProcessor(t, emails, activity)

	result, err := processor.Process(context.Background(), signedRequest(t, auth, map[string]any{
		"type":       "delivery",
		"email":      "a@example.com",
		"message_id": "msg-1",
		"timestamp":  "2026-08-01T10:00:00Z",
	}))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.EmailID != "e-1" || result.QuoteID != "q-1" || result.Event != EventDelivery {
		t.Fatalf("unexpected result: %+v", result)
	}
	if email.DeliveredAt == nil || !email.DeliveredAt.Equal(time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected delivered_at from event timestamp, got %v", email.DeliveredAt)
	}
	if len(activity.entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(activity.entries))
	}
	metadata, ok := activity.entries[0].Metadata.(core.EmailMetadata)
	if !ok || metadata.Event != EventDelivery || metadata.MessageID != "msg-1" {
		t.Fatalf("unexpected audit metadata: %+v", activity.entries[0].Metadata)
	}
}

func TestProcessorFallsBackToLatestByRecipient(t *testing.T) {
	email := &core.OutboundEmail{ID: "e-2", Recipient: "b@example.com"}
	emails := newFakeEmailStore(email)
	processor, auth := newTestProcessor(t, emails, nil)

	result, err := processor.Process(context.Background(), signedRequest(t, auth, map[string]any{
		"type":       "open",
		"email":      "b@example.com",
		"message_id": "unknown-msg",
	}))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.EmailID != "e-2" {
		t.Fatalf("expected recipient fallback, got %+v", result)
	}
	if emails.lookupsByMsg != 1 || emails.lookupsByRcpt != 1 {
		t.Fatalf("expected message lookup then recipient fallback")
	}
	if email.OpenedAt == nil || email.DeliveredAt == nil {
		t.Fatalf("open must fill opened_at and backfill delivered_at")
	}
}

func TestProcessorUnknownRecipientIsNotFound(t *testing.T) {
	processor, auth := newTestProcessor(t, newFakeEmailStore(), nil)

	_, err := processor.Process(context.Background(), signedRequest(t, auth, map[string]any{
		"type":  "delivery",
		"email": "nobody@example.com",
	}))
	if !errors.Is(err, core.ErrEmailRecordNotFound) {
		t.Fatalf("expected email not found, got %v", err)
	}
}

func TestProcessorBounceCarriesReason(t *testing.T) {
	email := &core.OutboundEmail{ID: "e-3", Recipient: "c@example.com"}
	emails := newFakeEmailStore(email)
	processor, auth := newTestProcessor(t, emails, nil)

	_, err := processor.Process(context.Background(), signedRequest(t, auth, map[string]any{
		"type":          "bounce",
		"email":         "c@example.com",
		"bounce_type":   "permanent",
		"bounce_reason": "mailbox does not exist",
	}))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if email.BouncedAt == nil {
		t.Fatalf("expected bounced_at set")
	}
	if !strings.Contains(email.BounceReason, "permanent") || !strings.Contains(email.BounceReason, "mailbox does not exist") {
		t.Fatalf("expected combined bounce reason, got %q", email.BounceReason)
	}
}

func TestProcessorComplaintSetsFailure(t *testing.T) {
	email := &core.OutboundEmail{ID: "e-4", Recipient: "d@example.com"}
	emails := newFakeEmailStore(email)
	processor, auth := newTestProcessor(t, emails, nil)

	_, err := processor.Process(context.Background(), signedRequest(t, auth, map[string]any{
		"type":           "complaint",
		"email":          "d@example.com",
		"failure_reason": "marked as spam",
	}))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if email.FailedAt == nil || email.FailureReason != "marked as spam" {
		t.Fatalf("expected failure recorded, got %+v", email)
	}
}

func TestProcessorRejectsUnsupportedEventType(t *testing.T) {
	processor, auth := newTestProcessor(t, newFakeEmailStore(), nil)

	_, err := processor.Process(context.Background(), signedRequest(t, auth, map[string]any{
		"type":  "unsubscribe",
		"email": "a@example.com",
	}))
	if err == nil || !strings.Contains(err.Error(), "unsupported event type") {
		t.Fatalf("expected unsupported event error, got %v", err)
	}
}

func TestProcessorAuditFailureDoesNotRejectEvent(t *testing.T) {
	email := &core.OutboundEmail{ID: "e-5", QuoteID: "q-5", Recipient: "e@example.com"}
	emails := newFakeEmailStore(email)
	activity := &fakeActivitySink{fail: errors.New("log table offline")}
	processor, auth := newTestProcessor(t, emails, activity)

	result, err := processor.Process(context.Background(), signedRequest(t, auth, map[string]any{
		"type":  "click",
		"email": "e@example.com",
	}))
	if err != nil {
		t.Fatalf("verified event must apply despite audit failure: %v", err)
	}
	if result.EmailID != "e-5" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if email.ClickedAt == nil {
		t.Fatalf("expected clicked_at set")
	}
}
