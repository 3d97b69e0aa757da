package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type CreateQuoteInput struct {
	CustomerID  string
	LabID       string
	Description string
	SampleCount int
	AmountCents int64
	Currency    string
}

// QuoteFieldPatch carries optional column updates. Nil fields are left
// untouched by the store.
type QuoteFieldPatch struct {
	Description           *string
	SampleCount           *int
	AmountCents           *int64
	TrackingNumber        *string
	CarrierCode           *string
	TransactionRef        *string
	PaidAt                *time.Time
	ShippedDate           *time.Time
	DeliveredDate         *time.Time
	TrackingLastCheckedAt *time.Time
}

func (p QuoteFieldPatch) IsZero() bool {
	return p.Description == nil &&
		p.SampleCount == nil &&
		p.AmountCents == nil &&
		p.TrackingNumber == nil &&
		p.CarrierCode == nil &&
		p.TransactionRef == nil &&
		p.PaidAt == nil &&
		p.ShippedDate == nil &&
		p.DeliveredDate == nil &&
		p.TrackingLastCheckedAt == nil
}

// StatusCASInput is the compare-and-set write for the status column. The
// store updates the row only while its stored status still equals Expected;
// a lost race surfaces as ErrStaleQuoteState.
type StatusCASInput struct {
	QuoteID  string
	Expected QuoteStatus
	Next     QuoteStatus
	Patch    QuoteFieldPatch
}

type ListSyncCandidatesInput struct {
	Limit          int
	TrackingNumber string
}

type QuoteStore interface {
	Create(ctx context.Context, input CreateQuoteInput) (*Quote, error)
	GetByID(ctx context.Context, id string) (*Quote, error)
	GetByTrackingNumber(ctx context.Context, trackingNumber string) (*Quote, error)
	ListSyncCandidates(ctx context.Context, input ListSyncCandidatesInput) ([]*Quote, error)
	UpdateFields(ctx context.Context, id string, patch QuoteFieldPatch) (*Quote, error)
	UpdateStatusCAS(ctx context.Context, input StatusCASInput) (*Quote, error)
	DeleteDraft(ctx context.Context, id string) error
}

// TransitionWriter commits the status write and its audit entry as one
// logical transaction. A lost compare-and-set surfaces as ErrStaleQuoteState
// and writes nothing, including the entry.
type TransitionWriter interface {
	CommitTransition(ctx context.Context, cas StatusCASInput, entry ActivityEntry) (*Quote, error)
}

type ListActivityInput struct {
	QuoteID string
	Types   []ActivityType
	Limit   int
	Offset  int
}

type ActivityStore interface {
	Append(ctx context.Context, entry ActivityEntry) error
	List(ctx context.Context, input ListActivityInput) ([]ActivityEntry, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type TrackingHistoryStore interface {
	Append(ctx context.Context, entry TrackingHistoryEntry) error
	List(ctx context.Context, quoteID string) ([]TrackingHistoryEntry, error)
}

// EngagementUpdate unions new engagement facts into an outbound email row.
// Stores must never overwrite a timestamp that is already set.
type EngagementUpdate struct {
	DeliveredAt   *time.Time
	OpenedAt      *time.Time
	ClickedAt     *time.Time
	BouncedAt     *time.Time
	FailedAt      *time.Time
	BounceReason  string
	FailureReason string
}

func (u EngagementUpdate) IsZero() bool {
	return u.DeliveredAt == nil &&
		u.OpenedAt == nil &&
		u.ClickedAt == nil &&
		u.BouncedAt == nil &&
		u.FailedAt == nil
}

type OutboundEmailStore interface {
	Create(ctx context.Context, email OutboundEmail) (*OutboundEmail, error)
	GetByMessageID(ctx context.Context, messageID string) (*OutboundEmail, error)
	LatestByRecipient(ctx context.Context, recipient string) (*OutboundEmail, error)
	ApplyEngagement(ctx context.Context, id string, update EngagementUpdate) (*OutboundEmail, error)
}

type NotificationStatus string

const (
	NotificationStatusPending    NotificationStatus = "pending"
	NotificationStatusDispatched NotificationStatus = "dispatched"
	NotificationStatusFailed     NotificationStatus = "failed"
)

// Notification is a queued outbox row. Delivery is best effort: a failed
// send never rolls back the transition that produced it.
type Notification struct {
	ID             string
	QuoteID        string
	Recipient      string
	Channel        string
	Template       string
	IdempotencyKey string
	Payload        map[string]any
	Status         NotificationStatus
	Attempts       int
	LastError      string
	NextAttemptAt  *time.Time
	DispatchedAt   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type NotificationOutboxStore interface {
	Enqueue(ctx context.Context, notification Notification) (*Notification, error)
	ListPending(ctx context.Context, limit int, now time.Time) ([]Notification, error)
	MarkDispatched(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, attempts int, nextAttemptAt *time.Time, lastError string) error
}

// NotificationDispatchLedger records idempotency keys for attempted sends so
// a redelivered outbox row is not sent twice. Record reports false when the
// key was already present.
type NotificationDispatchLedger interface {
	Record(ctx context.Context, idempotencyKey string, at time.Time) (bool, error)
}

type Notifier interface {
	Send(ctx context.Context, notification Notification) error
}

type SyncCooldownStore interface {
	LastTriggeredAt(ctx context.Context, sessionKey string) (*time.Time, error)
	Touch(ctx context.Context, sessionKey string, at time.Time) error
}

// CarrierTrackingStatus is the upstream view of one shipment.
type CarrierTrackingStatus struct {
	TrackingNumber string
	Code           string
	Description    string
	Location       string
	EventTime      *time.Time
	Raw            map[string]any
}

type CarrierClient interface {
	Track(ctx context.Context, trackingNumber string) (CarrierTrackingStatus, error)
}
