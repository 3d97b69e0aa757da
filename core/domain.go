package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrQuoteNotFound                = errors.New("core: quote not found")
	ErrInvalidQuoteStatus           = errors.New("core: invalid quote status")
	ErrInvalidQuoteStatusTransition = errors.New("core: invalid quote status transition")
	ErrQuoteLocked                  = errors.New("core: quote has been paid and cannot be modified")
	ErrTransitionPrecondition       = errors.New("core: transition precondition not met")
	ErrStaleQuoteState              = errors.New("core: quote status changed concurrently")
	ErrWebhookUnauthorized          = errors.New("core: webhook signature verification failed")
	ErrUpstreamFailure              = errors.New("core: upstream call failed")
	ErrEmailRecordNotFound          = errors.New("core: outbound email record not found")
	ErrSyncCooldownActive           = errors.New("core: manual refresh cooldown active")
)

type QuoteStatus string

const (
	QuoteStatusDraft                    QuoteStatus = "draft"
	QuoteStatusSentToVendor             QuoteStatus = "sent_to_vendor"
	QuoteStatusAwaitingCustomerApproval QuoteStatus = "awaiting_customer_approval"
	QuoteStatusApprovedPaymentPending   QuoteStatus = "approved_payment_pending"
	QuoteStatusPaidAwaitingShipping     QuoteStatus = "paid_awaiting_shipping"
	QuoteStatusInTransit                QuoteStatus = "in_transit"
	QuoteStatusDelivered                QuoteStatus = "delivered"
	QuoteStatusTestingInProgress        QuoteStatus = "testing_in_progress"
	QuoteStatusCompleted                QuoteStatus = "completed"
	QuoteStatusRejected                 QuoteStatus = "rejected"
)

// quoteStatusRank orders the forward shipping path so carrier-driven sync
// can refuse to move a quote backwards. Statuses off that path rank zero.
var quoteStatusRank = map[QuoteStatus]int{
	QuoteStatusPaidAwaitingShipping: 1,
	QuoteStatusInTransit:            2,
	QuoteStatusDelivered:            3,
	QuoteStatusTestingInProgress:    4,
	QuoteStatusCompleted:            5,
}

func ValidQuoteStatus(status QuoteStatus) bool {
	switch status {
	case QuoteStatusDraft,
		QuoteStatusSentToVendor,
		QuoteStatusAwaitingCustomerApproval,
		QuoteStatusApprovedPaymentPending,
		QuoteStatusPaidAwaitingShipping,
		QuoteStatusInTransit,
		QuoteStatusDelivered,
		QuoteStatusTestingInProgress,
		QuoteStatusCompleted,
		QuoteStatusRejected:
		return true
	}
	return false
}

func quoteTransitionAllowed(current, next QuoteStatus) bool {
	allowed := map[QuoteStatus]map[QuoteStatus]struct{}{
		QuoteStatusDraft: {
			QuoteStatusSentToVendor: {},
			QuoteStatusRejected:     {},
		},
		QuoteStatusSentToVendor: {
			QuoteStatusAwaitingCustomerApproval: {},
			QuoteStatusRejected:                 {},
		},
		QuoteStatusAwaitingCustomerApproval: {
			QuoteStatusApprovedPaymentPending: {},
			QuoteStatusRejected:               {},
		},
		QuoteStatusApprovedPaymentPending: {
			QuoteStatusPaidAwaitingShipping: {},
			QuoteStatusRejected:             {},
		},
		QuoteStatusPaidAwaitingShipping: {
			QuoteStatusInTransit: {},
		},
		QuoteStatusInTransit: {
			QuoteStatusDelivered: {},
		},
		QuoteStatusDelivered: {
			QuoteStatusTestingInProgress: {},
		},
		QuoteStatusTestingInProgress: {
			QuoteStatusCompleted: {},
		},
		QuoteStatusCompleted: {},
		QuoteStatusRejected:  {},
	}
	_, ok := allowed[current][next]
	return ok
}

// TransitionAllowed reports whether the fixed lifecycle graph contains the
// edge current -> next. Callers must not re-derive edges at call sites.
func TransitionAllowed(current, next QuoteStatus) bool {
	return quoteTransitionAllowed(current, next)
}

// AllowedTransitions returns the legal targets from a given status in
// lifecycle order.
func AllowedTransitions(from QuoteStatus) []QuoteStatus {
	targets := []QuoteStatus{
		QuoteStatusSentToVendor,
		QuoteStatusAwaitingCustomerApproval,
		QuoteStatusApprovedPaymentPending,
		QuoteStatusPaidAwaitingShipping,
		QuoteStatusInTransit,
		QuoteStatusDelivered,
		QuoteStatusTestingInProgress,
		QuoteStatusCompleted,
		QuoteStatusRejected,
	}
	out := make([]QuoteStatus, 0, 2)
	for _, target := range targets {
		if quoteTransitionAllowed(from, target) {
			out = append(out, target)
		}
	}
	return out
}

// IsLocked reports whether the status sits at or past the payment boundary.
// Once money has changed hands the quote row is immutable except for
// tracking-sync fields and append-only audit rows.
func IsLocked(status QuoteStatus) bool {
	switch status {
	case QuoteStatusPaidAwaitingShipping,
		QuoteStatusInTransit,
		QuoteStatusDelivered,
		QuoteStatusTestingInProgress,
		QuoteStatusCompleted:
		return true
	}
	return false
}

// StatusRank returns the position of a status on the forward shipping path,
// zero for statuses off that path.
func StatusRank(status QuoteStatus) int {
	return quoteStatusRank[status]
}

type ActorRole string

const (
	ActorRoleCustomer ActorRole = "customer"
	ActorRoleLab      ActorRole = "lab"
	ActorRoleAdmin    ActorRole = "admin"
	ActorRoleSystem   ActorRole = "system"
)

// Actor identifies who asked for a mutation. System actors (carrier sync,
// webhook ingestion) carry an empty ID and are recorded without a user id.
type Actor struct {
	ID   string
	Role ActorRole
}

func (a Actor) Validate() error {
	switch a.Role {
	case ActorRoleCustomer, ActorRoleLab, ActorRoleAdmin, ActorRoleSystem:
	default:
		return fmt.Errorf("core: invalid actor role %q", a.Role)
	}
	if a.Role != ActorRoleSystem && strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("core: actor id is required for role %q", a.Role)
	}
	return nil
}

func (a Actor) IsSystem() bool {
	return a.Role == ActorRoleSystem
}

// SystemActor is the principal recorded for carrier-sync and webhook writes.
var SystemActor = Actor{Role: ActorRoleSystem}

// CanEditItems decides whether an actor may change item-level fields at the
// given status. Admins keep edit rights up to (but never at or past) the
// payment boundary; everyone else loses them once the customer approves.
func CanEditItems(role ActorRole, status QuoteStatus) bool {
	if IsLocked(status) {
		return false
	}
	switch status {
	case QuoteStatusDraft, QuoteStatusSentToVendor, QuoteStatusAwaitingCustomerApproval:
		return role == ActorRoleCustomer || role == ActorRoleLab || role == ActorRoleAdmin
	case QuoteStatusApprovedPaymentPending:
		return role == ActorRoleAdmin
	}
	return false
}

type Quote struct {
	ID                    string
	CustomerID            string
	LabID                 string
	Description           string
	SampleCount           int
	AmountCents           int64
	Currency              string
	Status                QuoteStatus
	TrackingNumber        string
	CarrierCode           string
	TransactionRef        string
	PaidAt                *time.Time
	ShippedDate           *time.Time
	DeliveredDate         *time.Time
	TrackingLastCheckedAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// TransitionTo applies a status change in memory after validating the graph.
// Persistence goes through the guard's compare-and-set write; this keeps the
// pure validation reusable in projections and tests.
func (q *Quote) TransitionTo(status QuoteStatus, now time.Time) error {
	if q == nil {
		return nil
	}
	if !ValidQuoteStatus(status) {
		return fmt.Errorf("%w: %q", ErrInvalidQuoteStatus, status)
	}
	if q.Status == status {
		q.UpdatedAt = now
		return nil
	}
	if !quoteTransitionAllowed(q.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidQuoteStatusTransition, q.Status, status)
	}
	q.Status = status
	q.UpdatedAt = now
	return nil
}

func (q *Quote) HasPayment() bool {
	if q == nil {
		return false
	}
	return q.PaidAt != nil && strings.TrimSpace(q.TransactionRef) != ""
}

type TrackingSource string

const (
	TrackingSourceAutomatic TrackingSource = "automatic"
	TrackingSourceManual    TrackingSource = "manual"
)

// TrackingHistoryEntry records an observed carrier-driven status change.
// Entries are append-only and written only when the mapped internal status
// differs from the stored one.
type TrackingHistoryEntry struct {
	ID             string
	QuoteID        string
	Status         QuoteStatus
	TrackingNumber string
	Source         TrackingSource
	CarrierDetail  map[string]any
	CreatedAt      time.Time
}

// OutboundEmail is the delivery/engagement audit row updated by verified
// webhook events. Engagement timestamps are set once and never overwritten
// by later events.
type OutboundEmail struct {
	ID            string
	QuoteID       string
	Recipient     string
	MessageID     string
	Kind          string
	Subject       string
	SentAt        time.Time
	DeliveredAt   *time.Time
	OpenedAt      *time.Time
	ClickedAt     *time.Time
	BouncedAt     *time.Time
	FailedAt      *time.Time
	BounceReason  string
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type LifecycleEvent struct {
	ID         string
	Name       string
	QuoteID    string
	ActorID    string
	ActorRole  string
	Source     string
	OccurredAt time.Time
	Payload    map[string]any
	Metadata   map[string]any
}

const (
	EventQuoteStatusChanged   = "quotes.status.changed"
	EventQuotePaymentRecorded = "quotes.payment.recorded"
	EventQuoteShipmentAdded   = "quotes.shipment.added"
	EventQuoteDelivered       = "quotes.shipment.delivered"
	EventQuoteEmailEngagement = "quotes.email.engagement"
)

const (
	LifecycleSourceUser    = "user"
	LifecycleSourceSync    = "tracking_sync"
	LifecycleSourceWebhook = "email_webhook"
)
