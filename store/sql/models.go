package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type quoteRecord struct {
	bun.BaseModel `bun:"table:quote_orders,alias:qo"`

	ID                    string     `bun:"id,pk"`
	CustomerID            string     `bun:"customer_id,notnull"`
	LabID                 string     `bun:"lab_id,notnull"`
	Description           string     `bun:"description"`
	SampleCount           int        `bun:"sample_count,notnull"`
	AmountCents           int64      `bun:"amount_cents,notnull"`
	Currency              string     `bun:"currency,notnull"`
	Status                string     `bun:"status,notnull"`
	TrackingNumber        string     `bun:"tracking_number"`
	CarrierCode           string     `bun:"carrier_code"`
	TransactionRef        string     `bun:"transaction_ref"`
	PaidAt                *time.Time `bun:"paid_at,nullzero"`
	ShippedDate           *time.Time `bun:"shipped_date,nullzero"`
	DeliveredDate         *time.Time `bun:"delivered_date,nullzero"`
	TrackingLastCheckedAt *time.Time `bun:"tracking_last_checked_at,nullzero"`
	CreatedAt             time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt             time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type activityLogRecord struct {
	bun.BaseModel `bun:"table:quote_activity_log,alias:qal"`

	ID        string         `bun:"id,pk"`
	QuoteID   string         `bun:"quote_id,notnull"`
	EntryType string         `bun:"entry_type,notnull"`
	ActorID   string         `bun:"actor_id"`
	ActorRole string         `bun:"actor_role,notnull"`
	Message   string         `bun:"message"`
	Metadata  map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type trackingHistoryRecord struct {
	bun.BaseModel `bun:"table:quote_tracking_history,alias:qth"`

	ID             string         `bun:"id,pk"`
	QuoteID        string         `bun:"quote_id,notnull"`
	Status         string         `bun:"status,notnull"`
	TrackingNumber string         `bun:"tracking_number,notnull"`
	Source         string         `bun:"source,notnull"`
	CarrierDetail  map[string]any `bun:"carrier_detail,type:jsonb,notnull"`
	CreatedAt      time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type outboundEmailRecord struct {
	bun.BaseModel `bun:"table:quote_outbound_emails,alias:qoe"`

	ID            string     `bun:"id,pk"`
	QuoteID       string     `bun:"quote_id,notnull"`
	Recipient     string     `bun:"recipient,notnull"`
	MessageID     string     `bun:"message_id,notnull"`
	Kind          string     `bun:"kind,notnull"`
	Subject       string     `bun:"subject"`
	SentAt        time.Time  `bun:"sent_at,notnull"`
	DeliveredAt   *time.Time `bun:"delivered_at,nullzero"`
	OpenedAt      *time.Time `bun:"opened_at,nullzero"`
	ClickedAt     *time.Time `bun:"clicked_at,nullzero"`
	BouncedAt     *time.Time `bun:"bounced_at,nullzero"`
	FailedAt      *time.Time `bun:"failed_at,nullzero"`
	BounceReason  string     `bun:"bounce_reason"`
	FailureReason string     `bun:"failure_reason"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type notificationOutboxRecord struct {
	bun.BaseModel `bun:"table:quote_notification_outbox,alias:qno"`

	ID             string         `bun:"id,pk"`
	QuoteID        string         `bun:"quote_id,notnull"`
	Recipient      string         `bun:"recipient"`
	Channel        string         `bun:"channel,notnull"`
	Template       string         `bun:"template,notnull"`
	IdempotencyKey string         `bun:"idempotency_key,notnull"`
	Payload        map[string]any `bun:"payload,type:jsonb,notnull"`
	Status         string         `bun:"status,notnull"`
	Attempts       int            `bun:"attempts,notnull"`
	LastError      string         `bun:"last_error"`
	NextAttemptAt  *time.Time     `bun:"next_attempt_at,nullzero"`
	DispatchedAt   *time.Time     `bun:"dispatched_at,nullzero"`
	CreatedAt      time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type notificationDispatchRecord struct {
	bun.BaseModel `bun:"table:quote_notification_dispatches,alias:qnd"`

	ID             string    `bun:"id,pk"`
	IdempotencyKey string    `bun:"idempotency_key,notnull"`
	DispatchedAt   time.Time `bun:"dispatched_at,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type syncCooldownRecord struct {
	bun.BaseModel `bun:"table:quote_sync_cooldowns,alias:qsc"`

	ID              string    `bun:"id,pk"`
	SessionKey      string    `bun:"session_key,notnull"`
	LastTriggeredAt time.Time `bun:"last_triggered_at,notnull"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
