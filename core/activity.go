package core

import (
	"fmt"
	"strings"
	"time"
)

// ActivityType is an extensible tag naming what happened. New tags may be
// introduced by callers; each tag resolves to one of the closed metadata
// variants below, unknown tags resolve to the generic variant.
type ActivityType string

const (
	ActivityStatusChange       ActivityType = "status_change"
	ActivityVendorApproval     ActivityType = "vendor_approval"
	ActivityCustomerApproval   ActivityType = "customer_approval"
	ActivityVendorRejection    ActivityType = "vendor_rejection"
	ActivityCustomerRejection  ActivityType = "customer_rejection"
	ActivityPaymentRecorded    ActivityType = "payment_recorded"
	ActivityPaymentReminder    ActivityType = "payment_reminder"
	ActivityLabNotification    ActivityType = "lab_notification"
	ActivityQuoteCreated       ActivityType = "quote_created"
	ActivityQuoteUpdated       ActivityType = "quote_updated"
	ActivityEmailSent          ActivityType = "email_sent"
	ActivityShippingAdded      ActivityType = "shipping_added"
	ActivityShippingLabel      ActivityType = "shipping_label_generated"
	ActivitySampleReceived     ActivityType = "sample_received"
	ActivityEmailEngagement    ActivityType = "email_engagement"
	ActivityTrackingStatusSync ActivityType = "tracking_status_sync"
)

// MetadataKind names one variant of the closed metadata union.
type MetadataKind string

const (
	MetadataKindStatusChange MetadataKind = "status_change"
	MetadataKindPayment      MetadataKind = "payment"
	MetadataKindShipping     MetadataKind = "shipping"
	MetadataKindEmail        MetadataKind = "email"
	MetadataKindGeneric      MetadataKind = "generic"
)

// MetadataKindFor resolves an activity tag to the metadata variant its
// entries must carry.
func MetadataKindFor(t ActivityType) MetadataKind {
	switch t {
	case ActivityStatusChange, ActivityVendorApproval, ActivityCustomerApproval,
		ActivityVendorRejection, ActivityCustomerRejection, ActivityTrackingStatusSync:
		return MetadataKindStatusChange
	case ActivityPaymentRecorded, ActivityPaymentReminder:
		return MetadataKindPayment
	case ActivityShippingAdded, ActivityShippingLabel:
		return MetadataKindShipping
	case ActivityEmailSent, ActivityLabNotification, ActivityEmailEngagement:
		return MetadataKindEmail
	default:
		return MetadataKindGeneric
	}
}

// ActivityMetadata is a closed tagged union. Writers construct one of the
// variants below; free-form payloads only enter through the generic
// variant's Extra map, never through the typed ones.
type ActivityMetadata interface {
	Kind() MetadataKind
	Fields() map[string]any
}

type StatusChangeMetadata struct {
	From   QuoteStatus
	To     QuoteStatus
	Source string
	Reason string
}

func (StatusChangeMetadata) Kind() MetadataKind { return MetadataKindStatusChange }

func (m StatusChangeMetadata) Fields() map[string]any {
	fields := map[string]any{
		"from": string(m.From),
		"to":   string(m.To),
	}
	if strings.TrimSpace(m.Source) != "" {
		fields["source"] = m.Source
	}
	if strings.TrimSpace(m.Reason) != "" {
		fields["reason"] = m.Reason
	}
	return fields
}

type PaymentMetadata struct {
	AmountCents    int64
	Currency       string
	TransactionRef string
}

func (PaymentMetadata) Kind() MetadataKind { return MetadataKindPayment }

func (m PaymentMetadata) Fields() map[string]any {
	return map[string]any{
		"amount_cents":    m.AmountCents,
		"currency":        m.Currency,
		"transaction_ref": m.TransactionRef,
	}
}

type ShippingMetadata struct {
	TrackingNumber string
	CarrierCode    string
	Status         QuoteStatus
	Source         TrackingSource
	Location       string
}

func (ShippingMetadata) Kind() MetadataKind { return MetadataKindShipping }

func (m ShippingMetadata) Fields() map[string]any {
	fields := map[string]any{
		"tracking_number": m.TrackingNumber,
	}
	if m.Status != "" {
		fields["status"] = string(m.Status)
	}
	if strings.TrimSpace(m.CarrierCode) != "" {
		fields["carrier"] = m.CarrierCode
	}
	if m.Source != "" {
		fields["source"] = string(m.Source)
	}
	if strings.TrimSpace(m.Location) != "" {
		fields["location"] = m.Location
	}
	return fields
}

type EmailMetadata struct {
	Recipient string
	MessageID string
	Event     string
	Reason    string
}

func (EmailMetadata) Kind() MetadataKind { return MetadataKindEmail }

func (m EmailMetadata) Fields() map[string]any {
	fields := map[string]any{
		"recipient": m.Recipient,
	}
	if strings.TrimSpace(m.Event) != "" {
		fields["event"] = m.Event
	}
	if strings.TrimSpace(m.MessageID) != "" {
		fields["message_id"] = m.MessageID
	}
	if strings.TrimSpace(m.Reason) != "" {
		fields["reason"] = m.Reason
	}
	return fields
}

type GenericMetadata struct {
	Note  string
	Extra map[string]any
}

func (GenericMetadata) Kind() MetadataKind { return MetadataKindGeneric }

func (m GenericMetadata) Fields() map[string]any {
	fields := make(map[string]any, len(m.Extra)+1)
	for key, value := range m.Extra {
		fields[key] = value
	}
	if strings.TrimSpace(m.Note) != "" {
		fields["note"] = m.Note
	}
	return fields
}

// ActivityEntry is one append-only audit row. Entries are never updated or
// deleted by the application; retention pruning is the only removal path.
type ActivityEntry struct {
	ID        string
	QuoteID   string
	Type      ActivityType
	ActorID   string
	ActorRole ActorRole
	Message   string
	Metadata  ActivityMetadata
	CreatedAt time.Time
}

func (e ActivityEntry) Validate() error {
	if strings.TrimSpace(e.QuoteID) == "" {
		return fmt.Errorf("core: activity entry quote id is required")
	}
	if strings.TrimSpace(string(e.Type)) == "" {
		return fmt.Errorf("core: activity type is required")
	}
	if e.Metadata != nil && e.Metadata.Kind() != MetadataKindFor(e.Type) {
		return fmt.Errorf("core: activity metadata variant %q does not match type %q",
			e.Metadata.Kind(), e.Type)
	}
	return nil
}

// DecodeActivityMetadata rebuilds the typed variant from a stored metadata
// map. Unknown keys on typed variants are dropped; generic keeps everything.
func DecodeActivityMetadata(t ActivityType, fields map[string]any) ActivityMetadata {
	switch MetadataKindFor(t) {
	case MetadataKindStatusChange:
		return StatusChangeMetadata{
			From:   QuoteStatus(stringField(fields, "from")),
			To:     QuoteStatus(stringField(fields, "to")),
			Source: stringField(fields, "source"),
			Reason: stringField(fields, "reason"),
		}
	case MetadataKindPayment:
		return PaymentMetadata{
			AmountCents:    int64Field(fields, "amount_cents"),
			Currency:       stringField(fields, "currency"),
			TransactionRef: stringField(fields, "transaction_ref"),
		}
	case MetadataKindShipping:
		return ShippingMetadata{
			TrackingNumber: stringField(fields, "tracking_number"),
			CarrierCode:    stringField(fields, "carrier"),
			Status:         QuoteStatus(stringField(fields, "status")),
			Source:         TrackingSource(stringField(fields, "source")),
			Location:       stringField(fields, "location"),
		}
	case MetadataKindEmail:
		return EmailMetadata{
			Recipient: stringField(fields, "recipient"),
			MessageID: stringField(fields, "message_id"),
			Event:     stringField(fields, "event"),
			Reason:    stringField(fields, "reason"),
		}
	default:
		extra := make(map[string]any, len(fields))
		for key, value := range fields {
			if key == "note" {
				continue
			}
			extra[key] = value
		}
		return GenericMetadata{
			Note:  stringField(fields, "note"),
			Extra: extra,
		}
	}
}

func stringField(fields map[string]any, key string) string {
	if fields == nil {
		return ""
	}
	if value, ok := fields[key].(string); ok {
		return value
	}
	return ""
}

func int64Field(fields map[string]any, key string) int64 {
	if fields == nil {
		return 0
	}
	switch value := fields[key].(type) {
	case int64:
		return value
	case int:
		return int64(value)
	case float64:
		return int64(value)
	}
	return 0
}
