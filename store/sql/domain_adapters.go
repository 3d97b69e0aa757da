package sqlstore

import (
	"strings"
	"time"

	"github.com/labforge/go-quotes/core"
)

func (r *quoteRecord) toDomain() *core.Quote {
	if r == nil {
		return nil
	}
	return &core.Quote{
		ID:                    r.ID,
		CustomerID:            r.CustomerID,
		LabID:                 r.LabID,
		Description:           r.Description,
		SampleCount:           r.SampleCount,
		AmountCents:           r.AmountCents,
		Currency:              r.Currency,
		Status:                core.QuoteStatus(r.Status),
		TrackingNumber:        r.TrackingNumber,
		CarrierCode:           r.CarrierCode,
		TransactionRef:        r.TransactionRef,
		PaidAt:                cloneTimePointer(r.PaidAt),
		ShippedDate:           cloneTimePointer(r.ShippedDate),
		DeliveredDate:         cloneTimePointer(r.DeliveredDate),
		TrackingLastCheckedAt: cloneTimePointer(r.TrackingLastCheckedAt),
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
}

func (r *activityLogRecord) toDomain() core.ActivityEntry {
	if r == nil {
		return core.ActivityEntry{}
	}
	entryType := core.ActivityType(r.EntryType)
	return core.ActivityEntry{
		ID:        r.ID,
		QuoteID:   r.QuoteID,
		Type:      entryType,
		ActorID:   r.ActorID,
		ActorRole: core.ActorRole(r.ActorRole),
		Message:   r.Message,
		Metadata:  core.DecodeActivityMetadata(entryType, copyAnyMap(r.Metadata)),
		CreatedAt: r.CreatedAt,
	}
}

func activityRecordFromEntry(entry core.ActivityEntry, now time.Time) *activityLogRecord {
	metadata := map[string]any{}
	if entry.Metadata != nil {
		metadata = copyAnyMap(entry.Metadata.Fields())
	}
	createdAt := entry.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}
	return &activityLogRecord{
		ID:        strings.TrimSpace(entry.ID),
		QuoteID:   strings.TrimSpace(entry.QuoteID),
		EntryType: string(entry.Type),
		ActorID:   strings.TrimSpace(entry.ActorID),
		ActorRole: string(entry.ActorRole),
		Message:   entry.Message,
		Metadata:  metadata,
		CreatedAt: createdAt,
	}
}

func (r *trackingHistoryRecord) toDomain() core.TrackingHistoryEntry {
	if r == nil {
		return core.TrackingHistoryEntry{}
	}
	return core.TrackingHistoryEntry{
		ID:             r.ID,
		QuoteID:        r.QuoteID,
		Status:         core.QuoteStatus(r.Status),
		TrackingNumber: r.TrackingNumber,
		Source:         core.TrackingSource(r.Source),
		CarrierDetail:  copyAnyMap(r.CarrierDetail),
		CreatedAt:      r.CreatedAt,
	}
}

func (r *outboundEmailRecord) toDomain() *core.OutboundEmail {
	if r == nil {
		return nil
	}
	return &core.OutboundEmail{
		ID:            r.ID,
		QuoteID:       r.QuoteID,
		Recipient:     r.Recipient,
		MessageID:     r.MessageID,
		Kind:          r.Kind,
		Subject:       r.Subject,
		SentAt:        r.SentAt,
		DeliveredAt:   cloneTimePointer(r.DeliveredAt),
		OpenedAt:      cloneTimePointer(r.OpenedAt),
		ClickedAt:     cloneTimePointer(r.ClickedAt),
		BouncedAt:     cloneTimePointer(r.BouncedAt),
		FailedAt:      cloneTimePointer(r.FailedAt),
		BounceReason:  r.BounceReason,
		FailureReason: r.FailureReason,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (r *notificationOutboxRecord) toDomain() core.Notification {
	if r == nil {
		return core.Notification{}
	}
	return core.Notification{
		ID:             r.ID,
		QuoteID:        r.QuoteID,
		Recipient:      r.Recipient,
		Channel:        r.Channel,
		Template:       r.Template,
		IdempotencyKey: r.IdempotencyKey,
		Payload:        copyAnyMap(r.Payload),
		Status:         core.NotificationStatus(r.Status),
		Attempts:       r.Attempts,
		LastError:      r.LastError,
		NextAttemptAt:  cloneTimePointer(r.NextAttemptAt),
		DispatchedAt:   cloneTimePointer(r.DispatchedAt),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint") ||
		strings.Contains(message, "unique") ||
		strings.Contains(message, "duplicate")
}
