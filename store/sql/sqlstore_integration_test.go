package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/labforge/go-quotes/core"
	quotemigrations "github.com/labforge/go-quotes/migrations"
	sqlstore "github.com/labforge/go-quotes/store/sql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-quotes-tests"
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	var tableName string
	if err := client.DB().NewRaw(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		"quote_orders",
	).Scan(context.Background(), &tableName); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if tableName != "quote_orders" {
		t.Fatalf("expected quote_orders table, got %q", tableName)
	}
}

func TestQuoteStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	quotes := factory.QuoteStore()
	created, err := quotes.Create(ctx, core.CreateQuoteInput{
		CustomerID:  "cust-1",
		LabID:       "lab-1",
		Description: "soil panel",
		SampleCount: 3,
		AmountCents: 12550,
	})
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}
	if created.Status != core.QuoteStatusDraft {
		t.Fatalf("expected draft status, got %s", created.Status)
	}
	if created.Currency != "USD" {
		t.Fatalf("expected USD default, got %s", created.Currency)
	}

	fetched, err := quotes.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get quote: %v", err)
	}
	if fetched.AmountCents != 12550 || fetched.SampleCount != 3 {
		t.Fatalf("unexpected row: %+v", fetched)
	}

	if _, err := quotes.GetByID(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, core.ErrQuoteNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestQuoteStore_UpdateStatusCASLosesToConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	quotes := factory.QuoteStore()
	created, err := quotes.Create(ctx, core.CreateQuoteInput{CustomerID: "cust-1", LabID: "lab-1"})
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}

	first, err := quotes.UpdateStatusCAS(ctx, core.StatusCASInput{
		QuoteID:  created.ID,
		Expected: core.QuoteStatusDraft,
		Next:     core.QuoteStatusSentToVendor,
	})
	if err != nil {
		t.Fatalf("first cas: %v", err)
	}
	if first.Status != core.QuoteStatusSentToVendor {
		t.Fatalf("expected sent_to_vendor, got %s", first.Status)
	}

	_, err = quotes.UpdateStatusCAS(ctx, core.StatusCASInput{
		QuoteID:  created.ID,
		Expected: core.QuoteStatusDraft,
		Next:     core.QuoteStatusRejected,
	})
	if !errors.Is(err, core.ErrStaleQuoteState) {
		t.Fatalf("expected stale state, got %v", err)
	}

	fetched, err := quotes.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get quote: %v", err)
	}
	if fetched.Status != core.QuoteStatusSentToVendor {
		t.Fatalf("loser must not move the row, got %s", fetched.Status)
	}
}

func TestQuoteStore_CommitTransitionWritesStatusAndEntryAtomically(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	quotes := factory.QuoteStore()
	writer := factory.TransitionWriter()
	activity := factory.ActivityStore()

	created, err := quotes.Create(ctx, core.CreateQuoteInput{CustomerID: "cust-1", LabID: "lab-1"})
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}

	committed, err := writer.CommitTransition(ctx, core.StatusCASInput{
		QuoteID:  created.ID,
		Expected: core.QuoteStatusDraft,
		Next:     core.QuoteStatusSentToVendor,
	}, core.ActivityEntry{
		QuoteID:   created.ID,
		Type:      core.ActivityStatusChange,
		ActorID:   "user-1",
		ActorRole: core.ActorRoleLab,
		Message:   "quote sent to vendor",
		Metadata: core.StatusChangeMetadata{
			From:   core.QuoteStatusDraft,
			To:     core.QuoteStatusSentToVendor,
			Source: core.LifecycleSourceUser,
		},
	})
	if err != nil {
		t.Fatalf("commit transition: %v", err)
	}
	if committed.Status != core.QuoteStatusSentToVendor {
		t.Fatalf("expected sent_to_vendor, got %s", committed.Status)
	}

	entries, err := activity.List(ctx, core.ListActivityInput{QuoteID: created.ID})
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(entries))
	}
	metadata, ok := entries[0].Metadata.(core.StatusChangeMetadata)
	if !ok {
		t.Fatalf("expected status change metadata, got %T", entries[0].Metadata)
	}
	if metadata.From != core.QuoteStatusDraft || metadata.To != core.QuoteStatusSentToVendor {
		t.Fatalf("unexpected metadata: %+v", metadata)
	}

	// a stale commit must write neither the status nor the entry
	_, err = writer.CommitTransition(ctx, core.StatusCASInput{
		QuoteID:  created.ID,
		Expected: core.QuoteStatusDraft,
		Next:     core.QuoteStatusRejected,
	}, core.ActivityEntry{
		QuoteID:   created.ID,
		Type:      core.ActivityStatusChange,
		ActorRole: core.ActorRoleLab,
		ActorID:   "user-1",
		Metadata:  core.StatusChangeMetadata{From: core.QuoteStatusDraft, To: core.QuoteStatusRejected},
	})
	if !errors.Is(err, core.ErrStaleQuoteState) {
		t.Fatalf("expected stale state, got %v", err)
	}
	entries, err = activity.List(ctx, core.ListActivityInput{QuoteID: created.ID})
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("stale commit must not append, got %d entries", len(entries))
	}
}

func TestQuoteStore_UpdateFieldsPatchesOnlySetColumns(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	quotes := factory.QuoteStore()
	created, err := quotes.Create(ctx, core.CreateQuoteInput{
		CustomerID:  "cust-1",
		LabID:       "lab-1",
		Description: "original",
		SampleCount: 2,
		AmountCents: 1000,
	})
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}

	description := "revised"
	tracking := "TRK-100"
	updated, err := quotes.UpdateFields(ctx, created.ID, core.QuoteFieldPatch{
		Description:    &description,
		TrackingNumber: &tracking,
	})
	if err != nil {
		t.Fatalf("update fields: %v", err)
	}
	if updated.Description != "revised" || updated.TrackingNumber != "TRK-100" {
		t.Fatalf("patch not applied: %+v", updated)
	}
	if updated.SampleCount != 2 || updated.AmountCents != 1000 {
		t.Fatalf("untouched columns must survive: %+v", updated)
	}
}

func TestQuoteStore_ListSyncCandidates(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	quotes := factory.QuoteStore()
	tracked, err := quotes.Create(ctx, core.CreateQuoteInput{CustomerID: "cust-1", LabID: "lab-1"})
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}
	trackingNumber := "TRK-1"
	if _, err := quotes.UpdateFields(ctx, tracked.ID, core.QuoteFieldPatch{TrackingNumber: &trackingNumber}); err != nil {
		t.Fatalf("set tracking: %v", err)
	}
	forceStatus(t, factory, tracked.ID, core.QuoteStatusInTransit)

	// draft with tracking is not a candidate
	draft, err := quotes.Create(ctx, core.CreateQuoteInput{CustomerID: "cust-2", LabID: "lab-1"})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	otherTracking := "TRK-2"
	if _, err := quotes.UpdateFields(ctx, draft.ID, core.QuoteFieldPatch{TrackingNumber: &otherTracking}); err != nil {
		t.Fatalf("set tracking: %v", err)
	}

	// paid without a tracking number is not a candidate either
	paid, err := quotes.Create(ctx, core.CreateQuoteInput{CustomerID: "cust-3", LabID: "lab-1"})
	if err != nil {
		t.Fatalf("create paid: %v", err)
	}
	forceStatus(t, factory, paid.ID, core.QuoteStatusPaidAwaitingShipping)

	candidates, err := quotes.ListSyncCandidates(ctx, core.ListSyncCandidatesInput{})
	if err != nil {
		t.Fatalf("list candidates: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != tracked.ID {
		t.Fatalf("expected only the in-transit tracked quote, got %d", len(candidates))
	}

	scoped, err := quotes.ListSyncCandidates(ctx, core.ListSyncCandidatesInput{TrackingNumber: "TRK-1"})
	if err != nil {
		t.Fatalf("list scoped candidates: %v", err)
	}
	if len(scoped) != 1 || scoped[0].TrackingNumber != "TRK-1" {
		t.Fatalf("expected scoped candidate, got %+v", scoped)
	}
}

func TestQuoteStore_DeleteDraft(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	quotes := factory.QuoteStore()
	draft, err := quotes.Create(ctx, core.CreateQuoteInput{CustomerID: "cust-1", LabID: "lab-1"})
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}
	if err := quotes.DeleteDraft(ctx, draft.ID); err != nil {
		t.Fatalf("delete draft: %v", err)
	}
	if _, err := quotes.GetByID(ctx, draft.ID); !errors.Is(err, core.ErrQuoteNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}

	sent, err := quotes.Create(ctx, core.CreateQuoteInput{CustomerID: "cust-2", LabID: "lab-1"})
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}
	forceStatus(t, factory, sent.ID, core.QuoteStatusSentToVendor)
	if err := quotes.DeleteDraft(ctx, sent.ID); !errors.Is(err, core.ErrTransitionPrecondition) {
		t.Fatalf("expected precondition error for non-draft, got %v", err)
	}
}

func TestActivityStore_ListFiltersAndPrunes(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	activity := factory.ActivityStore()
	quoteID := "11111111-1111-1111-1111-111111111111"
	entries := []core.ActivityEntry{
		{
			QuoteID:   quoteID,
			Type:      core.ActivityQuoteCreated,
			ActorID:   "user-1",
			ActorRole: core.ActorRoleCustomer,
			Metadata:  core.GenericMetadata{Note: "created"},
			CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
		},
		{
			QuoteID:   quoteID,
			Type:      core.ActivityStatusChange,
			ActorID:   "user-1",
			ActorRole: core.ActorRoleLab,
			Metadata:  core.StatusChangeMetadata{From: core.QuoteStatusDraft, To: core.QuoteStatusSentToVendor},
		},
		{
			QuoteID:   quoteID,
			Type:      core.ActivityPaymentRecorded,
			ActorID:   "user-2",
			ActorRole: core.ActorRoleCustomer,
			Metadata:  core.PaymentMetadata{AmountCents: 1000, Currency: "USD", TransactionRef: "txn_1"},
		},
	}
	for _, entry := range entries {
		if err := activity.Append(ctx, entry); err != nil {
			t.Fatalf("append %s: %v", entry.Type, err)
		}
	}

	all, err := activity.List(ctx, core.ListActivityInput{QuoteID: quoteID})
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}

	payments, err := activity.List(ctx, core.ListActivityInput{
		QuoteID: quoteID,
		Types:   []core.ActivityType{core.ActivityPaymentRecorded},
	})
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("expected 1 payment entry, got %d", len(payments))
	}
	payment, ok := payments[0].Metadata.(core.PaymentMetadata)
	if !ok {
		t.Fatalf("expected payment metadata, got %T", payments[0].Metadata)
	}
	if payment.TransactionRef != "txn_1" || payment.AmountCents != 1000 {
		t.Fatalf("unexpected payment metadata: %+v", payment)
	}

	pruned, err := activity.PruneBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned row, got %d", pruned)
	}
}

func TestOutboundEmailStore_EngagementNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	emails := factory.OutboundEmailStore()
	created, err := emails.Create(ctx, core.OutboundEmail{
		QuoteID:   "11111111-1111-1111-1111-111111111111",
		Recipient: "customer@example.com",
		MessageID: "msg-1",
		Kind:      "quote_sent",
		Subject:   "Your quote",
	})
	if err != nil {
		t.Fatalf("create email: %v", err)
	}

	firstDelivery := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	updated, err := emails.ApplyEngagement(ctx, created.ID, core.EngagementUpdate{DeliveredAt: &firstDelivery})
	if err != nil {
		t.Fatalf("apply delivery: %v", err)
	}
	if updated.DeliveredAt == nil || !updated.DeliveredAt.Equal(firstDelivery) {
		t.Fatalf("expected delivered_at set, got %+v", updated.DeliveredAt)
	}

	// replayed event with a later timestamp must not move the stored one
	replay := firstDelivery.Add(2 * time.Hour)
	opened := firstDelivery.Add(time.Hour)
	updated, err = emails.ApplyEngagement(ctx, created.ID, core.EngagementUpdate{
		DeliveredAt: &replay,
		OpenedAt:    &opened,
	})
	if err != nil {
		t.Fatalf("apply replay: %v", err)
	}
	if !updated.DeliveredAt.Equal(firstDelivery) {
		t.Fatalf("delivered_at must stay %s, got %s", firstDelivery, updated.DeliveredAt)
	}
	if updated.OpenedAt == nil || !updated.OpenedAt.Equal(opened) {
		t.Fatalf("opened_at must be filled, got %+v", updated.OpenedAt)
	}

	byMessage, err := emails.GetByMessageID(ctx, "msg-1")
	if err != nil {
		t.Fatalf("get by message id: %v", err)
	}
	if byMessage.ID != created.ID {
		t.Fatalf("expected same row, got %s", byMessage.ID)
	}

	latest, err := emails.LatestByRecipient(ctx, "customer@example.com")
	if err != nil {
		t.Fatalf("latest by recipient: %v", err)
	}
	if latest.ID != created.ID {
		t.Fatalf("expected latest row, got %s", latest.ID)
	}

	if _, err := emails.GetByMessageID(ctx, "missing"); !errors.Is(err, core.ErrEmailRecordNotFound) {
		t.Fatalf("expected email not found, got %v", err)
	}
}

func TestNotificationOutbox_Lifecycle(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	outbox := factory.NotificationOutboxStore()
	now := time.Now().UTC()

	queued, err := outbox.Enqueue(ctx, core.Notification{
		QuoteID:        "11111111-1111-1111-1111-111111111111",
		Recipient:      "customer@example.com",
		Template:       "quote_delivered",
		IdempotencyKey: "q-1:in_transit:delivered",
		Payload:        map[string]any{"quote_id": "q-1"},
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if queued.Status != core.NotificationStatusPending || queued.Channel != "email" {
		t.Fatalf("unexpected queued row: %+v", queued)
	}

	duplicate, err := outbox.Enqueue(ctx, core.Notification{
		QuoteID:        "11111111-1111-1111-1111-111111111111",
		Template:       "quote_delivered",
		IdempotencyKey: "q-1:in_transit:delivered",
	})
	if err != nil {
		t.Fatalf("duplicate enqueue: %v", err)
	}
	if duplicate.ID != queued.ID {
		t.Fatalf("duplicate key must return the existing row")
	}

	pending, err := outbox.ListPending(ctx, 10, now)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending row, got %d", len(pending))
	}

	retryAt := now.Add(time.Minute)
	if err := outbox.MarkFailed(ctx, queued.ID, 1, &retryAt, "relay timeout"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	pending, err = outbox.ListPending(ctx, 10, now)
	if err != nil {
		t.Fatalf("list pending after backoff: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("backoff row must not be claimable yet, got %d", len(pending))
	}
	pending, err = outbox.ListPending(ctx, 10, retryAt.Add(time.Second))
	if err != nil {
		t.Fatalf("list pending past backoff: %v", err)
	}
	if len(pending) != 1 || pending[0].Attempts != 1 {
		t.Fatalf("expected retryable row with one attempt, got %+v", pending)
	}

	if err := outbox.MarkDispatched(ctx, queued.ID, now); err != nil {
		t.Fatalf("mark dispatched: %v", err)
	}
	pending, err = outbox.ListPending(ctx, 10, retryAt.Add(time.Hour))
	if err != nil {
		t.Fatalf("list pending after dispatch: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("dispatched row must leave the queue, got %d", len(pending))
	}

	if err := outbox.MarkFailed(ctx, queued.ID, 5, nil, "hard bounce"); err != nil {
		t.Fatalf("park notification: %v", err)
	}
}

func TestNotificationDispatchStore_RecordDeduplicates(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	ledger := factory.NotificationDispatchStore()
	now := time.Now().UTC()

	fresh, err := ledger.Record(ctx, "q-1:draft:sent_to_vendor", now)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !fresh {
		t.Fatalf("first record must claim the key")
	}

	again, err := ledger.Record(ctx, "q-1:draft:sent_to_vendor", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("record duplicate: %v", err)
	}
	if again {
		t.Fatalf("duplicate key must report false")
	}
}

func TestSyncCooldownStore_TouchAndRead(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	cooldowns := factory.SyncCooldownStore()

	last, err := cooldowns.LastTriggeredAt(ctx, "session-1")
	if err != nil {
		t.Fatalf("read empty cooldown: %v", err)
	}
	if last != nil {
		t.Fatalf("expected nil for unseen session, got %v", last)
	}

	first := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	if err := cooldowns.Touch(ctx, "session-1", first); err != nil {
		t.Fatalf("touch: %v", err)
	}
	last, err = cooldowns.LastTriggeredAt(ctx, "session-1")
	if err != nil {
		t.Fatalf("read cooldown: %v", err)
	}
	if last == nil || !last.Equal(first) {
		t.Fatalf("expected %s, got %v", first, last)
	}

	second := first.Add(90 * time.Minute)
	if err := cooldowns.Touch(ctx, "session-1", second); err != nil {
		t.Fatalf("touch again: %v", err)
	}
	last, err = cooldowns.LastTriggeredAt(ctx, "session-1")
	if err != nil {
		t.Fatalf("read cooldown: %v", err)
	}
	if last == nil || !last.Equal(second) {
		t.Fatalf("expected %s, got %v", second, last)
	}
}

func newFactory(t *testing.T) (*sqlstore.RepositoryFactory, func()) {
	t.Helper()
	client, cleanup := newSQLiteClient(t)
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		cleanup()
		t.Fatalf("build stores: %v", err)
	}
	return factory, cleanup
}

func forceStatus(t *testing.T, factory *sqlstore.RepositoryFactory, id string, status core.QuoteStatus) {
	t.Helper()
	if _, err := factory.DB().NewRaw(
		"UPDATE quote_orders SET status = ? WHERE id = ?",
		string(status), id,
	).Exec(context.Background()); err != nil {
		t.Fatalf("force status %s: %v", status, err)
	}
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:quotes-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = quotemigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != quotemigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, quotemigrations.WithValidationTargets(quotemigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}
