package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/labforge/go-quotes/core"
	"github.com/uptrace/bun"
)

// RepositoryFactory wires every store in this package against one bun
// connection. Builders accept either a raw *bun.DB or anything exposing
// DB() *bun.DB, such as the persistence client.
type RepositoryFactory struct {
	db *bun.DB

	quoteStore           *QuoteStore
	activityStore        *ActivityStore
	trackingHistoryStore *TrackingHistoryStore
	outboundEmailStore   *OutboundEmailStore
	outboxStore          *NotificationOutboxStore
	dispatchStore        *NotificationDispatchStore
	cooldownStore        *SyncCooldownStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.quoteStore != nil {
		return nil
	}
	return f.initStores()
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) QuoteStore() core.QuoteStore {
	if f == nil {
		return nil
	}
	return f.quoteStore
}

func (f *RepositoryFactory) TransitionWriter() core.TransitionWriter {
	if f == nil {
		return nil
	}
	return f.quoteStore
}

func (f *RepositoryFactory) ActivityStore() core.ActivityStore {
	if f == nil {
		return nil
	}
	return f.activityStore
}

func (f *RepositoryFactory) TrackingHistoryStore() core.TrackingHistoryStore {
	if f == nil {
		return nil
	}
	return f.trackingHistoryStore
}

func (f *RepositoryFactory) OutboundEmailStore() core.OutboundEmailStore {
	if f == nil {
		return nil
	}
	return f.outboundEmailStore
}

func (f *RepositoryFactory) NotificationOutboxStore() core.NotificationOutboxStore {
	if f == nil {
		return nil
	}
	return f.outboxStore
}

func (f *RepositoryFactory) NotificationDispatchStore() core.NotificationDispatchLedger {
	if f == nil {
		return nil
	}
	return f.dispatchStore
}

func (f *RepositoryFactory) SyncCooldownStore() core.SyncCooldownStore {
	if f == nil {
		return nil
	}
	return f.cooldownStore
}

func (f *RepositoryFactory) initStores() error {
	quoteStore, err := NewQuoteStore(f.db)
	if err != nil {
		return err
	}
	f.quoteStore = quoteStore
	activityStore, err := NewActivityStore(f.db)
	if err != nil {
		return err
	}
	f.activityStore = activityStore
	trackingHistoryStore, err := NewTrackingHistoryStore(f.db)
	if err != nil {
		return err
	}
	f.trackingHistoryStore = trackingHistoryStore
	outboundEmailStore, err := NewOutboundEmailStore(f.db)
	if err != nil {
		return err
	}
	f.outboundEmailStore = outboundEmailStore
	outboxStore, err := NewNotificationOutboxStore(f.db)
	if err != nil {
		return err
	}
	f.outboxStore = outboxStore
	dispatchStore, err := NewNotificationDispatchStore(f.db)
	if err != nil {
		return err
	}
	f.dispatchStore = dispatchStore
	cooldownStore, err := NewSyncCooldownStore(f.db)
	if err != nil {
		return err
	}
	f.cooldownStore = cooldownStore

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
