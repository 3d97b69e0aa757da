package quotes

import (
	"fmt"

	quotescommand "github.com/labforge/go-quotes/command"
	quotesquery "github.com/labforge/go-quotes/query"
)

type Commands struct {
	CreateQuote         *quotescommand.CreateQuoteCommand
	ApplyTransition     *quotescommand.ApplyTransitionCommand
	RecordPayment       *quotescommand.RecordPaymentCommand
	AddShipment         *quotescommand.AddShipmentCommand
	UpdateQuote         *quotescommand.UpdateQuoteCommand
	DeleteDraft         *quotescommand.DeleteDraftCommand
	TriggerTrackingSync *quotescommand.TriggerTrackingSyncCommand
}

type Queries struct {
	GetQuote            *quotesquery.GetQuoteQuery
	ListQuoteActivity   *quotesquery.ListQuoteActivityQuery
	ListTrackingHistory *quotesquery.ListTrackingHistoryQuery
}

// Facade bundles the command and query handlers an embedder dispatches
// through. Every mutation still routes through the lifecycle guard.
type Facade struct {
	lifecycle quotescommand.LifecycleService
	commands  Commands
	queries   Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	syncService     quotescommand.TrackingSyncService
	quoteReader     quotesquery.QuoteReader
	activityReader  quotesquery.ActivityReader
	trackingHistory quotesquery.TrackingHistoryReader
}

func WithTrackingSyncService(service quotescommand.TrackingSyncService) FacadeOption {
	return func(options *facadeOptions) {
		options.syncService = service
	}
}

func WithQuoteReader(reader quotesquery.QuoteReader) FacadeOption {
	return func(options *facadeOptions) {
		options.quoteReader = reader
	}
}

func WithActivityReader(reader quotesquery.ActivityReader) FacadeOption {
	return func(options *facadeOptions) {
		options.activityReader = reader
	}
}

func WithTrackingHistoryReader(reader quotesquery.TrackingHistoryReader) FacadeOption {
	return func(options *facadeOptions) {
		options.trackingHistory = reader
	}
}

func NewFacade(lifecycle quotescommand.LifecycleService, opts ...FacadeOption) (*Facade, error) {
	if lifecycle == nil {
		return nil, fmt.Errorf("quotes: lifecycle service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	facade := &Facade{lifecycle: lifecycle}
	facade.commands = Commands{
		CreateQuote:     quotescommand.NewCreateQuoteCommand(lifecycle),
		ApplyTransition: quotescommand.NewApplyTransitionCommand(lifecycle),
		RecordPayment:   quotescommand.NewRecordPaymentCommand(lifecycle),
		AddShipment:     quotescommand.NewAddShipmentCommand(lifecycle),
		UpdateQuote:     quotescommand.NewUpdateQuoteCommand(lifecycle),
		DeleteDraft:     quotescommand.NewDeleteDraftCommand(lifecycle),
	}
	if cfg.syncService != nil {
		facade.commands.TriggerTrackingSync = quotescommand.NewTriggerTrackingSyncCommand(cfg.syncService)
	}
	if cfg.quoteReader != nil {
		facade.queries.GetQuote = quotesquery.NewGetQuoteQuery(cfg.quoteReader)
	}
	if cfg.activityReader != nil {
		facade.queries.ListQuoteActivity = quotesquery.NewListQuoteActivityQuery(cfg.activityReader)
	}
	if cfg.trackingHistory != nil {
		facade.queries.ListTrackingHistory = quotesquery.NewListTrackingHistoryQuery(cfg.trackingHistory)
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Lifecycle() quotescommand.LifecycleService {
	if f == nil {
		return nil
	}
	return f.lifecycle
}
