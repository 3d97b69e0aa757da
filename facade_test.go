package quotes

import (
	"context"
	"testing"

	quotescommand "github.com/labforge/go-quotes/command"
	"github.com/labforge/go-quotes/core"
	quotesquery "github.com/labforge/go-quotes/query"
)

type facadeStubService struct {
	applied []core.ApplyTransitionInput
}

func (s *facadeStubService) CreateQuote(_ context.Context, input core.CreateQuoteInput, _ core.Actor) (*core.Quote, error) {
	return &core.Quote{ID: "q-1", CustomerID: input.CustomerID, Status: core.QuoteStatusDraft}, nil
}

func (s *facadeStubService) ApplyTransition(_ context.Context, input core.ApplyTransitionInput) (*core.Quote, error) {
	s.applied = append(s.applied, input)
	return &core.Quote{ID: input.QuoteID, Status: input.Target}, nil
}

func (s *facadeStubService) UpdateQuoteFields(_ context.Context, input core.UpdateQuoteInput) (*core.Quote, error) {
	return &core.Quote{ID: input.QuoteID}, nil
}

func (s *facadeStubService) DeleteDraft(context.Context, string, core.Actor) error {
	return nil
}

type facadeStubQuoteReader struct{}

func (facadeStubQuoteReader) GetByID(_ context.Context, id string) (*core.Quote, error) {
	return &core.Quote{ID: id, Status: core.QuoteStatusDraft}, nil
}

func TestNewFacadeRequiresLifecycle(t *testing.T) {
	if _, err := NewFacade(nil); err == nil {
		t.Fatalf("expected error for missing lifecycle service")
	}
}

func TestFacadeWiresCommandsAndQueries(t *testing.T) {
	service := &facadeStubService{}
	facade, err := NewFacade(service, WithQuoteReader(facadeStubQuoteReader{}))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.CreateQuote == nil || commands.RecordPayment == nil || commands.DeleteDraft == nil {
		t.Fatalf("expected lifecycle commands wired, got %+v", commands)
	}
	if commands.TriggerTrackingSync != nil {
		t.Fatalf("sync command must stay unset without a sync service")
	}

	queries := facade.Queries()
	if queries.GetQuote == nil {
		t.Fatalf("expected quote query wired")
	}
	if queries.ListQuoteActivity != nil || queries.ListTrackingHistory != nil {
		t.Fatalf("reader-less queries must stay unset")
	}

	quote, err := queries.GetQuote.Query(context.Background(), quotesquery.GetQuoteMessage{QuoteID: "q-9"})
	if err != nil {
		t.Fatalf("get quote: %v", err)
	}
	if quote.ID != "q-9" {
		t.Fatalf("unexpected quote: %+v", quote)
	}
}

func TestFacadeRecordPaymentRoutesThroughLifecycle(t *testing.T) {
	service := &facadeStubService{}
	facade, err := NewFacade(service)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	err = facade.Commands().RecordPayment.Execute(context.Background(), quotescommand.RecordPaymentMessage{
		QuoteID:         "q-2",
		Actor:           core.Actor{ID: "admin-1", Role: core.ActorRoleAdmin},
		ExpectedCurrent: core.QuoteStatusApprovedPaymentPending,
		TransactionRef:  "txn_1",
	})
	if err != nil {
		t.Fatalf("execute record payment: %v", err)
	}
	if len(service.applied) != 1 || service.applied[0].Target != core.QuoteStatusPaidAwaitingShipping {
		t.Fatalf("expected payment transition applied, got %+v", service.applied)
	}
}
