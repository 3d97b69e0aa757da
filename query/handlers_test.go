package query

import (
	"context"
	"errors"
	"testing"

	"github.com/labforge/go-quotes/core"
)

type stubQuoteReader struct {
	getByIDFn func(ctx context.Context, id string) (*core.Quote, error)
}

func (s stubQuoteReader) GetByID(ctx context.Context, id string) (*core.Quote, error) {
	return s.getByIDFn(ctx, id)
}

type stubActivityReader struct {
	listFn func(ctx context.Context, input core.ListActivityInput) ([]core.ActivityEntry, error)
}

func (s stubActivityReader) List(ctx context.Context, input core.ListActivityInput) ([]core.ActivityEntry, error) {
	return s.listFn(ctx, input)
}

type stubTrackingReader struct {
	listFn func(ctx context.Context, quoteID string) ([]core.TrackingHistoryEntry, error)
}

func (s stubTrackingReader) List(ctx context.Context, quoteID string) ([]core.TrackingHistoryEntry, error) {
	return s.listFn(ctx, quoteID)
}

func TestGetQuoteQuery_Delegates(t *testing.T) {
	expected := &core.Quote{ID: "q-1", Status: core.QuoteStatusDraft}
	reader := stubQuoteReader{
		getByIDFn: func(_ context.Context, id string) (*core.Quote, error) {
			if id != "q-1" {
				t.Fatalf("unexpected id %q", id)
			}
			return expected, nil
		},
	}

	q := NewGetQuoteQuery(reader)
	quote, err := q.Query(context.Background(), GetQuoteMessage{QuoteID: "q-1"})
	if err != nil {
		t.Fatalf("query get quote: %v", err)
	}
	if quote.ID != expected.ID {
		t.Fatalf("unexpected quote: %#v", quote)
	}
}

func TestGetQuoteQuery_PropagatesNotFound(t *testing.T) {
	reader := stubQuoteReader{
		getByIDFn: func(context.Context, string) (*core.Quote, error) {
			return nil, core.ErrQuoteNotFound
		},
	}

	q := NewGetQuoteQuery(reader)
	_, err := q.Query(context.Background(), GetQuoteMessage{QuoteID: "missing"})
	if !errors.Is(err, core.ErrQuoteNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListQuoteActivityQuery_Delegates(t *testing.T) {
	reader := stubActivityReader{
		listFn: func(_ context.Context, input core.ListActivityInput) ([]core.ActivityEntry, error) {
			if input.QuoteID != "q-2" || input.Limit != 10 {
				t.Fatalf("unexpected filter: %+v", input)
			}
			return []core.ActivityEntry{{QuoteID: "q-2", Type: core.ActivityStatusChange}}, nil
		},
	}

	q := NewListQuoteActivityQuery(reader)
	entries, err := q.Query(context.Background(), ListQuoteActivityMessage{
		Input: core.ListActivityInput{QuoteID: "q-2", Limit: 10},
	})
	if err != nil {
		t.Fatalf("query activity: %v", err)
	}
	if len(entries) != 1 || entries[0].QuoteID != "q-2" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestListTrackingHistoryQuery_Delegates(t *testing.T) {
	reader := stubTrackingReader{
		listFn: func(_ context.Context, quoteID string) ([]core.TrackingHistoryEntry, error) {
			if quoteID != "q-3" {
				t.Fatalf("unexpected id %q", quoteID)
			}
			return []core.TrackingHistoryEntry{{QuoteID: "q-3", Status: core.QuoteStatusInTransit}}, nil
		},
	}

	q := NewListTrackingHistoryQuery(reader)
	entries, err := q.Query(context.Background(), ListTrackingHistoryMessage{QuoteID: "q-3"})
	if err != nil {
		t.Fatalf("query tracking history: %v", err)
	}
	if len(entries) != 1 || entries[0].Status != core.QuoteStatusInTransit {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestQueryMessages_Validate(t *testing.T) {
	if err := (GetQuoteMessage{}).Validate(); err == nil {
		t.Fatalf("expected error for missing quote id")
	}
	if err := (GetQuoteMessage{QuoteID: "q-1"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (ListQuoteActivityMessage{Input: core.ListActivityInput{QuoteID: "q-1", Limit: -1}}).Validate(); err == nil {
		t.Fatalf("expected error for negative limit")
	}
	if err := (ListTrackingHistoryMessage{}).Validate(); err == nil {
		t.Fatalf("expected error for missing quote id")
	}
}
