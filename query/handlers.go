package query

import (
	"context"

	"github.com/labforge/go-quotes/core"
)

type QuoteReader interface {
	GetByID(ctx context.Context, id string) (*core.Quote, error)
}

type ActivityReader interface {
	List(ctx context.Context, input core.ListActivityInput) ([]core.ActivityEntry, error)
}

type TrackingHistoryReader interface {
	List(ctx context.Context, quoteID string) ([]core.TrackingHistoryEntry, error)
}

type GetQuoteQuery struct {
	reader QuoteReader
}

func NewGetQuoteQuery(reader QuoteReader) *GetQuoteQuery {
	return &GetQuoteQuery{reader: reader}
}

func (q *GetQuoteQuery) Query(ctx context.Context, msg GetQuoteMessage) (*core.Quote, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: quote reader is required")
	}
	return q.reader.GetByID(ctx, msg.QuoteID)
}

type ListQuoteActivityQuery struct {
	reader ActivityReader
}

func NewListQuoteActivityQuery(reader ActivityReader) *ListQuoteActivityQuery {
	return &ListQuoteActivityQuery{reader: reader}
}

func (q *ListQuoteActivityQuery) Query(ctx context.Context, msg ListQuoteActivityMessage) ([]core.ActivityEntry, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: activity reader is required")
	}
	return q.reader.List(ctx, msg.Input)
}

type ListTrackingHistoryQuery struct {
	reader TrackingHistoryReader
}

func NewListTrackingHistoryQuery(reader TrackingHistoryReader) *ListTrackingHistoryQuery {
	return &ListTrackingHistoryQuery{reader: reader}
}

func (q *ListTrackingHistoryQuery) Query(ctx context.Context, msg ListTrackingHistoryMessage) ([]core.TrackingHistoryEntry, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: tracking history reader is required")
	}
	return q.reader.List(ctx, msg.QuoteID)
}
