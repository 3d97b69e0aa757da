package query

import (
	"fmt"
	"strings"

	"github.com/labforge/go-quotes/core"
)

const (
	TypeGetQuote            = "quotes.query.quote.get"
	TypeListQuoteActivity   = "quotes.query.activity.list"
	TypeListTrackingHistory = "quotes.query.tracking_history.list"
)

type GetQuoteMessage struct {
	QuoteID string
}

func (GetQuoteMessage) Type() string { return TypeGetQuote }

func (m GetQuoteMessage) Validate() error {
	if strings.TrimSpace(m.QuoteID) == "" {
		return fmt.Errorf("query: quote id is required")
	}
	return nil
}

type ListQuoteActivityMessage struct {
	Input core.ListActivityInput
}

func (ListQuoteActivityMessage) Type() string { return TypeListQuoteActivity }

func (m ListQuoteActivityMessage) Validate() error {
	if strings.TrimSpace(m.Input.QuoteID) == "" {
		return fmt.Errorf("query: quote id is required")
	}
	if m.Input.Limit < 0 {
		return fmt.Errorf("query: limit must be >= 0")
	}
	if m.Input.Offset < 0 {
		return fmt.Errorf("query: offset must be >= 0")
	}
	return nil
}

type ListTrackingHistoryMessage struct {
	QuoteID string
}

func (ListTrackingHistoryMessage) Type() string { return TypeListTrackingHistory }

func (m ListTrackingHistoryMessage) Validate() error {
	if strings.TrimSpace(m.QuoteID) == "" {
		return fmt.Errorf("query: quote id is required")
	}
	return nil
}
