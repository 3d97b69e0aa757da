package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/labforge/go-quotes/core"
)

var (
	_ gocmd.Querier[GetQuoteMessage, *core.Quote]                            = (*GetQuoteQuery)(nil)
	_ gocmd.Querier[ListQuoteActivityMessage, []core.ActivityEntry]          = (*ListQuoteActivityQuery)(nil)
	_ gocmd.Querier[ListTrackingHistoryMessage, []core.TrackingHistoryEntry] = (*ListTrackingHistoryQuery)(nil)
)
