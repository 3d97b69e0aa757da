// Package quotes is the embedding surface for the quote lifecycle core:
// the status state machine, the lock policy, the carrier tracking sync
// worker, webhook ingestion, and the append-only activity log.
package quotes

import "github.com/labforge/go-quotes/core"

type Config = core.Config

type Quote = core.Quote

type QuoteStatus = core.QuoteStatus

type Actor = core.Actor

type ActorRole = core.ActorRole

type ActivityEntry = core.ActivityEntry

type TrackingHistoryEntry = core.TrackingHistoryEntry

type OutboundEmail = core.OutboundEmail

type Notification = core.Notification

type Guard = core.Guard

type GuardOption = core.GuardOption

type CreateQuoteInput = core.CreateQuoteInput

type ApplyTransitionInput = core.ApplyTransitionInput

type UpdateQuoteInput = core.UpdateQuoteInput

var (
	WithGuardOutbox      = core.WithGuardOutbox
	WithGuardHooks       = core.WithGuardHooks
	WithGuardLogger      = core.WithGuardLogger
	WithGuardMetrics     = core.WithGuardMetrics
	WithGuardClock       = core.WithGuardClock
	WithGuardIDGenerator = core.WithGuardIDGenerator
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewGuard(
	quotes core.QuoteStore,
	writer core.TransitionWriter,
	activity core.ActivityStore,
	options ...GuardOption,
) (*Guard, error) {
	return core.NewGuard(quotes, writer, activity, options...)
}

func IsLocked(status QuoteStatus) bool {
	return core.IsLocked(status)
}
