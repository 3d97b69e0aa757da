// Package core holds the quote lifecycle domain: the fixed status graph and
// lock policy, the transition guard that funnels every status change through
// one compare-and-set choke point, the append-only activity timeline, and
// the queued notification outbox.
//
// The package is persistence-agnostic. Stores, the carrier client, and the
// notifier are narrow interfaces implemented elsewhere; errors cross package
// boundaries as sentinels and are folded into rich envelopes by
// QuoteErrorMapper at the transport edge.
package core
