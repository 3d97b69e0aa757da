package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[CreateQuoteMessage]         = (*CreateQuoteCommand)(nil)
	_ gocmd.Commander[ApplyTransitionMessage]     = (*ApplyTransitionCommand)(nil)
	_ gocmd.Commander[RecordPaymentMessage]       = (*RecordPaymentCommand)(nil)
	_ gocmd.Commander[AddShipmentMessage]         = (*AddShipmentCommand)(nil)
	_ gocmd.Commander[UpdateQuoteMessage]         = (*UpdateQuoteCommand)(nil)
	_ gocmd.Commander[DeleteDraftMessage]         = (*DeleteDraftCommand)(nil)
	_ gocmd.Commander[TriggerTrackingSyncMessage] = (*TriggerTrackingSyncCommand)(nil)
)
