package command

import (
	"fmt"
	"strings"

	"github.com/labforge/go-quotes/core"
)

const (
	TypeCreateQuote         = "quotes.command.quote.create"
	TypeApplyTransition     = "quotes.command.transition.apply"
	TypeRecordPayment       = "quotes.command.payment.record"
	TypeAddShipment         = "quotes.command.shipment.add"
	TypeUpdateQuote         = "quotes.command.quote.update"
	TypeDeleteDraft         = "quotes.command.draft.delete"
	TypeTriggerTrackingSync = "quotes.command.tracking.sync"
)

type CreateQuoteMessage struct {
	Input core.CreateQuoteInput
	Actor core.Actor
}

func (CreateQuoteMessage) Type() string { return TypeCreateQuote }

func (m CreateQuoteMessage) Validate() error {
	if strings.TrimSpace(m.Input.CustomerID) == "" {
		return fmt.Errorf("command: customer id is required")
	}
	if strings.TrimSpace(m.Input.LabID) == "" {
		return fmt.Errorf("command: lab id is required")
	}
	return validateActor(m.Actor)
}

type ApplyTransitionMessage struct {
	Input core.ApplyTransitionInput
}

func (ApplyTransitionMessage) Type() string { return TypeApplyTransition }

func (m ApplyTransitionMessage) Validate() error {
	if err := m.Input.Validate(); err != nil {
		return fmt.Errorf("command: %w", err)
	}
	return nil
}

// RecordPaymentMessage moves an approved quote across the payment boundary.
// ExpectedCurrent is the status the caller last saw; a racing writer loses
// with a stale-state error instead of double-recording the payment.
type RecordPaymentMessage struct {
	QuoteID         string
	Actor           core.Actor
	ExpectedCurrent core.QuoteStatus
	TransactionRef  string
	Reason          string
}

func (RecordPaymentMessage) Type() string { return TypeRecordPayment }

func (m RecordPaymentMessage) Validate() error {
	if strings.TrimSpace(m.QuoteID) == "" {
		return fmt.Errorf("command: quote id is required")
	}
	if strings.TrimSpace(m.TransactionRef) == "" {
		return fmt.Errorf("command: transaction ref is required")
	}
	if !core.ValidQuoteStatus(m.ExpectedCurrent) {
		return fmt.Errorf("command: expected current status %q is not valid", m.ExpectedCurrent)
	}
	return validateActor(m.Actor)
}

type AddShipmentMessage struct {
	QuoteID         string
	Actor           core.Actor
	ExpectedCurrent core.QuoteStatus
	TrackingNumber  string
	CarrierCode     string
}

func (AddShipmentMessage) Type() string { return TypeAddShipment }

func (m AddShipmentMessage) Validate() error {
	if strings.TrimSpace(m.QuoteID) == "" {
		return fmt.Errorf("command: quote id is required")
	}
	if strings.TrimSpace(m.TrackingNumber) == "" {
		return fmt.Errorf("command: tracking number is required")
	}
	if !core.ValidQuoteStatus(m.ExpectedCurrent) {
		return fmt.Errorf("command: expected current status %q is not valid", m.ExpectedCurrent)
	}
	return validateActor(m.Actor)
}

type UpdateQuoteMessage struct {
	Input core.UpdateQuoteInput
}

func (UpdateQuoteMessage) Type() string { return TypeUpdateQuote }

func (m UpdateQuoteMessage) Validate() error {
	if strings.TrimSpace(m.Input.QuoteID) == "" {
		return fmt.Errorf("command: quote id is required")
	}
	return validateActor(m.Input.Actor)
}

type DeleteDraftMessage struct {
	QuoteID string
	Actor   core.Actor
}

func (DeleteDraftMessage) Type() string { return TypeDeleteDraft }

func (m DeleteDraftMessage) Validate() error {
	if strings.TrimSpace(m.QuoteID) == "" {
		return fmt.Errorf("command: quote id is required")
	}
	return validateActor(m.Actor)
}

// TriggerTrackingSyncMessage requests a manual refresh sweep. SessionKey
// feeds the persisted cooldown; TrackingNumber narrows the sweep to one
// shipment.
type TriggerTrackingSyncMessage struct {
	TrackingNumber string
	SessionKey     string
}

func (TriggerTrackingSyncMessage) Type() string { return TypeTriggerTrackingSync }

func (m TriggerTrackingSyncMessage) Validate() error {
	return nil
}

func validateActor(actor core.Actor) error {
	if err := actor.Validate(); err != nil {
		return fmt.Errorf("command: %w", err)
	}
	return nil
}
