package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/labforge/go-quotes/core"
	quotesync "github.com/labforge/go-quotes/sync"
)

// LifecycleService is the slice of the transition guard the commands need.
type LifecycleService interface {
	CreateQuote(ctx context.Context, input core.CreateQuoteInput, actor core.Actor) (*core.Quote, error)
	ApplyTransition(ctx context.Context, input core.ApplyTransitionInput) (*core.Quote, error)
	UpdateQuoteFields(ctx context.Context, input core.UpdateQuoteInput) (*core.Quote, error)
	DeleteDraft(ctx context.Context, quoteID string, actor core.Actor) error
}

type TrackingSyncService interface {
	Run(ctx context.Context, opts quotesync.RunOptions) (quotesync.RunReport, error)
}

type CreateQuoteCommand struct {
	service LifecycleService
}

func NewCreateQuoteCommand(service LifecycleService) *CreateQuoteCommand {
	return &CreateQuoteCommand{service: service}
}

func (c *CreateQuoteCommand) Execute(ctx context.Context, msg CreateQuoteMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: lifecycle service is required")
	}
	out, err := c.service.CreateQuote(ctx, msg.Input, msg.Actor)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ApplyTransitionCommand struct {
	service LifecycleService
}

func NewApplyTransitionCommand(service LifecycleService) *ApplyTransitionCommand {
	return &ApplyTransitionCommand{service: service}
}

func (c *ApplyTransitionCommand) Execute(ctx context.Context, msg ApplyTransitionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: lifecycle service is required")
	}
	out, err := c.service.ApplyTransition(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RecordPaymentCommand struct {
	service LifecycleService
}

func NewRecordPaymentCommand(service LifecycleService) *RecordPaymentCommand {
	return &RecordPaymentCommand{service: service}
}

func (c *RecordPaymentCommand) Execute(ctx context.Context, msg RecordPaymentMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: lifecycle service is required")
	}
	out, err := c.service.ApplyTransition(ctx, core.ApplyTransitionInput{
		QuoteID:         msg.QuoteID,
		Target:          core.QuoteStatusPaidAwaitingShipping,
		Actor:           msg.Actor,
		ExpectedCurrent: msg.ExpectedCurrent,
		Reason:          msg.Reason,
		TransactionRef:  msg.TransactionRef,
		Source:          core.LifecycleSourceUser,
	})
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type AddShipmentCommand struct {
	service LifecycleService
}

func NewAddShipmentCommand(service LifecycleService) *AddShipmentCommand {
	return &AddShipmentCommand{service: service}
}

func (c *AddShipmentCommand) Execute(ctx context.Context, msg AddShipmentMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: lifecycle service is required")
	}
	out, err := c.service.ApplyTransition(ctx, core.ApplyTransitionInput{
		QuoteID:         msg.QuoteID,
		Target:          core.QuoteStatusInTransit,
		Actor:           msg.Actor,
		ExpectedCurrent: msg.ExpectedCurrent,
		TrackingNumber:  msg.TrackingNumber,
		CarrierCode:     msg.CarrierCode,
		Source:          core.LifecycleSourceUser,
	})
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateQuoteCommand struct {
	service LifecycleService
}

func NewUpdateQuoteCommand(service LifecycleService) *UpdateQuoteCommand {
	return &UpdateQuoteCommand{service: service}
}

func (c *UpdateQuoteCommand) Execute(ctx context.Context, msg UpdateQuoteMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: lifecycle service is required")
	}
	out, err := c.service.UpdateQuoteFields(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteDraftCommand struct {
	service LifecycleService
}

func NewDeleteDraftCommand(service LifecycleService) *DeleteDraftCommand {
	return &DeleteDraftCommand{service: service}
}

func (c *DeleteDraftCommand) Execute(ctx context.Context, msg DeleteDraftMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: lifecycle service is required")
	}
	return c.service.DeleteDraft(ctx, msg.QuoteID, msg.Actor)
}

type TriggerTrackingSyncCommand struct {
	service TrackingSyncService
}

func NewTriggerTrackingSyncCommand(service TrackingSyncService) *TriggerTrackingSyncCommand {
	return &TriggerTrackingSyncCommand{service: service}
}

func (c *TriggerTrackingSyncCommand) Execute(ctx context.Context, msg TriggerTrackingSyncMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: tracking sync service is required")
	}
	out, err := c.service.Run(ctx, quotesync.RunOptions{
		TrackingNumber: msg.TrackingNumber,
		SessionKey:     msg.SessionKey,
		Source:         core.TrackingSourceManual,
	})
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
