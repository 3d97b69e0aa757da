package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	QuoteErrorBadInput             = "QUOTE_BAD_INPUT"
	QuoteErrorNotFound             = "QUOTE_NOT_FOUND"
	QuoteErrorInvalidTransition    = "QUOTE_INVALID_TRANSITION"
	QuoteErrorLocked               = "QUOTE_LOCKED"
	QuoteErrorPreconditionFailed   = "QUOTE_PRECONDITION_FAILED"
	QuoteErrorStaleState           = "QUOTE_STALE_STATE"
	QuoteErrorWebhookUnauthorized  = "WEBHOOK_UNAUTHORIZED"
	QuoteErrorUpstreamFailure      = "QUOTE_UPSTREAM_FAILURE"
	QuoteErrorCooldownActive       = "QUOTE_REFRESH_COOLDOWN"
	QuoteErrorInternal             = "QUOTE_INTERNAL_ERROR"
	LockedQuoteMessage             = "Quote has been paid and cannot be modified"
	invalidTransitionMessagePrefix = "Cannot change status"
)

// QuoteErrorMapper folds any error coming out of the lifecycle core into a
// rich envelope with a stable text code and HTTP status. Sentinels map
// explicitly; everything else falls back to the default mappers.
func QuoteErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureQuoteErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrQuoteNotFound), errors.Is(err, ErrEmailRecordNotFound):
		return newQuoteError(err.Error(), goerrors.CategoryNotFound, QuoteErrorNotFound)
	case errors.Is(err, ErrQuoteLocked):
		return newQuoteError(LockedQuoteMessage, goerrors.CategoryAuthz, QuoteErrorLocked)
	case errors.Is(err, ErrInvalidQuoteStatusTransition), errors.Is(err, ErrInvalidQuoteStatus):
		return newQuoteError(err.Error(), goerrors.CategoryBadInput, QuoteErrorInvalidTransition)
	case errors.Is(err, ErrTransitionPrecondition):
		return newQuoteError(err.Error(), goerrors.CategoryValidation, QuoteErrorPreconditionFailed)
	case errors.Is(err, ErrStaleQuoteState):
		return newQuoteError(err.Error(), goerrors.CategoryConflict, QuoteErrorStaleState)
	case errors.Is(err, ErrWebhookUnauthorized):
		return newQuoteError(err.Error(), goerrors.CategoryAuth, QuoteErrorWebhookUnauthorized)
	case errors.Is(err, ErrSyncCooldownActive):
		return newQuoteError(err.Error(), goerrors.CategoryRateLimit, QuoteErrorCooldownActive)
	case errors.Is(err, ErrUpstreamFailure):
		return newQuoteError(err.Error(), goerrors.CategoryExternal, QuoteErrorUpstreamFailure)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureQuoteErrorEnvelope(mapped)
}

func newQuoteError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureQuoteErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureQuoteErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = quoteHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultQuoteTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultQuoteTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return QuoteErrorBadInput
	case goerrors.CategoryNotFound:
		return QuoteErrorNotFound
	case goerrors.CategoryAuth:
		return QuoteErrorWebhookUnauthorized
	case goerrors.CategoryAuthz:
		return QuoteErrorLocked
	case goerrors.CategoryConflict:
		return QuoteErrorStaleState
	case goerrors.CategoryRateLimit:
		return QuoteErrorCooldownActive
	case goerrors.CategoryExternal:
		return QuoteErrorUpstreamFailure
	default:
		return QuoteErrorInternal
	}
}

func quoteHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
