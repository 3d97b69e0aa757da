package core

import (
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestQuoteErrorMapperSentinels(t *testing.T) {
	cases := []struct {
		err      error
		category goerrors.Category
		textCode string
		code     int
	}{
		{ErrQuoteNotFound, goerrors.CategoryNotFound, QuoteErrorNotFound, http.StatusNotFound},
		{ErrEmailRecordNotFound, goerrors.CategoryNotFound, QuoteErrorNotFound, http.StatusNotFound},
		{ErrQuoteLocked, goerrors.CategoryAuthz, QuoteErrorLocked, http.StatusForbidden},
		{ErrInvalidQuoteStatusTransition, goerrors.CategoryBadInput, QuoteErrorInvalidTransition, http.StatusBadRequest},
		{ErrTransitionPrecondition, goerrors.CategoryValidation, QuoteErrorPreconditionFailed, http.StatusBadRequest},
		{ErrStaleQuoteState, goerrors.CategoryConflict, QuoteErrorStaleState, http.StatusConflict},
		{ErrWebhookUnauthorized, goerrors.CategoryAuth, QuoteErrorWebhookUnauthorized, http.StatusUnauthorized},
		{ErrSyncCooldownActive, goerrors.CategoryRateLimit, QuoteErrorCooldownActive, http.StatusTooManyRequests},
		{ErrUpstreamFailure, goerrors.CategoryExternal, QuoteErrorUpstreamFailure, http.StatusBadGateway},
	}
	for _, tc := range cases {
		mapped := QuoteErrorMapper(tc.err)
		if mapped == nil {
			t.Fatalf("expected envelope for %v", tc.err)
		}
		if mapped.Category != tc.category {
			t.Fatalf("%v: expected category %s, got %s", tc.err, tc.category, mapped.Category)
		}
		if mapped.TextCode != tc.textCode {
			t.Fatalf("%v: expected text code %s, got %s", tc.err, tc.textCode, mapped.TextCode)
		}
		if mapped.Code != tc.code {
			t.Fatalf("%v: expected status %d, got %d", tc.err, tc.code, mapped.Code)
		}
	}
}

func TestQuoteErrorMapperWrappedSentinel(t *testing.T) {
	wrapped := fmt.Errorf("guard: %w: expected in_transit, found delivered", ErrStaleQuoteState)
	mapped := QuoteErrorMapper(wrapped)
	if mapped.TextCode != QuoteErrorStaleState {
		t.Fatalf("expected stale state code, got %s", mapped.TextCode)
	}
}

func TestQuoteErrorMapperLockedMessage(t *testing.T) {
	mapped := QuoteErrorMapper(ErrQuoteLocked)
	if mapped.Message != LockedQuoteMessage {
		t.Fatalf("expected %q, got %q", LockedQuoteMessage, mapped.Message)
	}
}

func TestQuoteErrorMapperPassthroughEnvelope(t *testing.T) {
	original := goerrors.New("custom", goerrors.CategoryConflict).WithTextCode("CUSTOM_CODE")
	mapped := QuoteErrorMapper(original)
	if mapped.TextCode != "CUSTOM_CODE" {
		t.Fatalf("expected existing text code preserved, got %s", mapped.TextCode)
	}
	if mapped.Code != http.StatusConflict {
		t.Fatalf("expected conflict status backfilled, got %d", mapped.Code)
	}
}

func TestQuoteErrorMapperNil(t *testing.T) {
	if QuoteErrorMapper(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}
