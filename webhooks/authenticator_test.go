package webhooks

import (
	"context"
	"errors"
	"testing"

	"github.com/labforge/go-quotes/core"
)

func TestAuthenticatorVerifyAcceptsValidSignature(t *testing.T) {
	auth := NewAuthenticator("shh")
	body := []byte(`{"type":"delivery","email":"a@example.com"}`)
	headers := map[string]string{DefaultSignatureHeader: auth.Sign(body)}

	if err := auth.Verify(context.Background(), headers, body); err != nil {
		t.Fatalf("expected valid signature to pass: %v", err)
	}
}

func TestAuthenticatorVerifyAcceptsPrefixedAndMixedCaseHeader(t *testing.T) {
	auth := NewAuthenticator("shh")
	body := []byte(`{"type":"open"}`)
	headers := map[string]string{"X-Webhook-Signature": "sha256=" + auth.Sign(body)}

	if err := auth.Verify(context.Background(), headers, body); err != nil {
		t.Fatalf("expected prefixed signature to pass: %v", err)
	}
}

func TestAuthenticatorVerifyRejectsTamperedBody(t *testing.T) {
	auth := NewAuthenticator("shh")
	body := []byte(`{"type":"delivery","email":"a@example.com"}`)
	headers := map[string]string{DefaultSignatureHeader: auth.Sign(body)}

	tampered := []byte(`{"type":"delivery","email":"b@example.com"}`)
	err := auth.Verify(context.Background(), headers, tampered)
	if !errors.Is(err, core.ErrWebhookUnauthorized) {
		t.Fatalf("expected unauthorized for tampered body, got %v", err)
	}
}

func TestAuthenticatorVerifyRejectsMissingOrGarbageSignature(t *testing.T) {
	auth := NewAuthenticator("shh")
	body := []byte(`{}`)

	if err := auth.Verify(context.Background(), nil, body); !errors.Is(err, core.ErrWebhookUnauthorized) {
		t.Fatalf("expected unauthorized for missing header, got %v", err)
	}
	headers := map[string]string{DefaultSignatureHeader: "not-hex"}
	if err := auth.Verify(context.Background(), headers, body); !errors.Is(err, core.ErrWebhookUnauthorized) {
		t.Fatalf("expected unauthorized for garbage signature, got %v", err)
	}
}

func TestAuthenticatorVerifyRejectsWrongSecret(t *testing.T) {
	signer := NewAuthenticator("one")
	verifier := NewAuthenticator("two")
	body := []byte(`{"type":"click"}`)
	headers := map[string]string{DefaultSignatureHeader: signer.Sign(body)}

	if err := verifier.Verify(context.Background(), headers, body); !errors.Is(err, core.ErrWebhookUnauthorized) {
		t.Fatalf("expected unauthorized for wrong secret, got %v", err)
	}
}

func TestAuthenticatorVerifyRequiresSecret(t *testing.T) {
	auth := Authenticator{Header: DefaultSignatureHeader}
	if err := auth.Verify(context.Background(), map[string]string{DefaultSignatureHeader: "00"}, []byte(`{}`)); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
