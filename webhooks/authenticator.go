package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/labforge/go-quotes/core"
)

// DefaultSignatureHeader carries the hex HMAC-SHA256 digest of the exact
// raw request body.
const DefaultSignatureHeader = "x-webhook-signature"

// Authenticator verifies inbound webhook requests before anything parses
// the body. The signature is HMAC-SHA256 over the raw bytes, hex encoded,
// with an optional sha256= prefix.
type Authenticator struct {
	Header string
	Secret string
}

func NewAuthenticator(secret string) Authenticator {
	return Authenticator{
		Header: DefaultSignatureHeader,
		Secret: strings.TrimSpace(secret),
	}
}

func (a Authenticator) Verify(_ context.Context, headers map[string]string, body []byte) error {
	secret := strings.TrimSpace(a.Secret)
	if secret == "" {
		return fmt.Errorf("webhooks: signature secret is required")
	}
	headerName := strings.TrimSpace(a.Header)
	if headerName == "" {
		headerName = DefaultSignatureHeader
	}
	header := strings.TrimSpace(headerValue(headers, headerName))
	if header == "" {
		return fmt.Errorf("%w: %s header is missing", core.ErrWebhookUnauthorized, headerName)
	}
	signature := strings.TrimSpace(strings.TrimPrefix(header, "sha256="))
	if signature == "" {
		return fmt.Errorf("%w: signature value is empty", core.ErrWebhookUnauthorized)
	}

	decoded, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: signature is not valid hex", core.ErrWebhookUnauthorized)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	expected := mac.Sum(nil)

	if subtle.ConstantTimeCompare(decoded, expected) != 1 {
		return fmt.Errorf("%w: digest mismatch", core.ErrWebhookUnauthorized)
	}
	return nil
}

// Sign computes the header value for a body. Exists for senders and tests.
func (a Authenticator) Sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(strings.TrimSpace(a.Secret)))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
