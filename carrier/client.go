package carrier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labforge/go-quotes/core"
)

const defaultRequestTimeout = 10 * time.Second
const defaultResponseBodyLimit int64 = 1 << 20 // 1 MiB

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPClient fetches shipment status from the carrier tracking API. Calls
// carry a bounded timeout and a single retry on transient transport
// failures. A response that arrived, whatever its status, is never retried:
// the outcome is known and belongs to the caller.
type HTTPClient struct {
	BaseURL              string
	APIKey               string
	Client               HTTPDoer
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

func NewHTTPClient(baseURL string, apiKey string, client HTTPDoer) (*HTTPClient, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("carrier: base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("carrier: invalid base url: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &HTTPClient{
		BaseURL:              baseURL,
		APIKey:               strings.TrimSpace(apiKey),
		Client:               client,
		Timeout:              defaultRequestTimeout,
		MaxResponseBodyBytes: defaultResponseBodyLimit,
	}, nil
}

type trackingResponse struct {
	TrackingNumber string         `json:"tracking_number"`
	StatusCode     string         `json:"status_code"`
	Description    string         `json:"description"`
	Location       string         `json:"location"`
	EventTime      string         `json:"event_time"`
	Detail         map[string]any `json:"detail"`
}

func (c *HTTPClient) Track(ctx context.Context, trackingNumber string) (core.CarrierTrackingStatus, error) {
	if c == nil || c.Client == nil {
		return core.CarrierTrackingStatus{}, fmt.Errorf("carrier: client is not configured")
	}
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return core.CarrierTrackingStatus{}, fmt.Errorf("carrier: tracking number is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := c.fetch(ctx, trackingNumber)
	if err != nil {
		// one retry for failures where no response ever arrived
		res, err = c.fetch(ctx, trackingNumber)
		if err != nil {
			return core.CarrierTrackingStatus{}, fmt.Errorf(
				"%w: track %s: %v", core.ErrUpstreamFailure, trackingNumber, err)
		}
	}
	defer res.Body.Close()

	limit := c.MaxResponseBodyBytes
	if limit <= 0 {
		limit = defaultResponseBodyLimit
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, limit))
	if err != nil {
		return core.CarrierTrackingStatus{}, fmt.Errorf(
			"%w: read tracking response: %v", core.ErrUpstreamFailure, err)
	}
	if res.StatusCode != http.StatusOK {
		return core.CarrierTrackingStatus{}, fmt.Errorf(
			"%w: carrier returned status %d for %s", core.ErrUpstreamFailure, res.StatusCode, trackingNumber)
	}

	var decoded trackingResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return core.CarrierTrackingStatus{}, fmt.Errorf(
			"%w: decode tracking response: %v", core.ErrUpstreamFailure, err)
	}

	status := core.CarrierTrackingStatus{
		TrackingNumber: trackingNumber,
		Code:           strings.TrimSpace(decoded.StatusCode),
		Description:    strings.TrimSpace(decoded.Description),
		Location:       strings.TrimSpace(decoded.Location),
		Raw:            decoded.Detail,
	}
	if raw := strings.TrimSpace(decoded.EventTime); raw != "" {
		if parsed, parseErr := time.Parse(time.RFC3339, raw); parseErr == nil {
			eventTime := parsed.UTC()
			status.EventTime = &eventTime
		}
	}
	return status, nil
}

func (c *HTTPClient) fetch(ctx context.Context, trackingNumber string) (*http.Response, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	requestCtx, cancel := context.WithTimeout(ctx, timeout)

	endpoint := strings.TrimSuffix(c.BaseURL, "/") + "/track/" + url.PathEscape(trackingNumber)
	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	res, err := c.Client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	res.Body = &cancelingBody{ReadCloser: res.Body, cancel: cancel}
	return res, nil
}

// cancelingBody ties the per-request context to the body's lifetime so the
// deadline is released when the caller finishes reading.
type cancelingBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelingBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

var _ core.CarrierClient = (*HTTPClient)(nil)
