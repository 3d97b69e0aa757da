package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/labforge/go-quotes/core"
	quotesync "github.com/labforge/go-quotes/sync"
	"github.com/labforge/go-quotes/webhooks"
)

const maxRequestBodyBytes int64 = 1 << 20 // 1 MiB

// LifecycleService is the mutation surface the status endpoint drives.
type LifecycleService interface {
	UpdateQuoteFields(ctx context.Context, input core.UpdateQuoteInput) (*core.Quote, error)
}

type QuoteReader interface {
	GetByID(ctx context.Context, id string) (*core.Quote, error)
}

type TrackingSyncService interface {
	Run(ctx context.Context, opts quotesync.RunOptions) (quotesync.RunReport, error)
}

type WebhookProcessor interface {
	Process(ctx context.Context, req webhooks.InboundRequest) (webhooks.Result, error)
}

// Server exposes the lifecycle over HTTP. Handlers are stateless; every
// mutation routes through the guard so the audit log stays complete.
type Server struct {
	lifecycle LifecycleService
	quotes    QuoteReader
	sync      TrackingSyncService
	webhooks  WebhookProcessor
	logger    core.Logger
	metrics   *Metrics
	registry  *prometheus.Registry
}

type ServerOption func(*Server)

func WithServerLogger(logger core.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithPrometheusRegistry(registry *prometheus.Registry) ServerOption {
	return func(s *Server) {
		if registry != nil {
			s.registry = registry
		}
	}
}

func NewServer(
	lifecycle LifecycleService,
	quotes QuoteReader,
	syncService TrackingSyncService,
	webhookProcessor WebhookProcessor,
	options ...ServerOption,
) (*Server, error) {
	if lifecycle == nil {
		return nil, fmt.Errorf("httpapi: lifecycle service is required")
	}
	if quotes == nil {
		return nil, fmt.Errorf("httpapi: quote reader is required")
	}
	server := &Server{
		lifecycle: lifecycle,
		quotes:    quotes,
		sync:      syncService,
		webhooks:  webhookProcessor,
		registry:  prometheus.NewRegistry(),
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		_, server.logger = glog.Resolve("httpapi", nil, nil)
	}
	server.metrics = NewMetrics(server.registry)
	return server, nil
}

// Handler builds the routed, instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/quotes/status", s.metrics.instrument("quotes_status", http.HandlerFunc(s.handleQuoteStatus)))
	mux.Handle("/webhooks/email", s.metrics.instrument("webhooks_email", http.HandlerFunc(s.handleEmailWebhook)))
	mux.Handle("/tracking/sync", s.metrics.instrument("tracking_sync", http.HandlerFunc(s.handleTrackingSync)))
	mux.Handle("/healthz", s.metrics.instrument("healthz", http.HandlerFunc(s.handleHealthz)))
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

type actorPayload struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

type quoteUpdatesPayload struct {
	Description    *string `json:"description"`
	SampleCount    *int    `json:"sampleCount"`
	Amount         *string `json:"amount"`
	TrackingNumber *string `json:"trackingNumber"`
	CarrierCode    *string `json:"carrierCode"`
}

type quoteStatusRequest struct {
	QuoteID string               `json:"quoteId"`
	Action  string               `json:"action"`
	Actor   actorPayload         `json:"actor"`
	Updates *quoteUpdatesPayload `json:"updates"`
}

type quoteView struct {
	ID             string     `json:"id"`
	CustomerID     string     `json:"customerId"`
	LabID          string     `json:"labId"`
	Description    string     `json:"description,omitempty"`
	SampleCount    int        `json:"sampleCount"`
	Amount         string     `json:"amount"`
	Currency       string     `json:"currency"`
	Status         string     `json:"status"`
	Locked         bool       `json:"locked"`
	TrackingNumber string     `json:"trackingNumber,omitempty"`
	CarrierCode    string     `json:"carrierCode,omitempty"`
	PaidAt         *time.Time `json:"paidAt,omitempty"`
	ShippedDate    *time.Time `json:"shippedDate,omitempty"`
	DeliveredDate  *time.Time `json:"deliveredDate,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func newQuoteView(quote *core.Quote) quoteView {
	return quoteView{
		ID:             quote.ID,
		CustomerID:     quote.CustomerID,
		LabID:          quote.LabID,
		Description:    quote.Description,
		SampleCount:    quote.SampleCount,
		Amount:         core.FormatAmountCents(quote.AmountCents),
		Currency:       quote.Currency,
		Status:         string(quote.Status),
		Locked:         core.IsLocked(quote.Status),
		TrackingNumber: quote.TrackingNumber,
		CarrierCode:    quote.CarrierCode,
		PaidAt:         quote.PaidAt,
		ShippedDate:    quote.ShippedDate,
		DeliveredDate:  quote.DeliveredDate,
		CreatedAt:      quote.CreatedAt,
		UpdatedAt:      quote.UpdatedAt,
	}
}

func (s *Server) handleQuoteStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeMethodNotAllowed(w)
		return
	}
	var req quoteStatusRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.QuoteID) == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "quoteId is required"})
		return
	}

	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "get":
		quote, err := s.quotes.GetByID(r.Context(), req.QuoteID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"quote":   newQuoteView(quote),
		})
	case "update":
		if req.Updates == nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "updates payload is required"})
			return
		}
		_, err := s.lifecycle.UpdateQuoteFields(r.Context(), core.UpdateQuoteInput{
			QuoteID:        req.QuoteID,
			Actor:          requestActor(req.Actor),
			Description:    req.Updates.Description,
			SampleCount:    req.Updates.SampleCount,
			Amount:         req.Updates.Amount,
			TrackingNumber: req.Updates.TrackingNumber,
			CarrierCode:    req.Updates.CarrierCode,
		})
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
	default:
		s.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": fmt.Sprintf("unsupported action %q", req.Action),
		})
	}
}

func (s *Server) handleEmailWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeMethodNotAllowed(w)
		return
	}
	if s.webhooks == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "webhook ingestion is not enabled"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "read request body failed"})
		return
	}
	headers := map[string]string{}
	for name, values := range r.Header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}

	result, err := s.webhooks.Process(r.Context(), webhooks.InboundRequest{
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"updated": result.EmailID,
	})
}

type trackingSyncRequest struct {
	TrackingNumber string `json:"trackingNumber"`
	SessionKey     string `json:"sessionKey"`
}

func (s *Server) handleTrackingSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeMethodNotAllowed(w)
		return
	}
	if s.sync == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "tracking sync is not enabled"})
		return
	}
	var req trackingSyncRequest
	if err := decodeJSONBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	report, err := s.sync.Run(r.Context(), quotesync.RunOptions{
		TrackingNumber: req.TrackingNumber,
		SessionKey:     req.SessionKey,
		Source:         core.TrackingSourceManual,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"processed": report.Processed,
		"results":   report.Results,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// requestActor defaults to the customer role: the surface is collaborator
// facing, and elevated roles must be stated, never assumed.
func requestActor(payload actorPayload) core.Actor {
	role := core.ActorRole(strings.ToLower(strings.TrimSpace(payload.Role)))
	if role == "" {
		role = core.ActorRoleCustomer
	}
	return core.Actor{
		ID:   strings.TrimSpace(payload.ID),
		Role: role,
	}
}

func decodeJSONBody(r *http.Request, target any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return err
		}
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

// writeError folds domain errors into the wire contract. The lock policy has
// a fixed collaborator-facing message; everything else carries the mapped
// envelope's message and text code.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	envelope := core.QuoteErrorMapper(err)
	if envelope == nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "An unexpected error occurred"})
		return
	}
	body := map[string]any{"error": envelope.Message}
	if errors.Is(err, core.ErrQuoteLocked) {
		body["error"] = core.LockedQuoteMessage
	} else if strings.TrimSpace(envelope.TextCode) != "" {
		body["code"] = envelope.TextCode
	}
	if envelope.Code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", envelope.Code, "error", err)
	}
	s.writeJSON(w, envelope.Code, body)
}

func (s *Server) writeMethodNotAllowed(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("write response failed", "error", err)
	}
}
