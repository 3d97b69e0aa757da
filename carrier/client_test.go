package carrier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labforge/go-quotes/core"
)

func TestHTTPClientTrackDecodesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/track/TRK-1" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key-1" {
			t.Fatalf("expected bearer auth, got %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"tracking_number": "TRK-1",
			"status_code": "OUT_FOR_DELIVERY",
			"description": "Out for delivery",
			"location": "Louisville, KY",
			"event_time": "2026-08-01T08:30:00Z",
			"detail": {"facility": "hub-2"}
		}`)
	}))
	defer server.Close()

	client, err := NewHTTPClient(server.URL, "key-1", nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	status, err := client.Track(context.Background(), "TRK-1")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if status.Code != "OUT_FOR_DELIVERY" || status.Location != "Louisville, KY" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.EventTime == nil {
		t.Fatalf("expected event time parsed")
	}
	if status.Raw["facility"] != "hub-2" {
		t.Fatalf("expected raw detail preserved, got %+v", status.Raw)
	}
}

func TestHTTPClientTrackRetriesTransportFailureOnce(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			// kill the connection so the client sees a transport error
			hijacker, ok := w.(http.Hijacker)
			if !ok {
				t.Fatalf("recorder must support hijacking")
			}
			conn, _, _ := hijacker.Hijack()
			_ = conn.Close()
			return
		}
		fmt.Fprint(w, `{"status_code": "DELIVERED"}`)
	}))
	defer server.Close()

	client, err := NewHTTPClient(server.URL, "", nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	status, err := client.Track(context.Background(), "TRK-2")
	if err != nil {
		t.Fatalf("track after retry: %v", err)
	}
	if status.Code != "DELIVERED" {
		t.Fatalf("expected DELIVERED, got %q", status.Code)
	}
	if calls != 2 {
		t.Fatalf("expected exactly one retry, got %d calls", calls)
	}
}

func TestHTTPClientTrackDoesNotRetryReceivedResponses(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewHTTPClient(server.URL, "", nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Track(context.Background(), "TRK-3")
	if !errors.Is(err, core.ErrUpstreamFailure) {
		t.Fatalf("expected upstream failure, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("a received response must not be retried, got %d calls", calls)
	}
}

func TestHTTPClientTrackSurfacesUpstreamFailureAfterRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hijacker := w.(http.Hijacker)
		conn, _, _ := hijacker.Hijack()
		_ = conn.Close()
	}))
	defer server.Close()

	client, err := NewHTTPClient(server.URL, "", nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Track(context.Background(), "TRK-4")
	if !errors.Is(err, core.ErrUpstreamFailure) {
		t.Fatalf("expected upstream failure, got %v", err)
	}
}

func TestHTTPClientTrackValidatesInput(t *testing.T) {
	if _, err := NewHTTPClient("", "", nil); err == nil {
		t.Fatalf("expected error for empty base url")
	}
	client, err := NewHTTPClient("http://carrier.local", "", nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Track(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty tracking number")
	}
}
