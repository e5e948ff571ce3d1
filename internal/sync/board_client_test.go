// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package sync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/pulseboard/pulseboard/internal/config"
	"github.com/pulseboard/pulseboard/internal/models/boardapi"
)

func newTestBoardClient(serverURL string) *BoardClient {
	return NewBoardClient(&config.BoardConfig{URL: serverURL, APIToken: "test-token"})
}

// TestBoardClientItemsPage verifies the happy path: auth header, envelope
// decoding, and page extraction.
func TestBoardClientItemsPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		var req boardapi.QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Query == "" {
			t.Error("request missing query")
		}

		resp := map[string]any{
			"data": map[string]any{
				"boards": []map[string]any{
					{
						"id":   "77",
						"name": "Delivery",
						"items_page": map[string]any{
							"cursor": "next-cursor",
							"items": []map[string]any{
								{"id": "1", "name": "First"},
								{"id": "2", "name": "Second"},
							},
						},
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("failed to encode response: %v", err)
		}
	}))
	defer server.Close()

	client := newTestBoardClient(server.URL)
	page, err := client.ItemsPage(context.Background(), "77", "", 100)
	if err != nil {
		t.Fatalf("ItemsPage() error = %v", err)
	}
	if page.Cursor != "next-cursor" {
		t.Errorf("Cursor = %q", page.Cursor)
	}
	if len(page.Items) != 2 || page.Items[0].ID != "1" {
		t.Errorf("Items = %+v", page.Items)
	}
}

// TestBoardClientComplexityException verifies the structured rate-limit
// envelope converts to a typed RateLimitError with the provider's retry
// hint.
func TestBoardClientComplexityException(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"errors": [{
				"message": "Complexity budget exhausted",
				"extensions": {"code": "ComplexityException", "retry_in_seconds": 18}
			}]
		}`))
	}))
	defer server.Close()

	client := newTestBoardClient(server.URL)
	_, err := client.ItemsPage(context.Background(), "77", "", 100)
	if err == nil {
		t.Fatal("expected rate limit error")
	}

	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("error type = %T, want *RateLimitError", err)
	}
	if rle.RetryAfter != 18*time.Second {
		t.Errorf("RetryAfter = %v, want 18s", rle.RetryAfter)
	}
}

// TestBoardClientHTTP429 verifies transport-level throttling with a
// Retry-After header also surfaces as a typed RateLimitError.
func TestBoardClientHTTP429(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestBoardClient(server.URL)
	_, err := client.ItemsPage(context.Background(), "77", "", 100)

	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("error type = %T, want *RateLimitError", err)
	}
	if rle.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %v, want 30s", rle.RetryAfter)
	}
}

// TestBoardClientUnauthorized verifies a rejected token wraps the sentinel.
func TestBoardClientUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestBoardClient(server.URL)
	_, err := client.ItemsPage(context.Background(), "77", "", 100)
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

// TestBoardClientGraphQLError verifies non-rate-limit envelope errors come
// back as plain errors.
func TestBoardClientGraphQLError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"errors": [{"message": "field does not exist"}]}`))
	}))
	defer server.Close()

	client := newTestBoardClient(server.URL)
	_, err := client.ItemsPage(context.Background(), "77", "", 100)
	if err == nil {
		t.Fatal("expected error")
	}
	if IsRateLimited(err) {
		t.Error("generic GraphQL error must not read as rate limiting")
	}
}

// TestBoardClientBreakerIgnoresRateLimits verifies repeated rate-limit
// responses never open the circuit breaker: throttling is expected load
// shedding, not an outage.
func TestBoardClientBreakerIgnoresRateLimits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestBoardClient(server.URL)
	for i := 0; i < 15; i++ {
		_, err := client.ItemsPage(context.Background(), "77", "", 100)
		if !IsRateLimited(err) {
			t.Fatalf("call %d: expected rate limit error, got %v", i, err)
		}
	}
}
