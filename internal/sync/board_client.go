// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

/*
board_client.go - Work-Tracking Board API Client

GraphQL-style POST client for the board API. The board enforces a shared
per-account complexity budget, so every query can come back as a structured
ComplexityException carrying a retry_in_seconds hint; callers see that as a
typed RateLimitError and decide between partial results and backoff.

Client features:
  - Bearer token authentication
  - 30-second request timeout
  - Circuit breaker protection (sony/gobreaker)
  - Structured rate-limit decoding (error code + retry-after seconds)
  - Context support for cancellation and timeouts

Related files:
  - board_fetcher.go: cursor pagination over ItemsPage
  - normalizer.go: raw item -> canonical Task conversion
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/pulseboard/pulseboard/internal/config"
	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/metrics"
	"github.com/pulseboard/pulseboard/internal/models/boardapi"
)

// maxErrorBodySize limits how much of an error response body is read for
// diagnostics, preventing unbounded allocation on large error pages.
const maxErrorBodySize = 64 * 1024 // 64KB

// readBodyForError reads a response body for error reporting (max 64KB).
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// itemsPageQuery requests one cursor page of items for one board. The first
// page passes a null cursor; later pages resume from the returned cursor.
const itemsPageQuery = `query ($boardId: [ID!], $cursor: String, $limit: Int!) {
  boards(ids: $boardId) {
    id
    name
    items_page(cursor: $cursor, limit: $limit) {
      cursor
      items {
        id
        name
        group { id title }
        column_values { id text value type }
        subitems { id name column_values { id text } }
        updates (limit: 10) { id text_body }
      }
    }
  }
}`

// BoardClientInterface defines the board API operations the fetcher needs.
// Implemented by BoardClient for production and by fakes in tests.
type BoardClientInterface interface {
	ItemsPage(ctx context.Context, boardID, cursor string, limit int) (*boardapi.ItemsPage, error)
}

// BoardClient handles communication with the board GraphQL API.
//
// Thread safety: safe for concurrent use; each request creates its own HTTP
// request. In practice board calls are strictly sequential because of the
// shared complexity budget.
type BoardClient struct {
	url      string
	apiToken string
	client   *http.Client
	cb       *gobreaker.CircuitBreaker[*boardapi.QueryResponse]
}

// NewBoardClient creates a board API client with circuit breaker protection.
// The breaker opens after a 60% failure rate over at least 10 requests and
// probes recovery after 2 minutes. Rate-limit responses do not count as
// breaker failures; they are an expected signal, not an outage.
func NewBoardClient(cfg *config.BoardConfig) *BoardClient {
	const cbName = "board-api"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[*boardapi.QueryResponse](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return IsRateLimited(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := from.String(), to.String()
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &BoardClient{
		url:      cfg.URL,
		apiToken: cfg.APIToken,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		cb: cb,
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// ItemsPage fetches one cursor page of items for a board. An empty cursor
// requests the first page. Returns a *RateLimitError when the complexity
// budget is exhausted and ErrUnauthorized on a rejected token.
func (c *BoardClient) ItemsPage(ctx context.Context, boardID, cursor string, limit int) (*boardapi.ItemsPage, error) {
	variables := map[string]any{
		"boardId": []string{boardID},
		"limit":   limit,
	}
	if cursor != "" {
		variables["cursor"] = cursor
	}

	resp, err := c.cb.Execute(func() (*boardapi.QueryResponse, error) {
		return c.query(ctx, itemsPageQuery, variables)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues("board-api", "rejected").Inc()
			return nil, fmt.Errorf("board api unavailable: %w", err)
		}
		if IsRateLimited(err) {
			metrics.RecordRateLimitHit("board")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues("board-api", "failure").Inc()
		}
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues("board-api", "success").Inc()

	if resp.Data == nil || len(resp.Data.Boards) == 0 {
		return nil, fmt.Errorf("board %s not found in response", boardID)
	}
	page := resp.Data.Boards[0].ItemsPage
	return &page, nil
}

// query POSTs a GraphQL request and decodes the envelope, converting the
// structured rate-limit and auth failures to their typed errors.
func (c *BoardClient) query(ctx context.Context, query string, variables map[string]any) (*boardapi.QueryResponse, error) {
	body, err := json.Marshal(boardapi.QueryRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal board query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create board request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("board request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close board response body")
		}
	}()
	metrics.FetchRequestDuration.WithLabelValues("board").Observe(time.Since(start).Seconds())

	switch resp.StatusCode {
	case http.StatusOK:
		// Rate limiting can also arrive inside a 200 error envelope below.
	case http.StatusTooManyRequests:
		retryAfter := time.Duration(0)
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if d, err := time.ParseDuration(ra + "s"); err == nil {
				retryAfter = d
			}
		}
		return nil, &RateLimitError{Source: "board", RetryAfter: retryAfter}
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("board token rejected (HTTP %d): %w", resp.StatusCode, ErrUnauthorized)
	default:
		return nil, fmt.Errorf("board api returned HTTP %d: %s", resp.StatusCode, readBodyForError(resp.Body))
	}

	var envelope boardapi.QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode board response: %w", err)
	}

	for _, qe := range envelope.Errors {
		if qe.Extensions.Code == boardapi.ComplexityExceptionCode {
			return nil, &RateLimitError{
				Source:     "board",
				RetryAfter: time.Duration(qe.Extensions.RetryInSeconds) * time.Second,
			}
		}
	}
	if len(envelope.Errors) > 0 {
		return nil, fmt.Errorf("board api error: %s", envelope.Errors[0].Message)
	}

	return &envelope, nil
}
