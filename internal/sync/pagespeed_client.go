// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package sync

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"

	"github.com/pulseboard/pulseboard/internal/config"
	"github.com/pulseboard/pulseboard/internal/metrics"
	"github.com/pulseboard/pulseboard/internal/models"
)

// PageSpeedClientInterface defines the page-performance audit operation the
// sync needs.
type PageSpeedClientInterface interface {
	Audit(ctx context.Context, pageURL, strategy string) (*models.PageVitals, error)
}

// PageSpeedClient calls the page-performance audit API. The upstream
// enforces a strict per-day quota, so every call goes through the shared
// interval limiter; the per-run cap lives in the sync orchestrator.
type PageSpeedClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *IntervalLimiter
}

// NewPageSpeedClient creates an audit API client paced by the given
// limiter.
func NewPageSpeedClient(cfg *config.VitalsConfig, limiter *IntervalLimiter) *PageSpeedClient {
	return &PageSpeedClient{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		client: &http.Client{
			// Audits run the page under lab conditions and routinely
			// take tens of seconds.
			Timeout: 90 * time.Second,
		},
		limiter: limiter,
	}
}

// auditResponse is the relevant slice of the nested audit report.
type auditResponse struct {
	LighthouseResult struct {
		Categories struct {
			Performance   categoryScore `json:"performance"`
			Accessibility categoryScore `json:"accessibility"`
			SEO           categoryScore `json:"seo"`
			BestPractices categoryScore `json:"best-practices"`
		} `json:"categories"`
		Audits struct {
			LCP struct {
				NumericValue float64 `json:"numericValue"`
			} `json:"largest-contentful-paint"`
			CLS struct {
				NumericValue float64 `json:"numericValue"`
			} `json:"cumulative-layout-shift"`
			TBT struct {
				NumericValue float64 `json:"numericValue"`
			} `json:"total-blocking-time"`
		} `json:"audits"`
	} `json:"lighthouseResult"`
}

type categoryScore struct {
	Score float64 `json:"score"`
}

// Audit runs one audit for a URL/strategy pair. Category scores arrive as
// 0..1 fractions and are reported as 0..100.
func (c *PageSpeedClient) Audit(ctx context.Context, pageURL, strategy string) (*models.PageVitals, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("audit pacing interrupted: %w", err)
	}

	params := url.Values{
		"url":      {pageURL},
		"strategy": {strategy},
		"key":      {c.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/runPagespeed?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit request: %w", err)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("audit request failed: %w", err)
	}
	defer closeBody(resp, "pagespeed api")
	metrics.FetchRequestDuration.WithLabelValues("vitals").Observe(time.Since(start).Seconds())

	if resp.StatusCode == http.StatusTooManyRequests {
		metrics.RecordRateLimitHit("vitals")
		return nil, &RateLimitError{Source: "vitals", RetryAfter: 24 * time.Hour}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pagespeed api returned HTTP %d for %s: %s",
			resp.StatusCode, pageURL, readBodyForError(resp.Body))
	}

	var ar auditResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("failed to decode audit response: %w", err)
	}

	lh := ar.LighthouseResult
	return &models.PageVitals{
		URL:           pageURL,
		Strategy:      strategy,
		PerformanceScore:   lh.Categories.Performance.Score * 100,
		AccessibilityScore: lh.Categories.Accessibility.Score * 100,
		SEOScore:           lh.Categories.SEO.Score * 100,
		BestPracticesScore: lh.Categories.BestPractices.Score * 100,
		LCPMillis:     lh.Audits.LCP.NumericValue,
		CLS:           lh.Audits.CLS.NumericValue,
		TBTMillis:     lh.Audits.TBT.NumericValue,
		AuditedAt:     time.Now().UTC(),
	}, nil
}
