// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package sync

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/pulseboard/pulseboard/internal/config"
	"github.com/pulseboard/pulseboard/internal/metrics"
)

// DateRange is an inclusive reporting window passed to RunReport.
type DateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// ReportRow is one result row: dimension values then metric values, both
// positional in the order they were requested.
type ReportRow struct {
	DateRangeIndex int
	Dimensions     []string
	Metrics        []float64
}

// AnalyticsClientInterface defines the reporting API operations the sync
// needs.
type AnalyticsClientInterface interface {
	RunReport(ctx context.Context, property string, ranges []DateRange, metricNames, dimensionNames []string) ([]ReportRow, error)
	ChannelSessions(ctx context.Context, property string, r DateRange) (map[string]int64, error)
	EventCounts(ctx context.Context, property string, r DateRange) (map[string]int64, error)
}

// AnalyticsClient talks to the web-analytics reporting API. Auth is a
// long-lived service credential sent per request; there is no refresh
// lifecycle.
type AnalyticsClient struct {
	baseURL    string
	credential string
	client     *http.Client
}

// NewAnalyticsClient creates a reporting API client.
func NewAnalyticsClient(cfg *config.AnalyticsConfig) *AnalyticsClient {
	return &AnalyticsClient{
		baseURL:    cfg.URL,
		credential: cfg.Credential,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type reportRequest struct {
	DateRanges []DateRange  `json:"dateRanges"`
	Metrics    []namedField `json:"metrics"`
	Dimensions []namedField `json:"dimensions,omitempty"`
}

type namedField struct {
	Name string `json:"name"`
}

type reportResponse struct {
	Rows []struct {
		DimensionValues []struct {
			Value string `json:"value"`
		} `json:"dimensionValues"`
		MetricValues []struct {
			Value string `json:"value"`
		} `json:"metricValues"`
	} `json:"rows"`
}

// RunReport executes one report: positional dimension and metric values per
// row. When more than one date range is requested the API appends a
// date_range_N dimension value; it is stripped into DateRangeIndex so
// callers see only the dimensions they asked for.
func (c *AnalyticsClient) RunReport(ctx context.Context, property string, ranges []DateRange, metricNames, dimensionNames []string) ([]ReportRow, error) {
	reqBody := reportRequest{DateRanges: ranges}
	for _, m := range metricNames {
		reqBody.Metrics = append(reqBody.Metrics, namedField{Name: m})
	}
	for _, d := range dimensionNames {
		reqBody.Dimensions = append(reqBody.Dimensions, namedField{Name: d})
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v1/properties/%s:runReport", c.baseURL, property)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.credential)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("report request failed: %w", err)
	}
	defer closeBody(resp, "analytics api")
	metrics.FetchRequestDuration.WithLabelValues("analytics").Observe(time.Since(start).Seconds())

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("analytics credential rejected (HTTP %d): %w", resp.StatusCode, ErrUnauthorized)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analytics api returned HTTP %d: %s", resp.StatusCode, readBodyForError(resp.Body))
	}

	var rr reportResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fmt.Errorf("failed to decode report response: %w", err)
	}

	multiRange := len(ranges) > 1
	rows := make([]ReportRow, 0, len(rr.Rows))
	for _, raw := range rr.Rows {
		row := ReportRow{}
		for _, dv := range raw.DimensionValues {
			if multiRange && len(dv.Value) > len("date_range_") && dv.Value[:len("date_range_")] == "date_range_" {
				if idx, err := strconv.Atoi(dv.Value[len("date_range_"):]); err == nil {
					row.DateRangeIndex = idx
					continue
				}
			}
			row.Dimensions = append(row.Dimensions, dv.Value)
		}
		for _, mv := range raw.MetricValues {
			v, err := strconv.ParseFloat(mv.Value, 64)
			if err != nil {
				return nil, fmt.Errorf("non-numeric metric value %q in report row: %w", mv.Value, err)
			}
			row.Metrics = append(row.Metrics, v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ChannelSessions returns sessions grouped by acquisition channel for one
// range.
func (c *AnalyticsClient) ChannelSessions(ctx context.Context, property string, r DateRange) (map[string]int64, error) {
	return c.singleDimensionCounts(ctx, property, r, "sessions", "sessionDefaultChannelGroup")
}

// EventCounts returns event counts grouped by event name for one range.
func (c *AnalyticsClient) EventCounts(ctx context.Context, property string, r DateRange) (map[string]int64, error) {
	return c.singleDimensionCounts(ctx, property, r, "eventCount", "eventName")
}

func (c *AnalyticsClient) singleDimensionCounts(ctx context.Context, property string, r DateRange, metric, dimension string) (map[string]int64, error) {
	rows, err := c.RunReport(ctx, property, []DateRange{r}, []string{metric}, []string{dimension})
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		if len(row.Dimensions) == 0 || len(row.Metrics) == 0 {
			continue
		}
		counts[row.Dimensions[0]] += int64(row.Metrics[0])
	}
	return counts, nil
}
