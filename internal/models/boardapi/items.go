// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

// Package boardapi defines the raw wire types for the work-tracking board
// API. These structs mirror the remote GraphQL response shapes exactly;
// the normalizer in internal/sync converts them into canonical models and
// no raw map leaves that boundary.
package boardapi

// QueryRequest is the POST body for the board GraphQL endpoint.
type QueryRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// QueryResponse is the top-level GraphQL response envelope. Errors and Data
// can both be present; a complexity budget rejection arrives as an error
// with code ComplexityException.
type QueryResponse struct {
	Data   *QueryData   `json:"data,omitempty"`
	Errors []QueryError `json:"errors,omitempty"`
}

// QueryError is one entry of the GraphQL errors array.
type QueryError struct {
	Message    string          `json:"message"`
	Extensions ErrorExtensions `json:"extensions,omitempty"`
}

// ErrorExtensions carries the structured error code and, for complexity
// budget rejections, the seconds until the budget refills.
type ErrorExtensions struct {
	Code           string `json:"code,omitempty"`
	RetryInSeconds int    `json:"retry_in_seconds,omitempty"`
}

// ComplexityExceptionCode is the error code the board API returns when a
// query would exceed the per-minute complexity budget.
const ComplexityExceptionCode = "ComplexityException"

// QueryData is the data portion of a boards items query.
type QueryData struct {
	Boards []Board `json:"boards"`
}

// Board holds one board's page of items.
type Board struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ItemsPage  ItemsPage `json:"items_page"`
	ItemsCount int       `json:"items_count,omitempty"`
}

// ItemsPage is one cursor page of board items. An empty cursor means the
// final page.
type ItemsPage struct {
	Cursor string `json:"cursor"`
	Items  []Item `json:"items"`
}

// Item is one raw board item with its column values, group, subitems, and
// update bodies.
type Item struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Group        *Group        `json:"group,omitempty"`
	ColumnValues []ColumnValue `json:"column_values"`
	Subitems     []Subitem     `json:"subitems,omitempty"`
	Updates      []Update      `json:"updates,omitempty"`
}

// ColumnValue is the (id, text, value) triple the board returns per column.
// Text is the display string; Value is the raw JSON the normalizer avoids
// except where text is empty.
type ColumnValue struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Value string `json:"value,omitempty"`
	Type  string `json:"type,omitempty"`
}

// Group is the board group (lane) an item belongs to.
type Group struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Subitem is a child item carried inline on its parent.
type Subitem struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	ColumnValues []ColumnValue `json:"column_values,omitempty"`
}

// Update is one comment body on an item.
type Update struct {
	ID       string `json:"id"`
	TextBody string `json:"text_body"`
}
