package domain

import "github.com/google/uuid"

const (
	IntentSearch      = "search"
	IntentAggregation = "aggregation"
)

const (
	AggregateMax   = "max"
	AggregateMin   = "min"
	AggregateSum   = "sum"
	AggregateAvg   = "avg"
	AggregateCount = "count"
)

// Intent is the classified shape of a free-text query: either a plain
// similarity search or a structured aggregation over flattened JSON fields.
type Intent struct {
	Type      string         `json:"type"`
	Operation string         `json:"operation,omitempty"`
	Field     string         `json:"field,omitempty"`
	Filter    map[string]any `json:"filter,omitempty"`
	GroupBy   string         `json:"group_by,omitempty"`
}

// SearchParams scopes a nearest-neighbor query to one tenant and optionally
// one document.
type SearchParams struct {
	Class      string
	TenantID   string
	DocumentID uuid.UUID
	Limit      int
}

// SearchHit is one ranked similarity-search result.
type SearchHit struct {
	VectorID string         `json:"vector_id"`
	Score    float64        `json:"score"`
	Text     string         `json:"text,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AggregationQuery is a structured numeric query over flattened JSON fields.
type AggregationQuery struct {
	Operation  string
	Field      string
	Filter     map[string]any
	GroupBy    string
	Class      string
	TenantID   string
	DocumentID uuid.UUID
}

// AggregationResult carries the reduced value. Result is nil when zero
// numeric values matched; that case is a valid empty answer, not an error.
type AggregationResult struct {
	Result *float64           `json:"result"`
	Count  int                `json:"count"`
	Groups []AggregationGroup `json:"groups,omitempty"`
}

// AggregationGroup is one bucket of a grouped aggregation.
type AggregationGroup struct {
	Key    string   `json:"key"`
	Result *float64 `json:"result"`
	Count  int      `json:"count"`
}

// KnownField describes one discovered field path and its observed type,
// supplied to the intent classifier as context.
type KnownField struct {
	Path      string `json:"path"`
	ValueType string `json:"value_type"`
}
