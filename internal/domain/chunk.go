package domain

// Chunk is a bounded span of extracted document text with positional
// metadata. PageNumber applies to paginated formats, Path to structured
// (JSON) documents; ChunkIndex is the chunk's position within the document.
type Chunk struct {
	Text       string         `json:"text"`
	PageNumber int            `json:"page_number,omitempty"`
	Path       string         `json:"path,omitempty"`
	ChunkIndex int            `json:"chunk_index"`
	IsFallback bool           `json:"is_fallback,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// FlatField is one (path, value, valueType) triple produced by flattening a
// JSON document at ingestion. Structured aggregation reduces over these.
type FlatField struct {
	Path      string `json:"path"`
	Value     any    `json:"value"`
	ValueType string `json:"value_type"`
}

const (
	ValueTypeString  = "string"
	ValueTypeNumber  = "number"
	ValueTypeBoolean = "boolean"
	ValueTypeNull    = "null"
)
