package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/aquib-J/mysecondbrain-backend/internal/domain"
)

// JSONParser flattens a JSON document into (path, value, valueType) triples.
// A top-level array yields one chunk per item; a top-level object yields one
// chunk. Chunk text is the human-readable "path: value" rendering, the
// triples ride along in metadata for structured indexing.
type JSONParser struct{}

func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

func (p *JSONParser) Parse(ctx context.Context, path string) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read json file: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return ensureChunks(nil, path, "invalid json"), nil
	}

	root := gjson.ParseBytes(raw)
	items := []gjson.Result{root}
	if root.IsArray() {
		items = root.Array()
	}

	source := filepath.Base(path)
	chunks := make([]domain.Chunk, 0, len(items))
	for i, item := range items {
		fields := flattenJSON(item, "")
		if len(fields) == 0 {
			continue
		}

		var text strings.Builder
		for _, f := range fields {
			fmt.Fprintf(&text, "%s: %s\n", f.Path, renderValue(f))
		}

		chunks = append(chunks, domain.Chunk{
			Text:       strings.TrimRight(text.String(), "\n"),
			ChunkIndex: i,
			Metadata: map[string]any{
				"source":      source,
				"item_index":  i,
				"total_items": len(items),
				"format":      "json",
				"fields":      fields,
			},
		})
	}
	return ensureChunks(chunks, path, "no fields in json"), nil
}

// flattenJSON walks nested objects with dot notation and arrays with bracket
// notation, emitting one triple per leaf.
func flattenJSON(v gjson.Result, prefix string) []domain.FlatField {
	var out []domain.FlatField

	switch {
	case v.IsObject():
		v.ForEach(func(key, value gjson.Result) bool {
			childPrefix := key.String()
			if prefix != "" {
				childPrefix = prefix + "." + key.String()
			}
			out = append(out, flattenJSON(value, childPrefix)...)
			return true
		})
	case v.IsArray():
		for i, item := range v.Array() {
			out = append(out, flattenJSON(item, prefix+"["+strconv.Itoa(i)+"]")...)
		}
	default:
		out = append(out, leafField(v, prefix))
	}
	return out
}

func leafField(v gjson.Result, path string) domain.FlatField {
	switch v.Type {
	case gjson.Number:
		return domain.FlatField{Path: path, Value: v.Float(), ValueType: domain.ValueTypeNumber}
	case gjson.True, gjson.False:
		return domain.FlatField{Path: path, Value: v.Bool(), ValueType: domain.ValueTypeBoolean}
	case gjson.Null:
		return domain.FlatField{Path: path, Value: nil, ValueType: domain.ValueTypeNull}
	default:
		return domain.FlatField{Path: path, Value: v.String(), ValueType: domain.ValueTypeString}
	}
}

func renderValue(f domain.FlatField) string {
	switch f.ValueType {
	case domain.ValueTypeNull:
		return "null"
	case domain.ValueTypeNumber:
		n, _ := f.Value.(float64)
		return strconv.FormatFloat(n, 'g', -1, 64)
	case domain.ValueTypeBoolean:
		b, _ := f.Value.(bool)
		return strconv.FormatBool(b)
	default:
		return fmt.Sprint(f.Value)
	}
}
