package weaviate

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/aquib-J/mysecondbrain-backend/internal/domain"
	"github.com/aquib-J/mysecondbrain-backend/internal/pkg/ctxutil"
	apperrors "github.com/aquib-J/mysecondbrain-backend/internal/pkg/errors"
)

const rawPullPageSize = 1000

// Aggregate answers a structured numeric query over flattened JSON fields.
// Plain op/field queries run as a native index-side aggregation; queries the
// index cannot express (arbitrary filter, groupBy) fall back to pulling the
// document's flattened triples and reducing in-process. Zero matching numeric
// values is a valid empty answer, never an error.
func (s *Store) Aggregate(ctx context.Context, q domain.AggregationQuery) (*domain.AggregationResult, error) {
	const op = "aggregate"

	if strings.TrimSpace(q.TenantID) == "" {
		return nil, apperrors.ErrTenantRequired
	}
	if !validAggregateOperation(q.Operation) {
		return nil, opErr(op, OperationErrorValidation, fmt.Sprintf("unsupported operation %q", q.Operation), nil)
	}
	if strings.TrimSpace(q.Field) == "" {
		return nil, opErr(op, OperationErrorValidation, "field is required", nil)
	}
	if q.DocumentID == uuid.Nil {
		return nil, opErr(op, OperationErrorValidation, "document id is required", nil)
	}

	class := q.Class
	if strings.TrimSpace(class) == "" {
		class = domain.ClassJSONDocuments
	}

	ctx = ctxutil.Default(ctx)
	if len(q.Filter) == 0 && strings.TrimSpace(q.GroupBy) == "" {
		return s.aggregateNative(ctx, class, q)
	}
	return s.aggregateInProcess(ctx, class, q)
}

func validAggregateOperation(operation string) bool {
	switch operation {
	case domain.AggregateMax, domain.AggregateMin, domain.AggregateSum,
		domain.AggregateAvg, domain.AggregateCount:
		return true
	}
	return false
}

// -------------------- native path --------------------

func (s *Store) aggregateNative(ctx context.Context, class string, q domain.AggregationQuery) (*domain.AggregationResult, error) {
	const op = "aggregate_native"

	query := fmt.Sprintf(
		`{ Aggregate { %s(tenant: %s, where: {operator: And, operands: [`+
			`{path: ["documentId"], operator: Equal, valueText: %s}, `+
			`{path: ["path"], operator: Equal, valueText: %s}]}) `+
			`{ valueNumber { maximum minimum sum mean count } } } }`,
		class,
		quoteString(q.TenantID),
		quoteString(q.DocumentID.String()),
		quoteString(q.Field),
	)

	var data struct {
		Aggregate map[string]json.RawMessage `json:"Aggregate"`
	}
	if err := s.doGraphQL(ctx, op, query, &data); err != nil {
		return nil, err
	}

	var buckets []struct {
		ValueNumber struct {
			Maximum *float64 `json:"maximum"`
			Minimum *float64 `json:"minimum"`
			Sum     *float64 `json:"sum"`
			Mean    *float64 `json:"mean"`
			Count   int      `json:"count"`
		} `json:"valueNumber"`
	}
	if raw, ok := data.Aggregate[class]; ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &buckets); err != nil {
			return nil, opErr(op, OperationErrorDecodeFailed, "decode aggregate buckets failed", err)
		}
	}
	if len(buckets) == 0 || buckets[0].ValueNumber.Count == 0 {
		return &domain.AggregationResult{Result: nil, Count: 0}, nil
	}

	vn := buckets[0].ValueNumber
	out := &domain.AggregationResult{Count: vn.Count}
	switch q.Operation {
	case domain.AggregateMax:
		out.Result = vn.Maximum
	case domain.AggregateMin:
		out.Result = vn.Minimum
	case domain.AggregateSum:
		out.Result = vn.Sum
	case domain.AggregateAvg:
		out.Result = vn.Mean
	case domain.AggregateCount:
		count := float64(vn.Count)
		out.Result = &count
	}
	return out, nil
}

// -------------------- in-process fallback --------------------

// flatItem is one source JSON item reassembled from its flattened triples.
type flatItem struct {
	fields []domain.FlatField
}

func (it flatItem) lookup(path string) (domain.FlatField, bool) {
	for _, f := range it.fields {
		if f.Path == path {
			return f, true
		}
	}
	return domain.FlatField{}, false
}

func (s *Store) aggregateInProcess(ctx context.Context, class string, q domain.AggregationQuery) (*domain.AggregationResult, error) {
	items, err := s.pullFlattened(ctx, class, q.TenantID, q.DocumentID)
	if err != nil {
		return nil, err
	}
	return reduceItems(items, q), nil
}

// pullFlattened pages through every flattened triple of one document and
// regroups them into their source items by itemIndex.
func (s *Store) pullFlattened(ctx context.Context, class, tenant string, documentID uuid.UUID) ([]flatItem, error) {
	const op = "aggregate_pull"

	byItem := map[int][]domain.FlatField{}
	for offset := 0; ; offset += rawPullPageSize {
		query := fmt.Sprintf(
			`{ Get { %s(tenant: %s, where: {path: ["documentId"], operator: Equal, valueText: %s}, `+
				`limit: %d, offset: %d) { path value valueType valueNumber itemIndex } } }`,
			class,
			quoteString(tenant),
			quoteString(documentID.String()),
			rawPullPageSize,
			offset,
		)

		var data struct {
			Get map[string]json.RawMessage `json:"Get"`
		}
		if err := s.doGraphQL(ctx, op, query, &data); err != nil {
			return nil, err
		}

		var rows []struct {
			Path        string   `json:"path"`
			Value       string   `json:"value"`
			ValueType   string   `json:"valueType"`
			ValueNumber *float64 `json:"valueNumber"`
			ItemIndex   int      `json:"itemIndex"`
		}
		if raw, ok := data.Get[class]; ok && len(raw) > 0 {
			if err := json.Unmarshal(raw, &rows); err != nil {
				return nil, opErr(op, OperationErrorDecodeFailed, "decode flattened rows failed", err)
			}
		}
		for _, row := range rows {
			var value any = row.Value
			if row.ValueNumber != nil && row.ValueType == domain.ValueTypeNumber {
				value = *row.ValueNumber
			}
			byItem[row.ItemIndex] = append(byItem[row.ItemIndex], domain.FlatField{
				Path:      row.Path,
				Value:     value,
				ValueType: row.ValueType,
			})
		}
		if len(rows) < rawPullPageSize {
			break
		}
	}

	indexes := make([]int, 0, len(byItem))
	for idx := range byItem {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	items := make([]flatItem, 0, len(indexes))
	for _, idx := range indexes {
		items = append(items, flatItem{fields: byItem[idx]})
	}
	return items, nil
}

// reduceItems runs the filter / groupBy / aggregate pipeline over reassembled
// items. Non-numeric values are excluded from aggregation.
func reduceItems(items []flatItem, q domain.AggregationQuery) *domain.AggregationResult {
	matched := items[:0:0]
	for _, item := range items {
		if matchesFilter(item, q.Filter) {
			matched = append(matched, item)
		}
	}

	if strings.TrimSpace(q.GroupBy) == "" {
		values := collectNumeric(matched, q.Field)
		result, count := reduceValues(q.Operation, values)
		return &domain.AggregationResult{Result: result, Count: count}
	}

	grouped := map[string][]flatItem{}
	var keys []string
	for _, item := range matched {
		f, ok := item.lookup(q.GroupBy)
		if !ok {
			continue
		}
		key := stringifyValue(f.Value)
		if _, seen := grouped[key]; !seen {
			keys = append(keys, key)
		}
		grouped[key] = append(grouped[key], item)
	}
	sort.Strings(keys)

	out := &domain.AggregationResult{}
	for _, key := range keys {
		values := collectNumeric(grouped[key], q.Field)
		result, count := reduceValues(q.Operation, values)
		out.Groups = append(out.Groups, domain.AggregationGroup{
			Key:    key,
			Result: result,
			Count:  count,
		})
		out.Count += count
	}
	return out
}

func matchesFilter(item flatItem, filter map[string]any) bool {
	for path, expected := range filter {
		field, ok := item.lookup(path)
		if !ok {
			return false
		}
		if !valuesEqual(field.Value, expected) {
			return false
		}
	}
	return true
}

func valuesEqual(actual, expected any) bool {
	if an, ok := coerceNumeric(actual); ok {
		if en, ok2 := coerceNumeric(expected); ok2 {
			return an == en
		}
	}
	return stringifyValue(actual) == stringifyValue(expected)
}

func collectNumeric(items []flatItem, field string) []float64 {
	var out []float64
	for _, item := range items {
		f, ok := item.lookup(field)
		if !ok {
			continue
		}
		n, ok := coerceNumeric(f.Value)
		if !ok {
			continue
		}
		out = append(out, n)
	}
	return out
}

// coerceNumeric treats a value as numeric when it is a number or a string
// that parses fully as a finite float.
func coerceNumeric(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return finite(t)
	case float32:
		return finite(float64(t))
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return finite(n)
	case string:
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return finite(n)
	default:
		return 0, false
	}
}

func finite(n float64) (float64, bool) {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func reduceValues(operation string, values []float64) (*float64, int) {
	count := len(values)
	if count == 0 {
		return nil, 0
	}

	var result float64
	switch operation {
	case domain.AggregateMax:
		result = values[0]
		for _, v := range values[1:] {
			if v > result {
				result = v
			}
		}
	case domain.AggregateMin:
		result = values[0]
		for _, v := range values[1:] {
			if v < result {
				result = v
			}
		}
	case domain.AggregateSum:
		for _, v := range values {
			result += v
		}
	case domain.AggregateAvg:
		for _, v := range values {
			result += v
		}
		result /= float64(count)
	case domain.AggregateCount:
		result = float64(count)
	default:
		return nil, 0
	}
	return &result, count
}

func stringifyValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
