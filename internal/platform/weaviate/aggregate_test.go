package weaviate

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/aquib-J/mysecondbrain-backend/internal/domain"
	apperrors "github.com/aquib-J/mysecondbrain-backend/internal/pkg/errors"
)

func TestAggregateRequiresTenant(t *testing.T) {
	s := newTestStore(t, func(r *http.Request) (*http.Response, error) {
		t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		return nil, nil
	})

	_, err := s.Aggregate(context.Background(), domain.AggregationQuery{
		Operation:  domain.AggregateSum,
		Field:      "amount",
		DocumentID: uuid.New(),
	})
	if !errors.Is(err, apperrors.ErrTenantRequired) {
		t.Fatalf("expected ErrTenantRequired, got=%v", err)
	}
}

func TestAggregateRejectsUnknownOperation(t *testing.T) {
	s := newTestStore(t, func(r *http.Request) (*http.Response, error) {
		t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		return nil, nil
	})

	_, err := s.Aggregate(context.Background(), domain.AggregationQuery{
		TenantID:   "user_a",
		Operation:  "median",
		Field:      "amount",
		DocumentID: uuid.New(),
	})
	var oe *OperationError
	if !errors.As(err, &oe) {
		t.Fatalf("expected OperationError, got=%T", err)
	}
	if oe.Code != OperationErrorValidation {
		t.Fatalf("error code: want=%q got=%q", OperationErrorValidation, oe.Code)
	}
}

func TestAggregateNativeQueryAndMapping(t *testing.T) {
	docID := uuid.New()
	var query string
	s := newTestStore(t, func(r *http.Request) (*http.Response, error) {
		query = readGraphQLQuery(t, r)
		return graphQLResponseBody(t, map[string]any{
			"Aggregate": map[string]any{
				domain.ClassJSONDocuments: []map[string]any{
					{
						"valueNumber": map[string]any{
							"maximum": 40.0,
							"minimum": 10.0,
							"sum":     100.0,
							"mean":    25.0,
							"count":   4,
						},
					},
				},
			},
		}), nil
	})

	res, err := s.Aggregate(context.Background(), domain.AggregationQuery{
		TenantID:   "user_a",
		Operation:  domain.AggregateAvg,
		Field:      "orders.amount",
		DocumentID: docID,
	})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if res.Result == nil || *res.Result != 25.0 {
		t.Fatalf("avg result: got=%+v", res)
	}
	if res.Count != 4 {
		t.Fatalf("count: want=4 got=%d", res.Count)
	}

	for _, want := range []string{
		`tenant: "user_a"`,
		`valueText: "` + docID.String() + `"`,
		`valueText: "orders.amount"`,
		"valueNumber { maximum minimum sum mean count }",
	} {
		if !strings.Contains(query, want) {
			t.Fatalf("query missing %q:\n%s", want, query)
		}
	}
}

func TestAggregateNativeEmptyMatchIsNotAnError(t *testing.T) {
	s := newTestStore(t, func(r *http.Request) (*http.Response, error) {
		return graphQLResponseBody(t, map[string]any{
			"Aggregate": map[string]any{
				domain.ClassJSONDocuments: []map[string]any{
					{"valueNumber": map[string]any{"count": 0}},
				},
			},
		}), nil
	})

	res, err := s.Aggregate(context.Background(), domain.AggregationQuery{
		TenantID:   "user_a",
		Operation:  domain.AggregateSum,
		Field:      "missing.field",
		DocumentID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if res.Result != nil || res.Count != 0 {
		t.Fatalf("empty aggregate: got=%+v", res)
	}
}

func TestAggregateInProcessFilterAndSum(t *testing.T) {
	docID := uuid.New()
	s := newTestStore(t, func(r *http.Request) (*http.Response, error) {
		query := readGraphQLQuery(t, r)
		if !strings.Contains(query, `tenant: "user_a"`) {
			t.Fatalf("pull query not tenant scoped:\n%s", query)
		}
		return graphQLResponseBody(t, map[string]any{
			"Get": map[string]any{
				domain.ClassJSONDocuments: []map[string]any{
					{"path": "status", "value": "paid", "valueType": domain.ValueTypeString, "itemIndex": 0},
					{"path": "amount", "value": "10", "valueType": domain.ValueTypeString, "itemIndex": 0},
					{"path": "status", "value": "paid", "valueType": domain.ValueTypeString, "itemIndex": 1},
					{"path": "amount", "value": "20", "valueType": domain.ValueTypeString, "itemIndex": 1},
					{"path": "status", "value": "void", "valueType": domain.ValueTypeString, "itemIndex": 2},
					{"path": "amount", "value": "99", "valueType": domain.ValueTypeString, "itemIndex": 2},
				},
			},
		}), nil
	})

	res, err := s.Aggregate(context.Background(), domain.AggregationQuery{
		TenantID:   "user_a",
		Operation:  domain.AggregateSum,
		Field:      "amount",
		DocumentID: docID,
		Filter:     map[string]any{"status": "paid"},
	})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if res.Result == nil || *res.Result != 30 {
		t.Fatalf("filtered sum: got=%+v", res)
	}
	if res.Count != 2 {
		t.Fatalf("count: want=2 got=%d", res.Count)
	}
}

func TestAggregateInProcessGroupBy(t *testing.T) {
	s := newTestStore(t, func(r *http.Request) (*http.Response, error) {
		return graphQLResponseBody(t, map[string]any{
			"Get": map[string]any{
				domain.ClassJSONDocuments: []map[string]any{
					{"path": "region", "value": "east", "valueType": domain.ValueTypeString, "itemIndex": 0},
					{"path": "amount", "value": "", "valueType": domain.ValueTypeNumber, "valueNumber": 10.0, "itemIndex": 0},
					{"path": "region", "value": "west", "valueType": domain.ValueTypeString, "itemIndex": 1},
					{"path": "amount", "value": "", "valueType": domain.ValueTypeNumber, "valueNumber": 5.0, "itemIndex": 1},
					{"path": "region", "value": "east", "valueType": domain.ValueTypeString, "itemIndex": 2},
					{"path": "amount", "value": "", "valueType": domain.ValueTypeNumber, "valueNumber": 30.0, "itemIndex": 2},
					// Item without the groupBy key is skipped.
					{"path": "amount", "value": "", "valueType": domain.ValueTypeNumber, "valueNumber": 100.0, "itemIndex": 3},
				},
			},
		}), nil
	})

	res, err := s.Aggregate(context.Background(), domain.AggregationQuery{
		TenantID:   "user_a",
		Operation:  domain.AggregateMax,
		Field:      "amount",
		DocumentID: uuid.New(),
		GroupBy:    "region",
	})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(res.Groups) != 2 {
		t.Fatalf("group count: want=2 got=%d (%+v)", len(res.Groups), res.Groups)
	}
	east, west := res.Groups[0], res.Groups[1]
	if east.Key != "east" || east.Result == nil || *east.Result != 30 || east.Count != 2 {
		t.Fatalf("east group: got=%+v", east)
	}
	if west.Key != "west" || west.Result == nil || *west.Result != 5 || west.Count != 1 {
		t.Fatalf("west group: got=%+v", west)
	}
}

func TestReduceItems(t *testing.T) {
	items := []flatItem{
		{fields: []domain.FlatField{{Path: "amount", Value: "10", ValueType: domain.ValueTypeString}}},
		{fields: []domain.FlatField{{Path: "amount", Value: "20", ValueType: domain.ValueTypeString}}},
		{fields: []domain.FlatField{{Path: "amount", Value: "n/a", ValueType: domain.ValueTypeString}}},
	}

	t.Run("sum coerces numeric strings", func(t *testing.T) {
		res := reduceItems(items, domain.AggregationQuery{Operation: domain.AggregateSum, Field: "amount"})
		if res.Result == nil || *res.Result != 30 || res.Count != 2 {
			t.Fatalf("got=%+v", res)
		}
	})

	t.Run("zero numeric matches yields nil result", func(t *testing.T) {
		res := reduceItems(items, domain.AggregationQuery{Operation: domain.AggregateSum, Field: "nonexistent"})
		if res.Result != nil || res.Count != 0 {
			t.Fatalf("got=%+v", res)
		}
	})

	t.Run("avg", func(t *testing.T) {
		res := reduceItems(items, domain.AggregationQuery{Operation: domain.AggregateAvg, Field: "amount"})
		if res.Result == nil || *res.Result != 15 {
			t.Fatalf("got=%+v", res)
		}
	})

	t.Run("count", func(t *testing.T) {
		res := reduceItems(items, domain.AggregationQuery{Operation: domain.AggregateCount, Field: "amount"})
		if res.Result == nil || *res.Result != 2 || res.Count != 2 {
			t.Fatalf("got=%+v", res)
		}
	})
}

func TestCoerceNumeric(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want float64
		ok   bool
	}{
		{"float64", 42.5, 42.5, true},
		{"int", 7, 7, true},
		{"numeric string", " 12.5 ", 12.5, true},
		{"integer string", "100", 100, true},
		{"partial number", "12abc", 0, false},
		{"empty string", "", 0, false},
		{"word", "ten", 0, false},
		{"nan string", "NaN", 0, false},
		{"inf string", "Inf", 0, false},
		{"bool", true, 0, false},
		{"nil", nil, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := coerceNumeric(tc.in)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("coerceNumeric(%v): want=(%v,%v) got=(%v,%v)", tc.in, tc.want, tc.ok, got, ok)
			}
		})
	}
}
