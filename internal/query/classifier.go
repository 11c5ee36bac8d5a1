package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/aquib-J/mysecondbrain-backend/internal/clients/openai"
	"github.com/aquib-J/mysecondbrain-backend/internal/domain"
	"github.com/aquib-J/mysecondbrain-backend/internal/pkg/ctxutil"
	"github.com/aquib-J/mysecondbrain-backend/internal/platform/logger"
)

// IntentClassifier decides whether a free-text question is a similarity
// search or a structured aggregation. Classification is best effort: any
// model, transport, or shape failure falls back to plain search, never an
// error.
type IntentClassifier struct {
	log    *logger.Logger
	client openai.Client
}

func NewIntentClassifier(log *logger.Logger, client openai.Client) (*IntentClassifier, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if client == nil {
		return nil, fmt.Errorf("openai client required")
	}
	return &IntentClassifier{
		log:    log.With("service", "IntentClassifier"),
		client: client,
	}, nil
}

const classifierSystemPrompt = `You classify user questions about a document.
Return "aggregation" only when the question asks for a numeric computation
(maximum, minimum, sum, average, count) over a known field, optionally
filtered by field values or grouped by a field. Otherwise return "search".
Field paths use dot notation for nested objects and [i] for array elements.`

func intentSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"type": map[string]any{
				"type": "string",
				"enum": []string{domain.IntentSearch, domain.IntentAggregation},
			},
			"operation": map[string]any{
				"type": "string",
				"enum": []string{
					domain.AggregateMax, domain.AggregateMin, domain.AggregateSum,
					domain.AggregateAvg, domain.AggregateCount, "",
				},
			},
			"field":    map[string]any{"type": "string"},
			"filter":   map[string]any{"type": "object", "additionalProperties": true},
			"group_by": map[string]any{"type": "string"},
		},
		"required":             []string{"type"},
		"additionalProperties": false,
	}
}

// Classify never fails: an unusable model response degrades to search.
func (c *IntentClassifier) Classify(ctx context.Context, question string, knownFields []domain.KnownField) domain.Intent {
	ctx = ctxutil.Default(ctx)
	fallback := domain.Intent{Type: domain.IntentSearch}
	if strings.TrimSpace(question) == "" {
		return fallback
	}

	var catalog strings.Builder
	if len(knownFields) > 0 {
		catalog.WriteString("Known fields:\n")
		for _, f := range knownFields {
			fmt.Fprintf(&catalog, "- %s (%s)\n", f.Path, f.ValueType)
		}
	}
	user := fmt.Sprintf("%sQuestion: %s", catalog.String(), question)

	raw, err := c.client.GenerateJSON(ctx, classifierSystemPrompt, user, "query_intent", intentSchema())
	if err != nil {
		c.log.Warn("Intent classification degraded to search", "error", err.Error())
		return fallback
	}

	intent, ok := intentFromResponse(raw)
	if !ok {
		c.log.Warn("Intent response rejected; degraded to search")
		return fallback
	}
	return intent
}

// intentFromResponse validates the model output shape. Anything that is not
// a well-formed aggregation collapses to search.
func intentFromResponse(raw map[string]any) (domain.Intent, bool) {
	t, _ := raw["type"].(string)
	switch t {
	case domain.IntentSearch:
		return domain.Intent{Type: domain.IntentSearch}, true
	case domain.IntentAggregation:
	default:
		return domain.Intent{}, false
	}

	op, _ := raw["operation"].(string)
	field, _ := raw["field"].(string)
	if !validOperation(op) || strings.TrimSpace(field) == "" {
		return domain.Intent{}, false
	}

	intent := domain.Intent{
		Type:      domain.IntentAggregation,
		Operation: op,
		Field:     strings.TrimSpace(field),
	}
	if filter, ok := raw["filter"].(map[string]any); ok && len(filter) > 0 {
		intent.Filter = filter
	}
	if groupBy, ok := raw["group_by"].(string); ok {
		intent.GroupBy = strings.TrimSpace(groupBy)
	}
	return intent, true
}

func validOperation(op string) bool {
	switch op {
	case domain.AggregateMax, domain.AggregateMin, domain.AggregateSum,
		domain.AggregateAvg, domain.AggregateCount:
		return true
	}
	return false
}
