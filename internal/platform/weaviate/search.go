package weaviate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aquib-J/mysecondbrain-backend/internal/domain"
	"github.com/aquib-J/mysecondbrain-backend/internal/pkg/ctxutil"
	apperrors "github.com/aquib-J/mysecondbrain-backend/internal/pkg/errors"
	"github.com/aquib-J/mysecondbrain-backend/internal/pkg/httpx"
)

const (
	searchMaxAttempts  = 3
	searchBackoffBase  = 500 * time.Millisecond
	defaultSearchLimit = 10
)

// SimilaritySearch runs a tenant-scoped nearest-neighbor query. Provider
// failures are retried with exponential backoff up to searchMaxAttempts and
// then degrade to an empty result set: recall is sacrificed, availability is
// not. Tenancy violations are rejected before any I/O and are never
// swallowed.
func (s *Store) SimilaritySearch(ctx context.Context, queryVector []float32, params domain.SearchParams) ([]domain.SearchHit, error) {
	const op = "similarity_search"

	if strings.TrimSpace(params.TenantID) == "" {
		return nil, apperrors.ErrTenantRequired
	}
	if len(queryVector) == 0 {
		return nil, opErr(op, OperationErrorValidation, "query vector required", nil)
	}
	if s.cfg.VectorDim > 0 && len(queryVector) != s.cfg.VectorDim {
		return nil, opErr(
			op,
			OperationErrorValidation,
			fmt.Sprintf("query vector dimension mismatch: expected=%d got=%d", s.cfg.VectorDim, len(queryVector)),
			nil,
		)
	}

	class := params.Class
	if strings.TrimSpace(class) == "" {
		class = domain.ClassDocuments
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	query := s.buildSearchQuery(class, params.TenantID, queryVector, limit, params.DocumentID)

	ctx = ctxutil.Default(ctx)
	backoff := searchBackoffBase
	var lastErr error
	for attempt := 1; attempt <= searchMaxAttempts; attempt++ {
		if ctx.Err() != nil {
			break
		}
		hits, err := s.runSearchQuery(ctx, op, class, query)
		if err == nil {
			return hits, nil
		}
		lastErr = err
		if attempt < searchMaxAttempts {
			sleep := httpx.JitterSleep(backoff)
			s.log.Warn("Similarity search retrying",
				"class", class,
				"attempt", attempt,
				"max_attempts", searchMaxAttempts,
				"sleep", sleep.String(),
				"error", err.Error(),
			)
			time.Sleep(sleep)
			backoff *= 2
		}
	}

	s.log.Error("Similarity search exhausted retries; returning empty result",
		"class", class,
		"attempts", searchMaxAttempts,
		"error", errString(lastErr),
	)
	return []domain.SearchHit{}, nil
}

func (s *Store) runSearchQuery(ctx context.Context, op, class, query string) ([]domain.SearchHit, error) {
	var data struct {
		Get map[string]json.RawMessage `json:"Get"`
	}
	if err := s.doGraphQL(ctx, op, query, &data); err != nil {
		return nil, err
	}

	raw, ok := data.Get[class]
	if !ok || len(raw) == 0 {
		return []domain.SearchHit{}, nil
	}
	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, opErr(op, OperationErrorDecodeFailed, "decode search items failed", err)
	}

	out := make([]domain.SearchHit, 0, len(items))
	for _, item := range items {
		hit := domain.SearchHit{Metadata: map[string]any{}}
		for k, v := range item {
			switch k {
			case "text":
				hit.Text, _ = v.(string)
			case "vectorId":
				hit.VectorID, _ = v.(string)
			case "_additional":
				if add, ok := v.(map[string]any); ok {
					hit.Score = extractScore(add)
				}
			default:
				hit.Metadata[k] = v
			}
		}
		if hit.VectorID == "" {
			continue
		}
		out = append(out, hit)
	}
	return out, nil
}

func (s *Store) buildSearchQuery(class, tenant string, vector []float32, limit int, documentID uuid.UUID) string {
	var args strings.Builder
	fmt.Fprintf(&args, "tenant: %s", quoteString(tenant))
	fmt.Fprintf(&args, ", nearVector: {vector: %s}", formatVector(vector))
	fmt.Fprintf(&args, ", limit: %d", limit)
	if documentID != uuid.Nil {
		fmt.Fprintf(
			&args,
			`, where: {path: ["documentId"], operator: Equal, valueText: %s}`,
			quoteString(documentID.String()),
		)
	}

	fields := "text documentId userId jobId vectorId chunkIndex isFallback pageNumber"
	if class == domain.ClassJSONDocuments {
		fields = "text documentId userId jobId vectorId chunkIndex isFallback path value valueType valueNumber itemIndex"
	}

	return fmt.Sprintf(
		"{ Get { %s(%s) { %s _additional { certainty distance } } } }",
		class, args.String(), fields,
	)
}

func extractScore(additional map[string]any) float64 {
	if c, ok := additional["certainty"].(float64); ok && c > 0 {
		return c
	}
	if d, ok := additional["distance"].(float64); ok {
		if d < 0 {
			d = -d
		}
		return 1.0 / (1.0 + d)
	}
	return 0
}

func formatVector(vector []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vector {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func quoteString(s string) string {
	raw, _ := json.Marshal(s)
	return string(raw)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
