package weaviate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aquib-J/mysecondbrain-backend/internal/domain"
	"github.com/aquib-J/mysecondbrain-backend/internal/pkg/ctxutil"
	apperrors "github.com/aquib-J/mysecondbrain-backend/internal/pkg/errors"
	"github.com/aquib-J/mysecondbrain-backend/internal/platform/logger"
)

const (
	maxErrorBodyBytes = 1024
	upsertBatchSize   = 100
)

var objectIDNamespaceUUID = uuid.MustParse("8d4aa4ae-73bd-4a41-9b12-2855d5cbd7b1")

// Vector is one index object: an embedding plus its queryable properties,
// addressed by the relational VectorID and scoped to a (class, tenant) pair.
type Vector struct {
	Class      string
	Tenant     string
	VectorID   string
	Values     []float32
	Properties map[string]any
}

// Store is the tenant-partitioned vector index adapter. All reads and writes
// are scoped to a tenant; calls with an empty tenant are rejected before any
// I/O.
type Store struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client

	mu             sync.Mutex
	ensuredSchemas map[string]struct{}
	ensuredTenants map[string]struct{}
}

func NewStore(log *logger.Logger, cfg Config) (*Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg, true); err != nil {
		return nil, err
	}

	s := &Store{
		log:     log.With("service", "WeaviateStore"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		ensuredSchemas: map[string]struct{}{},
		ensuredTenants: map[string]struct{}{},
	}

	log.Info(
		"Weaviate vector store configured",
		"url", s.baseURL,
		"vector_dim", cfg.VectorDim,
	)
	return s, nil
}

// -------------------- schema --------------------

type schemaProperty struct {
	Name     string   `json:"name"`
	DataType []string `json:"dataType"`
}

func classProperties(class string) []schemaProperty {
	base := []schemaProperty{
		{Name: "text", DataType: []string{"text"}},
		{Name: "documentId", DataType: []string{"text"}},
		{Name: "userId", DataType: []string{"text"}},
		{Name: "jobId", DataType: []string{"text"}},
		{Name: "vectorId", DataType: []string{"text"}},
		{Name: "chunkIndex", DataType: []string{"int"}},
		{Name: "isFallback", DataType: []string{"boolean"}},
	}
	switch class {
	case domain.ClassJSONDocuments:
		return append(base,
			schemaProperty{Name: "path", DataType: []string{"text"}},
			schemaProperty{Name: "value", DataType: []string{"text"}},
			schemaProperty{Name: "valueType", DataType: []string{"text"}},
			schemaProperty{Name: "valueNumber", DataType: []string{"number"}},
			schemaProperty{Name: "itemIndex", DataType: []string{"int"}},
		)
	default:
		return append(base,
			schemaProperty{Name: "pageNumber", DataType: []string{"int"}},
		)
	}
}

// EnsureSchema creates the class with its declared property set if absent.
// Idempotent; results are cached per process.
func (s *Store) EnsureSchema(ctx context.Context, class string) error {
	const op = "ensure_schema"
	class = strings.TrimSpace(class)
	if class == "" {
		return opErr(op, OperationErrorValidation, "class is required", nil)
	}

	s.mu.Lock()
	_, done := s.ensuredSchemas[class]
	s.mu.Unlock()
	if done {
		return nil
	}

	exists, err := s.classExists(ctx, class)
	if err != nil {
		return err
	}
	if !exists {
		body := map[string]any{
			"class":      class,
			"vectorizer": "none",
			"properties": classProperties(class),
			"multiTenancyConfig": map[string]any{
				"enabled": true,
			},
		}
		if err := s.doJSON(ctx, op, http.MethodPost, "/v1/schema", body, nil); err != nil {
			// Lost a create race with a sibling process; treat the class as present.
			var oe *OperationError
			if !(errors.As(err, &oe) && oe.StatusCode == http.StatusUnprocessableEntity) {
				return err
			}
		}
		s.log.Info("Vector index class created", "class", class)
	}

	s.mu.Lock()
	s.ensuredSchemas[class] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *Store) classExists(ctx context.Context, class string) (bool, error) {
	const op = "schema_get"
	err := s.doJSON(ctx, op, http.MethodGet, "/v1/schema/"+url.PathEscape(class), nil, nil)
	if err == nil {
		return true, nil
	}
	var oe *OperationError
	if errors.As(err, &oe) && oe.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

// -------------------- tenants --------------------

// EnsureTenant creates the tenant partition for a class if absent.
// Idempotent; called before every first write for a (class, tenant) pair.
func (s *Store) EnsureTenant(ctx context.Context, class, tenant string) error {
	const op = "ensure_tenant"
	class = strings.TrimSpace(class)
	tenant = strings.TrimSpace(tenant)
	if class == "" {
		return opErr(op, OperationErrorValidation, "class is required", nil)
	}
	if tenant == "" {
		return apperrors.ErrTenantRequired
	}

	key := class + "/" + tenant
	s.mu.Lock()
	_, done := s.ensuredTenants[key]
	s.mu.Unlock()
	if done {
		return nil
	}

	path := "/v1/schema/" + url.PathEscape(class) + "/tenants"

	var existing []struct {
		Name string `json:"name"`
	}
	if err := s.doJSON(ctx, op, http.MethodGet, path, nil, &existing); err != nil {
		return err
	}
	found := false
	for _, t := range existing {
		if t.Name == tenant {
			found = true
			break
		}
	}

	if !found {
		body := []map[string]any{{"name": tenant}}
		if err := s.doJSON(ctx, op, http.MethodPost, path, body, nil); err != nil {
			var oe *OperationError
			if !(errors.As(err, &oe) && oe.StatusCode == http.StatusUnprocessableEntity) {
				return err
			}
		}
		s.log.Debug("Tenant created", "class", class, "tenant_id", tenant)
	}

	s.mu.Lock()
	s.ensuredTenants[key] = struct{}{}
	s.mu.Unlock()
	return nil
}

// -------------------- writes --------------------

type batchObject struct {
	Class      string         `json:"class"`
	ID         string         `json:"id"`
	Tenant     string         `json:"tenant"`
	Vector     []float32      `json:"vector"`
	Properties map[string]any `json:"properties"`
}

type batchResult struct {
	ID     string `json:"id"`
	Result struct {
		Errors *struct {
			Error []struct {
				Message string `json:"message"`
			} `json:"error"`
		} `json:"errors"`
	} `json:"result"`
}

// StoreVectors writes vectors grouped by (class, tenant) in bounded batches.
// Groups are independent partitions and are written concurrently; batches
// within a group stay sequential.
func (s *Store) StoreVectors(ctx context.Context, vectors []Vector) error {
	const op = "store_vectors"
	if len(vectors) == 0 {
		return nil
	}

	type groupKey struct{ class, tenant string }
	groups := make(map[groupKey][]Vector)
	for _, v := range vectors {
		if strings.TrimSpace(v.Tenant) == "" {
			return apperrors.ErrTenantRequired
		}
		if strings.TrimSpace(v.Class) == "" {
			return opErr(op, OperationErrorValidation, "vector class is required", nil)
		}
		if strings.TrimSpace(v.VectorID) == "" {
			return opErr(op, OperationErrorValidation, "vector id is required", nil)
		}
		if len(v.Values) == 0 {
			return opErr(op, OperationErrorValidation, fmt.Sprintf("vector %q has empty values", v.VectorID), nil)
		}
		if s.cfg.VectorDim > 0 && len(v.Values) != s.cfg.VectorDim {
			return opErr(
				op,
				OperationErrorValidation,
				fmt.Sprintf(
					"vector %q dimension mismatch: expected=%d got=%d",
					v.VectorID,
					s.cfg.VectorDim,
					len(v.Values),
				),
				nil,
			)
		}
		k := groupKey{class: v.Class, tenant: v.Tenant}
		groups[k] = append(groups[k], v)
	}

	g, gctx := errgroup.WithContext(ctxutil.Default(ctx))
	for key, group := range groups {
		key, group := key, group
		g.Go(func() error {
			for start := 0; start < len(group); start += upsertBatchSize {
				end := start + upsertBatchSize
				if end > len(group) {
					end = len(group)
				}
				if err := s.writeBatch(gctx, key.class, key.tenant, group[start:end]); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Store) writeBatch(ctx context.Context, class, tenant string, vectors []Vector) error {
	const op = "batch_upsert"

	objects := make([]batchObject, 0, len(vectors))
	for _, v := range vectors {
		props := cloneProperties(v.Properties)
		props["vectorId"] = v.VectorID
		objects = append(objects, batchObject{
			Class:      class,
			ID:         s.objectID(tenant, v.VectorID),
			Tenant:     tenant,
			Vector:     v.Values,
			Properties: props,
		})
	}

	var results []batchResult
	if err := s.doJSON(ctx, op, http.MethodPost, "/v1/batch/objects", map[string]any{"objects": objects}, &results); err != nil {
		return err
	}
	for _, r := range results {
		if r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return opErr(
				op,
				OperationErrorQueryFailed,
				fmt.Sprintf("object %s rejected: %s", r.ID, r.Result.Errors.Error[0].Message),
				nil,
			)
		}
	}
	s.log.Debug("Vector batch written", "class", class, "tenant_id", tenant, "count", len(objects))
	return nil
}

// DeleteByDocument removes every object of one document inside one tenant via
// the index's delete-by-filter mutation.
func (s *Store) DeleteByDocument(ctx context.Context, class, tenant, documentID string) (int64, error) {
	const op = "batch_delete"
	if strings.TrimSpace(tenant) == "" {
		return 0, apperrors.ErrTenantRequired
	}
	if strings.TrimSpace(class) == "" || strings.TrimSpace(documentID) == "" {
		return 0, opErr(op, OperationErrorValidation, "class and document id are required", nil)
	}

	body := map[string]any{
		"match": map[string]any{
			"class": class,
			"where": map[string]any{
				"path":      []string{"documentId"},
				"operator":  "Equal",
				"valueText": documentID,
			},
		},
		"output": "minimal",
	}
	var resp struct {
		Results struct {
			Matches    int64 `json:"matches"`
			Successful int64 `json:"successful"`
		} `json:"results"`
	}
	path := "/v1/batch/objects?tenant=" + url.QueryEscape(tenant)
	if err := s.doJSON(ctx, op, http.MethodDelete, path, body, &resp); err != nil {
		return 0, err
	}
	return resp.Results.Successful, nil
}

// -------------------- transport --------------------

func (s *Store) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, s.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "weaviate request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1024*maxErrorBodyBytes))
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("weaviate http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	if out == nil {
		return nil
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode weaviate response failed", err)
	}
	return nil
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (s *Store) doGraphQL(ctx context.Context, op, query string, out any) error {
	var resp graphQLResponse
	if err := s.doJSON(ctx, op, http.MethodPost, "/v1/graphql", map[string]any{"query": query}, &resp); err != nil {
		return err
	}
	if len(resp.Errors) > 0 {
		return opErr(op, OperationErrorQueryFailed, resp.Errors[0].Message, nil)
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode graphql data failed", err)
	}
	return nil
}

func classifyHTTPCallError(op, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func cloneProperties(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// objectID derives a deterministic index id from (tenant, vectorId) so a
// re-written vector upserts in place instead of duplicating.
func (s *Store) objectID(tenant, vectorID string) string {
	deterministic := uuid.NewSHA1(objectIDNamespaceUUID, []byte(tenant+"|"+vectorID))
	return deterministic.String()
}
