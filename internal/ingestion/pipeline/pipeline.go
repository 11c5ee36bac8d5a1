package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/aquib-J/mysecondbrain-backend/internal/data/repos/jobs"
	"github.com/aquib-J/mysecondbrain-backend/internal/data/repos/vectors"
	"github.com/aquib-J/mysecondbrain-backend/internal/domain"
	"github.com/aquib-J/mysecondbrain-backend/internal/ingestion/parser"
	"github.com/aquib-J/mysecondbrain-backend/internal/pkg/ctxutil"
	apperrors "github.com/aquib-J/mysecondbrain-backend/internal/pkg/errors"
	"github.com/aquib-J/mysecondbrain-backend/internal/platform/logger"
	"github.com/aquib-J/mysecondbrain-backend/internal/platform/weaviate"
)

// VectorIndex is the slice of the vector store the pipeline needs.
type VectorIndex interface {
	EnsureSchema(ctx context.Context, class string) error
	EnsureTenant(ctx context.Context, class, tenant string) error
	StoreVectors(ctx context.Context, vectors []weaviate.Vector) error
	DeleteByDocument(ctx context.Context, class, tenant, documentID string) (int64, error)
}

// Service drives one ingestion job end to end: claim, parse, embed, persist,
// index, finish. Parser degradation is not a failure; embedding, persistence
// and indexing errors are.
type Service struct {
	log      *logger.Logger
	jobs     jobs.JobRepo
	vectors  vectors.VectorRecordRepo
	index    VectorIndex
	embedder Embedder
	registry *parser.Registry
}

func NewService(
	log *logger.Logger,
	jobRepo jobs.JobRepo,
	vectorRepo vectors.VectorRecordRepo,
	index VectorIndex,
	embedder Embedder,
	registry *parser.Registry,
) (*Service, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if jobRepo == nil || vectorRepo == nil || index == nil || embedder == nil || registry == nil {
		return nil, fmt.Errorf("all pipeline dependencies are required")
	}
	return &Service{
		log:      log.With("service", "IngestionPipeline"),
		jobs:     jobRepo,
		vectors:  vectorRepo,
		index:    index,
		embedder: embedder,
		registry: registry,
	}, nil
}

// jobSpec is the contract of Job.Metadata for ingestion jobs.
type jobSpec struct {
	FilePath string    `json:"file_path"`
	FileName string    `json:"file_name"`
	DocType  string    `json:"doc_type"`
	UserID   uuid.UUID `json:"user_id"`
}

// ProcessJob runs one pending job to a terminal status. It returns an error
// only for failures the scheduler should log; a job lost to a concurrent
// cancel is skipped silently.
func (s *Service) ProcessJob(ctx context.Context, job *domain.Job) error {
	ctx, correlationID := ctxutil.EnsureCorrelationID(ctxutil.Default(ctx))
	log := s.log.With("job_id", job.ID.String(), "correlation_id", correlationID)

	spec, err := decodeJobSpec(job)
	if err != nil {
		s.markFailed(ctx, log, job.ID, err)
		return err
	}

	if _, err := s.jobs.UpdateStatus(ctx, job.ID, domain.JobStatusInProgress, jobs.StatusPatch{
		Metadata: map[string]any{"correlation_id": correlationID},
	}); err != nil {
		if errors.Is(err, apperrors.ErrJobTerminal) || errors.Is(err, apperrors.ErrInvalidArgument) {
			log.Info("Job no longer pending; skipping", "error", err.Error())
			return nil
		}
		return fmt.Errorf("claim job: %w", err)
	}
	log.Info("Job started", "doc_type", spec.DocType, "file", spec.FileName)

	p, err := s.registry.Get(spec.DocType)
	if err != nil {
		s.markFailed(ctx, log, job.ID, err)
		return err
	}
	chunks, err := p.Parse(ctx, spec.FilePath)
	if err != nil {
		// Parsers degrade on bad content; an error here means the file itself
		// was unreachable.
		err = fmt.Errorf("parse %s: %w", spec.FileName, err)
		s.markFailed(ctx, log, job.ID, err)
		return err
	}

	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	embeddings, err := s.embedder.EmbedChunks(ctx, texts)
	if err != nil {
		err = fmt.Errorf("embed chunks: %w", err)
		s.markFailed(ctx, log, job.ID, err)
		return err
	}

	records, err := s.persistRecords(ctx, job, spec, chunks, embeddings)
	if err != nil {
		err = fmt.Errorf("persist vector records: %w", err)
		s.markFailed(ctx, log, job.ID, err)
		return err
	}

	if err := s.indexVectors(ctx, job, spec, chunks, records); err != nil {
		err = fmt.Errorf("index vectors: %w", err)
		s.markFailed(ctx, log, job.ID, err)
		return err
	}

	vectorIDs := make([]string, 0, len(records))
	for _, r := range records {
		vectorIDs = append(vectorIDs, r.VectorID.String())
	}
	output := map[string]any{
		"chunk_count":  len(chunks),
		"vector_count": len(records),
		"vector_ids":   vectorIDs,
	}
	if _, err := s.jobs.UpdateStatus(ctx, job.ID, domain.JobStatusSuccess, jobs.StatusPatch{
		Output: output,
	}); err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	log.Info("Job succeeded", "chunk_count", len(chunks), "vector_count", len(records))
	return nil
}

func decodeJobSpec(job *domain.Job) (jobSpec, error) {
	var spec jobSpec
	if len(job.Metadata) == 0 {
		return spec, fmt.Errorf("%w: job has no metadata", apperrors.ErrInvalidArgument)
	}
	if err := json.Unmarshal(job.Metadata, &spec); err != nil {
		return spec, fmt.Errorf("%w: decode job metadata: %v", apperrors.ErrInvalidArgument, err)
	}
	if strings.TrimSpace(spec.FilePath) == "" {
		return spec, fmt.Errorf("%w: job metadata missing file_path", apperrors.ErrInvalidArgument)
	}
	if spec.UserID == uuid.Nil {
		return spec, fmt.Errorf("%w: job metadata missing user_id", apperrors.ErrInvalidArgument)
	}
	if spec.FileName == "" {
		spec.FileName = spec.FilePath
	}
	if strings.TrimSpace(spec.DocType) == "" {
		spec.DocType = parser.DocTypeForPath(spec.FilePath)
	}
	return spec, nil
}

func (s *Service) persistRecords(
	ctx context.Context,
	job *domain.Job,
	spec jobSpec,
	chunks []domain.Chunk,
	embeddings [][]float32,
) ([]*domain.VectorRecord, error) {
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embedding count %d does not match chunk count %d", len(embeddings), len(chunks))
	}

	records := make([]*domain.VectorRecord, 0, len(chunks))
	for i, c := range chunks {
		md := map[string]any{
			"document_id": job.DocumentID.String(),
			"user_id":     spec.UserID.String(),
			"chunk_index": c.ChunkIndex,
			"doc_type":    spec.DocType,
		}
		if c.PageNumber > 0 {
			md["page"] = c.PageNumber
		}
		if c.IsFallback {
			md["is_fallback"] = true
		}
		raw, err := json.Marshal(md)
		if err != nil {
			return nil, fmt.Errorf("encode record metadata: %w", err)
		}
		records = append(records, &domain.VectorRecord{
			JobID:               job.ID,
			EmbeddingProviderID: s.embedder.Model(),
			TextContent:         c.Text,
			Embedding:           pgvector.NewVector(embeddings[i]),
			Metadata:            raw,
		})
	}
	if err := s.vectors.BulkInsert(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Service) indexVectors(
	ctx context.Context,
	job *domain.Job,
	spec jobSpec,
	chunks []domain.Chunk,
	records []*domain.VectorRecord,
) error {
	class := domain.ClassDocuments
	if spec.DocType == parser.DocTypeJSON {
		class = domain.ClassJSONDocuments
	}
	tenant := domain.TenantForUser(spec.UserID)

	if err := s.index.EnsureSchema(ctx, class); err != nil {
		return err
	}
	if err := s.index.EnsureTenant(ctx, class, tenant); err != nil {
		return err
	}

	var objects []weaviate.Vector
	for i, c := range chunks {
		record := records[i]
		base := map[string]any{
			"documentId": job.DocumentID.String(),
			"userId":     spec.UserID.String(),
			"jobId":      job.ID.String(),
			"chunkIndex": c.ChunkIndex,
			"isFallback": c.IsFallback,
		}

		if class == domain.ClassJSONDocuments {
			objects = append(objects, jsonFieldObjects(class, tenant, record, c, base)...)
			continue
		}

		props := map[string]any{"text": c.Text}
		for k, v := range base {
			props[k] = v
		}
		if c.PageNumber > 0 {
			props["pageNumber"] = c.PageNumber
		}
		objects = append(objects, weaviate.Vector{
			Class:      class,
			Tenant:     tenant,
			VectorID:   record.VectorID.String(),
			Values:     record.Embedding.Slice(),
			Properties: props,
		})
	}

	return s.index.StoreVectors(ctx, objects)
}

// jsonFieldObjects expands one JSON item chunk into one index object per
// flattened triple. Every triple carries the item's embedding and itemIndex
// so structured aggregation can filter and regroup without re-parsing.
func jsonFieldObjects(
	class, tenant string,
	record *domain.VectorRecord,
	chunk domain.Chunk,
	base map[string]any,
) []weaviate.Vector {
	fields := flatFieldsFromChunk(chunk)
	if len(fields) == 0 {
		fields = []domain.FlatField{{
			Path:      "text",
			Value:     chunk.Text,
			ValueType: domain.ValueTypeString,
		}}
	}

	itemIndex, _ := chunk.Metadata["item_index"].(int)
	out := make([]weaviate.Vector, 0, len(fields))
	for i, f := range fields {
		props := map[string]any{
			"text":      f.Path + ": " + stringifyFieldValue(f),
			"path":      f.Path,
			"value":     stringifyFieldValue(f),
			"valueType": f.ValueType,
			"itemIndex": itemIndex,
		}
		for k, v := range base {
			props[k] = v
		}
		if n, ok := numericFieldValue(f); ok {
			props["valueNumber"] = n
		}
		out = append(out, weaviate.Vector{
			Class:  class,
			Tenant: tenant,
			// One relational record fans out to many index objects; the
			// suffix keeps their deterministic ids distinct yet traceable.
			VectorID:   record.VectorID.String() + ":" + strconv.Itoa(i),
			Values:     record.Embedding.Slice(),
			Properties: props,
		})
	}
	return out
}

func flatFieldsFromChunk(chunk domain.Chunk) []domain.FlatField {
	if chunk.Metadata == nil {
		return nil
	}
	fields, _ := chunk.Metadata["fields"].([]domain.FlatField)
	return fields
}

func stringifyFieldValue(f domain.FlatField) string {
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

func numericFieldValue(f domain.FlatField) (float64, bool) {
	switch v := f.Value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func (s *Service) markFailed(ctx context.Context, log *logger.Logger, jobID uuid.UUID, cause error) {
	if _, err := s.jobs.UpdateStatus(ctx, jobID, domain.JobStatusFailed, jobs.StatusPatch{
		ErrorMessage: cause.Error(),
	}); err != nil {
		log.Error("Failed to mark job failed", "error", err.Error(), "cause", cause.Error())
		return
	}
	log.Error("Job failed", "error", cause.Error())
}

// RemoveDocument cascades a document removal: pending jobs are cancelled,
// relational vector rows are soft-deleted, and index objects are purged from
// both classes. Steps run independently so one failure does not strand the
// rest; errors are joined for the caller.
func (s *Service) RemoveDocument(ctx context.Context, userID, documentID uuid.UUID) error {
	ctx, correlationID := ctxutil.EnsureCorrelationID(ctxutil.Default(ctx))
	log := s.log.With(
		"document_id", documentID.String(),
		"correlation_id", correlationID,
	)
	if userID == uuid.Nil || documentID == uuid.Nil {
		return fmt.Errorf("%w: user id and document id are required", apperrors.ErrInvalidArgument)
	}

	var errs []error

	cancelled, err := s.jobs.CancelPending(ctx, documentID)
	if err != nil {
		errs = append(errs, fmt.Errorf("cancel pending jobs: %w", err))
	}

	deactivated, err := s.vectors.DeactivateByDocument(ctx, documentID)
	if err != nil {
		errs = append(errs, fmt.Errorf("deactivate vector records: %w", err))
	}

	tenant := domain.TenantForUser(userID)
	var purged int64
	for _, class := range []string{domain.ClassDocuments, domain.ClassJSONDocuments} {
		n, err := s.index.DeleteByDocument(ctx, class, tenant, documentID.String())
		if err != nil {
			errs = append(errs, fmt.Errorf("purge %s objects: %w", class, err))
			continue
		}
		purged += n
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	log.Info("Document removed",
		"cancelled_jobs", cancelled,
		"deactivated_records", deactivated,
		"purged_objects", purged,
	)
	return nil
}
