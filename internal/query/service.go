package query

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/aquib-J/mysecondbrain-backend/internal/clients/openai"
	"github.com/aquib-J/mysecondbrain-backend/internal/domain"
	"github.com/aquib-J/mysecondbrain-backend/internal/pkg/ctxutil"
	apperrors "github.com/aquib-J/mysecondbrain-backend/internal/pkg/errors"
	"github.com/aquib-J/mysecondbrain-backend/internal/platform/logger"
)

// Index is the slice of the vector store the query layer needs.
type Index interface {
	SimilaritySearch(ctx context.Context, queryVector []float32, params domain.SearchParams) ([]domain.SearchHit, error)
	Aggregate(ctx context.Context, q domain.AggregationQuery) (*domain.AggregationResult, error)
}

// Classifier decides the shape of a question.
type Classifier interface {
	Classify(ctx context.Context, question string, knownFields []domain.KnownField) domain.Intent
}

// Request is one natural-language question scoped to a user and optionally
// to one document. KnownFields gives the classifier the document's field
// catalog when the caller has one.
type Request struct {
	UserID      uuid.UUID
	DocumentID  uuid.UUID
	Question    string
	KnownFields []domain.KnownField
	Limit       int
}

// Response carries whichever branch answered the question.
type Response struct {
	Intent      domain.Intent             `json:"intent"`
	Hits        []domain.SearchHit        `json:"hits,omitempty"`
	Aggregation *domain.AggregationResult `json:"aggregation,omitempty"`
}

// Service answers natural-language questions: classify, then either run a
// structured aggregation or embed the question and run a similarity search.
type Service struct {
	log        *logger.Logger
	classifier Classifier
	client     openai.Client
	index      Index
}

func NewService(log *logger.Logger, classifier Classifier, client openai.Client, index Index) (*Service, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if classifier == nil || client == nil || index == nil {
		return nil, fmt.Errorf("classifier, openai client and index are required")
	}
	return &Service{
		log:        log.With("service", "QueryService"),
		classifier: classifier,
		client:     client,
		index:      index,
	}, nil
}

func (s *Service) Answer(ctx context.Context, req Request) (*Response, error) {
	ctx, correlationID := ctxutil.EnsureCorrelationID(ctxutil.Default(ctx))
	if req.UserID == uuid.Nil {
		return nil, apperrors.ErrTenantRequired
	}
	if req.Question == "" {
		return nil, fmt.Errorf("%w: question is required", apperrors.ErrInvalidArgument)
	}

	log := s.log.With("correlation_id", correlationID)
	intent := s.classifier.Classify(ctx, req.Question, req.KnownFields)
	log.Info("Question classified", "intent", intent.Type, "operation", intent.Operation)

	if intent.Type == domain.IntentAggregation {
		return s.answerAggregation(ctx, req, intent)
	}
	return s.answerSearch(ctx, req, intent)
}

func (s *Service) answerAggregation(ctx context.Context, req Request, intent domain.Intent) (*Response, error) {
	if req.DocumentID == uuid.Nil {
		// An aggregation needs a document scope; without one the question is
		// answered as a search instead.
		return s.answerSearch(ctx, req, domain.Intent{Type: domain.IntentSearch})
	}

	result, err := s.index.Aggregate(ctx, domain.AggregationQuery{
		Operation:  intent.Operation,
		Field:      intent.Field,
		Filter:     intent.Filter,
		GroupBy:    intent.GroupBy,
		Class:      domain.ClassJSONDocuments,
		TenantID:   domain.TenantForUser(req.UserID),
		DocumentID: req.DocumentID,
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	return &Response{Intent: intent, Aggregation: result}, nil
}

func (s *Service) answerSearch(ctx context.Context, req Request, intent domain.Intent) (*Response, error) {
	vectors, err := s.client.Embed(ctx, []string{req.Question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed question: provider returned %d vectors", len(vectors))
	}

	hits, err := s.index.SimilaritySearch(ctx, vectors[0], domain.SearchParams{
		Class:      domain.ClassDocuments,
		TenantID:   domain.TenantForUser(req.UserID),
		DocumentID: req.DocumentID,
		Limit:      req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return &Response{Intent: intent, Hits: hits}, nil
}
