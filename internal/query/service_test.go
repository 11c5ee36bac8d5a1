package query

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/aquib-J/mysecondbrain-backend/internal/domain"
	apperrors "github.com/aquib-J/mysecondbrain-backend/internal/pkg/errors"
	"github.com/aquib-J/mysecondbrain-backend/internal/platform/logger"
)

type staticClassifier struct {
	intent domain.Intent
}

func (s *staticClassifier) Classify(ctx context.Context, question string, knownFields []domain.KnownField) domain.Intent {
	return s.intent
}

type fakeQueryIndex struct {
	searchParams *domain.SearchParams
	searchHits   []domain.SearchHit
	searchErr    error

	aggQuery  *domain.AggregationQuery
	aggResult *domain.AggregationResult
	aggErr    error
}

func (f *fakeQueryIndex) SimilaritySearch(ctx context.Context, queryVector []float32, params domain.SearchParams) ([]domain.SearchHit, error) {
	f.searchParams = &params
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchHits, nil
}

func (f *fakeQueryIndex) Aggregate(ctx context.Context, q domain.AggregationQuery) (*domain.AggregationResult, error) {
	f.aggQuery = &q
	if f.aggErr != nil {
		return nil, f.aggErr
	}
	return f.aggResult, nil
}

func newTestQueryService(t *testing.T, classifier Classifier, client *fakeOpenAI, index *fakeQueryIndex) *Service {
	t.Helper()
	log, err := logger.New("development")
	require.NoError(t, err)
	t.Cleanup(func() { log.Sync() })

	svc, err := NewService(log, classifier, client, index)
	require.NoError(t, err)
	return svc
}

func TestAnswerSearchEmbedsQuestionAndScopesTenant(t *testing.T) {
	userID := uuid.New()
	docID := uuid.New()
	index := &fakeQueryIndex{searchHits: []domain.SearchHit{{VectorID: "vec-1", Score: 0.9}}}
	client := &fakeOpenAI{}
	svc := newTestQueryService(t, &staticClassifier{intent: domain.Intent{Type: domain.IntentSearch}}, client, index)

	resp, err := svc.Answer(context.Background(), Request{
		UserID:     userID,
		DocumentID: docID,
		Question:   "what is the refund policy?",
		Limit:      7,
	})
	require.NoError(t, err)
	require.Equal(t, domain.IntentSearch, resp.Intent.Type)
	require.Len(t, resp.Hits, 1)
	require.Nil(t, resp.Aggregation)

	require.Equal(t, 1, client.embedCalls)
	require.NotNil(t, index.searchParams)
	require.Equal(t, domain.TenantForUser(userID), index.searchParams.TenantID)
	require.Equal(t, docID, index.searchParams.DocumentID)
	require.Equal(t, 7, index.searchParams.Limit)
	require.Equal(t, domain.ClassDocuments, index.searchParams.Class)
}

func TestAnswerAggregationRoutesToIndex(t *testing.T) {
	userID := uuid.New()
	docID := uuid.New()
	want := 42.0
	index := &fakeQueryIndex{aggResult: &domain.AggregationResult{Result: &want, Count: 3}}
	intent := domain.Intent{
		Type:      domain.IntentAggregation,
		Operation: domain.AggregateSum,
		Field:     "amount",
		Filter:    map[string]any{"status": "paid"},
	}
	svc := newTestQueryService(t, &staticClassifier{intent: intent}, &fakeOpenAI{}, index)

	resp, err := svc.Answer(context.Background(), Request{
		UserID:     userID,
		DocumentID: docID,
		Question:   "how much was paid in total?",
	})
	require.NoError(t, err)
	require.Equal(t, intent, resp.Intent)
	require.Equal(t, &want, resp.Aggregation.Result)
	require.Empty(t, resp.Hits)

	require.NotNil(t, index.aggQuery)
	require.Equal(t, domain.ClassJSONDocuments, index.aggQuery.Class)
	require.Equal(t, domain.TenantForUser(userID), index.aggQuery.TenantID)
	require.Equal(t, docID, index.aggQuery.DocumentID)
	require.Equal(t, intent.Filter, index.aggQuery.Filter)
}

func TestAnswerAggregationWithoutDocumentFallsBackToSearch(t *testing.T) {
	index := &fakeQueryIndex{searchHits: []domain.SearchHit{}}
	intent := domain.Intent{Type: domain.IntentAggregation, Operation: domain.AggregateSum, Field: "amount"}
	svc := newTestQueryService(t, &staticClassifier{intent: intent}, &fakeOpenAI{}, index)

	resp, err := svc.Answer(context.Background(), Request{
		UserID:   uuid.New(),
		Question: "how much in total?",
	})
	require.NoError(t, err)
	require.Nil(t, index.aggQuery, "no aggregation without a document scope")
	require.NotNil(t, index.searchParams)
	require.Equal(t, domain.IntentSearch, resp.Intent.Type)
}

func TestAnswerRequiresUser(t *testing.T) {
	svc := newTestQueryService(t, &staticClassifier{}, &fakeOpenAI{}, &fakeQueryIndex{})

	_, err := svc.Answer(context.Background(), Request{Question: "anything"})
	require.True(t, errors.Is(err, apperrors.ErrTenantRequired))
}

func TestAnswerEmbedFailureIsAnError(t *testing.T) {
	client := &fakeOpenAI{embedErr: errors.New("quota exceeded")}
	svc := newTestQueryService(t, &staticClassifier{intent: domain.Intent{Type: domain.IntentSearch}}, client, &fakeQueryIndex{})

	_, err := svc.Answer(context.Background(), Request{UserID: uuid.New(), Question: "anything"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "embed question")
}
