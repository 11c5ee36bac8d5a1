package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aquib-J/mysecondbrain-backend/internal/data/repos/jobs"
	"github.com/aquib-J/mysecondbrain-backend/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeJobRepo struct {
	jobs.JobRepo

	created     *domain.Job
	createdType string
	createdMeta map[string]any
	createErr   error

	byID     *domain.Job
	byIDErr  error
	listed   []*domain.Job
	listErr  error
	cancelN  int64
	cancelID uuid.UUID

	ops []string
}

func (f *fakeJobRepo) Create(ctx context.Context, documentID uuid.UUID, jobType string, metadata map[string]any) (*domain.Job, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.ops = append(f.ops, "create")
	f.createdType = jobType
	f.createdMeta = metadata
	f.created = &domain.Job{ID: uuid.New(), DocumentID: documentID, JobType: jobType, Status: domain.JobStatusPending}
	return f.created, nil
}

func (f *fakeJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	return f.byID, f.byIDErr
}

func (f *fakeJobRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*domain.Job, error) {
	return f.listed, f.listErr
}

func (f *fakeJobRepo) CancelPending(ctx context.Context, documentID uuid.UUID) (int64, error) {
	f.ops = append(f.ops, "cancel_pending")
	f.cancelID = documentID
	return f.cancelN, nil
}

type fakeRemover struct {
	userID     uuid.UUID
	documentID uuid.UUID
	err        error
}

func (f *fakeRemover) RemoveDocument(ctx context.Context, userID, documentID uuid.UUID) error {
	f.userID = userID
	f.documentID = documentID
	return f.err
}

func performJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func documentRouter(repo *fakeJobRepo, remover *fakeRemover) *gin.Engine {
	h := NewDocumentHandler(repo, remover)
	r := gin.New()
	r.POST("/api/documents", h.Ingest)
	r.DELETE("/api/documents/:id", h.Remove)
	r.GET("/api/documents/:id/jobs", h.ListJobs)
	return r
}

func TestIngestEnqueuesPendingJob(t *testing.T) {
	repo := &fakeJobRepo{}
	r := documentRouter(repo, &fakeRemover{})

	userID := uuid.New()
	w := performJSON(t, r, http.MethodPost, "/api/documents", map[string]any{
		"user_id":   userID.String(),
		"file_path": "/data/report.json",
		"file_name": "report.json",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	if repo.created == nil {
		t.Fatal("expected a job to be created")
	}
	if repo.createdType != domain.JobTypeJSONProcessing {
		t.Fatalf("expected json job type from extension, got %q", repo.createdType)
	}
	if got := repo.createdMeta["file_path"]; got != "/data/report.json" {
		t.Fatalf("unexpected file_path metadata: %v", got)
	}
	if got := repo.createdMeta["user_id"]; got != userID.String() {
		t.Fatalf("unexpected user_id metadata: %v", got)
	}
}

func TestIngestSupersedesQueuedJobsForSameDocument(t *testing.T) {
	repo := &fakeJobRepo{cancelN: 1}
	r := documentRouter(repo, &fakeRemover{})

	documentID := uuid.New()
	w := performJSON(t, r, http.MethodPost, "/api/documents", map[string]any{
		"document_id": documentID.String(),
		"user_id":     uuid.NewString(),
		"file_path":   "/data/report.pdf",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	if repo.cancelID != documentID {
		t.Fatalf("pending jobs for %v must be cancelled, got %v", documentID, repo.cancelID)
	}
	if len(repo.ops) != 2 || repo.ops[0] != "cancel_pending" || repo.ops[1] != "create" {
		t.Fatalf("queued jobs must be cancelled before the replacement is enqueued, got %v", repo.ops)
	}

	var resp struct {
		SupersededJobs int64 `json:"superseded_jobs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SupersededJobs != 1 {
		t.Fatalf("expected 1 superseded job, got %d", resp.SupersededJobs)
	}
}

func TestIngestRejectsMissingUser(t *testing.T) {
	repo := &fakeJobRepo{}
	r := documentRouter(repo, &fakeRemover{})

	w := performJSON(t, r, http.MethodPost, "/api/documents", map[string]any{
		"file_path": "/data/report.pdf",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if repo.created != nil {
		t.Fatal("no job should be created on a rejected request")
	}
}

func TestRemoveDelegatesToCascade(t *testing.T) {
	remover := &fakeRemover{}
	r := documentRouter(&fakeJobRepo{}, remover)

	userID := uuid.New()
	documentID := uuid.New()
	w := performJSON(t, r, http.MethodDelete, "/api/documents/"+documentID.String()+"?user_id="+userID.String(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if remover.userID != userID || remover.documentID != documentID {
		t.Fatalf("cascade called with %v/%v", remover.userID, remover.documentID)
	}
}

func TestRemoveRequiresUser(t *testing.T) {
	remover := &fakeRemover{}
	r := documentRouter(&fakeJobRepo{}, remover)

	w := performJSON(t, r, http.MethodDelete, "/api/documents/"+uuid.NewString(), nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if remover.documentID != uuid.Nil {
		t.Fatal("cascade must not run without a user")
	}
}

func TestJobTypeForExtensionFallback(t *testing.T) {
	cases := []struct {
		docType  string
		filePath string
		want     string
	}{
		{"", "/tmp/a.pdf", domain.JobTypePDFProcessing},
		{"", "/tmp/a.json", domain.JobTypeJSONProcessing},
		{"", "/tmp/a.docx", domain.JobTypeDocProcessing},
		{"", "/tmp/notes", domain.JobTypeTextProcessing},
		{"json", "/tmp/whatever.bin", domain.JobTypeJSONProcessing},
		{"txt", "/tmp/a.pdf", domain.JobTypeTextProcessing},
	}
	for _, tc := range cases {
		if got := jobTypeFor(tc.docType, tc.filePath); got != tc.want {
			t.Fatalf("jobTypeFor(%q, %q) = %q, want %q", tc.docType, tc.filePath, got, tc.want)
		}
	}
}
