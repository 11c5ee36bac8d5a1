package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aquib-J/mysecondbrain-backend/internal/data/repos/jobs"
	"github.com/aquib-J/mysecondbrain-backend/internal/domain"
	"github.com/aquib-J/mysecondbrain-backend/internal/http/response"
	"github.com/aquib-J/mysecondbrain-backend/internal/ingestion/parser"
)

// DocumentRemover is the removal cascade the handler delegates to.
type DocumentRemover interface {
	RemoveDocument(ctx context.Context, userID, documentID uuid.UUID) error
}

type DocumentHandler struct {
	jobs    jobs.JobRepo
	remover DocumentRemover
}

func NewDocumentHandler(jobRepo jobs.JobRepo, remover DocumentRemover) *DocumentHandler {
	return &DocumentHandler{jobs: jobRepo, remover: remover}
}

type ingestRequest struct {
	DocumentID string `json:"document_id"`
	UserID     string `json:"user_id" binding:"required"`
	FilePath   string `json:"file_path" binding:"required"`
	FileName   string `json:"file_name"`
	DocType    string `json:"doc_type"`
}

// POST /api/documents
// Registers a document for ingestion by enqueueing a pending job; the
// scheduler picks it up on its next sweep.
func (h *DocumentHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}

	documentID := uuid.New()
	if strings.TrimSpace(req.DocumentID) != "" {
		documentID, err = uuid.Parse(req.DocumentID)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
			return
		}
	}

	// A resubmission supersedes whatever is still queued for this document;
	// only one non-terminal job per document may exist at a time. Jobs
	// already in_progress run to their terminal status.
	superseded, err := h.jobs.CancelPending(c.Request.Context(), documentID)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "supersede_failed", err)
		return
	}

	job, err := h.jobs.Create(c.Request.Context(), documentID, jobTypeFor(req.DocType, req.FilePath), map[string]any{
		"file_path": req.FilePath,
		"file_name": req.FileName,
		"doc_type":  req.DocType,
		"user_id":   userID.String(),
	})
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "enqueue_failed", err)
		return
	}

	response.RespondAccepted(c, gin.H{
		"document_id":     documentID,
		"job":             job,
		"superseded_jobs": superseded,
	})
}

func jobTypeFor(docType, filePath string) string {
	if docType == "" {
		docType = parser.DocTypeForPath(filePath)
	}
	switch docType {
	case parser.DocTypeJSON:
		return domain.JobTypeJSONProcessing
	case parser.DocTypeText:
		return domain.JobTypeTextProcessing
	case parser.DocTypeDocx:
		return domain.JobTypeDocProcessing
	default:
		return domain.JobTypePDFProcessing
	}
}

// DELETE /api/documents/:id
func (h *DocumentHandler) Remove(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}
	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}

	if err := h.remover.RemoveDocument(c.Request.Context(), userID, documentID); err != nil {
		response.RespondError(c, response.StatusFor(err), "remove_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"document_id": documentID, "removed": true})
}

// GET /api/documents/:id/jobs
func (h *DocumentHandler) ListJobs(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}

	list, err := h.jobs.ListByDocument(c.Request.Context(), documentID)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "list_jobs_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"jobs": list})
}
