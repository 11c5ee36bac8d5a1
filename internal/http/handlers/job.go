package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aquib-J/mysecondbrain-backend/internal/data/repos/jobs"
	"github.com/aquib-J/mysecondbrain-backend/internal/http/response"
)

type JobHandler struct {
	jobs jobs.JobRepo
}

func NewJobHandler(jobRepo jobs.JobRepo) *JobHandler {
	return &JobHandler{jobs: jobRepo}
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}

	job, err := h.jobs.GetByID(c.Request.Context(), jobID)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "job_not_found", err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// POST /api/documents/:id/cancel
// Cancels the document's still-pending jobs; in-flight jobs run to their
// terminal status.
func (h *JobHandler) CancelPending(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}

	cancelled, err := h.jobs.CancelPending(c.Request.Context(), documentID)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "cancel_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"document_id": documentID, "cancelled": cancelled})
}
