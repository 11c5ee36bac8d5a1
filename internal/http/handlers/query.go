package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aquib-J/mysecondbrain-backend/internal/domain"
	"github.com/aquib-J/mysecondbrain-backend/internal/http/response"
	"github.com/aquib-J/mysecondbrain-backend/internal/query"
)

type QueryHandler struct {
	svc *query.Service
}

func NewQueryHandler(svc *query.Service) *QueryHandler {
	return &QueryHandler{svc: svc}
}

type queryRequest struct {
	UserID      string              `json:"user_id" binding:"required"`
	DocumentID  string              `json:"document_id"`
	Question    string              `json:"question" binding:"required"`
	KnownFields []domain.KnownField `json:"known_fields"`
	Limit       int                 `json:"limit"`
}

// POST /api/query
func (h *QueryHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	var documentID uuid.UUID
	if req.DocumentID != "" {
		documentID, err = uuid.Parse(req.DocumentID)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
			return
		}
	}

	res, err := h.svc.Answer(c.Request.Context(), query.Request{
		UserID:      userID,
		DocumentID:  documentID,
		Question:    req.Question,
		KnownFields: req.KnownFields,
		Limit:       req.Limit,
	})
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "query_failed", err)
		return
	}
	response.RespondOK(c, res)
}
