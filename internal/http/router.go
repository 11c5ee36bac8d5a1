package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/aquib-J/mysecondbrain-backend/internal/http/handlers"
	httpMW "github.com/aquib-J/mysecondbrain-backend/internal/http/middleware"
	"github.com/aquib-J/mysecondbrain-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	DocumentHandler *httpH.DocumentHandler
	JobHandler      *httpH.JobHandler
	QueryHandler    *httpH.QueryHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Documents
		if cfg.DocumentHandler != nil {
			api.POST("/documents", cfg.DocumentHandler.Ingest)
			api.DELETE("/documents/:id", cfg.DocumentHandler.Remove)
			api.GET("/documents/:id/jobs", cfg.DocumentHandler.ListJobs)
		}

		// Jobs
		if cfg.JobHandler != nil {
			api.GET("/jobs/:id", cfg.JobHandler.GetJob)
			api.POST("/documents/:id/cancel", cfg.JobHandler.CancelPending)
		}

		// Query
		if cfg.QueryHandler != nil {
			api.POST("/query", cfg.QueryHandler.Query)
		}
	}

	return r
}
