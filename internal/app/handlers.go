package app

import (
	apphttp "github.com/aquib-J/mysecondbrain-backend/internal/http"
	"github.com/aquib-J/mysecondbrain-backend/internal/http/handlers"
	"github.com/aquib-J/mysecondbrain-backend/internal/platform/logger"
)

func wireHandlers(log *logger.Logger, repos Repos, services Services) apphttp.RouterConfig {
	log.Info("Wiring handlers...")
	return apphttp.RouterConfig{
		Log:             log,
		HealthHandler:   handlers.NewHealthHandler(),
		DocumentHandler: handlers.NewDocumentHandler(repos.Jobs, services.Pipeline),
		JobHandler:      handlers.NewJobHandler(repos.Jobs),
		QueryHandler:    handlers.NewQueryHandler(services.Query),
	}
}
