package app

import (
	"gorm.io/gorm"

	"github.com/aquib-J/mysecondbrain-backend/internal/data/repos/jobs"
	"github.com/aquib-J/mysecondbrain-backend/internal/data/repos/vectors"
	"github.com/aquib-J/mysecondbrain-backend/internal/platform/envutil"
	"github.com/aquib-J/mysecondbrain-backend/internal/platform/logger"
)

type Repos struct {
	Jobs    jobs.JobRepo
	Vectors vectors.VectorRecordRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	window := envutil.Seconds("JOB_PENDING_WINDOW_SECONDS", jobs.DefaultPendingWindow)
	return Repos{
		Jobs:    jobs.NewJobRepo(db, log, window),
		Vectors: vectors.NewVectorRecordRepo(db, log),
	}
}
