package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aquib-J/mysecondbrain-backend/internal/data/repos/jobs"
	"github.com/aquib-J/mysecondbrain-backend/internal/domain"
	"github.com/aquib-J/mysecondbrain-backend/internal/platform/envutil"
	"github.com/aquib-J/mysecondbrain-backend/internal/platform/logger"
)

const (
	defaultInterval  = 5 * time.Minute
	defaultBatchSize = 10
)

// Processor runs one claimed job to a terminal status.
type Processor interface {
	ProcessJob(ctx context.Context, job *domain.Job) error
}

// Scheduler polls for pending jobs on a fixed interval and processes each
// batch strictly sequentially. One failing job never stops the sweep. Ticks
// are not mutually exclusive: a sweep outliving the interval can overlap the
// next one, the job status transition guards make the overlap harmless.
type Scheduler struct {
	log       *logger.Logger
	jobs      jobs.JobRepo
	processor Processor
	interval  time.Duration
	batchSize int
}

func New(log *logger.Logger, jobRepo jobs.JobRepo, processor Processor) (*Scheduler, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if jobRepo == nil || processor == nil {
		return nil, fmt.Errorf("job repo and processor are required")
	}
	interval := envutil.Seconds("SCHEDULER_INTERVAL_SECONDS", defaultInterval)
	batchSize := envutil.Int("SCHEDULER_BATCH_SIZE", defaultBatchSize)
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Scheduler{
		log:       log.With("service", "JobScheduler"),
		jobs:      jobRepo,
		processor: processor,
		interval:  interval,
		batchSize: batchSize,
	}, nil
}

// Start launches the polling loop. It returns immediately; the loop stops
// when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		s.log.Info("Scheduler started",
			"interval", s.interval.String(),
			"batch_size", s.batchSize,
		)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		// First sweep without waiting a full interval.
		s.Sweep(ctx)
		for {
			select {
			case <-ctx.Done():
				s.log.Info("Scheduler stopped")
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

// Sweep claims one batch of pending jobs and processes them in order.
func (s *Scheduler) Sweep(ctx context.Context) {
	pending, err := s.jobs.GetPending(ctx, s.batchSize)
	if err != nil {
		s.log.Warn("Fetching pending jobs failed", "error", err.Error())
		return
	}
	if len(pending) == 0 {
		return
	}
	s.log.Info("Processing pending jobs", "count", len(pending))

	for _, job := range pending {
		if ctx.Err() != nil {
			return
		}
		s.runOne(ctx, job)
	}
}

func (s *Scheduler) runOne(ctx context.Context, job *domain.Job) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Job processor panicked",
				"job_id", job.ID.String(),
				"job_type", job.JobType,
				"panic", fmt.Sprint(r),
			)
		}
	}()

	if err := s.processor.ProcessJob(ctx, job); err != nil {
		s.log.Warn("Job processing failed",
			"job_id", job.ID.String(),
			"job_type", job.JobType,
			"error", err.Error(),
		)
	}
}
