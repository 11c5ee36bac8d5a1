package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/aquib-J/mysecondbrain-backend/internal/domain"
	apperrors "github.com/aquib-J/mysecondbrain-backend/internal/pkg/errors"
	"github.com/aquib-J/mysecondbrain-backend/internal/platform/logger"
)

// JobRepo owns the durable job state machine. Every transition is a guarded
// single-row update; there is no lease or distributed lock (see GetPending).
type JobRepo interface {
	Create(ctx context.Context, documentID uuid.UUID, jobType string, metadata map[string]any) (*domain.Job, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*domain.Job, error)
	GetPending(ctx context.Context, limit int) ([]*domain.Job, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, patch StatusPatch) (*domain.Job, error)
	CancelPending(ctx context.Context, documentID uuid.UUID) (int64, error)
}

// StatusPatch carries the optional fields merged into a job on a status
// transition. Metadata is merged key-wise into the existing metadata JSON.
type StatusPatch struct {
	Metadata     map[string]any
	Output       map[string]any
	ErrorMessage string
}

type jobRepo struct {
	db            *gorm.DB
	log           *logger.Logger
	pendingWindow time.Duration
}

// DefaultPendingWindow bounds GetPending to recently created rows. It is a
// heuristic against reprocessing stale rows left by a crashed run, not a
// lease: two overlapping scheduler passes can still select the same job.
const DefaultPendingWindow = 6 * time.Minute

func NewJobRepo(db *gorm.DB, baseLog *logger.Logger, pendingWindow time.Duration) JobRepo {
	if pendingWindow <= 0 {
		pendingWindow = DefaultPendingWindow
	}
	return &jobRepo{
		db:            db,
		log:           baseLog.With("repo", "JobRepo"),
		pendingWindow: pendingWindow,
	}
}

func (r *jobRepo) Create(ctx context.Context, documentID uuid.UUID, jobType string, metadata map[string]any) (*domain.Job, error) {
	if documentID == uuid.Nil {
		return nil, fmt.Errorf("document id: %w", apperrors.ErrInvalidArgument)
	}
	if jobType == "" {
		return nil, fmt.Errorf("job type: %w", apperrors.ErrInvalidArgument)
	}

	meta, err := marshalJSONMap(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode job metadata: %w", err)
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:         uuid.New(),
		DocumentID: documentID,
		JobType:    jobType,
		Status:     domain.JobStatusPending,
		Metadata:   meta,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, err
	}
	r.log.Debug("Job created", "job_id", job.ID, "document_id", documentID, "job_type", jobType)
	return job, nil
}

func (r *jobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("job id: %w", apperrors.ErrInvalidArgument)
	}
	var job domain.Job
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("job %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*domain.Job, error) {
	if documentID == uuid.Nil {
		return nil, fmt.Errorf("document id: %w", apperrors.ErrInvalidArgument)
	}
	var out []*domain.Job
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetPending returns pending jobs created within the trailing window, oldest
// first. Rows older than the window are assumed to belong to a crashed run
// and are left for explicit resubmission.
func (r *jobRepo) GetPending(ctx context.Context, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 10
	}
	cutoff := time.Now().UTC().Add(-r.pendingWindow)
	var out []*domain.Job
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at > ?", domain.JobStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStatus applies one state-machine transition. The WHERE clause pins
// the expected source statuses, so a row that already moved on (or was
// cancelled out from under us) is never re-mutated.
func (r *jobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string, patch StatusPatch) (*domain.Job, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("job id: %w", apperrors.ErrInvalidArgument)
	}

	allowedFrom := allowedSourceStatuses(status)
	if len(allowedFrom) == 0 {
		return nil, fmt.Errorf("job status %q: %w", status, apperrors.ErrInvalidArgument)
	}

	var updated *domain.Job
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job domain.Job
		qErr := tx.Where("id = ?", id).First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return fmt.Errorf("job %s: %w", id, apperrors.ErrNotFound)
		}
		if qErr != nil {
			return qErr
		}
		if !domain.ValidJobTransition(job.Status, status) {
			if domain.IsTerminalJobStatus(job.Status) {
				return fmt.Errorf("job %s in status %s: %w", id, job.Status, apperrors.ErrJobTerminal)
			}
			return fmt.Errorf("job %s transition %s -> %s: %w", id, job.Status, status, apperrors.ErrInvalidArgument)
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":     status,
			"updated_at": now,
		}
		switch status {
		case domain.JobStatusInProgress:
			updates["started_at"] = now
		case domain.JobStatusSuccess, domain.JobStatusFailed:
			updates["completed_at"] = now
		case domain.JobStatusCancelled:
			updates["cancelled_at"] = now
		}
		if patch.ErrorMessage != "" {
			updates["error_message"] = patch.ErrorMessage
		}
		if patch.Output != nil {
			raw, mErr := marshalJSONMap(patch.Output)
			if mErr != nil {
				return fmt.Errorf("encode job output: %w", mErr)
			}
			updates["output"] = raw
		}
		if patch.Metadata != nil {
			merged, mErr := mergeJSONMap(job.Metadata, patch.Metadata)
			if mErr != nil {
				return fmt.Errorf("merge job metadata: %w", mErr)
			}
			updates["metadata"] = merged
		}

		res := tx.Model(&domain.Job{}).
			Where("id = ? AND status IN ?", id, allowedFrom).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("job %s transition to %s lost race: %w", id, status, apperrors.ErrJobTerminal)
		}

		if fErr := tx.Where("id = ?", id).First(&job).Error; fErr != nil {
			return fErr
		}
		updated = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CancelPending flips all still-pending jobs for a document to cancelled in
// one statement. in_progress and terminal rows are untouched.
func (r *jobRepo) CancelPending(ctx context.Context, documentID uuid.UUID) (int64, error) {
	if documentID == uuid.Nil {
		return 0, fmt.Errorf("document id: %w", apperrors.ErrInvalidArgument)
	}
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&domain.Job{}).
		Where("document_id = ? AND status = ?", documentID, domain.JobStatusPending).
		Updates(map[string]any{
			"status":       domain.JobStatusCancelled,
			"cancelled_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		r.log.Info("Pending jobs cancelled", "document_id", documentID, "count", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

func allowedSourceStatuses(target string) []string {
	switch target {
	case domain.JobStatusInProgress:
		return []string{domain.JobStatusPending}
	case domain.JobStatusSuccess, domain.JobStatusFailed:
		return []string{domain.JobStatusInProgress}
	case domain.JobStatusCancelled:
		return []string{domain.JobStatusPending}
	}
	return nil
}

func marshalJSONMap(m map[string]any) (datatypes.JSON, error) {
	if m == nil {
		return datatypes.JSON([]byte(`{}`)), nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func mergeJSONMap(existing datatypes.JSON, patch map[string]any) (datatypes.JSON, error) {
	base := map[string]any{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &base); err != nil {
			base = map[string]any{}
		}
	}
	for k, v := range patch {
		base[k] = v
	}
	raw, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
