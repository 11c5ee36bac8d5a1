package vectors

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aquib-J/mysecondbrain-backend/internal/domain"
	apperrors "github.com/aquib-J/mysecondbrain-backend/internal/pkg/errors"
	"github.com/aquib-J/mysecondbrain-backend/internal/platform/logger"
)

// VectorRecordRepo is the durable relational record of chunk embeddings,
// decoupled from vector-index availability. Rows are only ever soft-deleted
// outside of a job cascade.
type VectorRecordRepo interface {
	BulkInsert(ctx context.Context, records []*domain.VectorRecord) error
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*domain.VectorRecord, error)
	ListActiveByDocument(ctx context.Context, documentID uuid.UUID) ([]*domain.VectorRecord, error)
	DeactivateByJob(ctx context.Context, jobID uuid.UUID) (int64, error)
	DeactivateByDocument(ctx context.Context, documentID uuid.UUID) (int64, error)
	DeleteByJob(ctx context.Context, jobID uuid.UUID) (int64, error)
}

type vectorRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVectorRecordRepo(db *gorm.DB, baseLog *logger.Logger) VectorRecordRepo {
	return &vectorRecordRepo{
		db:  db,
		log: baseLog.With("repo", "VectorRecordRepo"),
	}
}

const insertBatchSize = 200

func (r *vectorRecordRepo) BulkInsert(ctx context.Context, records []*domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, rec := range records {
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		if rec.VectorID == uuid.Nil {
			rec.VectorID = uuid.New()
		}
		if rec.JobID == uuid.Nil {
			return fmt.Errorf("vector record job id: %w", apperrors.ErrInvalidArgument)
		}
		if rec.Status == "" {
			rec.Status = domain.VectorStatusSuccess
		}
		rec.IsActive = true
		rec.CreatedAt = now
		rec.UpdatedAt = now
	}
	if err := r.db.WithContext(ctx).CreateInBatches(records, insertBatchSize).Error; err != nil {
		return err
	}
	r.log.Debug("Vector records inserted", "count", len(records))
	return nil
}

func (r *vectorRecordRepo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*domain.VectorRecord, error) {
	if jobID == uuid.Nil {
		return nil, fmt.Errorf("job id: %w", apperrors.ErrInvalidArgument)
	}
	var out []*domain.VectorRecord
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *vectorRecordRepo) ListActiveByDocument(ctx context.Context, documentID uuid.UUID) ([]*domain.VectorRecord, error) {
	if documentID == uuid.Nil {
		return nil, fmt.Errorf("document id: %w", apperrors.ErrInvalidArgument)
	}
	var out []*domain.VectorRecord
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND metadata ->> 'document_id' = ?", true, documentID.String()).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *vectorRecordRepo) DeactivateByJob(ctx context.Context, jobID uuid.UUID) (int64, error) {
	if jobID == uuid.Nil {
		return 0, fmt.Errorf("job id: %w", apperrors.ErrInvalidArgument)
	}
	res := r.db.WithContext(ctx).
		Model(&domain.VectorRecord{}).
		Where("job_id = ? AND is_active = ?", jobID, true).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

func (r *vectorRecordRepo) DeactivateByDocument(ctx context.Context, documentID uuid.UUID) (int64, error) {
	if documentID == uuid.Nil {
		return 0, fmt.Errorf("document id: %w", apperrors.ErrInvalidArgument)
	}
	res := r.db.WithContext(ctx).
		Model(&domain.VectorRecord{}).
		Where("is_active = ? AND metadata ->> 'document_id' = ?", true, documentID.String()).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// DeleteByJob hard-deletes rows as part of a job cascade. Every other removal
// path goes through the soft-delete variants above.
func (r *vectorRecordRepo) DeleteByJob(ctx context.Context, jobID uuid.UUID) (int64, error) {
	if jobID == uuid.Nil {
		return 0, fmt.Errorf("job id: %w", apperrors.ErrInvalidArgument)
	}
	res := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Delete(&domain.VectorRecord{})
	return res.RowsAffected, res.Error
}
