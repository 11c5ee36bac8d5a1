package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

const (
	VectorStatusInProgress = "in_progress"
	VectorStatusSuccess    = "success"
	VectorStatusFailed     = "failed"
)

// VectorRecord is the durable relational representation of one chunk's
// embedding. VectorID is the only key used to correlate these rows with
// objects in the vector index; the row survives index unavailability and is
// soft-deleted (IsActive=false) when the owning document goes away.
type VectorRecord struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	JobID               uuid.UUID       `gorm:"type:uuid;not null;index" json:"job_id"`
	VectorID            uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex" json:"vector_id"`
	EmbeddingProviderID string          `gorm:"column:embedding_provider_id;not null" json:"embedding_provider_id"`
	TextContent         string          `gorm:"column:text_content;type:text" json:"text_content"`
	Embedding           pgvector.Vector `gorm:"column:embedding;type:vector(1536)" json:"-"`
	Metadata            datatypes.JSON  `gorm:"column:metadata;type:jsonb" json:"metadata"`
	IsActive            bool            `gorm:"column:is_active;not null;default:true;index" json:"is_active"`
	Status              string          `gorm:"column:status;not null;index" json:"status"`
	CreatedAt           time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"not null" json:"updated_at"`
}

func (VectorRecord) TableName() string { return "vector_records" }
