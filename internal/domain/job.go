package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	JobStatusPending    = "pending"
	JobStatusInProgress = "in_progress"
	JobStatusSuccess    = "success"
	JobStatusFailed     = "failed"
	JobStatusCancelled  = "cancelled"
)

const (
	JobTypePDFProcessing  = "pdf_processing"
	JobTypeDocProcessing  = "doc_processing"
	JobTypeJSONProcessing = "json_processing"
	JobTypeTextProcessing = "text_processing"
)

// Job tracks one document's ingestion run through its state machine. The row
// is the only durable coordination state: the scheduler polls it, the
// pipeline advances it, and a crashed run resumes from it.
type Job struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"document_id"`
	JobType      string         `gorm:"column:job_type;not null;index" json:"job_type"`
	Status       string         `gorm:"column:status;not null;index" json:"status"`
	Metadata     datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
	Output       datatypes.JSON `gorm:"column:output;type:jsonb" json:"output"`
	ErrorMessage string         `gorm:"column:error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;index" json:"created_at"`
	StartedAt    *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CancelledAt  *time.Time     `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
}

func (Job) TableName() string { return "jobs" }

// IsTerminal reports whether no further transition is allowed out of status.
func IsTerminalJobStatus(status string) bool {
	switch status {
	case JobStatusSuccess, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// ValidJobTransition encodes the job state machine: pending may start or be
// cancelled; in_progress may only complete or fail. In-flight cancellation is
// deliberately unsupported.
func ValidJobTransition(from, to string) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusInProgress || to == JobStatusCancelled
	case JobStatusInProgress:
		return to == JobStatusSuccess || to == JobStatusFailed
	}
	return false
}
