package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending   = "pending"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

// JobRecord is one row per submitted async job. FaceID is set only for
// face-embedding jobs, which are keyed by the detected face rather than a
// fixed slot on the intelligence record.
type JobRecord struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	EntityID      int64     `gorm:"column:entity_id;not null;index" json:"entity_id"`
	FaceID        *int64    `gorm:"column:face_id;index" json:"face_id,omitempty"`
	ExternalJobID string    `gorm:"column:external_job_id;not null;uniqueIndex" json:"external_job_id"`
	TaskType      TaskType  `gorm:"column:task_type;not null;index" json:"task_type"`
	Status        string    `gorm:"column:status;not null;index" json:"status"`
	ErrorMessage  string    `gorm:"column:error_message" json:"error_message,omitempty"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

func (JobRecord) TableName() string { return "job_record" }

// Terminal reports whether the job has finished, successfully or not.
func (j *JobRecord) Terminal() bool {
	return j.Status == JobStatusSucceeded || j.Status == JobStatusFailed
}
