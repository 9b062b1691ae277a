package types

import "time"

const (
	ProcessingStatusPending    = "pending"
	ProcessingStatusProcessing = "processing"
	ProcessingStatusCompleted  = "completed"
	ProcessingStatusFailed     = "failed"
)

// IntelligenceRecord tracks the three top-level jobs for one entity. Keyed by
// the entity id itself, so there is exactly one row per entity.
type IntelligenceRecord struct {
	EntityID         int64     `gorm:"column:entity_id;primaryKey" json:"entity_id"`
	DetectionJobID   *string   `gorm:"column:detection_job_id" json:"detection_job_id,omitempty"`
	ClipJobID        *string   `gorm:"column:clip_job_id" json:"clip_job_id,omitempty"`
	SiglipJobID      *string   `gorm:"column:siglip_job_id" json:"siglip_job_id,omitempty"`
	ProcessingStatus string    `gorm:"column:processing_status;not null;index" json:"processing_status"`
	CreatedAt        time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null" json:"updated_at"`
}

func (IntelligenceRecord) TableName() string { return "intelligence_record" }
