package types

import (
	"time"

	"gorm.io/datatypes"
)

// FaceIDStride bounds face_index_within_entity; face ids stay collision-free
// per entity as long as detection reports fewer faces than this.
const FaceIDStride = 10000

// FaceID derives the deterministic face identifier from the owning entity and
// the face's index within the detection result. Re-delivery of the same
// detection payload lands on the same rows.
func FaceID(entityID int64, index int) int64 {
	return entityID*FaceIDStride + int64(index)
}

// Face is one detected face. PersonID is nil while the face is unmatched.
type Face struct {
	ID         int64          `gorm:"primaryKey" json:"id"`
	EntityID   int64          `gorm:"column:entity_id;not null;index" json:"entity_id"`
	X1         float64        `gorm:"column:x1;not null" json:"x1"`
	Y1         float64        `gorm:"column:y1;not null" json:"y1"`
	X2         float64        `gorm:"column:x2;not null" json:"x2"`
	Y2         float64        `gorm:"column:y2;not null" json:"y2"`
	Confidence float64        `gorm:"column:confidence;not null" json:"confidence"`
	Landmarks  datatypes.JSON `gorm:"column:landmarks" json:"landmarks,omitempty"`
	PersonID   *int64         `gorm:"column:person_id;index" json:"person_id,omitempty"`
	CropPath   string         `gorm:"column:crop_path" json:"crop_path"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
}

func (Face) TableName() string { return "face" }
