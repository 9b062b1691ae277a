package types

import "time"

// FaceMatch is a directed similarity edge between two faces, recorded for
// audit of matching decisions. Cascades when either face is deleted.
type FaceMatch struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	FaceID        int64     `gorm:"column:face_id;not null;index" json:"face_id"`
	MatchedFaceID int64     `gorm:"column:matched_face_id;not null;index" json:"matched_face_id"`
	Score         float64   `gorm:"column:score;not null" json:"score"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
}

func (FaceMatch) TableName() string { return "face_match" }
