package types

import (
	"time"
)

// Entity is the externally owned media record this pipeline annotates. The
// pipeline reads it and deletes it on behalf of the owner; it never creates
// or updates one.
type Entity struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	FilePath  string    `gorm:"column:file_path;not null" json:"file_path"`
	MimeType  string    `gorm:"column:mime_type" json:"mime_type"`
	Width     int       `gorm:"column:width" json:"width"`
	Height    int       `gorm:"column:height" json:"height"`
	TxID      int64     `gorm:"column:tx_id;not null;index" json:"tx_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Entity) TableName() string { return "entity" }
