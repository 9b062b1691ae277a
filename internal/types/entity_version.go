package types

import (
	"time"

	"gorm.io/datatypes"
)

// EntityVersionRecord is an append-only, transaction-ordered snapshot of an
// Entity. Rows survive hard deletion of the live entity so in-flight jobs can
// still recover file metadata. Never updated or deleted by this pipeline.
type EntityVersionRecord struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	EntityID  int64          `gorm:"column:entity_id;not null;index" json:"entity_id"`
	TxID      int64          `gorm:"column:tx_id;not null;index" json:"tx_id"`
	Deleted   bool           `gorm:"column:deleted;not null;default:false" json:"deleted"`
	Snapshot  datatypes.JSON `gorm:"column:snapshot" json:"snapshot"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
}

func (EntityVersionRecord) TableName() string { return "entity_version" }
