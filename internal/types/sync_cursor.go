package types

import "time"

// SyncCursorKey is the identity of the singleton cursor row. Created lazily,
// never deleted.
const SyncCursorKey = "intelligence"

// SyncCursor holds the last transaction id fully reconciled. Monotonically
// non-decreasing.
type SyncCursor struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	LastTxID  int64     `gorm:"column:last_tx_id;not null;default:0" json:"last_tx_id"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (SyncCursor) TableName() string { return "sync_cursor" }
