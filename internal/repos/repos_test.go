package repos

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mvasquez-dev/photoloom-backend/internal/db"
	"github.com/mvasquez-dev/photoloom-backend/internal/platform/logger"
	"github.com/mvasquez-dev/photoloom-backend/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.NewWithDB(gdb, logger.NewNop()).AutoMigrateAll(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func seedEntity(t *testing.T, gdb *gorm.DB, id, txID int64) {
	t.Helper()
	e := types.Entity{ID: id, FilePath: fmt.Sprintf("photos/%d.jpg", id), TxID: txID}
	if err := gdb.Create(&e).Error; err != nil {
		t.Fatalf("seed entity %d: %v", id, err)
	}
}

func testPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

func countRows(t *testing.T, gdb *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := gdb.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
