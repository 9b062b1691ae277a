package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mvasquez-dev/photoloom-backend/internal/platform/envutil"
	"github.com/mvasquez-dev/photoloom-backend/internal/platform/logger"
	"github.com/mvasquez-dev/photoloom-backend/internal/types"
)

// Service owns the GORM handle. SQLite is the default engine; it is a
// single-writer store, which is why every repo write sits behind the
// lock-contention retry in internal/repos.
type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

func New(log *logger.Logger) (*Service, error) {
	serviceLog := log.With("service", "DBService")

	driver := strings.ToLower(envutil.String("DB_DRIVER", "sqlite"))
	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case "sqlite":
		path := envutil.String("DB_PATH", "photoloom.db")
		// _busy_timeout gives the engine its own grace period before a write
		// surfaces "database is locked" to the retry loop.
		dsn := fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL", path)
		db, err = gorm.Open(sqlite.Open(dsn), gormConfig())
	case "postgres":
		host := envutil.String("POSTGRES_HOST", "localhost")
		port := envutil.String("POSTGRES_PORT", "5432")
		user := envutil.String("POSTGRES_USER", "postgres")
		password := envutil.String("POSTGRES_PASSWORD", "")
		name := envutil.String("POSTGRES_NAME", "photoloom")
		dsn := fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			user, password, host, port, name,
		)
		db, err = gorm.Open(postgres.Open(dsn), gormConfig())
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", driver)
	}
	if err != nil {
		serviceLog.Error("Failed to connect to database", "driver", driver, "error", err)
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	serviceLog.Info("Database connected", "driver", driver)
	return &Service{db: db, log: serviceLog}, nil
}

// NewWithDB wraps an already opened handle. Test use.
func NewWithDB(db *gorm.DB, log *logger.Logger) *Service {
	return &Service{db: db, log: log.With("service", "DBService")}
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	}
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...")
	err := s.db.AutoMigrate(
		&types.Entity{},
		&types.EntityVersionRecord{},
		&types.SyncCursor{},
		&types.IntelligenceRecord{},
		&types.JobRecord{},
		&types.Face{},
		&types.Person{},
		&types.FaceMatch{},
	)
	if err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}
