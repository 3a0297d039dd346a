package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"equipment_usage_tracker/config"
	"equipment_usage_tracker/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DB is the process-wide handle, set by the first successful Connect.
var DB *gorm.DB

var (
	connectOnce sync.Once
	connectErr  error
)

// Connect opens the shared store handle exactly once. Concurrent and repeated
// callers all receive the same handle (or the same error).
func Connect(cfg config.Database, log hclog.Logger) (*gorm.DB, error) {
	connectOnce.Do(func() {
		DB, connectErr = Open(cfg, log)
	})
	return DB, connectErr
}

// Open creates a new handle without touching the shared one. Used by the CLI
// and tests.
func Open(cfg config.Database, log hclog.Logger) (*gorm.DB, error) {
	if log == nil {
		log = hclog.NewNullLogger()
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         NewGormLogger(log.Named("gorm")),
		TranslateError: true,
		NowFunc:        Now,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// one writer at a time; also keeps ":memory:" on a single connection
		sqlDB.SetMaxOpenConns(1)
	}

	retries := cfg.ConnectRetries
	if retries < 0 {
		retries = 0
	}
	ping := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return sqlDB.PingContext(ctx)
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("database not reachable, retrying", "error", err, "wait", wait)
	}
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries))
	if err := backoff.RetryNotify(ping, b, notify); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("database connected", "driver", dialector.Name())
	return conn, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Equipment{},
		&models.UsageEpisode{},
		&models.MaintenanceRecord{},
		&models.StatusChange{},
	); err != nil {
		return err
	}

	// at most one open episode per unit
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_one_open_per_equipment
	  ON %s (equipment_id)
	  WHERE end_time IS NULL;
	`, models.UsageEpisodeTable, models.UsageEpisodeTable)).Error; err != nil {
		return err
	}

	return nil
}
