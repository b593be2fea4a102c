package registry

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/resumelens/resumelens/internal/models"
)

// OpenDatabase opens and migrates the session registry database.
// A postgres:// URL selects PostgreSQL; anything else is treated as a
// SQLite file path.
func OpenDatabase(url string, zlog zerolog.Logger) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				LogLevel:                  logger.Error,
				IgnoreRecordNotFoundError: true,
				SlowThreshold:             200 * time.Millisecond,
			},
		),
	}

	var db *gorm.DB
	var err error
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		db, err = gorm.Open(postgres.Open(url), gormConfig)
	} else {
		db, err = gorm.Open(sqlite.Open(url), gormConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(8)
	sqlDB.SetMaxIdleConns(4)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if db.Dialector.Name() == "sqlite" {
		// WAL first for concurrent readers during the purge sweep
		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA foreign_keys=1",
		}
		for _, pragma := range pragmas {
			if err := db.Exec(pragma).Error; err != nil {
				zlog.Warn().Str("pragma", pragma).Err(err).Msg("Failed to apply pragma")
			}
		}
	}

	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}
