package db

import (
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gear-maintenance-backend/config"
	"gear-maintenance-backend/internal/model"
	"gear-maintenance-backend/internal/usage"
)

// Dialector picks the gorm driver for a DSN: postgres URLs and key/value
// strings go to Postgres, go-sql-driver style "user:pass@tcp(host)/db" to
// MySQL, everything else is treated as a SQLite file or URI.
func Dialector(dsn string) gorm.Dialector {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		return postgres.Open(dsn)
	case strings.Contains(dsn, "@tcp("), strings.Contains(dsn, "@unix("):
		return mysql.Open(dsn)
	default:
		return sqlite.Open(dsn)
	}
}

// Models lists every table the application owns.
func Models() []any {
	return []any{
		&model.Part{},
		&model.Attachment{},
		&model.Activity{},
		&usage.Ledger{},
		&model.Service{},
		&model.ServicePlan{},
		&model.PushSubscription{},
	}
}

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.Debug {
		level = logger.Info
	}
	db, err := gorm.Open(Dialector(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if cfg.EnforceNonOverlap {
		if db.Dialector.Name() != "postgres" {
			log.Printf("enforce_non_overlap needs Postgres, %s database left without constraint", db.Dialector.Name())
		} else {
			log.Println("Installing attachment non-overlap constraint...")
			if err := applyNonOverlapDDL(db); err != nil {
				log.Printf("Warning: failed to apply non-overlap DDL: %v. Continuing without it.", err)
			}
		}
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// Migrate creates or updates all tables.
func Migrate(db *gorm.DB) error {
	log.Println("Running database migrations...")
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

// applyNonOverlapDDL rejects a second attachment at the same gear and hook
// whose half-open interval overlaps an existing one.
func applyNonOverlapDDL(db *gorm.DB) error {
	ddls := []string{
		"CREATE EXTENSION IF NOT EXISTS btree_gist;",

		"ALTER TABLE attachments DROP CONSTRAINT IF EXISTS attachments_interval_valid;",
		"ALTER TABLE attachments " +
			"ADD CONSTRAINT attachments_interval_valid CHECK (attached <= detached);",

		"ALTER TABLE attachments DROP CONSTRAINT IF EXISTS attachments_no_overlap;",
		"ALTER TABLE attachments ADD CONSTRAINT attachments_no_overlap " +
			"EXCLUDE USING GIST (gear WITH =, hook WITH =, tstzrange(attached, detached, '[)') WITH &&);",

		"CREATE INDEX IF NOT EXISTS idx_attachments_part_attached ON attachments (part_id, attached DESC);",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
