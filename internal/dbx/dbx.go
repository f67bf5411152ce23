// Package dbx is the persistence runtime shared by PS/OL: connection
// opening, driver selection (MySQL for production, SQLite for the
// local/single-node fallback SPEC_FULL §5 allows), and pool tuning.
//
// Grounded on ChoSanghyuk-blackholedex's internal/db/transaction_recorder.go
// (NewMySQLRecorder's gorm.Open+AutoMigrate shape, Close via r.db.DB()).
package dbx

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Driver string

const (
	DriverMySQL  Driver = "mysql"
	DriverSQLite Driver = "sqlite"
)

// Config describes how to open the database connection.
type Config struct {
	Driver          Driver
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogSQL          bool
}

// Open connects to the configured database and tunes the pool. Recycle
// defaults to 1h (pool_pre_ping equivalent is db.Ping, invoked here once
// to fail fast on a bad DSN).
func Open(cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	case DriverMySQL:
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.Driver)
	}

	logLevel := logger.Silent
	if cfg.LogSQL {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logLevel)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying db handle: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(lifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// EnsureOpenPositionUniqueIndex creates the partial unique index backing the
// open-then-close invariant (§4.5/§9): at most one row with status=OPEN per
// (council_id, symbol, position_side, platform). SQLite supports a WHERE
// predicate on a unique index directly; MySQL does not support partial
// unique indexes at all, so on MySQL the application-level check performed
// inside WithinTransaction (store.FindOpenPositionBySymbolAndSide) remains
// the sole guard and this call is a deliberate no-op — documented in
// DESIGN.md rather than silently skipped.
func EnsureOpenPositionUniqueIndex(db *gorm.DB, driver Driver) error {
	if driver != DriverSQLite {
		return nil
	}
	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_futures_positions_open_unique
		ON futures_positions (council_id, symbol, position_side, platform)
		WHERE status = 'OPEN'`).Error
}

// Close closes the underlying connection, mirroring MySQLRecorder.Close.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying db handle: %w", err)
	}
	return sqlDB.Close()
}
