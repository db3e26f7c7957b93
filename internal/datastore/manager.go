// Package datastore opens the database that holds migrated flags and the
// migration checkpoint, and manages the checkpoint's state machine.
package datastore

import (
	"fmt"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tphakala/flagmigrate/internal/errors"
	"github.com/tphakala/flagmigrate/internal/flags"
	"github.com/tphakala/flagmigrate/internal/logger"
)

// Database types accepted by Open.
const (
	TypeSQLite = "sqlite"
	TypeMySQL  = "mysql"
)

// Manager owns a gorm connection and the schema on it.
type Manager interface {
	// Initialize migrates the schema and seeds the checkpoint row.
	Initialize() error
	// DB returns the underlying GORM database.
	DB() *gorm.DB
	// Path returns the database location for display.
	Path() string
	// Close closes the database connection.
	Close() error
	// IsMySQL returns true for MySQL managers.
	IsMySQL() bool
}

// Config selects and configures the database.
type Config struct {
	Type   string
	SQLite SQLiteConfig
	MySQL  MySQLConfig
	Debug  bool
}

// Open creates the manager for cfg.Type.
func Open(cfg *Config, log logger.Logger) (Manager, error) {
	switch cfg.Type {
	case TypeSQLite, "":
		return NewSQLiteManager(&cfg.SQLite, cfg.Debug, log)
	case TypeMySQL:
		return NewMySQLManager(&cfg.MySQL, cfg.Debug, log)
	default:
		return nil, errors.Newf("unsupported database type %q", cfg.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// models lists every table the tool owns.
func models() []any {
	return append(flags.Models(), &MigrationState{})
}

// initialize migrates the schema and creates the checkpoint singleton.
func initialize(db *gorm.DB) error {
	if err := db.AutoMigrate(models()...); err != nil {
		return dbError(fmt.Errorf("failed to migrate schema: %w", err), "auto_migrate")
	}

	state := MigrationState{ID: 1, Status: StatusIdle}
	if err := db.FirstOrCreate(&state, MigrationState{ID: 1}).Error; err != nil {
		return dbError(fmt.Errorf("failed to initialize migration state: %w", err), "seed_state")
	}
	return nil
}

func gormConfig(log logger.Logger, debug bool) *gorm.Config {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return &gorm.Config{
		Logger: NewGormLogger(log, DefaultSlowQueryThreshold, level),
	}
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

func dbError(err error, operation string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}
