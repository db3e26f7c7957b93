package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/flagmigrate/internal/logger"
)

// SQLiteConfig configures the SQLite database.
type SQLiteConfig struct {
	// Path is the database file. Its directory is created if missing.
	Path string
}

// SQLiteManager handles a SQLite database file.
type SQLiteManager struct {
	db     *gorm.DB
	dbPath string
	logger logger.Logger
}

// NewSQLiteManager opens the SQLite database at cfg.Path.
func NewSQLiteManager(cfg *SQLiteConfig, debug bool, log logger.Logger) (*SQLiteManager, error) {
	log = log.Module("datastore")

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, dbError(fmt.Errorf("failed to create database directory: %w", err), "open")
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", cfg.Path)
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(log, debug))
	if err != nil {
		return nil, dbError(fmt.Errorf("failed to open SQLite database: %w", err), "open")
	}

	log.Info("opened SQLite database", logger.String("path", cfg.Path))
	return &SQLiteManager{db: db, dbPath: cfg.Path, logger: log}, nil
}

// Initialize migrates the schema and seeds the checkpoint row.
func (m *SQLiteManager) Initialize() error {
	return initialize(m.db)
}

// DB returns the underlying GORM database.
func (m *SQLiteManager) DB() *gorm.DB {
	return m.db
}

// Path returns the database file path.
func (m *SQLiteManager) Path() string {
	return m.dbPath
}

// Close closes the database connection.
func (m *SQLiteManager) Close() error {
	return closeDB(m.db)
}

// IsMySQL returns false for SQLite.
func (m *SQLiteManager) IsMySQL() bool {
	return false
}
