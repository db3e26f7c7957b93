package datastore

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/flagmigrate/internal/logger"
)

// MySQLConfig configures the MySQL database.
type MySQLConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	// DSN overrides the fields above when set.
	DSN string
}

// MySQLManager handles a MySQL database.
type MySQLManager struct {
	db       *gorm.DB
	location string
	logger   logger.Logger
}

// NewMySQLManager connects to MySQL and configures the connection pool.
func NewMySQLManager(cfg *MySQLConfig, debug bool, log logger.Logger) (*MySQLManager, error) {
	log = log.Module("datastore")

	dsn := cfg.DSN
	location := "dsn"
	if dsn == "" {
		// clientFoundRows makes RowsAffected count matched rows; checkpoint transitions depend on it.
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local&clientFoundRows=true",
			cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
		location = fmt.Sprintf("%s:%s/%s", cfg.Host, cfg.Port, cfg.Database)
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig(log, debug))
	if err != nil {
		return nil, dbError(fmt.Errorf("failed to open MySQL database: %w", err), "open")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, dbError(fmt.Errorf("failed to get underlying database: %w", err), "open")
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("connected to MySQL database", logger.String("location", location))
	return &MySQLManager{db: db, location: location, logger: log}, nil
}

// Initialize migrates the schema and seeds the checkpoint row.
func (m *MySQLManager) Initialize() error {
	return initialize(m.db)
}

// DB returns the underlying GORM database.
func (m *MySQLManager) DB() *gorm.DB {
	return m.db
}

// Path returns host:port/database.
func (m *MySQLManager) Path() string {
	return m.location
}

// Close closes the database connection.
func (m *MySQLManager) Close() error {
	return closeDB(m.db)
}

// IsMySQL returns true.
func (m *MySQLManager) IsMySQL() bool {
	return true
}
