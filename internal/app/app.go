// Package app wires settings into the collaborators of a migration run.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/flagmigrate/internal/buildinfo"
	"github.com/tphakala/flagmigrate/internal/conf"
	"github.com/tphakala/flagmigrate/internal/datastore"
	"github.com/tphakala/flagmigrate/internal/errors"
	"github.com/tphakala/flagmigrate/internal/flags"
	"github.com/tphakala/flagmigrate/internal/httpclient"
	"github.com/tphakala/flagmigrate/internal/legacy"
	"github.com/tphakala/flagmigrate/internal/logger"
	"github.com/tphakala/flagmigrate/internal/telemetry"
)

// Context is shared by every command.
type Context struct {
	Settings  *conf.Settings
	BuildInfo *buildinfo.Context
	Logger    *logger.CentralLogger
}

// NewContext creates a Context with no settings loaded yet.
func NewContext(info *buildinfo.Context) *Context {
	return &Context{Settings: &conf.Settings{}, BuildInfo: info}
}

// Setup installs settings and builds the central logger from them.
func (c *Context) Setup(settings *conf.Settings) error {
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}
	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return errors.New(fmt.Errorf("failed to create logger: %w", err)).
			Component("app").
			Category(errors.CategoryConfiguration).
			Build()
	}
	c.Settings = settings
	c.Logger = central
	return nil
}

// Log returns the logger for module, or a discarding logger before Setup.
func (c *Context) Log(module string) logger.Logger {
	if c.Logger == nil {
		return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC).Module(module)
	}
	return c.Logger.Module(module)
}

// Close flushes and closes the central logger.
func (c *Context) Close() error {
	if c.Logger == nil {
		return nil
	}
	return c.Logger.Close()
}

// OpenDatastore opens the flags database and migrates its schema.
func OpenDatastore(settings *conf.Settings, log logger.Logger) (datastore.Manager, error) {
	db := settings.Flags.Database
	mgr, err := datastore.Open(&datastore.Config{
		Type:   db.Type,
		Debug:  db.Debug,
		SQLite: datastore.SQLiteConfig{Path: db.SQLite.Path},
		MySQL: datastore.MySQLConfig{
			Host:     db.MySQL.Host,
			Port:     db.MySQL.Port,
			Username: db.MySQL.Username,
			Password: db.MySQL.Password,
			Database: db.MySQL.Database,
			DSN:      db.MySQL.DSN,
		},
	}, log)
	if err != nil {
		return nil, err
	}
	if err := mgr.Initialize(); err != nil {
		_ = mgr.Close()
		return nil, err
	}
	return mgr, nil
}

// ConnectLegacy connects to the Redis keyspace holding legacy flags.
func ConnectLegacy(ctx context.Context, settings *conf.Settings, log logger.Logger) (*legacy.Store, error) {
	r := settings.Redis
	return legacy.Connect(ctx, legacy.Config{
		Addr:           r.Addr,
		Username:       r.Username,
		Password:       r.Password,
		DB:             r.DB,
		PoolSize:       r.PoolSize,
		DialTimeout:    r.DialTimeout,
		ConnectRetries: r.ConnectRetries,
	}, log)
}

// NewFlagService returns the flags backend selected by settings. db is used
// by the database backend only. A nil recorder disables instrumentation.
func NewFlagService(settings *conf.Settings, db *gorm.DB, recorder flags.Recorder, log logger.Logger) (flags.Service, error) {
	var svc flags.Service
	switch settings.Flags.Backend {
	case conf.BackendDatabase, "":
		if db == nil {
			return nil, errors.Newf("database backend requires an open database").
				Component("app").
				Category(errors.CategoryConfiguration).
				Build()
		}
		svc = flags.NewStore(db, log)
	case conf.BackendHTTP:
		h := settings.Flags.HTTP
		client, err := flags.NewHTTPClient(httpclient.New(&httpclient.Config{
			DefaultTimeout: h.Timeout,
			Token:          h.Token,
		}), h.BaseURL, log)
		if err != nil {
			return nil, err
		}
		svc = client
	default:
		return nil, errors.Newf("unsupported flags backend %q", settings.Flags.Backend).
			Component("app").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return flags.Instrument(svc, recorder), nil
}

// InitTelemetry starts Sentry when enabled. The returned function is never nil.
func InitTelemetry(settings *conf.Settings, info *buildinfo.Context) (func(), error) {
	if !settings.Sentry.Enabled {
		return func() {}, nil
	}
	return telemetry.InitSentry(&telemetry.Config{
		DSN:         settings.Sentry.DSN,
		Environment: settings.Sentry.Environment,
		Release:     info.Release(),
		SampleRate:  settings.Sentry.SampleRate,
	})
}
