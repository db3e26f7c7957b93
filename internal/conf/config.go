// Package conf loads flagmigrate settings from a YAML config file, FLAGMIGRATE_*
// environment variables and command line flags, in increasing precedence.
package conf

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/flagmigrate/internal/errors"
	"github.com/tphakala/flagmigrate/internal/logger"
)

// Flags service backends.
const (
	BackendDatabase = "database"
	BackendHTTP     = "http"
)

// Database types.
const (
	DatabaseSQLite = "sqlite"
	DatabaseMySQL  = "mysql"
)

// RedisSettings contains the legacy keyspace connection.
type RedisSettings struct {
	Addr           string        `mapstructure:"addr" yaml:"addr"`
	Username       string        `mapstructure:"username" yaml:"username"`
	Password       string        `mapstructure:"password" yaml:"password"`
	DB             int           `mapstructure:"db" yaml:"db"`
	PoolSize       int           `mapstructure:"pool_size" yaml:"pool_size"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ConnectRetries uint64        `mapstructure:"connect_retries" yaml:"connect_retries"`
}

// SQLiteSettings contains the SQLite database location.
type SQLiteSettings struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// MySQLSettings contains the MySQL connection. DSN overrides the other fields.
type MySQLSettings struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
	DSN      string `mapstructure:"dsn" yaml:"dsn"`
}

// DatabaseSettings selects the database holding the flags schema and the checkpoint.
type DatabaseSettings struct {
	Type   string         `mapstructure:"type" yaml:"type"` // sqlite or mysql
	Debug  bool           `mapstructure:"debug" yaml:"debug"`
	SQLite SQLiteSettings `mapstructure:"sqlite" yaml:"sqlite"`
	MySQL  MySQLSettings  `mapstructure:"mysql" yaml:"mysql"`
}

// HTTPSettings contains the remote flags API.
type HTTPSettings struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Token   string        `mapstructure:"token" yaml:"token"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// FlagsSettings selects where migrated flags are written.
type FlagsSettings struct {
	Backend  string           `mapstructure:"backend" yaml:"backend"` // database or http
	Database DatabaseSettings `mapstructure:"database" yaml:"database"`
	HTTP     HTTPSettings     `mapstructure:"http" yaml:"http"`
}

// MigrationSettings tunes the migration run.
type MigrationSettings struct {
	PageSize     int           `mapstructure:"page_size" yaml:"page_size"`
	Concurrency  int           `mapstructure:"concurrency" yaml:"concurrency"`
	SystemActor  string        `mapstructure:"system_actor" yaml:"system_actor"` // uid recorded on state and assignee updates
	Resume       bool          `mapstructure:"resume" yaml:"resume"`
	SleepBetween time.Duration `mapstructure:"sleep_between" yaml:"sleep_between"`
}

// MetricsSettings contains the status and metrics server.
type MetricsSettings struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
}

// SentrySettings contains error telemetry.
type SentrySettings struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	DSN         string  `mapstructure:"dsn" yaml:"dsn"`
	Environment string  `mapstructure:"environment" yaml:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}

// Settings is the root configuration.
type Settings struct {
	Debug     bool                 `mapstructure:"debug" yaml:"debug"`
	Redis     RedisSettings        `mapstructure:"redis" yaml:"redis"`
	Flags     FlagsSettings        `mapstructure:"flags" yaml:"flags"`
	Migration MigrationSettings    `mapstructure:"migration" yaml:"migration"`
	Logging   logger.LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics   MetricsSettings      `mapstructure:"metrics" yaml:"metrics"`
	Sentry    SentrySettings       `mapstructure:"sentry" yaml:"sentry"`

	// ConfigFile is the file the settings were read from, empty when defaults only.
	ConfigFile string `mapstructure:"-" yaml:"-"`
}

// New returns a viper instance with defaults and environment bindings applied.
// Command line flags are bound to it by the caller.
func New() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaultConfig(v)
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Load reads configFile, or config.yaml from the default paths when configFile
// is empty, into Settings and validates the result. A missing default config
// file is not an error.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		for _, path := range GetDefaultConfigPaths() {
			v.AddConfigPath(path)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.New(fmt.Errorf("error reading config file: %w", err)).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("config_file", configFile).
				Build()
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	settings.ConfigFile = v.ConfigFileUsed()

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error validating settings: %w", err)).
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}

	return settings, nil
}
