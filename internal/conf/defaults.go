// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/flagmigrate/internal/logger"
)

// Default values referenced by the CLI help text.
const (
	DefaultPageSize     = 100
	DefaultConcurrency  = 16
	DefaultSystemActor  = "1"
	DefaultMetricsAddr  = ":9090"
	DefaultSQLitePath   = "data/flags.db"
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultRedisAddr    = "localhost:6379"
	DefaultRedisRetries = 5
)

// setDefaultConfig sets default values for every configuration key.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("redis.addr", DefaultRedisAddr)
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 32)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.connect_retries", DefaultRedisRetries)

	v.SetDefault("flags.backend", BackendDatabase)
	v.SetDefault("flags.database.type", DatabaseSQLite)
	v.SetDefault("flags.database.debug", false)
	v.SetDefault("flags.database.sqlite.path", DefaultSQLitePath)
	v.SetDefault("flags.database.mysql.host", "localhost")
	v.SetDefault("flags.database.mysql.port", "3306")
	v.SetDefault("flags.database.mysql.username", "")
	v.SetDefault("flags.database.mysql.password", "")
	v.SetDefault("flags.database.mysql.database", "")
	v.SetDefault("flags.database.mysql.dsn", "")
	v.SetDefault("flags.http.base_url", "")
	v.SetDefault("flags.http.token", "")
	v.SetDefault("flags.http.timeout", DefaultHTTPTimeout)

	v.SetDefault("migration.page_size", DefaultPageSize)
	v.SetDefault("migration.concurrency", DefaultConcurrency)
	v.SetDefault("migration.system_actor", DefaultSystemActor)
	v.SetDefault("migration.resume", false)
	v.SetDefault("migration.sleep_between", time.Duration(0))

	v.SetDefault("logging.default_level", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.file_output.enabled", logger.DefaultFileEnabled)
	v.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	v.SetDefault("logging.file_output.level", logger.DefaultLogLevel)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", DefaultMetricsAddr)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
	v.SetDefault("sentry.sample_rate", 1.0)
}
