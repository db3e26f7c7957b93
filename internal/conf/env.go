// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "FLAGMIGRATE_DEBUG", validateEnvBool},

		// Legacy keyspace
		{"redis.addr", "FLAGMIGRATE_REDIS_ADDR", nil},
		{"redis.username", "FLAGMIGRATE_REDIS_USERNAME", nil},
		{"redis.password", "FLAGMIGRATE_REDIS_PASSWORD", nil},
		{"redis.db", "FLAGMIGRATE_REDIS_DB", validateEnvNonNegativeInt},

		// Flags backend
		{"flags.backend", "FLAGMIGRATE_FLAGS_BACKEND", validateEnvOneOf(BackendDatabase, BackendHTTP)},
		{"flags.database.type", "FLAGMIGRATE_DATABASE_TYPE", validateEnvOneOf(DatabaseSQLite, DatabaseMySQL)},
		{"flags.database.sqlite.path", "FLAGMIGRATE_SQLITE_PATH", nil},
		{"flags.database.mysql.dsn", "FLAGMIGRATE_MYSQL_DSN", nil},
		{"flags.database.mysql.password", "FLAGMIGRATE_MYSQL_PASSWORD", nil},
		{"flags.http.base_url", "FLAGMIGRATE_FLAGS_URL", validateEnvURL},
		{"flags.http.token", "FLAGMIGRATE_FLAGS_TOKEN", nil},
		{"flags.http.timeout", "FLAGMIGRATE_FLAGS_TIMEOUT", validateEnvDuration},

		// Migration tuning
		{"migration.page_size", "FLAGMIGRATE_PAGE_SIZE", validateEnvPositiveInt},
		{"migration.concurrency", "FLAGMIGRATE_CONCURRENCY", validateEnvPositiveInt},
		{"migration.system_actor", "FLAGMIGRATE_SYSTEM_ACTOR", nil},
		{"migration.sleep_between", "FLAGMIGRATE_SLEEP_BETWEEN", validateEnvDuration},

		// Observability
		{"logging.default_level", "FLAGMIGRATE_LOG_LEVEL", validateEnvLogLevel},
		{"metrics.listen", "FLAGMIGRATE_METRICS_LISTEN", nil},
		{"sentry.dsn", "FLAGMIGRATE_SENTRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

// validateEnvBool validates boolean environment variables
func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value, use true/false or 1/0")
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive integer")
	}
	return nil
}

func validateEnvNonNegativeInt(value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return fmt.Errorf("must be a non-negative integer")
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid duration, use a value like 500ms or 30s")
	}
	if d < 0 {
		return fmt.Errorf("duration must not be negative")
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(strings.TrimSpace(value))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an absolute http or https URL")
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	return validateEnvOneOf("trace", "debug", "info", "warn", "error")(strings.ToLower(strings.TrimSpace(value)))
}

func validateEnvOneOf(allowed ...string) func(string) error {
	return func(value string) error {
		if !slices.Contains(allowed, strings.TrimSpace(value)) {
			return fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
		}
		return nil
	}
}
