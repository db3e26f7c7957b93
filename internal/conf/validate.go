// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Upper bounds for migration tuning.
const (
	MaxPageSize    = 10000
	MaxConcurrency = 1024
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, validate := range []func(*Settings) error{
		validateRedisSettings,
		validateFlagsSettings,
		validateMigrationSettings,
		validateLoggingSettings,
		validateMetricsSettings,
		validateSentrySettings,
	} {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateRedisSettings(s *Settings) error {
	if s.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if s.Redis.DB < 0 {
		return fmt.Errorf("redis.db must not be negative")
	}
	return nil
}

func validateFlagsSettings(s *Settings) error {
	// The checkpoint lives in the database regardless of the flags backend.
	switch s.Flags.Database.Type {
	case DatabaseSQLite:
		if s.Flags.Database.SQLite.Path == "" {
			return fmt.Errorf("flags.database.sqlite.path is required")
		}
	case DatabaseMySQL:
		my := s.Flags.Database.MySQL
		if my.DSN == "" && (my.Host == "" || my.Database == "") {
			return fmt.Errorf("flags.database.mysql requires a dsn or host and database")
		}
	default:
		return fmt.Errorf("flags.database.type must be %q or %q, got %q", DatabaseSQLite, DatabaseMySQL, s.Flags.Database.Type)
	}

	switch s.Flags.Backend {
	case BackendDatabase:
		return nil
	case BackendHTTP:
		u, err := url.Parse(s.Flags.HTTP.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("flags.http.base_url must be an absolute http or https URL")
		}
		if s.Flags.HTTP.Timeout <= 0 {
			return fmt.Errorf("flags.http.timeout must be positive")
		}
		return nil
	default:
		return fmt.Errorf("flags.backend must be %q or %q, got %q", BackendDatabase, BackendHTTP, s.Flags.Backend)
	}
}

func validateMigrationSettings(s *Settings) error {
	m := s.Migration
	var errs []string
	if m.PageSize <= 0 || m.PageSize > MaxPageSize {
		errs = append(errs, fmt.Sprintf("migration.page_size must be between 1 and %d", MaxPageSize))
	}
	if m.Concurrency <= 0 || m.Concurrency > MaxConcurrency {
		errs = append(errs, fmt.Sprintf("migration.concurrency must be between 1 and %d", MaxConcurrency))
	}
	if strings.TrimSpace(m.SystemActor) == "" {
		errs = append(errs, "migration.system_actor is required")
	}
	if m.SleepBetween < 0 {
		errs = append(errs, "migration.sleep_between must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLoggingSettings(s *Settings) error {
	switch strings.ToLower(s.Logging.DefaultLevel) {
	case "", "trace", "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.default_level %q is not a valid level", s.Logging.DefaultLevel)
	}
}

func validateMetricsSettings(s *Settings) error {
	if !s.Metrics.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(s.Metrics.Listen); err != nil {
		return fmt.Errorf("metrics.listen %q is not a host:port address: %w", s.Metrics.Listen, err)
	}
	return nil
}

func validateSentrySettings(s *Settings) error {
	if !s.Sentry.Enabled {
		return nil
	}
	if s.Sentry.DSN == "" {
		return fmt.Errorf("sentry.dsn is required when sentry is enabled")
	}
	if s.Sentry.SampleRate < 0 || s.Sentry.SampleRate > 1 {
		return fmt.Errorf("sentry.sample_rate must be between 0 and 1")
	}
	return nil
}
