// Package telemetry wires opt-in Sentry error reporting. Only errors built
// with high or critical priority are sent, so per-item failures that a run
// absorbs never leave the process.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/flagmigrate/internal/errors"
)

// DefaultFlushTimeout bounds how long Flush waits for queued events.
const DefaultFlushTimeout = 2 * time.Second

// Config holds Sentry client options.
type Config struct {
	DSN         string
	Environment string
	Release     string
	SampleRate  float64

	// Transport overrides the HTTP transport. Tests use it to capture events.
	Transport sentry.Transport
}

// InitSentry initializes the Sentry SDK and installs it as the errors
// telemetry reporter. The returned function flushes pending events and
// uninstalls the reporter.
func InitSentry(cfg *Config) (func(), error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       cfg.SampleRate,
		AttachStacktrace: false,
		ServerName:       "",
		Transport:        cfg.Transport,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sentry initialization failed: %w", err)
	}

	errors.SetTelemetryReporter(&priorityReporter{next: errors.NewSentryReporter(true)})

	return func() {
		errors.SetTelemetryReporter(nil)
		sentry.Flush(DefaultFlushTimeout)
	}, nil
}

// priorityReporter forwards only high and critical priority errors.
type priorityReporter struct {
	next errors.TelemetryReporter
}

func (r *priorityReporter) IsEnabled() bool {
	return r.next.IsEnabled()
}

func (r *priorityReporter) ReportError(ee *errors.EnhancedError) {
	switch ee.GetPriority() {
	case errors.PriorityHigh, errors.PriorityCritical:
		r.next.ReportError(ee)
	}
}

// applyPrivacyFilters strips host and user identifying data from an event.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}
	return event
}
