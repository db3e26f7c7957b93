package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSentinel = NewStd("sentinel")

type countingReporter struct {
	reported []*EnhancedError
}

func (r *countingReporter) ReportError(ee *EnhancedError) { r.reported = append(r.reported, ee) }
func (r *countingReporter) IsEnabled() bool               { return true }

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
}

func TestBuilder_PreservesChainAndContext(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("pid 42: %w", errSentinel)).
		Component("migration").
		Category(CategoryMigration).
		Context("pid", "42").
		Priority("bogus").
		Build()

	require.ErrorIs(t, ee, errSentinel)
	assert.Equal(t, "migration", ee.GetComponent())
	assert.Equal(t, PriorityMedium, ee.GetPriority())
	assert.Equal(t, "42", ee.GetContext()["pid"])
	assert.True(t, IsCategory(ee, CategoryMigration))
	assert.False(t, IsNotFound(ee))

	// Context copies are detached from the error
	ctx := ee.GetContext()
	ctx["pid"] = "changed"
	assert.Equal(t, "42", ee.GetContext()["pid"])
}

func TestBuilder_ReportsWhenReporterActive(t *testing.T) {
	reporter := &countingReporter{}
	SetTelemetryReporter(reporter)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := New(NewStd("boom")).Category(CategoryLegacyStore).Build()

	require.Len(t, reporter.reported, 1)
	assert.Same(t, ee, reporter.reported[0])
	// Test frames live in the errors package itself and are skipped
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
}

func TestDetectCategory_FromWrappedEnhancedError(t *testing.T) {
	SetTelemetryReporter(nil)

	inner := New(NewStd("redis down")).Category(CategoryLegacyStore).Build()
	outer := New(fmt.Errorf("page failed: %w", inner)).Build()

	assert.Equal(t, CategoryLegacyStore, outer.Category)
}

func TestScrubMessageForPrivacy(t *testing.T) {
	tests := []struct {
		name    string
		message string
		absent  string
	}{
		{"url query", "GET https://flags.example.com/api?token=abc failed", "abc"},
		{"password", "dial failed password=hunter2", "hunter2"},
		{"api key", "auth api_key=secret123 rejected", "secret123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotContains(t, scrubMessageForPrivacy(tt.message), tt.absent)
		})
	}
}

func TestGenerateErrorTitle(t *testing.T) {
	ee := New(NewStd("x")).
		Component("flags").
		Category(CategoryFlagService).
		Context("operation", "append_note").
		Build()

	assert.Equal(t, "Flags Flag Service Error Append Note", generateErrorTitle(ee))
}
