package logger

import (
	"context"
	"errors"
	"log/slog"
)

// fanoutHandler routes each record to every output whose level admits it,
// so the console and the log file keep independent thresholds.
type fanoutHandler []slog.Handler

func newFanoutHandler(outputs ...slog.Handler) slog.Handler {
	return fanoutHandler(outputs)
}

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, out := range f {
		if out.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

//nolint:gocritic // slog.Handler requires the record by value
func (f fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, out := range f {
		if !out.Enabled(ctx, record.Level) {
			continue
		}
		if err := out.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanoutHandler) each(derive func(slog.Handler) slog.Handler) fanoutHandler {
	next := make(fanoutHandler, len(f))
	for i, out := range f {
		next[i] = derive(out)
	}
	return next
}
