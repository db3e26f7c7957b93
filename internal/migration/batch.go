package migration

import (
	"context"
	"time"

	"github.com/tphakala/flagmigrate/internal/logger"
)

// DefaultPageSize is the number of pids fetched per page.
const DefaultPageSize = 100

// KeyspaceSource pages through the ordered pid index.
type KeyspaceSource interface {
	// NextPage returns up to limit ids ranked after afterKey ("" starts at the beginning).
	NextPage(ctx context.Context, afterKey string, limit int) ([]string, error)
}

// PageFunc processes one page. A returned error stops the walk.
type PageFunc func(ctx context.Context, ids []string) error

// Walker walks a KeyspaceSource page by page. Pages are strictly sequential:
// the next page is fetched only after the previous PageFunc returned.
type Walker struct {
	source       KeyspaceSource
	startAfter   string
	sleepBetween time.Duration
	logger       logger.Logger
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithStartAfter resumes the walk after key.
func WithStartAfter(key string) WalkerOption {
	return func(w *Walker) { w.startAfter = key }
}

// WithSleepBetween pauses between pages.
func WithSleepBetween(d time.Duration) WalkerOption {
	return func(w *Walker) { w.sleepBetween = d }
}

// NewWalker creates a Walker over source.
func NewWalker(source KeyspaceSource, log logger.Logger, opts ...WalkerOption) *Walker {
	w := &Walker{source: source, logger: log}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run walks the keyspace in pages of pageSize and calls onPage for each.
// It returns nil once a short or empty page is seen, and the first
// onPage or source error otherwise.
func (w *Walker) Run(ctx context.Context, pageSize int, onPage PageFunc) error {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	after := w.startAfter
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		ids, err := w.source.NextPage(ctx, after, pageSize)
		if err != nil {
			return itemError("", KindBackendFault, err)
		}
		if len(ids) == 0 {
			return nil
		}

		w.logger.Trace("processing page",
			logger.Int("page", page),
			logger.Int("size", len(ids)),
			logger.String("after", after))

		if err := onPage(ctx, ids); err != nil {
			return err
		}

		if len(ids) < pageSize {
			return nil
		}
		after = ids[len(ids)-1]

		if w.sleepBetween > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.sleepBetween):
			}
		}
	}
}
