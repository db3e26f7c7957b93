// Package migration moves legacy per-post flags into the normalized flags
// schema. A Walker pages through posts:pid, a Transformer migrates each
// page, and a Task ties both to the checkpoint, metrics and telemetry.
package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/flagmigrate/internal/datastore"
	"github.com/tphakala/flagmigrate/internal/errors"
	"github.com/tphakala/flagmigrate/internal/flags"
	"github.com/tphakala/flagmigrate/internal/logger"
)

// Keyspace is a KeyspaceSource that can report its size.
type Keyspace interface {
	KeyspaceSource
	Count(ctx context.Context) (int64, error)
}

// Checkpointer persists run state between pages.
type Checkpointer interface {
	Start(runID string, totalItems int64, resume bool) (*datastore.MigrationState, error)
	Checkpoint(runID, lastKey string, processedItems int64) error
	Complete(runID string, processedItems int64) error
	Fail(runID, message, failedItem string, processedItems int64) error
}

// TaskConfig wires a Task.
type TaskConfig struct {
	Keyspace    Keyspace
	Posts       PostLookup
	Sets        SortedSets
	Flags       flags.Service
	Checkpoints Checkpointer
	Progress    Progress
	Metrics     Metrics
	Logger      logger.Logger

	PageSize     int
	Concurrency  int
	SystemActor  string
	SleepBetween time.Duration
	Resume       bool
}

// Result summarizes a finished run.
type Result struct {
	RunID string
	// Scanned counts pids walked in this run, including resumed progress.
	Scanned int64
	// Attempted counts flagged posts handed to the transformer in this run.
	Attempted int64
	Total     int64
	LastKey   string
	Duration  time.Duration
}

// Task is the top-level flag migration.
type Task struct {
	cfg     TaskConfig
	metrics Metrics
	logger  logger.Logger
}

// NewTask creates a Task.
func NewTask(cfg *TaskConfig) *Task {
	t := &Task{cfg: *cfg, metrics: cfg.Metrics, logger: cfg.Logger.Module("migration")}
	if t.metrics == nil {
		t.metrics = nopMetrics{}
	}
	if t.cfg.PageSize <= 0 {
		t.cfg.PageSize = DefaultPageSize
	}
	return t
}

// Run migrates every legacy flag. It stops on the first fatal item error,
// records it on the checkpoint and returns it.
func (t *Task) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{RunID: uuid.NewString()}
	log := t.logger.With(logger.String("run_id", result.RunID))

	total, err := t.cfg.Keyspace.Count(ctx)
	if err != nil {
		result.Duration = time.Since(start)
		return result, t.report(itemError("", KindBackendFault, err), result)
	}
	result.Total = total
	t.metrics.SetTotal(total)

	startAfter := ""
	if t.cfg.Checkpoints != nil {
		state, err := t.cfg.Checkpoints.Start(result.RunID, total, t.cfg.Resume)
		if err != nil {
			result.Duration = time.Since(start)
			return result, t.report(err, result)
		}
		startAfter = state.LastKey
		result.Scanned = state.ProcessedItems
		result.LastKey = state.LastKey
	}

	log.Info("flag migration started",
		logger.Int64("total", total),
		logger.Int("page_size", t.cfg.PageSize),
		logger.String("resume_after", startAfter))

	attempted := &Counter{}
	transformer := NewTransformer(&TransformerConfig{
		Posts:       t.cfg.Posts,
		Sets:        t.cfg.Sets,
		Flags:       t.cfg.Flags,
		Progress:    MultiProgress(attempted, t.cfg.Progress),
		Metrics:     t.metrics,
		Logger:      log,
		SystemActor: t.cfg.SystemActor,
		Concurrency: t.cfg.Concurrency,
	})

	walker := NewWalker(t.cfg.Keyspace, log,
		WithStartAfter(startAfter),
		WithSleepBetween(t.cfg.SleepBetween))

	err = walker.Run(ctx, t.cfg.PageSize, func(ctx context.Context, ids []string) error {
		pageStart := time.Now()
		if err := transformer.ProcessPage(ctx, ids); err != nil {
			return err
		}
		t.metrics.ObservePage(len(ids), time.Since(pageStart))

		result.Scanned += int64(len(ids))
		result.LastKey = ids[len(ids)-1]
		if t.cfg.Checkpoints != nil {
			if err := t.cfg.Checkpoints.Checkpoint(result.RunID, result.LastKey, result.Scanned); err != nil {
				// Another run owns the checkpoint; continuing would race it.
				if errors.Is(err, datastore.ErrCheckpointLost) {
					return err
				}
				log.Warn("failed to write checkpoint",
					logger.String("last_key", result.LastKey),
					logger.Error(err))
			}
		}
		return nil
	})

	result.Attempted = attempted.Value()
	result.Duration = time.Since(start)

	if err != nil {
		failed := FailedItem(err)
		log.Error("flag migration failed",
			logger.String("pid", failed),
			logger.String("last_key", result.LastKey),
			logger.Int64("scanned", result.Scanned),
			logger.Error(err))
		if t.cfg.Checkpoints != nil && !errors.Is(err, datastore.ErrCheckpointLost) {
			if failErr := t.cfg.Checkpoints.Fail(result.RunID, err.Error(), failed, result.Scanned); failErr != nil {
				log.Warn("failed to record migration failure", logger.Error(failErr))
			}
		}
		return result, t.report(err, result)
	}

	if t.cfg.Checkpoints != nil {
		if err := t.cfg.Checkpoints.Complete(result.RunID, result.Scanned); err != nil {
			return result, t.report(err, result)
		}
	}

	log.Info("flag migration completed",
		logger.Int64("scanned", result.Scanned),
		logger.Int64("attempted", result.Attempted),
		logger.Duration("duration", result.Duration))
	return result, nil
}

// report wraps a run-fatal error with run context; Build forwards it to telemetry when enabled.
func (t *Task) report(err error, result *Result) error {
	category := errors.CategoryMigration
	switch {
	case errors.Is(err, context.Canceled):
		category = errors.CategoryCancellation
	case errors.Is(err, context.DeadlineExceeded):
		category = errors.CategoryTimeout
	case errors.Is(err, datastore.ErrMigrationRunning), errors.Is(err, datastore.ErrCheckpointLost):
		category = errors.CategoryState
	}

	kind := "unknown"
	if k, ok := KindOf(err); ok {
		kind = k.String()
	}

	return errors.New(fmt.Errorf("flag migration: %w", err)).
		Component("migration").
		Category(category).
		Priority(errors.PriorityHigh).
		Context("run_id", result.RunID).
		Context("pid", FailedItem(err)).
		Context("kind", kind).
		Context("last_key", result.LastKey).
		Timing("flag_migration", result.Duration).
		Build()
}
