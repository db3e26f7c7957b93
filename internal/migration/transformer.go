package migration

import (
	"context"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/flagmigrate/internal/errors"
	"github.com/tphakala/flagmigrate/internal/flags"
	"github.com/tphakala/flagmigrate/internal/legacy"
	"github.com/tphakala/flagmigrate/internal/logger"
)

// DefaultSystemActor is the uid legacy state and assignee updates are attributed to.
const DefaultSystemActor = "1"

// DefaultConcurrency bounds the items migrated at once within a page.
const DefaultConcurrency = 16

// PostLookup resolves pids to their legacy flag fields.
type PostLookup interface {
	// GetBundles returns one bundle per pid, in input order.
	GetBundles(ctx context.Context, pids []string) ([]legacy.FlagBundle, error)
}

// SortedSets reads legacy sorted sets.
type SortedSets interface {
	SortedSetRangeWithScores(ctx context.Context, key string, start, stop int64) ([]legacy.ScoredMember, error)
	SortedSetRange(ctx context.Context, key string, start, stop int64) ([]string, error)
}

// TransformerConfig wires a Transformer.
type TransformerConfig struct {
	Posts       PostLookup
	Sets        SortedSets
	Flags       flags.Service
	Progress    Progress
	Metrics     Metrics
	Logger      logger.Logger
	SystemActor string
	Concurrency int
}

// Transformer turns legacy flag fields into flags service calls.
type Transformer struct {
	posts       PostLookup
	sets        SortedSets
	flags       flags.Service
	progress    Progress
	metrics     Metrics
	logger      logger.Logger
	systemActor string
	concurrency int
}

// NewTransformer creates a Transformer. Zero values get defaults.
func NewTransformer(cfg *TransformerConfig) *Transformer {
	t := &Transformer{
		posts:       cfg.Posts,
		sets:        cfg.Sets,
		flags:       cfg.Flags,
		progress:    cfg.Progress,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		systemActor: cfg.SystemActor,
		concurrency: cfg.Concurrency,
	}
	if t.progress == nil {
		t.progress = MultiProgress()
	}
	if t.metrics == nil {
		t.metrics = nopMetrics{}
	}
	if t.systemActor == "" {
		t.systemActor = DefaultSystemActor
	}
	if t.concurrency <= 0 {
		t.concurrency = DefaultConcurrency
	}
	return t
}

// ProcessPage migrates every flagged post of a page. Items run concurrently.
// After the first fatal item error no further item starts; items already
// past Create finish their writes. The first fatal error is returned.
func (t *Transformer) ProcessPage(ctx context.Context, pids []string) error {
	bundles, err := t.posts.GetBundles(ctx, pids)
	if err != nil {
		return itemError("", KindBackendFault, err)
	}

	var (
		g       errgroup.Group
		aborted atomic.Bool
	)
	g.SetLimit(t.concurrency)

	for _, bundle := range bundles {
		if !bundle.HasMarker {
			continue
		}
		g.Go(func() error {
			t.progress.Incr()
			if aborted.Load() {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			err := t.migrateItem(ctx, bundle)
			if err != nil {
				aborted.Store(true)
				if !errors.Is(err, context.Canceled) {
					t.metrics.RecordOutcome(OutcomeFailed)
				}
			}
			return err
		})
	}

	return g.Wait()
}

func (t *Transformer) migrateItem(ctx context.Context, bundle legacy.FlagBundle) error {
	pid := bundle.PID

	var votes []legacy.ScoredMember
	var reasons []string

	fetch, fctx := errgroup.WithContext(ctx)
	fetch.Go(func() error {
		var err error
		votes, err = t.sets.SortedSetRangeWithScores(fctx, legacy.FlagVotesKey(pid), 0, -1)
		return err
	})
	fetch.Go(func() error {
		var err error
		reasons, err = t.sets.SortedSetRange(fctx, legacy.FlagReasonsKey(pid), 0, -1)
		return err
	})
	if err := fetch.Wait(); err != nil {
		return itemError(pid, KindBackendFault, err)
	}

	if len(votes) == 0 || len(reasons) == 0 {
		t.logger.Warn("skipping post with flag marker but no reports",
			logger.String("pid", pid),
			logger.Int("votes", len(votes)),
			logger.Int("reasons", len(reasons)))
		t.metrics.RecordOutcome(OutcomeSkipped)
		return nil
	}

	reporter := votes[0].Member
	datetime := int64(votes[0].Score)
	_, reason, _ := strings.Cut(reasons[0], ":")

	// Notes need a valid author before the flag exists. A re-run skips
	// existing flags, so nothing written after Create is retried.
	var noteEntry HistoryEntry
	if bundle.Notes != "" {
		entry, err := FirstNotesEntry(bundle.History)
		if err != nil {
			return itemError(pid, KindMalformedNoteHistory, err)
		}
		noteEntry = entry
	}

	flag, err := t.flags.Create(ctx, flags.TypePost, pid, reporter, reason, datetime)
	if errors.Is(err, flags.ErrAlreadyFlagged) {
		t.logger.Debug("post already migrated", logger.String("pid", pid))
		t.metrics.RecordOutcome(OutcomeAlreadyFlagged)
		return nil
	}
	if err != nil {
		return itemError(pid, classifyFlagError(err), err)
	}

	// State and notes are written even when the page is cancelled.
	wctx := context.WithoutCancel(ctx)

	if bundle.State != "" || bundle.Assignee != "" {
		patch := flags.Patch{
			State:    flags.State(bundle.State),
			Assignee: bundle.Assignee,
			Datetime: datetime,
		}
		if err := t.flags.Update(wctx, flag.ID, t.systemActor, patch); err != nil {
			return itemError(pid, classifyFlagError(err), err)
		}
	}

	if bundle.Notes != "" {
		if err := t.flags.AppendNote(wctx, flag.ID, noteEntry.UID, bundle.Notes, noteEntry.Timestamp); err != nil {
			return itemError(pid, classifyFlagError(err), err)
		}
	}

	t.logger.Debug("post migrated",
		logger.String("pid", pid),
		logger.Int64("flag_id", flag.ID),
		logger.String("reporter", reporter))
	t.metrics.RecordOutcome(OutcomeCreated)
	return nil
}

// classifyFlagError separates flags service rejections from infrastructure faults.
func classifyFlagError(err error) ErrorKind {
	if errors.Is(err, flags.ErrValidation) || errors.Is(err, flags.ErrFlagNotFound) {
		return KindDomainValidation
	}
	return KindBackendFault
}
