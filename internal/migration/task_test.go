package migration

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/flagmigrate/internal/datastore"
	"github.com/tphakala/flagmigrate/internal/errors"
	"github.com/tphakala/flagmigrate/internal/flags"
	"github.com/tphakala/flagmigrate/internal/legacy"
)

type taskEnv struct {
	src     *fakeLegacy
	store   *flags.Store
	state   *datastore.StateManager
	metrics *fakeMetrics
}

func setupTaskEnv(t *testing.T) *taskEnv {
	t.Helper()

	mgr, err := datastore.NewSQLiteManager(&datastore.SQLiteConfig{Path: filepath.Join(t.TempDir(), "flags.db")}, false, newTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	require.NoError(t, mgr.Initialize())

	return &taskEnv{
		src:     newFakeLegacy(),
		store:   flags.NewStore(mgr.DB(), newTestLogger()),
		state:   datastore.NewStateManager(mgr.DB()),
		metrics: newFakeMetrics(),
	}
}

func (e *taskEnv) task(pageSize int, resume bool) *Task {
	return NewTask(&TaskConfig{
		Keyspace:    e.src,
		Posts:       e.src,
		Sets:        e.src,
		Flags:       e.store,
		Checkpoints: e.state,
		Metrics:     e.metrics,
		Logger:      newTestLogger(),
		PageSize:    pageSize,
		Resume:      resume,
	})
}

// seedScenarios loads the P1-P4 fixtures plus an unflagged post.
func seedScenarios(src *fakeLegacy) {
	src.addFlagged("P1", legacy.FlagBundle{FlagCount: 1})
	src.addVote("P1", "u1", 1000, "spam")

	src.addFlagged("P2", legacy.FlagBundle{FlagCount: 1, State: "resolved", Assignee: "u2"})
	src.addVote("P2", "u1", 1000, "spam")

	src.addFlagged("P3", legacy.FlagBundle{
		FlagCount: 1,
		Notes:     "looks bad",
		History:   `[{"type":"notes","uid":"u3","timestamp":2000}]`,
	})
	src.addVote("P3", "u1", 1000, "spam")

	src.addFlagged("P4", legacy.FlagBundle{FlagCount: 1})

	src.addPost("P5")
}

func TestTask_MigratesScenarios(t *testing.T) {
	env := setupTaskEnv(t)
	seedScenarios(env.src)
	ctx := t.Context()

	result, err := env.task(2, false).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(5), result.Total)
	assert.Equal(t, int64(5), result.Scanned)
	assert.Equal(t, int64(4), result.Attempted)
	assert.Equal(t, "P5", result.LastKey)
	assert.NotEmpty(t, result.RunID)

	n, err := env.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	p1, err := env.store.GetByTarget(ctx, flags.TypePost, "P1")
	require.NoError(t, err)
	assert.Equal(t, "u1", p1.Reporter)
	assert.Equal(t, "spam", p1.Reason)
	assert.Equal(t, int64(1000), p1.Datetime)
	assert.Equal(t, flags.StateOpen, p1.State)
	assert.Empty(t, p1.Notes)

	p2, err := env.store.GetByTarget(ctx, flags.TypePost, "P2")
	require.NoError(t, err)
	assert.Equal(t, flags.StateResolved, p2.State)
	assert.Equal(t, "u2", p2.Assignee)

	p3, err := env.store.GetByTarget(ctx, flags.TypePost, "P3")
	require.NoError(t, err)
	require.Len(t, p3.Notes, 1)
	assert.Equal(t, "u3", p3.Notes[0].UID)
	assert.Equal(t, "looks bad", p3.Notes[0].Content)
	assert.Equal(t, int64(2000), p3.Notes[0].Datetime)

	_, err = env.store.GetByTarget(ctx, flags.TypePost, "P4")
	require.ErrorIs(t, err, flags.ErrFlagNotFound)

	state, err := env.state.GetState()
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusCompleted, state.Status)
	assert.Equal(t, result.RunID, state.RunID)
	assert.Equal(t, int64(5), state.ProcessedItems)
	assert.Equal(t, int64(5), state.TotalItems)
	assert.Equal(t, "P5", state.LastKey)

	assert.Equal(t, 3, env.metrics.count(OutcomeCreated))
	assert.Equal(t, 1, env.metrics.count(OutcomeSkipped))
	assert.Equal(t, 3, env.metrics.pages)
	assert.Equal(t, int64(5), env.metrics.total)
}

func TestTask_RerunIsIdempotent(t *testing.T) {
	env := setupTaskEnv(t)
	seedScenarios(env.src)
	ctx := t.Context()

	_, err := env.task(2, false).Run(ctx)
	require.NoError(t, err)
	before, err := env.store.Count(ctx)
	require.NoError(t, err)
	p3, err := env.store.GetByTarget(ctx, flags.TypePost, "P3")
	require.NoError(t, err)

	_, err = env.task(2, false).Run(ctx)
	require.NoError(t, err)

	after, err := env.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 3, env.metrics.count(OutcomeAlreadyFlagged))

	// The second run must not append a duplicate note.
	again, err := env.store.Get(ctx, p3.ID)
	require.NoError(t, err)
	assert.Len(t, again.Notes, 1)
}

func TestTask_FailureHaltsAndResumes(t *testing.T) {
	env := setupTaskEnv(t)
	ctx := t.Context()

	for i := 1; i <= 6; i++ {
		pid := fmt.Sprintf("%d", i)
		env.src.addFlagged(pid, legacy.FlagBundle{})
		env.src.addVote(pid, "u1", float64(1000*i), "spam")
	}
	// Post 3 has notes but no notes entry in its history.
	bundle := env.src.bundles["3"]
	bundle.Notes = "orphan"
	env.src.bundles["3"] = bundle

	result, err := env.task(2, false).Run(ctx)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrMalformedNoteHistory)
	assert.Equal(t, "3", FailedItem(err))
	assert.Equal(t, "2", result.LastKey)

	// Page three was never requested.
	assert.Equal(t, []string{"", "2"}, env.src.pageCalls)

	state, err := env.state.GetState()
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusFailed, state.Status)
	assert.Equal(t, "3", state.FailedItem)
	assert.Equal(t, "2", state.LastKey)
	assert.Equal(t, int64(2), state.ProcessedItems)
	assert.Contains(t, state.ErrorMessage, "malformed note history")

	var ee *errors.EnhancedError
	require.True(t, errors.As(err, &ee))
	assert.True(t, errors.IsCategory(err, errors.CategoryMigration))
	errCtx := ee.GetContext()
	assert.Equal(t, "3", errCtx["pid"])
	assert.Equal(t, "flag_migration", errCtx["operation"])
	assert.Contains(t, errCtx, "duration_ms")

	// Fix the data and resume from the checkpoint.
	bundle.History = `[{"type":"notes","uid":"u9","timestamp":9000}]`
	env.src.bundles["3"] = bundle
	env.src.pageCalls = nil

	result, err = env.task(2, true).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "4", "6"}, env.src.pageCalls)
	assert.Equal(t, int64(6), result.Scanned)

	n, err := env.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	// The flag for post 3 was not created by the failed run, so its note lands now.
	p3, err := env.store.GetByTarget(ctx, flags.TypePost, "3")
	require.NoError(t, err)
	require.Len(t, p3.Notes, 1)
	assert.Equal(t, "u9", p3.Notes[0].UID)
	assert.Equal(t, "orphan", p3.Notes[0].Content)

	state, err = env.state.GetState()
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusCompleted, state.Status)
	assert.Empty(t, state.FailedItem)
}

func TestTask_RefusesConcurrentRun(t *testing.T) {
	env := setupTaskEnv(t)
	seedScenarios(env.src)

	_, err := env.state.Start("other-run", 5, false)
	require.NoError(t, err)

	_, err = env.task(2, false).Run(t.Context())
	require.ErrorIs(t, err, datastore.ErrMigrationRunning)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
	assert.Contains(t, err.Error(), "flag migration")
	assert.Empty(t, env.src.pageCalls)

	// The refusal must not disturb the run holding the checkpoint.
	state, err := env.state.GetState()
	require.NoError(t, err)
	assert.Equal(t, "other-run", state.RunID)
	assert.Equal(t, datastore.StatusRunning, state.Status)
}

// takeoverCheckpoints hands the checkpoint to another run before the first page is recorded.
type takeoverCheckpoints struct {
	*datastore.StateManager
	takenOver bool
}

func (c *takeoverCheckpoints) Checkpoint(runID, lastKey string, processedItems int64) error {
	if !c.takenOver {
		c.takenOver = true
		if err := c.Reset(); err != nil {
			return err
		}
		if _, err := c.Start("other-run", 0, false); err != nil {
			return err
		}
	}
	return c.StateManager.Checkpoint(runID, lastKey, processedItems)
}

func TestTask_LostCheckpointStopsRun(t *testing.T) {
	env := setupTaskEnv(t)
	seedScenarios(env.src)

	task := NewTask(&TaskConfig{
		Keyspace:    env.src,
		Posts:       env.src,
		Sets:        env.src,
		Flags:       env.store,
		Checkpoints: &takeoverCheckpoints{StateManager: env.state},
		Logger:      newTestLogger(),
		PageSize:    2,
	})
	_, err := task.Run(t.Context())
	require.ErrorIs(t, err, datastore.ErrCheckpointLost)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))

	// Only the first page ran.
	assert.Equal(t, []string{""}, env.src.pageCalls)

	// The other run keeps the checkpoint untouched.
	state, err := env.state.GetState()
	require.NoError(t, err)
	assert.Equal(t, "other-run", state.RunID)
	assert.Equal(t, datastore.StatusRunning, state.Status)
	assert.Empty(t, state.LastKey)
	assert.Empty(t, state.ErrorMessage)
}

func TestTask_CancelledRunIsRecordedAsFailed(t *testing.T) {
	env := setupTaskEnv(t)
	seedScenarios(env.src)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	// Count ignores the context in the fake, so the walker sees the cancellation.
	_, err := env.task(2, false).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	state, err := env.state.GetState()
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusFailed, state.Status)
}

func TestTask_WithoutCheckpoints(t *testing.T) {
	src := newFakeLegacy()
	seedScenarios(src)
	svc := newFakeFlags()
	progress := &Counter{}

	task := NewTask(&TaskConfig{
		Keyspace: src,
		Posts:    src,
		Sets:     src,
		Flags:    svc,
		Progress: progress,
		Logger:   newTestLogger(),
	})
	result, err := task.Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, int64(4), progress.Value())
	assert.Equal(t, int64(4), result.Attempted)
	assert.Equal(t, 3, svc.successfulCreates())
}

func TestTask_BundleFaultIsReported(t *testing.T) {
	src := newFakeLegacy()
	seedScenarios(src)
	src.bundleErr = errors.NewStd("redis down")

	task := NewTask(&TaskConfig{Keyspace: src, Posts: src, Sets: src, Flags: newFakeFlags(), Logger: newTestLogger()})
	_, err := task.Run(t.Context())
	require.ErrorIs(t, err, ErrBackendFault)
	assert.Contains(t, err.Error(), "redis down")
}
