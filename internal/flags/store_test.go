package flags

import (
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tphakala/flagmigrate/internal/logger"
)

func newTestLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
}

// setupStore opens a migrated SQLite database in a temp dir.
func setupStore(t *testing.T) *Store {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "flags.db") + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(Models()...))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewStore(db, newTestLogger())
}

func TestStore_Create(t *testing.T) {
	store := setupStore(t)
	ctx := t.Context()

	flag, err := store.Create(ctx, TypePost, "1", "u1", "spam", 1000)
	require.NoError(t, err)
	assert.NotZero(t, flag.ID)
	assert.Equal(t, StateOpen, flag.State)

	got, err := store.GetByTarget(ctx, TypePost, "1")
	require.NoError(t, err)
	assert.Equal(t, flag.ID, got.ID)
	assert.Equal(t, "u1", got.Reporter)
	assert.Equal(t, "spam", got.Reason)
	assert.Equal(t, int64(1000), got.Datetime)
}

func TestStore_CreateRejectsDuplicateTarget(t *testing.T) {
	store := setupStore(t)
	ctx := t.Context()

	_, err := store.Create(ctx, TypePost, "1", "u1", "spam", 1000)
	require.NoError(t, err)

	_, err = store.Create(ctx, TypePost, "1", "u9", "other", 5000)
	require.ErrorIs(t, err, ErrAlreadyFlagged)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStore_CreateConcurrentSameTarget(t *testing.T) {
	store := setupStore(t)
	ctx := t.Context()

	const writers = 8
	var wg sync.WaitGroup
	results := make([]error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = store.Create(ctx, TypePost, "42", "u1", "spam", 1000)
		}()
	}
	wg.Wait()

	var created, duplicates int
	for _, err := range results {
		switch {
		case err == nil:
			created++
		case assert.ErrorIs(t, err, ErrAlreadyFlagged):
			duplicates++
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, writers-1, duplicates)
}

func TestStore_CreateValidation(t *testing.T) {
	store := setupStore(t)

	tests := []struct {
		name       string
		targetType string
		targetID   string
		reporter   string
		datetime   int64
	}{
		{"unsupported type", "user", "1", "u1", 1000},
		{"empty target", TypePost, "", "u1", 1000},
		{"empty reporter", TypePost, "1", "", 1000},
		{"zero datetime", TypePost, "1", "u1", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Create(t.Context(), tt.targetType, tt.targetID, tt.reporter, "spam", tt.datetime)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestStore_Update(t *testing.T) {
	store := setupStore(t)
	ctx := t.Context()

	flag, err := store.Create(ctx, TypePost, "2", "u1", "spam", 1000)
	require.NoError(t, err)

	err = store.Update(ctx, flag.ID, "1", Patch{State: StateResolved, Assignee: "u2", Datetime: 1000})
	require.NoError(t, err)

	got, err := store.Get(ctx, flag.ID)
	require.NoError(t, err)
	assert.Equal(t, StateResolved, got.State)
	assert.Equal(t, "u2", got.Assignee)

	history, err := store.History(ctx, flag.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "state", history[0].Attribute)
	assert.Equal(t, "resolved", history[0].Value)
	assert.Equal(t, "assignee", history[1].Attribute)
	assert.Equal(t, "1", history[1].UID)
}

func TestStore_UpdateOnlyAssignee(t *testing.T) {
	store := setupStore(t)
	ctx := t.Context()

	flag, err := store.Create(ctx, TypePost, "2", "u1", "spam", 1000)
	require.NoError(t, err)

	require.NoError(t, store.Update(ctx, flag.ID, "1", Patch{Assignee: "u5", Datetime: 1000}))

	got, err := store.Get(ctx, flag.ID)
	require.NoError(t, err)
	assert.Equal(t, StateOpen, got.State)
	assert.Equal(t, "u5", got.Assignee)
}

func TestStore_UpdateErrors(t *testing.T) {
	store := setupStore(t)
	ctx := t.Context()

	flag, err := store.Create(ctx, TypePost, "3", "u1", "spam", 1000)
	require.NoError(t, err)

	err = store.Update(ctx, flag.ID, "1", Patch{State: "bogus", Datetime: 1000})
	require.ErrorIs(t, err, ErrInvalidState)
	require.ErrorIs(t, err, ErrValidation)

	err = store.Update(ctx, 9999, "1", Patch{State: StateWIP, Datetime: 1000})
	require.ErrorIs(t, err, ErrFlagNotFound)

	require.NoError(t, store.Update(ctx, flag.ID, "1", Patch{Datetime: 1000}))
}

func TestStore_AppendNote(t *testing.T) {
	store := setupStore(t)
	ctx := t.Context()

	flag, err := store.Create(ctx, TypePost, "4", "u1", "spam", 1000)
	require.NoError(t, err)

	require.NoError(t, store.AppendNote(ctx, flag.ID, "u3", "looks bad", 2000))

	got, err := store.Get(ctx, flag.ID)
	require.NoError(t, err)
	require.Len(t, got.Notes, 1)
	assert.Equal(t, Note{ID: got.Notes[0].ID, FlagID: flag.ID, UID: "u3", Content: "looks bad", Datetime: 2000}, got.Notes[0])

	history, err := store.History(ctx, flag.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "notes", history[0].Attribute)

	require.ErrorIs(t, store.AppendNote(ctx, flag.ID, "u3", "", 2000), ErrValidation)
	require.ErrorIs(t, store.AppendNote(ctx, 9999, "u3", "text", 2000), ErrFlagNotFound)
}

func TestStore_GetMissing(t *testing.T) {
	store := setupStore(t)

	_, err := store.Get(t.Context(), 1)
	require.ErrorIs(t, err, ErrFlagNotFound)

	_, err = store.GetByTarget(t.Context(), TypePost, "missing")
	require.ErrorIs(t, err, ErrFlagNotFound)
}

func TestStateValid(t *testing.T) {
	for _, s := range []State{StateOpen, StateWIP, StateResolved, StateRejected} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, State("closed").Valid())
	assert.False(t, State("").Valid())
}
