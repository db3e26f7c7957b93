package migration

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededSource(n int) *fakeLegacy {
	src := newFakeLegacy()
	for i := range n {
		src.addPost(fmt.Sprintf("%03d", i+1))
	}
	return src
}

func TestWalker_PagesInOrder(t *testing.T) {
	src := seededSource(7)

	var pages [][]string
	w := NewWalker(src, newTestLogger())
	err := w.Run(t.Context(), 3, func(_ context.Context, ids []string) error {
		pages = append(pages, ids)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"001", "002", "003"},
		{"004", "005", "006"},
		{"007"},
	}, pages)
	// The short last page ends the walk without another fetch.
	assert.Equal(t, []string{"", "003", "006"}, src.pageCalls)
}

func TestWalker_ExactMultipleEndsOnEmptyPage(t *testing.T) {
	src := seededSource(4)

	calls := 0
	err := NewWalker(src, newTestLogger()).Run(t.Context(), 2, func(context.Context, []string) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"", "002", "004"}, src.pageCalls)
}

func TestWalker_EmptyKeyspace(t *testing.T) {
	src := seededSource(0)

	err := NewWalker(src, newTestLogger()).Run(t.Context(), 10, func(context.Context, []string) error {
		t.Fatal("onPage must not be called")
		return nil
	})
	require.NoError(t, err)
}

func TestWalker_StopsOnFirstPageError(t *testing.T) {
	src := seededSource(10)
	boom := errors.New("boom")

	calls := 0
	err := NewWalker(src, newTestLogger()).Run(t.Context(), 2, func(_ context.Context, ids []string) error {
		calls++
		if ids[0] == "003" {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"", "002"}, src.pageCalls)
}

func TestWalker_StartAfter(t *testing.T) {
	src := seededSource(5)

	var seen []string
	w := NewWalker(src, newTestLogger(), WithStartAfter("002"))
	err := w.Run(t.Context(), 10, func(_ context.Context, ids []string) error {
		seen = append(seen, ids...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"003", "004", "005"}, seen)
}

func TestWalker_SourceErrorIsBackendFault(t *testing.T) {
	src := seededSource(3)
	src.pageErr = errors.New("redis down")

	err := NewWalker(src, newTestLogger()).Run(t.Context(), 2, func(context.Context, []string) error { return nil })
	require.ErrorIs(t, err, ErrBackendFault)
}

func TestWalker_DefaultPageSize(t *testing.T) {
	src := seededSource(DefaultPageSize + 1)

	var sizes []int
	err := NewWalker(src, newTestLogger()).Run(t.Context(), 0, func(_ context.Context, ids []string) error {
		sizes = append(sizes, len(ids))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{DefaultPageSize, 1}, sizes)
}

func TestWalker_CancelledBetweenPages(t *testing.T) {
	src := seededSource(10)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	calls := 0
	w := NewWalker(src, newTestLogger(), WithSleepBetween(time.Hour))
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, 2, func(context.Context, []string) error {
			calls++
			return nil
		})
	}()

	// The walker is parked in its sleep after the first page.
	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return len(src.pageCalls) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("walker did not stop after cancellation")
	}
	assert.Equal(t, 1, calls)
}

func TestWalker_CancelledBeforeStart(t *testing.T) {
	src := seededSource(3)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := NewWalker(src, newTestLogger()).Run(ctx, 2, func(context.Context, []string) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, src.pageCalls)
}
