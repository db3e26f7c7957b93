//go:build integration

// Integration tests against a throwaway Redis container.
// Run with: go test -tags=integration ./internal/legacy/...
package legacy

import (
	"context"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tphakala/flagmigrate/internal/logger"
)

func startRedis(t *testing.T) (*Store, *redis.Client) {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
	store, err := Connect(ctx, Config{Addr: endpoint, ConnectRetries: 5}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	raw := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = raw.Close() })
	return store, raw
}

func TestStore_NextPageWalksInRankOrder(t *testing.T) {
	store, raw := startRedis(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, raw.ZAdd(ctx, PostsKey, redis.Z{Score: float64(i * 100), Member: strconv.Itoa(i)}).Err())
	}

	page, err := store.NextPage(ctx, "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, page)

	page, err = store.NextPage(ctx, "2", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "4"}, page)

	page, err = store.NextPage(ctx, "4", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"5"}, page)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	_, err = store.NextPage(ctx, "missing", 2)
	require.ErrorIs(t, err, ErrCursorNotFound)
}

func TestStore_GetBundlesAndRanges(t *testing.T) {
	store, raw := startRedis(t)
	ctx := context.Background()

	require.NoError(t, raw.HSet(ctx, PostKey("1"), map[string]any{
		"content":         "hello",
		FieldFlagMarker:   "1",
		FieldFlagState:    "resolved",
		FieldFlagAssignee: "2",
		FieldFlagNotes:    "looks bad",
	}).Err())
	require.NoError(t, raw.HSet(ctx, PostKey("2"), "content", "clean").Err())
	require.NoError(t, raw.ZAdd(ctx, FlagVotesKey("1"),
		redis.Z{Score: 1000, Member: "7"},
		redis.Z{Score: 2000, Member: "8"}).Err())
	require.NoError(t, raw.ZAdd(ctx, FlagReasonsKey("1"), redis.Z{Score: 1000, Member: "7:spam: really"}).Err())

	bundles, err := store.GetBundles(ctx, []string{"1", "2", "3"})
	require.NoError(t, err)
	require.Len(t, bundles, 3)

	assert.True(t, bundles[0].HasMarker)
	assert.Equal(t, "resolved", bundles[0].State)
	assert.Equal(t, "looks bad", bundles[0].Notes)
	assert.False(t, bundles[1].HasMarker)
	assert.Equal(t, FlagBundle{PID: "3"}, bundles[2])

	votes, err := store.SortedSetRangeWithScores(ctx, FlagVotesKey("1"), 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []ScoredMember{{Member: "7", Score: 1000}, {Member: "8", Score: 2000}}, votes)

	reasons, err := store.SortedSetRange(ctx, FlagReasonsKey("1"), 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"7:spam: really"}, reasons)
}
