package legacy

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/tphakala/flagmigrate/internal/errors"
	"github.com/tphakala/flagmigrate/internal/logger"
)

// ErrCursorNotFound is returned by NextPage when the resume key is no longer in posts:pid.
var ErrCursorNotFound = errors.NewStd("page cursor not found in keyspace")

// Config holds Redis connection settings for the legacy keyspace.
type Config struct {
	Addr           string
	Username       string
	Password       string
	DB             int
	PoolSize       int
	DialTimeout    time.Duration
	ConnectRetries uint64
}

// Store reads legacy flag data from Redis.
type Store struct {
	client redis.UniversalClient
	logger logger.Logger
}

// NewStore wraps an existing Redis client.
func NewStore(client redis.UniversalClient, log logger.Logger) *Store {
	return &Store{
		client: client,
		logger: log.Module("legacy"),
	}
}

// Connect opens a Redis client and pings it, retrying with exponential backoff.
func Connect(ctx context.Context, cfg Config, log logger.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	})

	store := NewStore(client, log)

	attempt := 0
	ping := func() error {
		attempt++
		err := client.Ping(ctx).Err()
		if err != nil {
			store.logger.Warn("redis ping failed",
				logger.String("addr", cfg.Addr),
				logger.Int("attempt", attempt),
				logger.Error(err))
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), cfg.ConnectRetries), ctx)
	if err := backoff.Retry(ping, policy); err != nil {
		_ = client.Close()
		return nil, errors.New(fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)).
			Component("legacy").
			Category(errors.CategoryLegacyStore).
			Context("operation", "connect").
			Build()
	}

	store.logger.Info("connected to legacy keyspace", logger.String("addr", cfg.Addr), logger.Int("db", cfg.DB))
	return store, nil
}

// Close closes the underlying Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Count returns the number of posts in posts:pid.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, PostsKey).Result()
	if err != nil {
		return 0, storeError(err, "count", PostsKey)
	}
	return n, nil
}

// NextPage returns up to limit pids from posts:pid ranked after afterKey.
// An empty afterKey starts from the beginning.
func (s *Store) NextPage(ctx context.Context, afterKey string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	var start int64
	if afterKey != "" {
		rank, err := s.client.ZRank(ctx, PostsKey, afterKey).Result()
		if errors.Is(err, redis.Nil) {
			return nil, storeError(fmt.Errorf("%w: %s", ErrCursorNotFound, afterKey), "next_page", PostsKey)
		}
		if err != nil {
			return nil, storeError(err, "next_page", PostsKey)
		}
		start = rank + 1
	}

	ids, err := s.client.ZRange(ctx, PostsKey, start, start+int64(limit)-1).Result()
	if err != nil {
		return nil, storeError(err, "next_page", PostsKey)
	}
	return ids, nil
}

// GetBundles fetches the legacy flag fields of every pid in one pipeline.
// The result is aligned with pids; posts that no longer exist yield a bundle
// without the marker.
func (s *Store) GetBundles(ctx context.Context, pids []string) ([]FlagBundle, error) {
	if len(pids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.SliceCmd, len(pids))
	for i, pid := range pids {
		cmds[i] = pipe.HMGet(ctx, PostKey(pid), bundleFields...)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, storeError(err, "get_bundles", PostKey("*"))
	}

	bundles := make([]FlagBundle, len(pids))
	for i, cmd := range cmds {
		values, err := cmd.Result()
		if err != nil {
			return nil, storeError(err, "get_bundles", PostKey(pids[i]))
		}
		bundles[i] = decodeBundle(pids[i], values)
	}
	return bundles, nil
}

// SortedSetRangeWithScores returns members with scores between ranks start and stop.
func (s *Store) SortedSetRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error) {
	zs, err := s.client.ZRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, storeError(err, "range_with_scores", key)
	}

	members := make([]ScoredMember, len(zs))
	for i, z := range zs {
		members[i] = ScoredMember{Member: stringValue(z.Member), Score: z.Score}
	}
	return members, nil
}

// SortedSetRange returns members between ranks start and stop.
func (s *Store) SortedSetRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	members, err := s.client.ZRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, storeError(err, "range", key)
	}
	return members, nil
}

func storeError(err error, operation, key string) error {
	return errors.New(fmt.Errorf("legacy %s on %s: %w", operation, key, err)).
		Component("legacy").
		Category(errors.CategoryLegacyStore).
		Context("operation", operation).
		Context("key", key).
		Build()
}
