package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/raphaelgruber/nutristat/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	redisResultPrefix = "nutristat:result:"
	// Sorted set of stored job ids, scored by id, for MaxID and Wipe.
	redisIndexKey = "nutristat:results"
	// Highest job id handed out.
	redisLastIDKey = "nutristat:last_job_id"
)

// RedisStore keeps results as Redis strings keyed by job id.
type RedisStore struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, opts *redis.Options, logger *slog.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	logger.Info("connected to redis", "addr", opts.Addr, "db", opts.DB)
	return &RedisStore{rdb: rdb, logger: logger}, nil
}

func redisKey(id models.JobID) string {
	return redisResultPrefix + strconv.FormatInt(int64(id), 10)
}

// Put stores the payload and indexes the id in one MULTI/EXEC.
func (s *RedisStore) Put(ctx context.Context, id models.JobID, payload []byte) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisKey(id), payload, 0)
		pipe.ZAdd(ctx, redisIndexKey, redis.Z{Score: float64(id), Member: int64(id)})
		return nil
	})
	if err != nil {
		return fmt.Errorf("put result %d: %w", id, err)
	}
	return nil
}

// ReserveID sets the reservation mark to id.
func (s *RedisStore) ReserveID(ctx context.Context, id models.JobID) error {
	if err := s.rdb.Set(ctx, redisLastIDKey, int64(id), 0).Err(); err != nil {
		return fmt.Errorf("reserve job id %d: %w", id, err)
	}
	return nil
}

// Get fetches the payload for id.
func (s *RedisStore) Get(ctx context.Context, id models.JobID) ([]byte, error) {
	data, err := s.rdb.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result %d: %w", id, err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}
	return data, nil
}

// Exists uses STRLEN, which is 0 for both missing and empty values.
func (s *RedisStore) Exists(ctx context.Context, id models.JobID) (bool, error) {
	n, err := s.rdb.StrLen(ctx, redisKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("check result %d: %w", id, err)
	}
	return n > 0, nil
}

// MaxID reads the highest score from the id index and the reservation mark.
func (s *RedisStore) MaxID(ctx context.Context) (models.JobID, error) {
	last, err := s.rdb.Get(ctx, redisLastIDKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("read reservation mark: %w", err)
	}

	top, err := s.rdb.ZRevRangeWithScores(ctx, redisIndexKey, 0, 0).Result()
	if err != nil {
		return 0, fmt.Errorf("read result index: %w", err)
	}
	maxID := models.JobID(last)
	if len(top) > 0 {
		maxID = max(maxID, models.JobID(top[0].Score))
	}
	return maxID, nil
}

// Wipe deletes every indexed result, the index and the reservation mark.
func (s *RedisStore) Wipe(ctx context.Context) error {
	members, err := s.rdb.ZRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("read result index: %w", err)
	}

	keys := make([]string, 0, len(members)+2)
	for _, m := range members {
		keys = append(keys, redisResultPrefix+m)
	}
	keys = append(keys, redisIndexKey, redisLastIDKey)

	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("wipe results: %w", err)
	}
	s.logger.Warn("wiped redis results", "count", len(members))
	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close(context.Context) error {
	return s.rdb.Close()
}
