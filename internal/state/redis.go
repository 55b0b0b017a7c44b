package state

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"airwatch/internal/types"
)

// redisKV is the subset of *redis.Client used by RedisStore.
type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisStore keeps the record under a single redis key. SET replaces the
// value atomically.
type RedisStore struct {
	client redisKV
	key    string
}

// NewRedisStore creates a RedisStore for key.
func NewRedisStore(client redisKV, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

// Persist implements Persister. The key never expires.
func (s *RedisStore) Persist(ctx context.Context, record types.PersistedState) error {
	data, err := Encode(record)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return types.NewAppError(types.ErrCodePersistIOFailure, "failed to write state to redis", err).
			WithDetails(map[string]any{"key": s.key})
	}
	return nil
}

// Read implements Reader.
func (s *RedisStore) Read(ctx context.Context) (types.PersistedState, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.PersistedState{}, ErrNoState
	}
	if err != nil {
		return types.PersistedState{}, types.NewAppError(types.ErrCodePersistIOFailure, "failed to read state from redis", err).
			WithDetails(map[string]any{"key": s.key})
	}
	return Decode(data)
}
