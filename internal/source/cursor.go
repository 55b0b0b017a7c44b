package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/redis/go-redis/v9"

	"airwatch/internal/types"
)

// CursorStore persists the CSV cursor, a single non-negative integer. Load
// returns 0 when no cursor has been saved yet.
type CursorStore interface {
	Load(ctx context.Context) (int, error)
	Save(ctx context.Context, index int) error
}

// FileCursorStore keeps the cursor as decimal text in a file. Writes go
// through a temp file and rename so a crash never leaves a torn value.
type FileCursorStore struct {
	path   string
	logger *slog.Logger
}

// NewFileCursorStore creates a FileCursorStore at path.
func NewFileCursorStore(path string, logger *slog.Logger) *FileCursorStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileCursorStore{path: path, logger: logger}
}

// Load reads the cursor. A missing file is cursor 0; so is unparseable
// content, which is logged.
func (s *FileCursorStore) Load(ctx context.Context) (int, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, types.NewAppError(types.ErrCodePersistIOFailure,
			fmt.Sprintf("failed to read cursor file %s", s.path), err)
	}
	return parseCursor(ctx, types.LoggerFromContext(ctx, s.logger), string(raw)), nil
}

// Save writes the cursor atomically.
func (s *FileCursorStore) Save(_ context.Context, index int) error {
	if err := renameio.WriteFile(s.path, []byte(strconv.Itoa(index)), 0o644); err != nil {
		return types.NewAppError(types.ErrCodePersistIOFailure,
			fmt.Sprintf("failed to write cursor file %s", s.path), err)
	}
	return nil
}

// redisKV is the subset of *redis.Client used by the redis-backed stores.
type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisCursorStore keeps the cursor under a redis key, for devices whose
// state lives in redis.
type RedisCursorStore struct {
	client redisKV
	key    string
	logger *slog.Logger
}

// NewRedisCursorStore creates a RedisCursorStore for key.
func NewRedisCursorStore(client redisKV, key string, logger *slog.Logger) *RedisCursorStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCursorStore{client: client, key: key, logger: logger}
}

// Load implements CursorStore.
func (s *RedisCursorStore) Load(ctx context.Context) (int, error) {
	raw, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, types.NewAppError(types.ErrCodePersistIOFailure, "failed to read cursor from redis", err).
			WithDetails(map[string]any{"key": s.key})
	}
	return parseCursor(ctx, types.LoggerFromContext(ctx, s.logger), raw), nil
}

// Save implements CursorStore. The key never expires.
func (s *RedisCursorStore) Save(ctx context.Context, index int) error {
	if err := s.client.Set(ctx, s.key, strconv.Itoa(index), 0).Err(); err != nil {
		return types.NewAppError(types.ErrCodePersistIOFailure, "failed to write cursor to redis", err).
			WithDetails(map[string]any{"key": s.key})
	}
	return nil
}

func parseCursor(ctx context.Context, logger *slog.Logger, raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		logger.WarnContext(ctx, "cursor value is not a non-negative integer, starting from 0",
			"value", raw,
		)
		return 0
	}
	return n
}
