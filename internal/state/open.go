package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"airwatch/internal/db"
)

// Backend kinds.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

const (
	redisDialTimeout  = 5 * time.Second
	redisReadTimeout  = 3 * time.Second
	redisWriteTimeout = 3 * time.Second
)

// OpenConfig selects and parameterizes a state backend.
type OpenConfig struct {
	Backend string
	// Path is the record file for the file backend.
	Path          string
	RedisAddr     string
	RedisPassword string
	// RedisKey is the key prefix; the record lives at <prefix>:state.
	RedisKey    string
	DatabaseURL string
	Device      string
	Logger      *slog.Logger
}

// KeyPrefix returns the redis key prefix, defaulting to airwatch:<device>.
func (c OpenConfig) KeyPrefix() string {
	if c.RedisKey != "" {
		return c.RedisKey
	}
	return "airwatch:" + c.Device
}

// Opened is an open backend. Redis is set for the redis backend so callers can
// share the connection.
type Opened struct {
	Store Store
	Redis *redis.Client

	closeFn func()
}

// Close releases backend connections.
func (o *Opened) Close() {
	if o.closeFn != nil {
		o.closeFn()
	}
}

// Open connects the configured backend. An empty backend means file.
func Open(ctx context.Context, cfg OpenConfig) (*Opened, error) {
	switch cfg.Backend {
	case "", BackendFile:
		if cfg.Path == "" {
			return nil, errors.New("state: file backend requires a path")
		}
		return &Opened{Store: NewFileStore(cfg.Path)}, nil

	case BackendRedis:
		client, err := NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		return &Opened{
			Store:   NewRedisStore(client, cfg.KeyPrefix()+":state"),
			Redis:   client,
			closeFn: func() { _ = client.Close() },
		}, nil

	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("state: postgres backend requires DATABASE_URL")
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("state: create database pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("state: ping database: %w", err)
		}
		repo := db.NewDeviceStateRepo(pool, cfg.Logger)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return &Opened{
			Store:   NewPostgresStore(repo, cfg.Device),
			closeFn: pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("state: unknown backend %q", cfg.Backend)
	}
}

// NewRedisClient returns a go-redis client and validates the connection with PING.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("state: redis addr is empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  redisDialTimeout,
		ReadTimeout:  redisReadTimeout,
		WriteTimeout: redisWriteTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("state: ping redis %s: %w", addr, err)
	}
	return client, nil
}
