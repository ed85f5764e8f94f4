package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Backend is the raw persistent map behind a Store. Keys arrive already
// namespaced by profile.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	// Apply writes every op or none of them.
	Apply(ctx context.Context, ops []Op) error
	Close() error
}

// Watcher is implemented by backends that can report writes made by other
// processes sharing the same data. fn receives the namespaced key.
type Watcher interface {
	Watch(ctx context.Context, fn func(key string)) error
}

// Op is a single staged write. Delete ops ignore Value.
type Op struct {
	Key    string
	Value  []byte
	Delete bool
}

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type Options struct {
	Backend       string
	RedisURL      string
	RedisPassword string
	PGDSN         string
	SQLiteDir     string
	Migrate       bool
}

var ErrUnknownBackend = errors.New("unknown kv backend")

// Open builds the backend named in opts.
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendMemory:
		return NewMemoryBackend(), nil
	case BackendRedis:
		client, err := Connect(ctx, opts.RedisURL, opts.RedisPassword)
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return NewRedisBackend(client), nil
	case BackendPostgres:
		return OpenPostgres(ctx, opts.PGDSN, opts.Migrate)
	case BackendSQLite:
		return OpenSQLite(ctx, opts.SQLiteDir)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
