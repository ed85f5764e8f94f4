package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const changeChannel = "kv:changes"

// Connect initializes a Redis client from a redis:// URL or a host:port address.
func Connect(_ context.Context, redisURL, password string) (*redis.Client, error) {
	if redisURL == "" {
		redisURL = "localhost:6379"
	}
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		if password != "" {
			opt.Password = password
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL, Password: password}), nil
}

// RedisBackend stores each entry as a plain string key. Every write is
// announced on a pub/sub channel tagged with this backend's origin so other
// processes can refresh.
type RedisBackend struct {
	client *redis.Client
	origin string
}

func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client, origin: uuid.NewString()}
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return err
	}
	r.announce(ctx, key)
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return err
	}
	r.announce(ctx, keys...)
	return nil
}

// Apply queues every op inside MULTI/EXEC.
func (r *RedisBackend) Apply(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, op := range ops {
			if op.Delete {
				p.Del(ctx, op.Key)
				continue
			}
			p.Set(ctx, op.Key, op.Value, 0)
		}
		return nil
	})
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(ops))
	for _, op := range ops {
		keys = append(keys, op.Key)
	}
	r.announce(ctx, keys...)
	return nil
}

func (r *RedisBackend) Close() error { return r.client.Close() }

// Watch blocks until ctx is done, calling fn for every key written by another
// origin.
func (r *RedisBackend) Watch(ctx context.Context, fn func(key string)) error {
	sub := r.client.Subscribe(ctx, changeChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", changeChannel, err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			origin, key, ok := parseChange(msg.Payload)
			if !ok || origin == r.origin {
				continue
			}
			fn(key)
		}
	}
}

// announcements are advisory; a failed publish only means other processes
// refresh later.
func (r *RedisBackend) announce(ctx context.Context, keys ...string) {
	for _, k := range keys {
		_ = r.client.Publish(ctx, changeChannel, formatChange(r.origin, k)).Err()
	}
}

func formatChange(origin, key string) string { return origin + "|" + key }

func parseChange(payload string) (origin, key string, ok bool) {
	origin, key, ok = strings.Cut(payload, "|")
	if !ok || origin == "" || key == "" {
		return "", "", false
	}
	return origin, key, true
}
