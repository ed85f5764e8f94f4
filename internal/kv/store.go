package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/example/yinsee/internal/observability"
)

// Store is the JSON adapter over a Backend, scoped to one profile. Reads never
// fail: absent or malformed values resolve to the caller's default. Plain
// writes are best-effort; Commit is the only write that reports errors.
type Store struct {
	backend Backend
	profile string
	logger  *slog.Logger

	mu     sync.RWMutex
	subs   map[string]map[int]func(key string)
	nextID int
}

func New(backend Backend, profile string, logger *slog.Logger) *Store {
	if profile == "" {
		profile = "default"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backend,
		profile: profile,
		logger:  logger,
		subs:    make(map[string]map[int]func(string)),
	}
}

func (s *Store) Profile() string { return s.profile }

func (s *Store) Backend() Backend { return s.backend }

func (s *Store) fullKey(key string) string { return s.profile + ":" + key }

// Lookup decodes key into a T. ok is false when the key is absent, the backend
// failed, or the stored value is not valid JSON for T.
func Lookup[T any](ctx context.Context, s *Store, key string) (T, bool) {
	var zero T
	raw, found, err := s.backend.Get(ctx, s.fullKey(key))
	if err != nil {
		observability.KVReadFallbacks.WithLabelValues("backend_error").Inc()
		s.logger.Warn("kv read failed", "key", key, "error", err)
		return zero, false
	}
	if !found {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		observability.KVReadFallbacks.WithLabelValues("malformed").Inc()
		s.logger.Warn("kv value malformed", "key", key, "error", err)
		return zero, false
	}
	return v, true
}

// Read returns def when Lookup finds nothing usable.
func Read[T any](ctx context.Context, s *Store, key string, def T) T {
	if v, ok := Lookup[T](ctx, s, key); ok {
		return v
	}
	return def
}

// Write overwrites key with the JSON encoding of v. Failures are logged and
// dropped.
func (s *Store) Write(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.writeFailed("encode", key, err)
		return
	}
	if err := s.backend.Set(ctx, s.fullKey(key), raw); err != nil {
		s.writeFailed("set", key, err)
		return
	}
	s.notify(key)
}

// Remove deletes keys, best-effort.
func (s *Store) Remove(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, s.fullKey(k))
	}
	if err := s.backend.Delete(ctx, full...); err != nil {
		s.writeFailed("delete", strings.Join(keys, ","), err)
		return
	}
	for _, k := range keys {
		s.notify(k)
	}
}

// Commit applies every staged write in b or none of them.
func (s *Store) Commit(ctx context.Context, b *Batch) error {
	if b.err != nil {
		return b.err
	}
	if len(b.ops) == 0 {
		return nil
	}
	ops := make([]Op, 0, len(b.ops))
	for _, op := range b.ops {
		op.Key = s.fullKey(op.Key)
		ops = append(ops, op)
	}
	if err := s.backend.Apply(ctx, ops); err != nil {
		observability.KVWriteFailures.WithLabelValues("commit").Inc()
		return fmt.Errorf("commit %s: %w", strings.Join(b.Keys(), ","), err)
	}
	for _, k := range b.Keys() {
		s.notify(k)
	}
	return nil
}

// Subscribe registers fn for writes to key. fn runs synchronously on the
// writer's goroutine; subscribers of the same key are called in no fixed order.
func (s *Store) Subscribe(key string, fn func(key string)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	if s.subs[key] == nil {
		s.subs[key] = make(map[int]func(string))
	}
	s.subs[key][id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[key], id)
		if len(s.subs[key]) == 0 {
			delete(s.subs, key)
		}
	}
}

// Watch forwards changes made by other processes into the local subscribers.
// It returns immediately when the backend cannot report remote writes.
func (s *Store) Watch(ctx context.Context) error {
	w, ok := s.backend.(Watcher)
	if !ok {
		return nil
	}
	prefix := s.profile + ":"
	return w.Watch(ctx, func(full string) {
		if key, ok := strings.CutPrefix(full, prefix); ok {
			s.notify(key)
		}
	})
}

func (s *Store) notify(key string) {
	s.mu.RLock()
	fns := make([]func(string), 0, len(s.subs[key]))
	for _, fn := range s.subs[key] {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(key)
	}
}

func (s *Store) writeFailed(op, key string, err error) {
	observability.KVWriteFailures.WithLabelValues(op).Inc()
	s.logger.Warn("kv write dropped", "op", op, "key", key, "error", err)
}
