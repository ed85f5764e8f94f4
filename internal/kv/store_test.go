package kv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID      string    `json:"id"`
	Credits int       `json:"walletCredits"`
	At      time.Time `json:"createdAt"`
}

// flakyBackend fails writes on demand and otherwise defers to memory.
type flakyBackend struct {
	*MemoryBackend
	failSet   error
	failApply error
}

func (f *flakyBackend) Set(ctx context.Context, key string, v []byte) error {
	if f.failSet != nil {
		return f.failSet
	}
	return f.MemoryBackend.Set(ctx, key, v)
}

func (f *flakyBackend) Apply(ctx context.Context, ops []Op) error {
	if f.failApply != nil {
		return f.failApply
	}
	return f.MemoryBackend.Apply(ctx, ops)
}

func TestReadDefaultsWhenAbsent(t *testing.T) {
	s := New(NewMemoryBackend(), "p1", nil)
	got := Read(context.Background(), s, "requests", []record{{ID: "seed"}})
	require.Len(t, got, 1)
	assert.Equal(t, "seed", got[0].ID)
}

func TestReadDefaultsWhenMalformed(t *testing.T) {
	mem := NewMemoryBackend()
	require.NoError(t, mem.Set(context.Background(), "p1:provider", []byte("{not json")))
	s := New(mem, "p1", nil)

	_, ok := Lookup[record](context.Background(), s, "provider")
	assert.False(t, ok)
	assert.Equal(t, record{ID: "fallback"}, Read(context.Background(), s, "provider", record{ID: "fallback"}))
}

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryBackend(), "p1", nil)
	in := record{ID: "P-ABCDE-F", Credits: 20, At: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	s.Write(ctx, "provider", in)

	out, ok := Lookup[record](ctx, s, "provider")
	require.True(t, ok)
	assert.Equal(t, in, out)
}

func TestProfilesAreIsolated(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryBackend()
	a := New(mem, "a", nil)
	b := New(mem, "b", nil)
	a.Write(ctx, "provider", record{ID: "A"})

	_, ok := Lookup[record](ctx, b, "provider")
	assert.False(t, ok)
}

func TestWriteFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	fb := &flakyBackend{MemoryBackend: NewMemoryBackend(), failSet: errors.New("quota exceeded")}
	s := New(fb, "p1", nil)

	notified := 0
	s.Subscribe("provider", func(string) { notified++ })
	s.Write(ctx, "provider", record{ID: "A"})

	_, ok := Lookup[record](ctx, s, "provider")
	assert.False(t, ok)
	assert.Zero(t, notified)
}

func TestCommitAllOrNothing(t *testing.T) {
	ctx := context.Background()
	fb := &flakyBackend{MemoryBackend: NewMemoryBackend()}
	s := New(fb, "p1", nil)
	s.Write(ctx, "a", 1)

	var b Batch
	b.Put("a", 2)
	b.Put("b", 3)
	fb.failApply = errors.New("tx aborted")
	require.Error(t, s.Commit(ctx, &b))
	assert.Equal(t, 1, Read(ctx, s, "a", 0))
	assert.Equal(t, 0, Read(ctx, s, "b", 0))

	fb.failApply = nil
	require.NoError(t, s.Commit(ctx, &b))
	assert.Equal(t, 2, Read(ctx, s, "a", 0))
	assert.Equal(t, 3, Read(ctx, s, "b", 0))
}

func TestCommitEncodeErrorAppliesNothing(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryBackend(), "p1", nil)
	var b Batch
	b.Put("a", 1)
	b.Put("bad", func() {})
	require.Error(t, s.Commit(ctx, &b))
	assert.Equal(t, 0, Read(ctx, s, "a", 0))
}

func TestSubscribeNotifiesPerKey(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryBackend(), "p1", nil)

	var seen []string
	cancel := s.Subscribe("provider", func(k string) { seen = append(seen, k) })
	s.Subscribe("requests", func(k string) { seen = append(seen, "other:"+k) })

	s.Write(ctx, "provider", record{ID: "A"})
	s.Remove(ctx, "provider")
	var b Batch
	b.Put("provider", record{ID: "B"})
	require.NoError(t, s.Commit(ctx, &b))
	assert.Equal(t, []string{"provider", "provider", "provider"}, seen)

	cancel()
	s.Write(ctx, "provider", record{ID: "C"})
	assert.Len(t, seen, 3)
}

func TestBatchKeysDeduplicated(t *testing.T) {
	var b Batch
	b.Put("provider", 1)
	b.Put("requests", 2)
	b.Delete("provider")
	assert.Equal(t, []string{"provider", "requests"}, b.Keys())
	assert.Equal(t, 3, b.Len())
}

func TestWatchWithoutWatcherReturns(t *testing.T) {
	s := New(NewMemoryBackend(), "p1", nil)
	assert.NoError(t, s.Watch(context.Background()))
}

func TestParseChange(t *testing.T) {
	origin, key, ok := parseChange(formatChange("o1", "p1:provider"))
	require.True(t, ok)
	assert.Equal(t, "o1", origin)
	assert.Equal(t, "p1:provider", key)

	_, _, ok = parseChange("garbage")
	assert.False(t, ok)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "etcd"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
