package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T, dir string) *SQLBackend {
	t.Helper()
	b, err := OpenSQLite(context.Background(), dir)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestSQLiteSetGetDelete(t *testing.T) {
	ctx := context.Background()
	b := openTestSQLite(t, ":memory:")

	_, found, err := b.Get(ctx, "p:provider")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, b.Set(ctx, "p:provider", []byte(`{"id":"A"}`)))
	require.NoError(t, b.Set(ctx, "p:provider", []byte(`{"id":"B"}`)))
	v, found, err := b.Get(ctx, "p:provider")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"id":"B"}`, string(v))

	require.NoError(t, b.Delete(ctx, "p:provider"))
	_, found, err = b.Get(ctx, "p:provider")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteApplyInOneTransaction(t *testing.T) {
	ctx := context.Background()
	b := openTestSQLite(t, ":memory:")
	require.NoError(t, b.Set(ctx, "p:gone", []byte(`1`)))

	require.NoError(t, b.Apply(ctx, []Op{
		{Key: "p:a", Value: []byte(`1`)},
		{Key: "p:b", Value: []byte(`2`)},
		{Key: "p:gone", Delete: true},
	}))

	for key, want := range map[string]string{"p:a": "1", "p:b": "2"} {
		v, found, err := b.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, found, key)
		assert.Equal(t, want, string(v))
	}
	_, found, err := b.Get(ctx, "p:gone")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLitePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := OpenSQLite(ctx, dir)
	require.NoError(t, err)
	s := New(first, "p1", nil)
	s.Write(ctx, "provider", record{ID: "P-ABCDE-F", Credits: 25})
	require.NoError(t, first.Close())

	second := openTestSQLite(t, dir)
	got, ok := Lookup[record](ctx, New(second, "p1", nil), "provider")
	require.True(t, ok)
	assert.Equal(t, 25, got.Credits)
}

func TestRebindPostgres(t *testing.T) {
	pg := &SQLBackend{dialect: dialectPostgres}
	assert.Equal(t, "DELETE FROM kv_entries WHERE entry_key = $1", pg.rebind(deleteEntry))

	lite := &SQLBackend{dialect: dialectSQLite}
	assert.Equal(t, deleteEntry, lite.rebind(deleteEntry))
}
