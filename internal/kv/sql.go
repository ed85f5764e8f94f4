package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

var schema = map[dialect]string{
	dialectPostgres: `CREATE TABLE IF NOT EXISTS kv_entries (
		entry_key   TEXT PRIMARY KEY,
		entry_value TEXT NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	dialectSQLite: `CREATE TABLE IF NOT EXISTS kv_entries (
		entry_key   TEXT PRIMARY KEY,
		entry_value TEXT NOT NULL,
		updated_at  DATETIME NOT NULL
	)`,
}

const (
	selectEntry = `SELECT entry_value FROM kv_entries WHERE entry_key = ?`
	upsertEntry = `INSERT INTO kv_entries (entry_key, entry_value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (entry_key) DO UPDATE SET entry_value = excluded.entry_value, updated_at = excluded.updated_at`
	deleteEntry = `DELETE FROM kv_entries WHERE entry_key = ?`
)

// SQLBackend keeps entries in a single kv_entries table. Postgres and SQLite
// share the same statements apart from placeholder syntax.
type SQLBackend struct {
	db      *sql.DB
	dialect dialect
}

// OpenPostgres connects with lib/pq. The table is created only when migrate is set.
func OpenPostgres(ctx context.Context, dsn string, migrate bool) (*SQLBackend, error) {
	if dsn == "" {
		return nil, errors.New("postgres backend requires PG_DSN")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	s := &SQLBackend{db: db, dialect: dialectPostgres}
	if migrate {
		if err := s.migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

// OpenSQLite opens (or creates) kv.db inside dataDir. Pass ":memory:" for an
// in-memory database.
func OpenSQLite(ctx context.Context, dataDir string) (*SQLBackend, error) {
	dsn := ":memory:"
	if dataDir != ":memory:" {
		if dataDir == "" {
			dataDir = "data"
		}
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "kv.db")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one connection: an in-memory database is private to its connection
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	s := &SQLBackend{db: db, dialect: dialectSQLite}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLBackend) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema[s.dialect]); err != nil {
		return fmt.Errorf("creating kv_entries: %w", err)
	}
	return nil
}

func (s *SQLBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, s.rebind(selectEntry), key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(v), true, nil
}

func (s *SQLBackend) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, s.rebind(upsertEntry), key, string(value), time.Now().UTC())
	return err
}

func (s *SQLBackend) Delete(ctx context.Context, keys ...string) error {
	ops := make([]Op, 0, len(keys))
	for _, k := range keys {
		ops = append(ops, Op{Key: k, Delete: true})
	}
	return s.Apply(ctx, ops)
}

func (s *SQLBackend) Apply(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	now := time.Now().UTC()
	for _, op := range ops {
		if op.Delete {
			if _, err := tx.ExecContext(ctx, s.rebind(deleteEntry), op.Key); err != nil {
				return fmt.Errorf("delete %s: %w", op.Key, err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, s.rebind(upsertEntry), op.Key, string(op.Value), now); err != nil {
			return fmt.Errorf("upsert %s: %w", op.Key, err)
		}
	}
	return tx.Commit()
}

func (s *SQLBackend) Close() error { return s.db.Close() }

// rebind rewrites ? placeholders as $n for postgres.
func (s *SQLBackend) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
