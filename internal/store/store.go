package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"

	// Pure Go SQLite driver (no CGO).
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the SQLite implementation of Repos.
type Store struct {
	db      *sql.DB
	q       querier
	inTx    bool
	opts    options
	pending *[]invalidation
}

type options struct {
	onInvalidate func(kind Kind, id string)
}

// Option configures a Store.
type Option func(*options)

// WithInvalidator registers fn to be called after every committed mutation of
// an item, pool, session or report. Callers use it to evict their own caches.
func WithInvalidator(fn func(kind Kind, id string)) Option {
	return func(o *options) { o.onInvalidate = fn }
}

type invalidation struct {
	kind Kind
	id   string
}

// Open creates a new Store connected to the SQLite database at dsn.
// It applies recommended pragmas and runs auto-migration.
func Open(dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite has a single writer; one connection serializes transactions
	// and keeps per-connection pragmas in effect.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if err := migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	s := &Store{db: db, q: db}
	for _, o := range opts {
		o(&s.opts)
	}
	return s, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	drv := entsql.OpenDB(dialect.SQLite, db)
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return err
	}
	return m.Create(ctx, Tables...)
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Items() ItemRepo         { return &itemRepo{s: s} }
func (s *Store) Pools() PoolRepo         { return &poolRepo{s: s} }
func (s *Store) Sessions() SessionRepo   { return &sessionRepo{s: s} }
func (s *Store) Responses() ResponseRepo { return &responseRepo{s: s} }
func (s *Store) Reports() ReportRepo     { return &reportRepo{s: s} }

// Atomic runs fn inside a transaction. Repos handed to fn share that
// transaction; nested calls join it. Invalidation callbacks fire only after
// a successful commit.
func (s *Store) Atomic(ctx context.Context, fn func(Repos) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	pending := []invalidation{}
	txs := &Store{db: s.db, q: tx, inTx: true, opts: s.opts, pending: &pending}

	if err := fn(txs); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	for _, inv := range pending {
		s.fire(inv)
	}
	return nil
}

func (s *Store) invalidate(kind Kind, id string) {
	inv := invalidation{kind: kind, id: id}
	if s.inTx {
		*s.pending = append(*s.pending, inv)
		return
	}
	s.fire(inv)
}

func (s *Store) fire(inv invalidation) {
	if s.opts.onInvalidate != nil {
		s.opts.onInvalidate(inv.kind, inv.id)
	}
}

// builder returns an ent SQL builder for the SQLite dialect.
func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

func (s *Store) exec(ctx context.Context, q entsql.Querier) (sql.Result, error) {
	query, args := q.Query()
	return s.q.ExecContext(ctx, query, args...)
}

func (s *Store) query(ctx context.Context, q entsql.Querier) (*sql.Rows, error) {
	query, args := q.Query()
	return s.q.QueryContext(ctx, query, args...)
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return strings.Contains(se.Error(), "UNIQUE constraint failed")
}

// applyPragmas configures SQLite for durability with concurrent readers.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. ADAPTEST_DB environment variable
// 2. $XDG_DATA_HOME/adaptest/adaptest.db
// 3. ~/.local/share/adaptest/adaptest.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("ADAPTEST_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "adaptest", "adaptest.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
