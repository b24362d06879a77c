// Package store is the sole mediator of persistence for the registry. All
// mutations run inside one *sql.Tx scoped to a request; reads return
// projected model objects, never raw rows, so callers cannot trigger
// accidental per-child queries. Storage follows the teacher's
// modernc.org/sqlite-backed Store: one *sql.DB, WAL mode, and a migrate
// step executed at Open.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the registry's database handle.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path and runs the
// schema migration.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("db path required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the raw handle for callers that need to run statements outside
// the store's own methods.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE COLLATE NOCASE,
			email TEXT NOT NULL UNIQUE COLLATE NOCASE,
			password_hash TEXT NOT NULL,
			registered_at TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'regular'
		);`,
		`CREATE TABLE IF NOT EXISTS namespaces (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE COLLATE NOCASE,
			description TEXT NOT NULL DEFAULT '',
			homepage TEXT,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS namespace_roles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			namespace_id INTEGER NOT NULL REFERENCES namespaces(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			created_by INTEGER NOT NULL REFERENCES users(id),
			created_at TEXT NOT NULL,
			updated_by INTEGER NOT NULL REFERENCES users(id),
			updated_at TEXT NOT NULL,
			UNIQUE(namespace_id, name)
		);`,
		`CREATE TABLE IF NOT EXISTS namespace_role_permissions (
			role_id INTEGER NOT NULL REFERENCES namespace_roles(id) ON DELETE CASCADE,
			permission TEXT NOT NULL,
			PRIMARY KEY (role_id, permission)
		);`,
		`CREATE TABLE IF NOT EXISTS namespace_members (
			namespace_id INTEGER NOT NULL REFERENCES namespaces(id) ON DELETE CASCADE,
			user_id INTEGER NOT NULL REFERENCES users(id),
			role_id INTEGER NOT NULL REFERENCES namespace_roles(id),
			added_by INTEGER NOT NULL REFERENCES users(id),
			added_at TEXT NOT NULL,
			updated_by INTEGER NOT NULL REFERENCES users(id),
			updated_at TEXT NOT NULL,
			PRIMARY KEY (namespace_id, user_id)
		);`,
		`CREATE TABLE IF NOT EXISTS labels (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		);`,
		`CREATE TABLE IF NOT EXISTS packages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			namespace_id INTEGER REFERENCES namespaces(id) ON DELETE SET NULL,
			summary TEXT NOT NULL DEFAULT '',
			created_by INTEGER NOT NULL REFERENCES users(id),
			created_at TEXT NOT NULL,
			updated_by INTEGER NOT NULL REFERENCES users(id),
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS package_labels (
			package_id INTEGER NOT NULL REFERENCES packages(id) ON DELETE CASCADE,
			label_id INTEGER NOT NULL REFERENCES labels(id),
			PRIMARY KEY (package_id, label_id)
		);`,
		`CREATE TABLE IF NOT EXISTS package_owners (
			package_id INTEGER NOT NULL REFERENCES packages(id) ON DELETE CASCADE,
			user_id INTEGER NOT NULL REFERENCES users(id),
			PRIMARY KEY (package_id, user_id)
		);`,
		`CREATE TABLE IF NOT EXISTS package_versions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			package_id INTEGER NOT NULL REFERENCES packages(id) ON DELETE CASCADE,
			version TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			repository_url TEXT,
			tarball_url TEXT,
			downloads INTEGER NOT NULL DEFAULT 0,
			created_by INTEGER NOT NULL REFERENCES users(id),
			created_at TEXT NOT NULL,
			UNIQUE(package_id, version)
		);`,
		`CREATE TABLE IF NOT EXISTS package_version_checksums (
			version_id INTEGER NOT NULL REFERENCES package_versions(id) ON DELETE CASCADE,
			algorithm TEXT NOT NULL,
			value BLOB NOT NULL,
			PRIMARY KEY (version_id, algorithm)
		);`,
		`CREATE TABLE IF NOT EXISTS package_version_dependencies (
			version_id INTEGER NOT NULL REFERENCES package_versions(id) ON DELETE CASCADE,
			dep_package_id INTEGER NOT NULL REFERENCES packages(id),
			spec TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (version_id, dep_package_id)
		);`,
		`CREATE TABLE IF NOT EXISTS package_tags (
			package_id INTEGER NOT NULL REFERENCES packages(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			version_id INTEGER NOT NULL REFERENCES package_versions(id),
			PRIMARY KEY (package_id, name)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

// txKey is used to stash the per-request transaction on context.Context by
// the router's tx middleware (see internal/api).
type txKey struct{}

// WithTx returns a context carrying tx, for handlers called within the
// router's transaction middleware.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q resolves the querier for ctx: the request's transaction if the tx
// middleware installed one, otherwise the store's shared *sql.DB (used by
// callers that run outside a request, such as tests).
func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok && tx != nil {
		return tx
	}
	return s.db
}

// BeginTx starts a new transaction on the store's database handle.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
