// Package sqlite implements the repository interfaces on top of SQLite.
//
// modernc.org/sqlite is a pure Go driver, so the binary needs no C toolchain.
// The schema lives in migrations/ and is applied with golang-migrate when the
// database is opened.
//
// The pool is capped at one connection. That keeps ":memory:" databases
// coherent (each connection would otherwise get its own empty database) and
// makes SQLite's single-writer rule explicit: a transaction holds the only
// connection until it commits. Code running inside WithinTx must use the tx
// value it was given, never the outer DB.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/sakif/nowastemate/internal/apperror"
	"github.com/sakif/nowastemate/internal/repository"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// compile-time check that *DB implements repository.Repository
var _ repository.Repository = (*DB)(nil)

// queryer is the subset of *sql.DB and *sql.Tx the repository methods use.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB is the SQLite-backed repository. A DB returned by New owns the pool;
// the DB handed to a WithinTx callback is bound to the open transaction.
type DB struct {
	conn *sql.DB
	q    queryer
	inTx bool
}

// New opens the database at dbPath (":memory:" for an in-memory store),
// configures it and applies pending migrations.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := newWithConn(conn)
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// newWithConn wraps an already configured pool without migrating it.
func newWithConn(conn *sql.DB) *DB {
	return &DB{conn: conn, q: conn}
}

// Close closes the pool. Calling it on a transaction-bound DB is a no-op.
func (db *DB) Close() error {
	if db.inTx {
		return nil
	}
	return db.conn.Close()
}

// Ping checks the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate applies the embedded migrations. The migrate instance is not
// closed: closing it would close the shared *sql.DB.
func (db *DB) migrate() error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading migration source: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db.conn, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// WithinTx runs fn inside a transaction. Nested calls reuse the outer one.
func (db *DB) WithinTx(ctx context.Context, fn func(tx repository.Repository) error) error {
	if db.inTx {
		return fn(db)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	txDB := &DB{conn: db.conn, q: tx, inTx: true}
	if err := fn(txDB); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("sqlite: rolling back after %v: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// notFoundOr maps sql.ErrNoRows to apperror.NotFound and wraps anything else.
func notFoundOr(err error, resource, id, action string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound(resource, id)
	}
	return fmt.Errorf("sqlite: %s %s %s: %w", action, resource, id, err)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
