package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	embedsql "github.com/ldi/pbltrack/embed/sql"
	_ "modernc.org/sqlite"
)

// DB is the pbltrack store. Every write that touches the dependency graph or
// a task's status re-reads the project snapshot inside its own transaction.
type DB struct {
	*sql.DB
	Staging *StagingManager

	// onChange runs after every committed write, typically to refresh the
	// JSONL snapshot. It is suppressed while a snapshot is being imported.
	onChangeMu       sync.RWMutex
	onChange         func(ctx context.Context)
	onChangeDisabled bool
}

// executor is satisfied by both *sql.DB and *sql.Tx so reads can run inside
// the transaction that later writes.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ executor = (*sql.DB)(nil)
	_ executor = (*sql.Tx)(nil)
)

var pragmas = []struct{ stmt, what string }{
	{"PRAGMA journal_mode=WAL;", "enable WAL mode"},
	{"PRAGMA foreign_keys=ON;", "enable foreign keys"},
	{"PRAGMA busy_timeout=5000;", "set busy timeout"},
}

// Open opens the SQLite store at path, creating its directory if needed.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p.stmt); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to %s: %w", p.what, err)
		}
	}
	// One connection serializes writers, which keeps the version checks and
	// in-transaction snapshots consistent.
	sqlDB.SetMaxOpenConns(1)

	return &DB{DB: sqlDB, Staging: NewStagingManager()}, nil
}

// Init applies the embedded schema.
func (db *DB) Init(ctx context.Context) error {
	return db.Migrate(ctx, embedsql.Schema)
}

func (db *DB) Migrate(ctx context.Context, schema string) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	db.triggerChange(ctx)
	return nil
}

// withTx runs fn in a transaction and commits when it returns nil. Any error
// rolls the whole write back. Change listeners fire only after a commit.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) SetOnChange(fn func(ctx context.Context)) {
	db.onChangeMu.Lock()
	db.onChange = fn
	db.onChangeMu.Unlock()
}

// DisableOnChange suppresses change listeners until EnableOnChange.
func (db *DB) DisableOnChange() { db.setOnChangeDisabled(true) }

func (db *DB) EnableOnChange() { db.setOnChangeDisabled(false) }

func (db *DB) setOnChangeDisabled(v bool) {
	db.onChangeMu.Lock()
	db.onChangeDisabled = v
	db.onChangeMu.Unlock()
}

func (db *DB) triggerChange(ctx context.Context) {
	db.onChangeMu.RLock()
	fn, disabled := db.onChange, db.onChangeDisabled
	db.onChangeMu.RUnlock()

	if fn != nil && !disabled {
		fn(ctx)
	}
}
