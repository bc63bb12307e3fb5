// Package sqlite implements the two-generation snapshot store on top of a
// single SQLite database file.
//
// The store assumes one writer. Concurrent invocations against the same
// database are unsupported: SQLite lock contention is reported as a store
// error and never retried, so callers that need concurrency must serialize
// runs themselves (for example with an external lock file).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dirwatch/internal/log"
	"dirwatch/internal/storage"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store persists the current and previous generations of file records.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	// beforeCommit runs inside every write transaction just before commit.
	// It is nil in production and set only by tests through setBeforeCommit.
	beforeCommit func() error
}

// PathFor returns the location of the store file for a tracked directory.
func PathFor(dir, name string) string {
	if name == "" {
		name = storage.DefaultStoreName
	}
	return filepath.Join(dir, name)
}

// Open initializes (or reuses) the SQLite database at the provided path.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("database path cannot be empty")
	}

	info, err := os.Stat(filepath.Dir(path))
	if err != nil {
		return nil, &storage.Error{Op: "open", Kind: storage.ErrIO, Err: err}
	}
	if !info.IsDir() {
		return nil, &storage.Error{Op: "open", Kind: storage.ErrIO, Err: fmt.Errorf("%s is not a directory", filepath.Dir(path))}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &storage.Error{Op: "open", Kind: storage.ErrIO, Err: err}
	}
	db.SetMaxOpenConns(1)

	// A rollback journal only exists while a transaction is open, so no
	// sidecar files are left next to the tracked content between runs.
	pragmas := []string{
		"PRAGMA journal_mode=DELETE;",
		"PRAGMA synchronous=FULL;",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			db.Close()
			return nil, wrap("open", "", fmt.Errorf("apply pragma %q: %w", pragma, execErr))
		}
	}

	store := &Store{db: db, path: path, logger: log.Component("store")}
	if err := store.checkIntegrity(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := store.Initialize(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) checkIntegrity(ctx context.Context) error {
	var result string
	s.trace(ctx, "check integrity", "PRAGMA quick_check;")
	if err := s.db.QueryRowContext(ctx, "PRAGMA quick_check;").Scan(&result); err != nil {
		return wrap("check integrity", "", err)
	}
	if result != "ok" {
		return &storage.Error{Op: "check integrity", Kind: storage.ErrStore, Err: errors.New(result)}
	}
	return nil
}

// Initialize creates both generation tables if they are missing. It is
// idempotent.
func (s *Store) Initialize(ctx context.Context) error {
	return s.withTx(ctx, "initialize", func(tx *sql.Tx) error {
		for _, gen := range []storage.Generation{storage.Current, storage.Previous} {
			if err := s.createTable(ctx, tx, gen); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of records held by a generation.
func (s *Store) Count(ctx context.Context, gen storage.Generation) (int, error) {
	table, err := tableName(gen)
	if err != nil {
		return 0, &storage.Error{Op: "count", Generation: gen, Kind: storage.ErrStore, Err: err}
	}

	query := `SELECT COUNT(*) FROM ` + table
	s.trace(ctx, "count", query)
	var n int
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, wrap("count", gen, err)
	}
	return n, nil
}

// Records lists a generation in insertion order.
func (s *Store) Records(ctx context.Context, gen storage.Generation) ([]storage.FileRecord, error) {
	table, err := tableName(gen)
	if err != nil {
		return nil, &storage.Error{Op: "list", Generation: gen, Kind: storage.ErrStore, Err: err}
	}

	query := `SELECT full_path, file_name, file_hash FROM ` + table + ` ORDER BY id`
	s.trace(ctx, "list", query)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrap("list", gen, err)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, wrap("list", gen, err)
	}
	return records, nil
}

// Replace discards every row of gen and inserts records. Records sharing a
// path resolve last-write-wins.
func (s *Store) Replace(ctx context.Context, gen storage.Generation, records []storage.FileRecord) error {
	return s.withTx(ctx, "replace", func(tx *sql.Tx) error {
		return s.replace(ctx, tx, gen, records)
	})
}

// Rotate moves current into previous, discarding the old previous, and leaves
// current empty. On failure the store keeps its pre-rotation contents.
func (s *Store) Rotate(ctx context.Context) error {
	return s.withTx(ctx, "rotate", func(tx *sql.Tx) error {
		return s.rotate(ctx, tx)
	})
}

// Advance rotates the generations and loads records into current as a single
// transaction.
func (s *Store) Advance(ctx context.Context, records []storage.FileRecord) error {
	return s.withTx(ctx, "advance", func(tx *sql.Tx) error {
		if err := s.rotate(ctx, tx); err != nil {
			return err
		}
		return s.replace(ctx, tx, storage.Current, records)
	})
}

// Diff reports whether current holds any (path, hash) pair that previous
// does not. Paths present only in previous do not count as a difference.
func (s *Store) Diff(ctx context.Context) (bool, error) {
	query := `SELECT EXISTS (` + changedQuery + `)`
	s.trace(ctx, "diff", query)
	var changed bool
	if err := s.db.QueryRowContext(ctx, query).Scan(&changed); err != nil {
		return false, wrap("diff", "", err)
	}
	return changed, nil
}

// Changed returns the rows of current whose (path, hash) pair is absent from
// previous, in insertion order.
func (s *Store) Changed(ctx context.Context) ([]storage.FileRecord, error) {
	query := changedQuery + ` ORDER BY c.id`
	s.trace(ctx, "diff", query)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrap("diff", "", err)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, wrap("diff", "", err)
	}
	return records, nil
}

const changedQuery = `
SELECT c.full_path, c.file_name, c.file_hash FROM "current" c
WHERE NOT EXISTS (
        SELECT 1 FROM "previous" p
        WHERE p.full_path = c.full_path AND p.file_hash = c.file_hash
)`

func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap(op, "", fmt.Errorf("begin transaction: %w", err))
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		var serr *storage.Error
		if errors.As(err, &serr) {
			return err
		}
		return wrap(op, "", err)
	}

	if s.beforeCommit != nil {
		if err := s.beforeCommit(); err != nil {
			_ = tx.Rollback()
			return wrap(op, "", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return wrap(op, "", fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (s *Store) exec(ctx context.Context, tx *sql.Tx, op, query string) (sql.Result, error) {
	s.trace(ctx, op, query)
	return tx.ExecContext(ctx, query)
}

// trace logs a statement at trace level before it runs.
func (s *Store) trace(ctx context.Context, op, query string, args ...any) {
	if !s.logger.Enabled(ctx, log.LevelTrace) {
		return
	}
	s.logger.Log(ctx, log.LevelTrace, "sql", append([]any{"op", op, "query", strings.Join(strings.Fields(query), " ")}, args...)...)
}

func (s *Store) createTable(ctx context.Context, tx *sql.Tx, gen storage.Generation) error {
	table, err := tableName(gen)
	if err != nil {
		return &storage.Error{Op: "create table", Generation: gen, Kind: storage.ErrStore, Err: err}
	}

	_, err = s.exec(ctx, tx, "create table", `
CREATE TABLE IF NOT EXISTS `+table+` (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        full_path TEXT NOT NULL UNIQUE,
        file_name TEXT NOT NULL,
        file_hash TEXT NOT NULL
)`)
	if err != nil {
		return wrap("create table", gen, err)
	}
	return nil
}

func (s *Store) dropTable(ctx context.Context, tx *sql.Tx, gen storage.Generation) error {
	table, err := tableName(gen)
	if err != nil {
		return &storage.Error{Op: "drop table", Generation: gen, Kind: storage.ErrStore, Err: err}
	}
	if _, err := s.exec(ctx, tx, "drop table", `DROP TABLE IF EXISTS `+table); err != nil {
		return wrap("drop table", gen, err)
	}
	return nil
}

func (s *Store) recreateTable(ctx context.Context, tx *sql.Tx, gen storage.Generation) error {
	if err := s.dropTable(ctx, tx, gen); err != nil {
		return err
	}
	return s.createTable(ctx, tx, gen)
}

func (s *Store) rotate(ctx context.Context, tx *sql.Tx) error {
	if err := s.recreateTable(ctx, tx, storage.Previous); err != nil {
		return err
	}

	_, err := s.exec(ctx, tx, "rotate", `
INSERT INTO "previous" (full_path, file_name, file_hash)
SELECT full_path, file_name, file_hash FROM "current" ORDER BY id`)
	if err != nil {
		return wrap("rotate", storage.Previous, err)
	}

	return s.recreateTable(ctx, tx, storage.Current)
}

func (s *Store) replace(ctx context.Context, tx *sql.Tx, gen storage.Generation, records []storage.FileRecord) error {
	if err := s.recreateTable(ctx, tx, gen); err != nil {
		return err
	}
	table, _ := tableName(gen)

	query := `
INSERT OR REPLACE INTO ` + table + ` (full_path, file_name, file_hash)
VALUES (?, ?, ?)`
	s.trace(ctx, "replace", query, "rows", len(records))
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return wrap("replace", gen, err)
	}
	defer stmt.Close()

	for _, record := range records {
		if _, err := stmt.ExecContext(ctx, record.Path, record.Name, record.Hash); err != nil {
			return wrap("replace", gen, fmt.Errorf("insert %s: %w", record.Path, err))
		}
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]storage.FileRecord, error) {
	defer rows.Close()

	var records []storage.FileRecord
	for rows.Next() {
		var record storage.FileRecord
		if err := rows.Scan(&record.Path, &record.Name, &record.Hash); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// tableName maps a generation to its quoted table identifier. Only the two
// known generations are accepted, so identifiers are never caller supplied.
func tableName(gen storage.Generation) (string, error) {
	if !gen.Valid() {
		return "", fmt.Errorf("unknown generation %q", gen)
	}
	return `"` + string(gen) + `"`, nil
}

// wrap classifies a driver error as an IO or store failure.
func wrap(op string, gen storage.Generation, err error) error {
	return &storage.Error{Op: op, Generation: gen, Kind: classify(err), Err: err}
}

func classify(err error) error {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return storage.ErrStore
	}
	switch serr.Code() & 0xff {
	case sqlite3.SQLITE_IOERR, sqlite3.SQLITE_FULL, sqlite3.SQLITE_CANTOPEN,
		sqlite3.SQLITE_READONLY, sqlite3.SQLITE_PERM:
		return storage.ErrIO
	default:
		return storage.ErrStore
	}
}
