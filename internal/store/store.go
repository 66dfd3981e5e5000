package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store is the SQLite run log. One database holds any number of runs; each
// run has a header row, its committed events and its samples.
//
// Store implements engine.Recorder.
type Store struct {
	db *sql.DB
}

// pragmas are applied to every connection in order. The expected values are
// what PRAGMA <name> reads back on a file database.
var pragmas = []struct {
	name, value, expect string
}{
	{"journal_mode", "WAL", "wal"},
	{"synchronous", "NORMAL", "1"},
	{"busy_timeout", "5000", "5000"},
	{"foreign_keys", "ON", "1"},
}

// migrations run in order on databases whose user_version is below their
// index plus one. Never reorder or edit an entry; append instead.
var migrations = []func(*sql.DB) error{
	// v1: per-particle trajectories read samples by identifier.
	func(db *sql.DB) error {
		_, err := db.Exec(`
			CREATE INDEX IF NOT EXISTS idx_samples_identifier
			ON samples(run_id, identifier, seq)
		`)
		return err
	},
}

// currentSchemaVersion is the user_version after all migrations.
var currentSchemaVersion = len(migrations)

// Open opens the run log at path, creating it when missing. ":memory:"
// opens a private in-memory log.
//
// Opening an existing log again is safe: the schema is created with
// IF NOT EXISTS and only pending migrations run.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// The engine is the only writer. One connection also keeps a
	// ":memory:" database alive for the lifetime of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := initialize(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initialize(db *sql.DB) error {
	for _, p := range pragmas {
		stmt := fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply pragmas: %q: %w", stmt, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return migrate(db)
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	for v := version; v < len(migrations); v++ {
		if err := migrations[v](db); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
	}
	if version == currentSchemaVersion {
		return nil
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Close closes the database. Closing a closed store is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Query runs a read-only query against the run log. Callers close the rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// pragma reads the current value of a pragma.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return value, nil
}
