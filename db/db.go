// Package db manages the record store: the lead_magnets and submissions tables.
// it exposes a Database struct that wraps *sql.DB and is passed via dependency
// injection to any layer that needs record access (publisher, responder, handlers).
// two drivers are supported behind the same struct: SQLite for a single node
// and Postgres for a shared deployment. queries are written once with "?" placeholders
// and rebound to "$1, $2..." when the connection is Postgres.
package db

import (
	"context"
	"database/sql" // standard lib for SQL access. provides the connection pool and query execution methods
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	// registers the "pgx" driver name with database/sql (init() side effect only)
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Dialect selects the SQL flavour of the open connection.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

var (
	// ErrRecordNotFound is returned when no row matches the given ID or slug.
	// callers check for this sentinel error to distinguish "not found" (404)
	// from a real database error (500, internal server error).
	ErrRecordNotFound = errors.New("record not found")

	// ErrSlugTaken is returned by InsertLeadMagnet when the UNIQUE constraint on slug fires.
	// this is the storage-level backstop for two uploads racing for the same name.
	ErrSlugTaken = errors.New("slug already taken")
)

/*
Database wraps the connection pool rather than embedding it, so callers are
restricted to the lead magnet and submission methods defined in this package
and never see raw *sql.DB methods.
*/
type Database struct {
	connection *sql.DB
	dialect    Dialect
	logger     *slog.Logger
}

// sqliteSchema is the DDL for SQLite. IF NOT EXISTS makes it safe to run on every startup.
// created_at is indexed because both listings are ordered by it.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS lead_magnets (
    id          TEXT PRIMARY KEY,
    slug        TEXT UNIQUE NOT NULL,
    name        TEXT NOT NULL,
    description TEXT,
    status      TEXT NOT NULL DEFAULT 'active',
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS submissions (
    id             TEXT PRIMARY KEY,
    lead_magnet_id TEXT NOT NULL REFERENCES lead_magnets(id),
    email          TEXT NOT NULL,
    name           TEXT,
    data           TEXT,
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_submissions_lead_magnet ON submissions (lead_magnet_id, created_at);
`

// postgresSchema is the same layout with native Postgres types.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS lead_magnets (
    id          TEXT PRIMARY KEY,
    slug        TEXT UNIQUE NOT NULL,
    name        TEXT NOT NULL,
    description TEXT,
    status      TEXT NOT NULL DEFAULT 'active',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS submissions (
    id             TEXT PRIMARY KEY,
    lead_magnet_id TEXT NOT NULL REFERENCES lead_magnets(id),
    email          TEXT NOT NULL,
    name           TEXT,
    data           TEXT,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_submissions_lead_magnet ON submissions (lead_magnet_id, created_at);
`

/*
OpenDatabase opens the SQLite database at the given file path, runs the schema
migration, and returns a ready-to-use *Database.
The directory for the database file is created if it does not exist,
so the caller does not need to pre-create the path on disk.
*/
func OpenDatabase(dbPath string, logger *slog.Logger) (*Database, error) {
	// 0755: owner read/write/execute, group and others read/execute
	dir := filepath.Dir(dbPath)
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create database directory %q: %w", dir, err)
	}

	// _foreign_keys=on makes SQLite enforce the submissions -> lead_magnets reference,
	// SQLite leaves foreign keys off unless asked per connection.
	dbConnection, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database at %q: %w", dbPath, err)
	}

	// SQLite does not support concurrent writes from multiple connections.
	// one connection prevents "database is locked" errors under parallel requests.
	dbConnection.SetMaxOpenConns(1)

	database := &Database{
		connection: dbConnection,
		dialect:    DialectSQLite,
		logger:     logger,
	}

	// the app is useless without a working database, so fail fast here
	err = database.migrate(context.Background())
	if err != nil {
		dbConnection.Close()
		return nil, fmt.Errorf("database migration (table & column creation, DDL) failed: %w", err)
	}

	logger.Info("database opened and schema migrated", "driver", DialectSQLite, "path", dbPath)
	return database, nil
}

// OpenPostgresDatabase connects through the pgx database/sql driver, checks the
// connection with a ping (sql.Open alone never dials), and runs the migration.
func OpenPostgresDatabase(ctx context.Context, dataSourceName string, logger *slog.Logger) (*Database, error) {
	dbConnection, err := sql.Open("pgx", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := dbConnection.PingContext(ctx); err != nil {
		dbConnection.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}

	database := &Database{
		connection: dbConnection,
		dialect:    DialectPostgres,
		logger:     logger,
	}

	if err := database.migrate(ctx); err != nil {
		dbConnection.Close()
		return nil, fmt.Errorf("database migration (table & column creation, DDL) failed: %w", err)
	}

	logger.Info("database opened and schema migrated", "driver", DialectPostgres)
	return database, nil
}

// migrate runs the dialect's schema DDL. the schema is a constant of this package,
// callers of OpenDatabase never need to know about it.
func (database *Database) migrate(ctx context.Context) error {
	schema := sqliteSchema
	if database.dialect == DialectPostgres {
		schema = postgresSchema
	}

	_, err := database.connection.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema migration (create tables & columns): %w", err)
	}
	return nil
}

// Ping checks the connection is alive. used by the readiness endpoint.
func (database *Database) Ping(ctx context.Context) error {
	return database.connection.PingContext(ctx)
}

// CloseDatabase releases the database connection pool.
// this should be deferred right after Open returns successfully.
func (database *Database) CloseDatabase() error {
	return database.connection.Close()
}

// Dialect reports which driver the connection uses.
func (database *Database) Dialect() Dialect {
	return database.dialect
}

// rebind rewrites "?" placeholders to "$1, $2..." for Postgres.
// queries in this package never contain a literal "?" inside a string constant,
// so a plain scan is enough.
func (database *Database) rebind(query string) string {
	if database.dialect != DialectPostgres {
		return query
	}

	var builder strings.Builder
	builder.Grow(len(query) + 8)

	placeholderNumber := 0
	for _, character := range query {
		if character == '?' {
			placeholderNumber++
			builder.WriteByte('$')
			builder.WriteString(strconv.Itoa(placeholderNumber))
			continue
		}
		builder.WriteRune(character)
	}
	return builder.String()
}

// isUniqueViolation matches a UNIQUE constraint failure from either driver:
// SQLite's extended code SQLITE_CONSTRAINT_UNIQUE or Postgres SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var sqliteError sqlite3.Error
	if errors.As(err, &sqliteError) && sqliteError.ExtendedCode == sqlite3.ErrConstraintUnique {
		return true
	}

	var postgresError *pgconn.PgError
	if errors.As(err, &postgresError) && postgresError.Code == "23505" {
		return true
	}

	return false
}

// scanner is satisfied by both *sql.Row and *sql.Rows, so one scan function
// serves QueryRow (single row) and Query (multiple rows).
type scanner interface {
	Scan(dest ...any) error
}
