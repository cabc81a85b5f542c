package main

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
)

// TargetDB abstracts the destination engine so a TMG project can be written
// to SQLite (the default) or to a PostgreSQL or MySQL server.
type TargetDB interface {
	// Name returns a human-readable engine name ("SQLite", "PostgreSQL").
	Name() string

	// Location describes where one project's tables are written (file path,
	// schema or database name), used for logging.
	Location(projectPath string) string

	// OpenDB opens and prepares the destination for one project: foreign key
	// enforcement disabled, schema or database selected. The pool is capped
	// at one connection so session settings apply to every statement.
	OpenDB(ctx context.Context, projectPath string) (*sql.DB, error)

	// QuoteIdentifier quotes a table, column or index name.
	QuoteIdentifier(name string) string

	// Placeholder returns the bind marker for the n-th (1-based) argument.
	Placeholder(n int) string

	// ColumnType turns a field type map keyword into the engine's column type.
	// keyed is set for columns that are part of a key, unique set or index.
	ColumnType(keyword string, f Field, keyed bool) string

	// ReferencesClause returns the inline REFERENCES clause for a column, or
	// "" when the engine cannot declare one without enforcing it.
	ReferencesClause(table, column string) string

	// DropIndexSQL returns the statement removing a stale index, or "" when
	// indexes are dropped together with their table.
	DropIndexSQL(table, index string) string

	// RowSavepoints reports whether a failed statement aborts the surrounding
	// transaction, requiring a savepoint around each row insert.
	RowSavepoints() bool

	// ErrorDetail extracts the engine's error code and message for logging.
	ErrorDetail(err error) string
}

// newTargetDB returns the TargetDB for a configured target type.
func newTargetDB(cfg TargetConfig, outputExt string) (TargetDB, error) {
	switch cfg.Type {
	case "", "sqlite":
		if cfg.DSN != "" {
			return nil, fmt.Errorf("target.dsn is not used by the sqlite target")
		}
		return &sqliteTarget{ext: outputExt}, nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("target.dsn is required for the postgres target")
		}
		return &postgresTarget{dsn: cfg.DSN}, nil
	case "mysql":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("target.dsn is required for the mysql target")
		}
		return &mysqlTarget{dsn: cfg.DSN}, nil
	default:
		return nil, fmt.Errorf("unsupported target type %q (must be sqlite, postgres or mysql)", cfg.Type)
	}
}

// projectStem returns the project file name without its extension.
func projectStem(projectPath string) string {
	base := filepath.Base(projectPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// quoteWith doubles every quote character in name and wraps it.
func quoteWith(name string, q string) string {
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// execSQL runs one statement, logging it at verbosity 1.
func execSQL(ctx context.Context, db execer, desc, stmt string, args ...any) error {
	logInfof("    %s", stmt)
	if _, err := db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("%s: %w\nSQL: %s", desc, err, stmt)
	}
	return nil
}

// execer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
