package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"modernc.org/sqlite" // pure-Go SQLite driver
	sqlite3 "modernc.org/sqlite/lib"
)

// sqliteTarget writes each project to its own database file next to the
// project file.
type sqliteTarget struct {
	ext string
}

func (s *sqliteTarget) Name() string { return "SQLite" }

func (s *sqliteTarget) Location(projectPath string) string {
	return s.outputPath(projectPath)
}

func (s *sqliteTarget) outputPath(projectPath string) string {
	ext := s.ext
	if ext == "" {
		ext = ".sqlite"
	}
	return filepath.Join(filepath.Dir(projectPath), projectStem(projectPath)+ext)
}

func (s *sqliteTarget) OpenDB(ctx context.Context, projectPath string) (*sql.DB, error) {
	path := s.outputPath(projectPath)
	if dir := filepath.Dir(path); dir != "" {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("output directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	// Legacy data is full of dangling references, so constraints are
	// declared but never enforced.
	if err := execSQL(ctx, db, "disable foreign keys", "PRAGMA foreign_keys=OFF"); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (s *sqliteTarget) QuoteIdentifier(name string) string {
	return quoteWith(name, `"`)
}

func (s *sqliteTarget) Placeholder(int) string { return "?" }

// ColumnType keeps the keyword as the declared type. SQLite derives column
// affinity from it, so TEXT_DATE and TEXT_DATETIME store text.
func (s *sqliteTarget) ColumnType(keyword string, _ Field, _ bool) string {
	return keyword
}

func (s *sqliteTarget) ReferencesClause(table, column string) string {
	return fmt.Sprintf("REFERENCES %s(%s)", s.QuoteIdentifier(table), s.QuoteIdentifier(column))
}

func (s *sqliteTarget) DropIndexSQL(_, index string) string {
	return "DROP INDEX IF EXISTS " + s.QuoteIdentifier(index)
}

func (s *sqliteTarget) RowSavepoints() bool { return false }

func (s *sqliteTarget) ErrorDetail(err error) string {
	var e *sqlite.Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	switch e.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return "primary key violation: " + e.Error()
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return "unique violation: " + e.Error()
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return "not null violation: " + e.Error()
	default:
		return fmt.Sprintf("sqlite error %d: %s", e.Code(), e.Error())
	}
}
