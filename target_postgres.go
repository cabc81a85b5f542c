package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
)

// postgresTarget writes each project into its own schema named after the
// lower-cased project stem.
type postgresTarget struct {
	dsn string
}

func (p *postgresTarget) Name() string { return "PostgreSQL" }

func (p *postgresTarget) schemaName(projectPath string) string {
	return strings.ToLower(projectStem(projectPath))
}

func (p *postgresTarget) Location(projectPath string) string {
	return "schema " + p.schemaName(projectPath)
}

func (p *postgresTarget) OpenDB(ctx context.Context, projectPath string) (*sql.DB, error) {
	connCfg, err := pgx.ParseConfig(p.dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	schema := p.schemaName(projectPath)
	if connCfg.RuntimeParams == nil {
		connCfg.RuntimeParams = map[string]string{}
	}
	connCfg.RuntimeParams["search_path"] = schema

	db := stdlib.OpenDB(*connCfg)
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := execSQL(ctx, db, "create schema", "CREATE SCHEMA IF NOT EXISTS "+p.QuoteIdentifier(schema)); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (p *postgresTarget) QuoteIdentifier(name string) string {
	return quoteWith(name, `"`)
}

func (p *postgresTarget) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (p *postgresTarget) ColumnType(keyword string, _ Field, _ bool) string {
	switch keyword {
	case typeInteger:
		return "bigint"
	case typeFloat, typeReal:
		return "double precision"
	case typeBoolean:
		return "boolean"
	case typeText, typeDate, typeDateTime:
		return "text"
	default:
		return strings.ToLower(keyword)
	}
}

// ReferencesClause is always empty: PostgreSQL enforces every declared
// foreign key, which legacy data cannot satisfy.
func (p *postgresTarget) ReferencesClause(_, _ string) string { return "" }

func (p *postgresTarget) DropIndexSQL(_, index string) string {
	return "DROP INDEX IF EXISTS " + p.QuoteIdentifier(index)
}

func (p *postgresTarget) RowSavepoints() bool { return true }

func (p *postgresTarget) ErrorDetail(err error) string {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err.Error()
	}
	msg := fmt.Sprintf("%s (SQLSTATE %s)", pgErr.Message, pgErr.Code)
	if pgErr.ConstraintName != "" {
		msg += " constraint " + pgErr.ConstraintName
	}
	if pgErr.Detail != "" {
		msg += ": " + pgErr.Detail
	}
	return msg
}
