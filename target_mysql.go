package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// mysqlTarget writes each project into its own database named after the
// project stem.
type mysqlTarget struct {
	dsn string
}

func (m *mysqlTarget) Name() string { return "MySQL" }

func (m *mysqlTarget) Location(projectPath string) string {
	return "database " + projectStem(projectPath)
}

func (m *mysqlTarget) OpenDB(ctx context.Context, projectPath string) (*sql.DB, error) {
	dbName := projectStem(projectPath)

	serverDSN, err := mysqlDSNForDatabase(m.dsn, "")
	if err != nil {
		return nil, err
	}
	server, err := sql.Open("mysql", serverDSN)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	defer server.Close()
	if err := server.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	if err := execSQL(ctx, server, "create database", "CREATE DATABASE IF NOT EXISTS "+m.QuoteIdentifier(dbName)); err != nil {
		return nil, err
	}

	dsn, err := mysqlDSNForDatabase(m.dsn, dbName)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql database %s: %w", dbName, err)
	}
	return db, nil
}

func (m *mysqlTarget) QuoteIdentifier(name string) string {
	return quoteWith(name, "`")
}

func (m *mysqlTarget) Placeholder(int) string { return "?" }

// mysqlKeyedTextLength bounds memo columns that are keyed or indexed. MySQL
// cannot key a TEXT column without a prefix length.
const mysqlKeyedTextLength = 255

// ColumnType sizes character fields so they can be keyed and indexed.
func (m *mysqlTarget) ColumnType(keyword string, f Field, keyed bool) string {
	switch keyword {
	case typeInteger:
		return "BIGINT"
	case typeFloat, typeReal:
		return "DOUBLE"
	case typeBoolean:
		return "BOOLEAN"
	case typeDate:
		return "VARCHAR(10)"
	case typeDateTime:
		return "VARCHAR(19)"
	case typeText:
		if f.Type == "C" {
			return fmt.Sprintf("VARCHAR(%d)", max(f.Length, 1))
		}
		if keyed {
			return fmt.Sprintf("VARCHAR(%d)", mysqlKeyedTextLength)
		}
		return "LONGTEXT"
	default:
		return keyword
	}
}

// ReferencesClause uses the inline column form, which InnoDB parses and
// does not enforce.
func (m *mysqlTarget) ReferencesClause(table, column string) string {
	return fmt.Sprintf("REFERENCES %s(%s)", m.QuoteIdentifier(table), m.QuoteIdentifier(column))
}

// DropIndexSQL is empty: MySQL index names are per table and the table has
// just been recreated.
func (m *mysqlTarget) DropIndexSQL(_, _ string) string { return "" }

func (m *mysqlTarget) RowSavepoints() bool { return false }

func (m *mysqlTarget) ErrorDetail(err error) string {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return err.Error()
	}
	state := strings.TrimRight(string(myErr.SQLState[:]), "\x00")
	if state == "" {
		return fmt.Sprintf("mysql error %d: %s", myErr.Number, myErr.Message)
	}
	return fmt.Sprintf("mysql error %d (%s): %s", myErr.Number, state, myErr.Message)
}
