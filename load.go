package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
)

// LegacyTable is a sequential source of legacy records.
type LegacyTable interface {
	Name() string
	Fields() []Field
	// Next returns the next record, or io.EOF when the table is exhausted.
	Next() (Record, error)
}

// rowFailure is one legacy row that could not be decoded or inserted.
type rowFailure struct {
	Table string `yaml:"table"`
	Row   int    `yaml:"row"`
	Data  string `yaml:"data,omitempty"`
	Error string `yaml:"error"`
}

// loadResult summarizes one table load.
type loadResult struct {
	Table    string
	Attempts int
	Inserted int
	Failures []rowFailure
}

// loadTable copies every record of lt into table inside one transaction.
// Rows that fail are collected and the load continues; the transaction is
// committed after the last record. The returned error is non-nil only when
// the source or the transaction itself fails.
func loadTable(ctx context.Context, db *sql.DB, target TargetDB, lt LegacyTable, table string, spec *TableSpec, progress *progressMeter) (*loadResult, error) {
	fields := lt.Fields()
	insert := insertSQL(target, table, fields)
	logDebugf("    %s", insert)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin load %s: %w", table, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return nil, fmt.Errorf("prepare insert %s: %w\nSQL: %s", table, err, insert)
	}
	defer stmt.Close()

	res := &loadResult{Table: table}
	defer progress.done()
	for {
		rec, err := lt.Next()
		if err == io.EOF {
			break
		}
		res.Attempts++
		var recErr *recordError
		if errors.As(err, &recErr) {
			res.Failures = append(res.Failures, rowFailure{Table: table, Row: res.Attempts, Data: recErr.Raw, Error: recErr.Error()})
			logWarnf("    WARN: %s row %d skipped: %v", table, res.Attempts, recErr)
			progress.tick()
			continue
		}
		if err != nil {
			return res, fmt.Errorf("load %s: %w", table, err)
		}

		args := rowArgs(fields, rec, spec)
		logDebugf("    %s", formatRow(fields, args))
		if err := insertRow(ctx, tx, stmt, target.RowSavepoints(), args); err != nil {
			f := rowFailure{Table: table, Row: res.Attempts, Data: formatRow(fields, args), Error: target.ErrorDetail(err)}
			res.Failures = append(res.Failures, f)
			logWarnf("    WARN: %s row %d not inserted: %s: %s", table, f.Row, f.Error, f.Data)
		} else {
			res.Inserted++
		}
		progress.tick()
	}

	if err := stmt.Close(); err != nil {
		return res, fmt.Errorf("close insert %s: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit %s: %w", table, err)
	}
	return res, nil
}

// insertRow inserts one row. With savepoints a failed insert is rolled back
// on its own so the transaction stays usable.
func insertRow(ctx context.Context, tx *sql.Tx, stmt *sql.Stmt, savepoints bool, args []any) error {
	if !savepoints {
		_, err := stmt.ExecContext(ctx, args...)
		return err
	}
	if _, err := tx.ExecContext(ctx, "SAVEPOINT tmg_row"); err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx, args...); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT tmg_row"); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	_, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT tmg_row")
	return err
}

// insertSQL builds the parameterized INSERT for a table's fields.
func insertSQL(target TargetDB, table string, fields []Field) string {
	cols := make([]string, len(fields))
	marks := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = target.QuoteIdentifier(f.Name)
		marks[i] = target.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		target.QuoteIdentifier(table), strings.Join(cols, ", "), strings.Join(marks, ", "))
}

// rowArgs converts a record to insert arguments in field order. A zero in
// any foreign key column, plain or filtered, means "no reference" and is
// stored as NULL.
func rowArgs(fields []Field, rec Record, spec *TableSpec) []any {
	args := make([]any, len(fields))
	for i, f := range fields {
		v := rec[f.Name]
		if v.IsZeroSentinel() && spec.foreignKeyColumn(f.Name) {
			v = nullValue
		}
		args[i] = v.SQLArg()
	}
	return args
}

func formatRow(fields []Field, args []any) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		switch a := args[i].(type) {
		case nil:
			parts[i] = f.Name + "=NULL"
		case string:
			parts[i] = fmt.Sprintf("%s=%q", f.Name, a)
		case []byte:
			parts[i] = fmt.Sprintf("%s=<%d bytes>", f.Name, len(a))
		default:
			parts[i] = fmt.Sprintf("%s=%v", f.Name, a)
		}
	}
	return strings.Join(parts, ", ")
}
