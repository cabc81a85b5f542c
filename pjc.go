package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/go-ini/ini"
)

// configEntry is one key of the project's .pjc file.
type configEntry struct {
	Section string
	Key     string
	Value   string
}

// readProjectConfig parses a .pjc file into section/key/value triples in file
// order. Values are kept as written, including surrounding quotes and text
// after ';' or '#'.
func readProjectConfig(path string) ([]configEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project config %s: %w", path, err)
	}
	f, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:        true,
		AllowPythonMultilineValues: true,
		SkipUnrecognizableLines:    true,
		PreserveSurroundedQuote:    true,
	}, data)
	if err != nil {
		return nil, fmt.Errorf("parse project config %s: %w", path, err)
	}
	raw := quotedRawValues(data)
	var entries []configEntry
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection && len(sec.Keys()) == 0 {
			continue
		}
		for _, k := range sec.Keys() {
			value := k.Value()
			if v, ok := raw[[2]string{sec.Name(), k.Name()}]; ok {
				value = v
			}
			entries = append(entries, configEntry{Section: sec.Name(), Key: k.Name(), Value: value})
		}
	}
	return entries, nil
}

// quotedRawValues returns the text as written of single-line values that
// open with a backtick or """. go-ini always strips those quotes.
func quotedRawValues(data []byte) map[[2]string]string {
	raw := make(map[[2]string]string)
	section := ini.DefaultSection
	text := strings.TrimPrefix(string(data), "\uFEFF")
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || line[0] == ' ' || line[0] == '\t' {
			continue // blank or continuation
		}
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "" || trimmed[0] == ';' || trimmed[0] == '#':
			continue
		case trimmed[0] == '[':
			if end := strings.IndexByte(trimmed, ']'); end > 0 {
				section = strings.TrimSpace(trimmed[1:end])
			}
			continue
		}
		i := strings.IndexAny(trimmed, "=:")
		if i <= 0 {
			continue
		}
		key := strings.TrimSpace(trimmed[:i])
		value := strings.TrimSpace(trimmed[i+1:])
		for _, q := range []string{`"""`, "`"} {
			if len(value) > len(q) && strings.HasPrefix(value, q) && strings.Contains(value[len(q):], q) {
				raw[[2]string{section, key}] = value
				break
			}
		}
	}
	return raw
}

// archiveProjectConfig recreates table with one row per entry.
func archiveProjectConfig(ctx context.Context, db *sql.DB, target TargetDB, table string, entries []configEntry) error {
	q := target.QuoteIdentifier
	colType := target.ColumnType(typeText, Field{Name: "value", Type: "M"}, false)
	if err := execSQL(ctx, db, "drop config table", "DROP TABLE IF EXISTS "+q(table)); err != nil {
		return err
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s %s, %s %s, %s %s)",
		q(table), q("section"), colType, q("key"), colType, q("value"), colType)
	if err := execSQL(ctx, db, "create config table", create); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin config archive: %w", err)
	}
	defer tx.Rollback()
	insert := fmt.Sprintf("INSERT INTO %s (%s, %s, %s) VALUES (%s, %s, %s)",
		q(table), q("section"), q("key"), q("value"),
		target.Placeholder(1), target.Placeholder(2), target.Placeholder(3))
	for _, e := range entries {
		logDebugf("    [%s] %s = %s", e.Section, e.Key, e.Value)
		if _, err := tx.ExecContext(ctx, insert, e.Section, e.Key, e.Value); err != nil {
			return fmt.Errorf("archive [%s] %s: %w", e.Section, e.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit config archive: %w", err)
	}
	return nil
}
