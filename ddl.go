package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// errSchemaMismatch marks a catalog entry naming columns the legacy table
// does not have. The table is skipped.
var errSchemaMismatch = errors.New("catalog columns missing from legacy table")

// TableMap records the destination table created for each legacy table code
// during one project conversion.
type TableMap map[string]string

// lookup resolves a reference target. selfCode and selfName describe the
// table currently being created, so self references resolve before the
// table is recorded.
func (m TableMap) lookup(code, selfCode, selfName string) (string, bool) {
	if code == selfCode && selfName != "" {
		return selfName, true
	}
	name, ok := m[code]
	return name, ok
}

// tablePlan is the full DDL for one destination table.
type tablePlan struct {
	Table   string
	Drop    string
	Create  string
	Indexes []indexPlan
}

type indexPlan struct {
	Name   string
	Drop   string
	Create string
}

// planTable builds the DDL for a legacy table. spec may be nil for tables
// the catalog does not know; they get plain columns only.
func planTable(target TargetDB, types FieldTypeMap, tables TableMap, name, code string, fields []Field, spec *TableSpec) (*tablePlan, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%s has no fields", name)
	}
	if spec != nil {
		if missing := spec.MissingColumns(fields); len(missing) > 0 {
			return nil, fmt.Errorf("%w: %s (%s) lacks %s", errSchemaMismatch, name, code, strings.Join(missing, ", "))
		}
	} else {
		spec = &TableSpec{}
	}

	q := target.QuoteIdentifier
	uniqueCols := make(map[string]bool)
	for _, u := range spec.Unique {
		if !u.IsComposite() && !u.IsNone() {
			uniqueCols[u.Columns[0]] = true
		}
	}
	refs := make(map[string]string)
	for _, fk := range spec.ForeignKeys {
		if fk.Ref.Kind != RefColumn {
			continue
		}
		targetTable, ok := tables.lookup(fk.Ref.Table, code, name)
		if !ok {
			continue
		}
		if clause := target.ReferencesClause(targetTable, fk.Ref.Column); clause != "" {
			refs[fk.Column] = clause
		}
	}
	keyed := make(map[string]bool)
	for _, c := range spec.Columns() {
		keyed[c] = true
	}
	singlePK := ""
	if len(spec.PrimaryKey.Columns) == 1 {
		singlePK = spec.PrimaryKey.Columns[0]
	}

	var defs []string
	for _, f := range fields {
		var b strings.Builder
		fmt.Fprintf(&b, "%s %s", q(f.Name), target.ColumnType(types.columnType(f.Type), f, keyed[f.Name]))
		if f.Name == singlePK {
			b.WriteString(" PRIMARY KEY")
		}
		if uniqueCols[f.Name] {
			b.WriteString(" UNIQUE")
		}
		if clause, ok := refs[f.Name]; ok {
			b.WriteString(" " + clause)
		}
		defs = append(defs, b.String())
	}
	if spec.PrimaryKey.IsComposite() {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY(%s)", quoteList(q, spec.PrimaryKey.Columns)))
	}
	for _, u := range spec.Unique {
		if u.IsComposite() {
			defs = append(defs, fmt.Sprintf("UNIQUE(%s)", quoteList(q, u.Columns)))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", q(name))
	for i, d := range defs {
		b.WriteString("  " + d)
		if i < len(defs)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString(")")

	return &tablePlan{
		Table:   name,
		Drop:    "DROP TABLE IF EXISTS " + q(name),
		Create:  b.String(),
		Indexes: planIndexes(target, name, spec),
	}, nil
}

// planIndexes lists declared indexes first, then one index per plain
// foreign key column, skipping names already planned.
func planIndexes(target TargetDB, table string, spec *TableSpec) []indexPlan {
	keys := append([]KeySpec(nil), spec.Indexes...)
	for _, fk := range spec.ForeignKeys {
		if fk.Ref.Kind == RefColumn {
			keys = append(keys, single(fk.Column))
		}
	}

	q := target.QuoteIdentifier
	seen := make(map[string]bool)
	var out []indexPlan
	for _, k := range keys {
		if k.IsNone() {
			continue
		}
		name := indexName(table, k)
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, indexPlan{
			Name:   name,
			Drop:   target.DropIndexSQL(table, name),
			Create: fmt.Sprintf("CREATE INDEX %s ON %s (%s)", q(name), q(table), quoteList(q, k.Columns)),
		})
	}
	return out
}

func indexName(table string, k KeySpec) string {
	return table + "_" + k.indexSuffix()
}

func quoteList(q func(string) string, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = q(c)
	}
	return strings.Join(quoted, ", ")
}

// materializeTable drops and recreates one destination table with its
// indexes, then records it in tables.
func materializeTable(ctx context.Context, db execer, target TargetDB, types FieldTypeMap, tables TableMap, lt LegacyTable, code string, spec *TableSpec) (string, error) {
	plan, err := planTable(target, types, tables, lt.Name(), code, lt.Fields(), spec)
	if err != nil {
		return "", err
	}

	logInfof("  creating %s", plan.Table)
	if err := execSQL(ctx, db, "drop table "+plan.Table, plan.Drop); err != nil {
		return "", err
	}
	if err := execSQL(ctx, db, "create table "+plan.Table, plan.Create); err != nil {
		return "", err
	}
	for _, idx := range plan.Indexes {
		if idx.Drop != "" {
			if err := execSQL(ctx, db, "drop index "+idx.Name, idx.Drop); err != nil {
				return "", err
			}
		}
		if err := execSQL(ctx, db, "create index "+idx.Name, idx.Create); err != nil {
			return "", err
		}
	}

	if code != "" {
		tables[code] = plan.Table
	}
	return plan.Table, nil
}
