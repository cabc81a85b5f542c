package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func materializeForTest(t *testing.T, db *sql.DB, target TargetDB, tables TableMap, lt LegacyTable, code string, spec *TableSpec) string {
	t.Helper()
	name, err := materializeTable(context.Background(), db, target, testTypes(t), tables, lt, code, spec)
	if err != nil {
		t.Fatalf("materializeTable() error: %v", err)
	}
	return name
}

func TestLoadTable_ZeroForeignKeyBecomesNull(t *testing.T) {
	db, target := openTestTarget(t)
	spec, _ := lookupSpec("$")
	lt := &memTable{
		name:   "test_$",
		fields: []Field{numField("PER_NO", 8), numField("FATHER", 8), numField("MOTHER", 8), numField("DSID", 4), numField("REF_ID", 8), numField("SPOULAST", 8)},
		records: []Record{
			{"PER_NO": intValue(1), "FATHER": intValue(0), "MOTHER": intValue(0), "DSID": intValue(1), "REF_ID": intValue(0), "SPOULAST": intValue(0)},
			{"PER_NO": intValue(2), "FATHER": intValue(1), "MOTHER": floatValue(0), "DSID": intValue(1), "REF_ID": intValue(5), "SPOULAST": intValue(0)},
		},
	}
	table := materializeForTest(t, db, target, TableMap{}, lt, "$", spec)

	res, err := loadTable(context.Background(), db, target, lt, table, spec, nil)
	if err != nil {
		t.Fatalf("loadTable() error: %v", err)
	}
	if res.Inserted != 2 || len(res.Failures) != 0 {
		t.Fatalf("result = %+v", res)
	}

	var father, mother sql.NullInt64
	var refID int64
	if err := db.QueryRow(`SELECT "FATHER", "MOTHER", "REF_ID" FROM "test_$" WHERE "PER_NO" = 1`).Scan(&father, &mother, &refID); err != nil {
		t.Fatal(err)
	}
	if father.Valid || mother.Valid {
		t.Errorf("zero references loaded as %v, %v; want NULL", father, mother)
	}
	// REF_ID is not a foreign key, so its zero is kept
	if refID != 0 {
		t.Errorf("REF_ID = %d, want 0", refID)
	}

	var nulls int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "test_$" WHERE "MOTHER" IS NULL AND "SPOULAST" IS NULL`).Scan(&nulls); err != nil {
		t.Fatal(err)
	}
	if nulls != 2 {
		t.Errorf("rows with NULL MOTHER and SPOULAST = %d, want 2", nulls)
	}
}

func TestLoadTable_FilteredForeignKeyZeroBecomesNull(t *testing.T) {
	spec, _ := lookupSpec("A")
	fields := []Field{numField("RULESET", 2), numField("SOURTYPE", 4), numField("TRANS_TO", 4)}
	args := rowArgs(fields, Record{"RULESET": intValue(1), "SOURTYPE": intValue(0), "TRANS_TO": intValue(0)}, spec)
	if args[2] != nil {
		t.Errorf("TRANS_TO = %v, want nil", args[2])
	}
	if args[1] != int64(0) {
		t.Errorf("SOURTYPE = %v, want 0", args[1])
	}
}

func TestLoadTable_DatesAsCanonicalText(t *testing.T) {
	db, target := openTestTarget(t)
	lt := &memTable{
		name:   "test_zz",
		fields: []Field{numField("RECNO", 4), {Name: "D1", Type: "D", Length: 8}, {Name: "T1", Type: "T", Length: 8}},
		records: []Record{
			{"RECNO": intValue(1), "D1": dateValue(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)), "T1": dateTimeValue(time.Date(2024, 3, 5, 7, 8, 9, 0, time.UTC))},
			{"RECNO": intValue(2), "D1": nullValue, "T1": nullValue},
		},
	}
	table := materializeForTest(t, db, target, TableMap{}, lt, "ZZ", nil)
	if _, err := loadTable(context.Background(), db, target, lt, table, nil, nil); err != nil {
		t.Fatal(err)
	}

	var d, ts, dType string
	if err := db.QueryRow(`SELECT "D1", "T1", typeof("D1") FROM "test_zz" WHERE "RECNO" = 1`).Scan(&d, &ts, &dType); err != nil {
		t.Fatal(err)
	}
	if d != "2024-03-05" {
		t.Errorf("date = %q, want 2024-03-05", d)
	}
	if ts != "2024-03-05 07:08:09" {
		t.Errorf("datetime = %q, want 2024-03-05 07:08:09", ts)
	}
	if dType != "text" {
		t.Errorf("date stored as %s, want text", dType)
	}
}

func TestLoadTable_DuplicateCompositeKeyIsRowFailure(t *testing.T) {
	db, target := openTestTarget(t)
	spec, _ := lookupSpec("B")
	lt := &memTable{
		name:   "test_b",
		fields: []Field{numField("GROUPNUM", 6), numField("MEMBERNUM", 8), numField("DSID", 4)},
		records: []Record{
			{"GROUPNUM": intValue(3), "MEMBERNUM": intValue(9), "DSID": intValue(1)},
			{"GROUPNUM": intValue(3), "MEMBERNUM": intValue(9), "DSID": intValue(2)},
			{"GROUPNUM": intValue(3), "MEMBERNUM": intValue(10), "DSID": intValue(1)},
		},
	}
	table := materializeForTest(t, db, target, TableMap{}, lt, "B", spec)

	res, err := loadTable(context.Background(), db, target, lt, table, spec, nil)
	if err != nil {
		t.Fatalf("loadTable() error: %v", err)
	}
	if res.Attempts != 3 || res.Inserted != 2 {
		t.Errorf("attempts = %d, inserted = %d", res.Attempts, res.Inserted)
	}
	if len(res.Failures) != 1 {
		t.Fatalf("failures = %+v, want 1", res.Failures)
	}
	f := res.Failures[0]
	if f.Row != 2 || !strings.Contains(f.Data, "DSID=2") {
		t.Errorf("failure = %+v", f)
	}
	if !strings.Contains(f.Error, "primary key") && !strings.Contains(f.Error, "UNIQUE") {
		t.Errorf("failure error = %q", f.Error)
	}

	var dsid int
	if err := db.QueryRow(`SELECT "DSID" FROM "test_b" WHERE "GROUPNUM" = 3 AND "MEMBERNUM" = 9`).Scan(&dsid); err != nil {
		t.Fatal(err)
	}
	if dsid != 1 {
		t.Errorf("kept row DSID = %d, want the first row (1)", dsid)
	}
}

func TestLoadTable_RecordErrorSkipsRow(t *testing.T) {
	db, target := openTestTarget(t)
	lt := &memTable{
		name:   "test_zz",
		fields: []Field{numField("RECNO", 4)},
		records: []Record{
			{"RECNO": intValue(1)},
			nil,
			{"RECNO": intValue(3)},
		},
		errs: map[int]error{1: &recordError{Table: "test_zz", Recno: 2, Field: "RECNO", Raw: "x", Err: errors.New("invalid number")}},
	}
	table := materializeForTest(t, db, target, TableMap{}, lt, "ZZ", nil)
	res, err := loadTable(context.Background(), db, target, lt, table, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 2 || len(res.Failures) != 1 || res.Failures[0].Row != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestLoadTable_UnrecoverableErrorRollsBack(t *testing.T) {
	db, target := openTestTarget(t)
	lt := &memTable{
		name:    "test_zz",
		fields:  []Field{numField("RECNO", 4)},
		records: []Record{{"RECNO": intValue(1)}, nil},
		errs:    map[int]error{1: fmt.Errorf("%w: read failed", errUnrecoverable)},
	}
	table := materializeForTest(t, db, target, TableMap{}, lt, "ZZ", nil)
	_, err := loadTable(context.Background(), db, target, lt, table, nil, nil)
	if !errors.Is(err, errUnrecoverable) {
		t.Fatalf("error = %v, want errUnrecoverable", err)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "test_zz"`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("rows = %d, want 0 after rollback", n)
	}
}

func TestLoadTable_Progress(t *testing.T) {
	db, target := openTestTarget(t)
	lt := &memTable{name: "test_zz", fields: []Field{numField("RECNO", 6)}}
	for i := 1; i <= 25; i++ {
		lt.records = append(lt.records, Record{"RECNO": intValue(int64(i))})
	}
	table := materializeForTest(t, db, target, TableMap{}, lt, "ZZ", nil)

	var out bytes.Buffer
	if _, err := loadTable(context.Background(), db, target, lt, table, nil, newProgressMeter(&out, 2)); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "123456789 10 12\n" {
		t.Errorf("progress = %q", got)
	}
}

func TestInsertSQL(t *testing.T) {
	fields := []Field{numField("A", 1), numField("B", 1)}
	if got := insertSQL(&sqliteTarget{}, "t", fields); got != `INSERT INTO "t" ("A", "B") VALUES (?, ?)` {
		t.Errorf("sqlite insert = %s", got)
	}
	if got := insertSQL(&postgresTarget{}, "t", fields); got != `INSERT INTO "t" ("A", "B") VALUES ($1, $2)` {
		t.Errorf("postgres insert = %s", got)
	}
	if got := insertSQL(&mysqlTarget{}, "t", fields); got != "INSERT INTO `t` (`A`, `B`) VALUES (?, ?)" {
		t.Errorf("mysql insert = %s", got)
	}
}
