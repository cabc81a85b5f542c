package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestReadProjectConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "SAMPLE__.PJC")
	content := `[General]
Version=9.05
ProjectName=Sample ; kept verbatim
Colour=#FF0000

[Advanced]
DataPath=C:\TMG\Sample
not a key line
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := readProjectConfig(path)
	if err != nil {
		t.Fatalf("readProjectConfig() error: %v", err)
	}
	want := []configEntry{
		{"General", "Version", "9.05"},
		{"General", "ProjectName", "Sample ; kept verbatim"},
		{"General", "Colour", "#FF0000"},
		{"Advanced", "DataPath", `C:\TMG\Sample`},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("readProjectConfig() =\n  %v\nwant\n  %v", got, want)
	}
}

func TestReadProjectConfig_KeepsQuotes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "SAMPLE__.PJC")
	content := "[General]\n" +
		"Title=\"My Family\"\n" +
		"Path=`C:\\TMG`\n" +
		"Note='a'\n" +
		"List=\"\"\"x\"\"\"\n" +
		"Half=\"open\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := readProjectConfig(path)
	if err != nil {
		t.Fatalf("readProjectConfig() error: %v", err)
	}
	want := []configEntry{
		{"General", "Title", `"My Family"`},
		{"General", "Path", "`C:\\TMG`"},
		{"General", "Note", "'a'"},
		{"General", "List", `"""x"""`},
		{"General", "Half", `"open`},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("readProjectConfig() =\n  %q\nwant\n  %q", got, want)
	}
}

func TestReadProjectConfig_Missing(t *testing.T) {
	if _, err := readProjectConfig(filepath.Join(t.TempDir(), "NOPE__.PJC")); err == nil {
		t.Fatal("expected error for missing .pjc file")
	}
}

func TestArchiveProjectConfig(t *testing.T) {
	db, target := openTestTarget(t)
	ctx := context.Background()
	entries := []configEntry{
		{"General", "Version", "9.05"},
		{"Advanced", "DataPath", `C:\TMG`},
	}
	for range 2 {
		if err := archiveProjectConfig(ctx, db, target, "SAMPLE__pjc", entries); err != nil {
			t.Fatalf("archiveProjectConfig() error: %v", err)
		}
	}

	rows, err := db.Query(`SELECT "section", "key", "value" FROM "SAMPLE__pjc" ORDER BY rowid`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	var got []configEntry
	for rows.Next() {
		var e configEntry
		if err := rows.Scan(&e.Section, &e.Key, &e.Value); err != nil {
			t.Fatal(err)
		}
		got = append(got, e)
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, entries) {
		t.Errorf("archived = %v, want %v", got, entries)
	}
}
