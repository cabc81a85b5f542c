package main

import (
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
}

func relPaths(t *testing.T, base string, paths []string) []string {
	t.Helper()
	out := make([]string, len(paths))
	for i, p := range paths {
		rel, err := filepath.Rel(base, p)
		if err != nil {
			t.Fatal(err)
		}
		out[i] = filepath.ToSlash(rel)
	}
	sort.Strings(out)
	return out
}

func TestFindProjects(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "SAMPLE__.PJC"))
	touch(t, filepath.Join(dir, "other__.pjc"))
	touch(t, filepath.Join(dir, "SAMPLE_$.DBF"))
	touch(t, filepath.Join(dir, "sub", "DEEP__.PJC"))
	touch(t, filepath.Join(dir, ".hidden", "HIDDEN__.PJC"))
	touch(t, filepath.Join(dir, ".SKIP__.PJC"))

	tests := []struct {
		name      string
		patterns  []string
		recursive bool
		want      []string
	}{
		{"default pattern", nil, false, []string{"SAMPLE__.PJC", "other__.pjc"}},
		{"recursive", nil, true, []string{"SAMPLE__.PJC", "other__.pjc", "sub/DEEP__.PJC"}},
		{"pattern ignores case", []string{"sample*.Pjc"}, false, []string{"SAMPLE__.PJC"}},
		{"overlapping patterns", []string{"*.pjc", "SAMPLE*"}, false, []string{"SAMPLE_$.DBF", "SAMPLE__.PJC", "other__.pjc"}},
		{"no match", []string{"*.xyz"}, true, []string{}},
		{"pattern with directory", []string{"sub/*.pjc"}, false, []string{"sub/DEEP__.PJC"}},
		{"absolute pattern", []string{filepath.Join(dir, "sub", "*.pjc")}, false, []string{"sub/DEEP__.PJC"}},
		{"mixed patterns", []string{"SAMPLE_*.pjc", "sub/deep*"}, false, []string{"SAMPLE__.PJC", "sub/DEEP__.PJC"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := findProjects(dir, tt.patterns, tt.recursive)
			if err != nil {
				t.Fatalf("findProjects() error: %v", err)
			}
			want := append([]string{}, tt.want...)
			sort.Strings(want)
			if rel := relPaths(t, dir, got); !reflect.DeepEqual(rel, want) {
				t.Errorf("findProjects() = %v, want %v", rel, want)
			}
		})
	}
}

func TestFindProjects_ParentDirectory(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "SAMPLE__.PJC"))
	touch(t, filepath.Join(dir, "work", "OTHER__.PJC"))

	got, err := findProjects(filepath.Join(dir, "work"), []string{"../*.pjc"}, false)
	if err != nil {
		t.Fatalf("findProjects() error: %v", err)
	}
	if rel := relPaths(t, dir, got); !reflect.DeepEqual(rel, []string{"SAMPLE__.PJC"}) {
		t.Errorf("findProjects() = %v, want [SAMPLE__.PJC]", rel)
	}
}

func TestFindProjects_Errors(t *testing.T) {
	if _, err := findProjects(t.TempDir(), []string{"[bad"}, false); err == nil {
		t.Error("expected error for malformed pattern")
	}
	if _, err := findProjects(t.TempDir(), []string{"sub/"}, false); err == nil {
		t.Error("expected error for pattern without a file name")
	}
	if _, err := findProjects(t.TempDir(), []string{"gone/*.pjc"}, false); err == nil {
		t.Error("expected error for missing pattern directory")
	}
	if _, err := findProjects(filepath.Join(t.TempDir(), "missing"), nil, false); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestTablePrefix(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/SAMPLE__.PJC", "SAMPLE_"},
		{"family__.pjc", "family_"},
		{"X.pjc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := tablePrefix(tt.path); got != tt.want {
			t.Errorf("tablePrefix(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestIndexTableFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"SAMPLE_$.DBF", "sample_n.dbf", "SAMPLE_DNA.DBF", "SAMPLE_ZZ.Dbf", "SAMPLE_.DBF", "SAMPLE_$.FPT", "OTHER_$.DBF", "SAMPLE__.PJC"} {
		touch(t, filepath.Join(dir, name))
	}
	if err := os.Mkdir(filepath.Join(dir, "SAMPLE_X.DBF"), 0755); err != nil {
		t.Fatal(err)
	}

	files, err := indexTableFiles(dir, "SAMPLE_")
	if err != nil {
		t.Fatalf("indexTableFiles() error: %v", err)
	}
	want := map[string]string{
		"$":   filepath.Join(dir, "SAMPLE_$.DBF"),
		"N":   filepath.Join(dir, "sample_n.dbf"),
		"DNA": filepath.Join(dir, "SAMPLE_DNA.DBF"),
		"ZZ":  filepath.Join(dir, "SAMPLE_ZZ.Dbf"),
	}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("indexTableFiles() = %v, want %v", files, want)
	}

	if got := unknownTableCodes(files); !reflect.DeepEqual(got, []string{"ZZ"}) {
		t.Errorf("unknownTableCodes() = %v, want [ZZ]", got)
	}
}

func TestUnknownTableCodes_Sorted(t *testing.T) {
	files := map[string]string{"ZZ": "", "$": "", "AB": "", "Q1": ""}
	if got := unknownTableCodes(files); !reflect.DeepEqual(got, []string{"AB", "Q1", "ZZ"}) {
		t.Errorf("unknownTableCodes() = %v", got)
	}
}
