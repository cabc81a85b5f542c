package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const defaultProjectPattern = "*.pjc"

// findProjects returns every file whose name matches one of the patterns,
// ignoring case. A pattern's directory part is resolved against dir (an
// absolute one is used as is) and the search starts there. Entries starting
// with "." are skipped, and subdirectories are searched only when recursive
// is set.
func findProjects(dir string, patterns []string, recursive bool) ([]string, error) {
	if len(patterns) == 0 {
		patterns = []string{defaultProjectPattern}
	}
	type search struct{ dir, name string }
	searches := make([]search, len(patterns))
	for i, p := range patterns {
		patDir, name := filepath.Split(p)
		if name == "" {
			return nil, fmt.Errorf("invalid pattern %q: no file name", p)
		}
		if _, err := filepath.Match(strings.ToUpper(name), ""); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		searchDir := dir
		if patDir != "" {
			if filepath.IsAbs(patDir) {
				searchDir = filepath.Clean(patDir)
			} else {
				searchDir = filepath.Join(dir, patDir)
			}
		}
		searches[i] = search{dir: searchDir, name: strings.ToUpper(name)}
	}
	seen := make(map[string]bool)
	var out []string
	for _, s := range searches {
		logInfof("searching %s for %s", s.dir, s.name)
		if err := findMatching(s.dir, s.name, recursive, seen, &out); err != nil {
			return out, err
		}
	}
	return out, nil
}

func findMatching(dir, pattern string, recursive bool, seen map[string]bool, out *[]string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read directory %s: %w", dir, err)
	}
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)
		if e.IsDir() {
			if recursive {
				logInfof("  dir %s", path)
				if err := findMatching(path, pattern, recursive, seen, out); err != nil {
					logWarnf("  WARN: %v", err)
				}
			}
			continue
		}
		if ok, _ := filepath.Match(pattern, strings.ToUpper(name)); ok && !seen[path] {
			seen[path] = true
			*out = append(*out, path)
		}
	}
	return nil
}

// tablePrefix returns the file name prefix shared by a project's tables: the
// project stem without its last character (SAMPLE__.PJC has tables
// SAMPLE_$.DBF, SAMPLE_N.DBF, ...).
func tablePrefix(projectPath string) string {
	stem := projectStem(projectPath)
	if stem == "" {
		return ""
	}
	return stem[:len(stem)-1]
}

// indexTableFiles maps each table code found in dir to its .dbf path. A code
// is the upper-cased remainder of the file stem after prefix.
func indexTableFiles(dir, prefix string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read project directory %s: %w", dir, err)
	}
	upperPrefix := strings.ToUpper(prefix)
	files := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToUpper(e.Name())
		if !strings.HasSuffix(name, ".DBF") || !strings.HasPrefix(name, upperPrefix) {
			continue
		}
		code := strings.TrimSuffix(name, ".DBF")[len(upperPrefix):]
		if code == "" {
			continue
		}
		if _, dup := files[code]; dup {
			logWarnf("  WARN: more than one file for table %s in %s; using %s", code, dir, files[code])
			continue
		}
		files[code] = filepath.Join(dir, e.Name())
	}
	return files, nil
}

// unknownTableCodes lists the codes in files that the catalog lacks, sorted.
func unknownTableCodes(files map[string]string) []string {
	var codes []string
	for code := range files {
		if _, ok := lookupSpec(code); !ok {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}
