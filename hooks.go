package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
)

// hookVars are the placeholders expanded in hook SQL.
type hookVars struct {
	Project string // project stem, e.g. SAMPLE__
	Prefix  string // table file prefix, e.g. SAMPLE_
}

func (v hookVars) expand(sql string) string {
	return strings.NewReplacer("{{project}}", v.Project, "{{prefix}}", v.Prefix).Replace(sql)
}

// runHooks reads each SQL file, expands placeholders and executes every
// statement against the project's destination.
func runHooks(ctx context.Context, db execer, cfg *ConvertConfig, files []string, phase string, vars hookVars) error {
	if len(files) == 0 {
		return nil
	}
	log.Printf("  running %s hooks (%d files)...", phase, len(files))

	for _, f := range files {
		path := cfg.resolvePath(f)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("hook %s: read %s: %w", phase, f, err)
		}

		stmts := splitStatements(vars.expand(string(data)))
		log.Printf("    %s: %d statements", f, len(stmts))
		for i, stmt := range stmts {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("hook %s: %s: statement %d: %w\nSQL: %s", phase, f, i+1, err, stmt)
			}
		}
	}
	return nil
}

// splitStatements splits SQL text on semicolons, ignoring empty statements
// and semicolons inside quotes, comments and dollar-quoted bodies.
func splitStatements(sql string) []string {
	var stmts []string
	var cur strings.Builder
	var quote byte // ', " or ` while inside a quoted run
	lineComment := false
	blockDepth := 0
	dollarTag := ""

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		next := byte(0)
		if i+1 < len(sql) {
			next = sql[i+1]
		}

		switch {
		case lineComment:
			cur.WriteByte(c)
			lineComment = c != '\n'
		case blockDepth > 0:
			cur.WriteByte(c)
			if c == '/' && next == '*' {
				cur.WriteByte(next)
				i++
				blockDepth++
			} else if c == '*' && next == '/' {
				cur.WriteByte(next)
				i++
				blockDepth--
			}
		case quote != 0:
			cur.WriteByte(c)
			if c == quote {
				if next == quote { // doubled quote is an escape
					cur.WriteByte(next)
					i++
				} else {
					quote = 0
				}
			}
		case dollarTag != "":
			if strings.HasPrefix(sql[i:], dollarTag) {
				cur.WriteString(dollarTag)
				i += len(dollarTag) - 1
				dollarTag = ""
			} else {
				cur.WriteByte(c)
			}
		case c == '-' && next == '-':
			cur.WriteString("--")
			i++
			lineComment = true
		case c == '/' && next == '*':
			cur.WriteString("/*")
			i++
			blockDepth = 1
		case c == '\'' || c == '"' || c == '`':
			cur.WriteByte(c)
			quote = c
		case c == '$':
			if tag, ok := dollarQuoteTag(sql[i:]); ok {
				cur.WriteString(tag)
				i += len(tag) - 1
				dollarTag = tag
			} else {
				cur.WriteByte(c)
			}
		case c == ';':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return stmts
}

// dollarQuoteTag reports the PostgreSQL dollar-quote opener ($$ or $tag$) at
// the start of s.
func dollarQuoteTag(s string) (string, bool) {
	if len(s) < 2 || s[0] != '$' {
		return "", false
	}
	if s[1] == '$' {
		return "$$", true
	}
	if !isTagStart(s[1]) {
		return "", false
	}
	j := 2
	for j < len(s) && (isTagStart(s[j]) || (s[j] >= '0' && s[j] <= '9')) {
		j++
	}
	if j < len(s) && s[j] == '$' {
		return s[:j+1], true
	}
	return "", false
}

func isTagStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
