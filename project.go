package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

// converter holds the run-wide settings shared by every project.
type converter struct {
	cfg      *ConvertConfig
	target   TargetDB
	types    FieldTypeMap
	runID    string
	progress io.Writer
}

func newConverter(cfg *ConvertConfig, runID string, progress io.Writer) (*converter, error) {
	target, err := newTargetDB(cfg.Target, cfg.OutputExt)
	if err != nil {
		return nil, err
	}
	types, err := cfg.fieldTypes()
	if err != nil {
		return nil, err
	}
	if progress == nil {
		progress = io.Discard
	}
	return &converter{cfg: cfg, target: target, types: types, runID: runID, progress: progress}, nil
}

// session is the state of one project conversion. Its TableMap starts
// empty and only grows while the project's tables are created.
type session struct {
	*converter
	project string
	db      *sql.DB
	tables  TableMap
	report  *ProjectReport
	meter   *progressMeter
}

// convertProject converts one .pjc project and its tables. Table and row
// failures are recorded in the report; the error is non-nil only when the
// project could not be converted at all.
func (c *converter) convertProject(ctx context.Context, projectPath string) (*ProjectReport, error) {
	if _, err := os.Stat(projectPath); err != nil {
		return nil, fmt.Errorf("project %s: %w", projectPath, err)
	}
	start := time.Now()
	log.Printf("converting %s → %s %s", projectPath, c.target.Name(), c.target.Location(projectPath))

	db, err := c.target.OpenDB(ctx, projectPath)
	if err != nil {
		return nil, fmt.Errorf("open %s target: %w", c.target.Name(), err)
	}
	defer db.Close()

	s := &session{
		converter: c,
		project:   projectPath,
		db:        db,
		tables:    make(TableMap),
		report: &ProjectReport{
			RunID:   c.runID,
			Project: projectPath,
			Output:  c.target.Location(projectPath),
			Started: start,
		},
		meter: newProgressMeter(c.progress, c.cfg.ProgressEvery),
	}
	vars := hookVars{Project: projectStem(projectPath), Prefix: tablePrefix(projectPath)}

	s.archiveConfig(ctx)

	if err := runHooks(ctx, db, c.cfg, c.cfg.Hooks.BeforeTables, "before_tables", vars); err != nil {
		return s.finish(start), err
	}

	if err := s.convertTables(ctx); err != nil {
		s.report.Aborted = err.Error()
		log.Printf("  ERROR: %v; remaining tables of %s skipped", err, projectStem(projectPath))
	} else if err := runHooks(ctx, db, c.cfg, c.cfg.Hooks.AfterProject, "after_project", vars); err != nil {
		return s.finish(start), err
	}

	return s.finish(start), nil
}

func (s *session) finish(start time.Time) *ProjectReport {
	s.report.Duration = time.Since(start).Round(time.Millisecond).String()
	s.report.logSummary()
	if s.cfg.Report {
		path := reportPath(s.project)
		if err := writeReport(path, s.report); err != nil {
			log.Printf("  WARN: report %s: %v", path, err)
		} else {
			log.Printf("  report written to %s", path)
		}
	}
	return s.report
}

// archiveConfig stores the .pjc entries verbatim. A failure is logged and
// the tables are still converted.
func (s *session) archiveConfig(ctx context.Context) {
	table := projectStem(s.project) + "pjc"
	entries, err := readProjectConfig(s.project)
	if err != nil {
		log.Printf("  WARN: %v", err)
		return
	}
	logInfof("  archiving %d config entries into %s", len(entries), table)
	if err := archiveProjectConfig(ctx, s.db, s.target, table, entries); err != nil {
		log.Printf("  WARN: config archive: %v", err)
		return
	}
	s.report.Config = len(entries)
}

// convertTables runs the catalog pass in declaration order, then the sweep
// for table files whose code the catalog does not know. Only an
// unrecoverable legacy file error is returned.
func (s *session) convertTables(ctx context.Context) error {
	dir := filepath.Dir(s.project)
	prefix := tablePrefix(s.project)
	files, err := indexTableFiles(dir, prefix)
	if err != nil {
		return fmt.Errorf("%w: %v", errUnrecoverable, err)
	}

	for i := range catalog {
		spec := &catalog[i]
		path, ok := files[spec.Code]
		if !ok {
			missing := filepath.Join(dir, prefix+spec.Code+".dbf")
			s.report.Missing = append(s.report.Missing, missing)
			log.Printf("  missing: %s", missing)
			continue
		}
		if err := s.convertTable(ctx, spec.Code, path, spec); err != nil {
			return err
		}
	}

	if !s.cfg.SweepUnknown {
		return nil
	}
	for _, code := range unknownTableCodes(files) {
		path := files[code]
		log.Printf("  unknown table type %s: %s", code, filepath.Base(path))
		s.report.Unknown = append(s.report.Unknown, path)
		if err := s.convertTable(ctx, code, path, nil); err != nil {
			return err
		}
	}
	return nil
}

// convertTable runs materialize, load and validate for one table file.
// Failures local to the table are recorded and nil is returned.
func (s *session) convertTable(ctx context.Context, code, path string, spec *TableSpec) error {
	log.Printf("  %s", filepath.Base(path))
	skip := func(err error) {
		s.report.Skipped = append(s.report.Skipped, SkippedTable{Code: code, File: path, Reason: err.Error()})
		log.Printf("    ERROR: %s skipped: %v", filepath.Base(path), err)
	}

	lt, err := openDBF(path, s.cfg.Encoding)
	if err != nil {
		skip(err)
		return nil
	}
	defer lt.Close()
	for _, line := range lt.describe() {
		logInfof("    %s", line)
	}

	table, err := materializeTable(ctx, s.db, s.target, s.types, s.tables, lt, code, spec)
	if err != nil {
		skip(err)
		return nil
	}

	res, err := loadTable(ctx, s.db, s.target, lt, table, spec, s.meter)
	if res != nil {
		s.report.RowFailures = append(s.report.RowFailures, res.Failures...)
	}
	if errors.Is(err, errUnrecoverable) {
		return err
	}
	if err != nil {
		skip(err)
		return nil
	}
	s.report.Tables = append(s.report.Tables, TableSummary{
		Code:     code,
		Table:    table,
		Known:    spec != nil,
		Rows:     res.Attempts,
		Inserted: res.Inserted,
		Failed:   len(res.Failures),
		Deleted:  lt.Deleted(),
	})
	logInfof("    %d rows, %d inserted, %d failed, %d deleted in source", res.Attempts, res.Inserted, len(res.Failures), lt.Deleted())

	if !s.cfg.ValidateReferences || spec == nil {
		return nil
	}
	findings, err := validateReferences(ctx, s.db, s.target, s.tables, table, code, spec)
	for _, f := range findings {
		log.Printf("    WARN: %s", f)
	}
	s.report.Findings = append(s.report.Findings, findings...)
	if err != nil {
		log.Printf("    WARN: reference check incomplete: %v", err)
	}
	return nil
}
