package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectReport collects everything a user has to remediate after one
// project conversion.
type ProjectReport struct {
	RunID       string         `yaml:"run_id"`
	Project     string         `yaml:"project"`
	Output      string         `yaml:"output"`
	Started     time.Time      `yaml:"started"`
	Duration    string         `yaml:"duration"`
	Config      int            `yaml:"config_entries"`
	Tables      []TableSummary `yaml:"tables,omitempty"`
	Missing     []string       `yaml:"missing_files,omitempty"`
	Skipped     []SkippedTable `yaml:"skipped_tables,omitempty"`
	Unknown     []string       `yaml:"unknown_tables,omitempty"`
	RowFailures []rowFailure   `yaml:"row_failures,omitempty"`
	Findings    []Finding      `yaml:"findings,omitempty"`
	Aborted     string         `yaml:"aborted,omitempty"`
}

// TableSummary is the outcome of one converted table.
type TableSummary struct {
	Code     string `yaml:"code"`
	Table    string `yaml:"table"`
	Known    bool   `yaml:"cataloged"`
	Rows     int    `yaml:"rows"`
	Inserted int    `yaml:"inserted"`
	Failed   int    `yaml:"failed"`
	Deleted  int    `yaml:"deleted"`
}

// SkippedTable is a table file that exists but could not be converted.
type SkippedTable struct {
	Code   string `yaml:"code"`
	File   string `yaml:"file"`
	Reason string `yaml:"reason"`
}

func (r *ProjectReport) countFindings(kind FindingKind) int {
	n := 0
	for _, f := range r.Findings {
		if f.Kind == kind {
			n++
		}
	}
	return n
}

// logSummary prints the final listing of missing files, skipped tables,
// skipped rows and reference findings.
func (r *ProjectReport) logSummary() {
	log.Printf("%s: %d tables converted in %s", r.Project, len(r.Tables), r.Duration)
	if r.Aborted != "" {
		log.Printf("  ERROR: conversion stopped early: %s", r.Aborted)
	}
	if len(r.Missing) > 0 {
		log.Printf("  missing files: %d", len(r.Missing))
		for _, m := range r.Missing {
			log.Printf("    %s", m)
		}
	}
	if len(r.Skipped) > 0 {
		log.Printf("  skipped tables: %d", len(r.Skipped))
		for _, s := range r.Skipped {
			log.Printf("    %s (%s): %s", s.File, s.Code, s.Reason)
		}
	}
	if len(r.Unknown) > 0 {
		log.Printf("  tables without catalog entry: %d", len(r.Unknown))
		for _, u := range r.Unknown {
			log.Printf("    %s", u)
		}
	}
	if len(r.RowFailures) > 0 {
		log.Printf("  skipped rows: %d", len(r.RowFailures))
		for _, f := range r.RowFailures {
			log.Printf("    %s row %d: %s: %s", f.Table, f.Row, f.Error, f.Data)
		}
	}
	if len(r.Findings) > 0 {
		log.Printf("  reference findings: %d dangling, %d unchecked, %d unresolved",
			r.countFindings(findingDangling), r.countFindings(findingUnsupported), r.countFindings(findingUnresolved))
		for _, f := range r.Findings {
			log.Printf("    %s", f)
		}
	}
}

// reportPath is the YAML report written next to the project file.
func reportPath(projectPath string) string {
	return filepath.Join(filepath.Dir(projectPath), projectStem(projectPath)+".report.yaml")
}

// writeReport stores the report as YAML.
func writeReport(path string, r *ProjectReport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		f.Close()
		return fmt.Errorf("encode report: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("encode report: %w", err)
	}
	return f.Close()
}
