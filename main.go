package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type cliOptions struct {
	dir        string
	recursive  bool
	verbose    int
	logToFile  bool
	configPath string
	target     string
	dsn        string
	report     bool
}

var opts cliOptions

var rootCmd = &cobra.Command{
	Use:   "tmg2sql [patterns...]",
	Short: "Convert The Master Genealogist projects to SQL databases",
	Long: `tmg2sql converts every TMG project file (*.pjc by default) found in the base
directory, together with its DBF tables, into a relational database with
primary keys, indexes and foreign key metadata.`,
	RunE:         runConvert,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = versionString()
	f := rootCmd.Flags()
	f.StringVarP(&opts.dir, "dir", "d", ".", "base directory to search for projects")
	f.BoolVarP(&opts.recursive, "recursive", "r", false, "search subdirectories")
	f.CountVarP(&opts.verbose, "verbose", "v", "verbosity (-v info, -vv debug)")
	f.BoolVarP(&opts.logToFile, "log", "l", false, "also write the log to "+logFileName+" in the base directory")
	f.StringVar(&opts.configPath, "config", "", "path to TOML config file")
	f.StringVar(&opts.target, "target", "", "destination engine: sqlite, postgres or mysql")
	f.StringVar(&opts.dsn, "dsn", "", "connection string for postgres or mysql targets")
	f.BoolVar(&opts.report, "report", false, "write a YAML remediation report next to each project")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("target") {
		cfg.Target.Type = opts.target
	}
	if cmd.Flags().Changed("dsn") {
		cfg.Target.DSN = opts.dsn
	}
	if cmd.Flags().Changed("report") {
		cfg.Report = opts.report
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	info, err := os.Stat(opts.dir)
	if err != nil {
		return fmt.Errorf("base directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("base directory %s is not a directory", opts.dir)
	}

	closeLog, err := setupLogging(opts.dir, opts.logToFile, opts.verbose)
	if err != nil {
		return err
	}
	defer closeLog()

	runID := uuid.NewString()
	start := time.Now()
	log.Printf("tmg2sql %s (run %s)", versionString(), runID)
	logInfof("config: target=%s encoding=%s numeric_as_integer=%t validate_references=%t sweep_unknown=%t report=%t",
		cfg.Target.Type, cfg.Encoding, cfg.NumericAsInteger, cfg.ValidateReferences, cfg.SweepUnknown, cfg.Report)

	conv, err := newConverter(cfg, runID, os.Stdout)
	if err != nil {
		return err
	}

	projects, err := findProjects(opts.dir, args, opts.recursive)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		log.Printf("no project files found in %s", opts.dir)
		return nil
	}

	ctx := context.Background()
	converted := 0
	for _, p := range projects {
		if _, err := conv.convertProject(ctx, p); err != nil {
			log.Printf("ERROR: %v", err)
			continue
		}
		converted++
	}
	log.Printf("converted %d of %d projects in %s", converted, len(projects), time.Since(start).Round(time.Millisecond))
	return nil
}
