package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ConvertConfig holds the optional TOML conversion settings.
type ConvertConfig struct {
	OutputExt          string            `toml:"output_ext"`
	Encoding           string            `toml:"encoding"` // fallback code page for DBF files
	NumericAsInteger   bool              `toml:"numeric_as_integer"`
	ProgressEvery      int               `toml:"progress_every"`
	SweepUnknown       bool              `toml:"sweep_unknown"`
	ValidateReferences bool              `toml:"validate_references"`
	Report             bool              `toml:"report"`
	Target             TargetConfig      `toml:"target"`
	TypeMap            map[string]string `toml:"type_map"` // field type code → column type overrides
	Hooks              HooksConfig       `toml:"hooks"`

	// configDir is the directory containing the TOML file, used to resolve relative SQL paths.
	configDir string
}

// TargetConfig selects the destination engine.
type TargetConfig struct {
	Type string `toml:"type"` // "sqlite", "postgres" or "mysql"
	DSN  string `toml:"dsn"`
}

type HooksConfig struct {
	BeforeTables []string `toml:"before_tables"`
	AfterProject []string `toml:"after_project"`
}

func defaultConfig() ConvertConfig {
	return ConvertConfig{
		OutputExt:          ".sqlite",
		Encoding:           "cp1252",
		NumericAsInteger:   true,
		ProgressEvery:      1000,
		SweepUnknown:       true,
		ValidateReferences: true,
		Target:             TargetConfig{Type: "sqlite"},
		configDir:          ".",
	}
}

// loadConfig reads a TOML config file on top of the defaults. An empty path
// returns the defaults.
func loadConfig(path string) (*ConvertConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return &cfg, cfg.validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.configDir = filepath.Dir(absPath)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *ConvertConfig) validate() error {
	c.Target.Type = strings.ToLower(strings.TrimSpace(c.Target.Type))
	if c.Target.Type == "" {
		c.Target.Type = "sqlite"
	}
	switch c.Target.Type {
	case "sqlite":
		if c.Target.DSN != "" {
			return fmt.Errorf("target.dsn is not used by the sqlite target")
		}
	case "postgres", "mysql":
		if c.Target.DSN == "" {
			return fmt.Errorf("target.dsn is required for target.type %q", c.Target.Type)
		}
	default:
		return fmt.Errorf("target.type must be one of: sqlite, postgres, mysql")
	}

	if c.OutputExt == "" {
		c.OutputExt = ".sqlite"
	}
	if !strings.HasPrefix(c.OutputExt, ".") {
		return fmt.Errorf("output_ext must start with '.', got %q", c.OutputExt)
	}
	if strings.EqualFold(c.OutputExt, ".pjc") || strings.EqualFold(c.OutputExt, ".dbf") {
		return fmt.Errorf("output_ext %q would overwrite project files", c.OutputExt)
	}
	if _, err := lookupEncoding(c.Encoding); err != nil {
		return fmt.Errorf("encoding: %w", err)
	}
	if c.ProgressEvery <= 0 {
		return fmt.Errorf("progress_every must be positive, got %d", c.ProgressEvery)
	}
	if _, err := c.fieldTypes(); err != nil {
		return err
	}
	return nil
}

// fieldTypes builds the field type map for a run.
func (c *ConvertConfig) fieldTypes() (FieldTypeMap, error) {
	return newFieldTypeMap(c.NumericAsInteger, c.TypeMap)
}

// resolvePath resolves a path relative to the config file directory.
func (c *ConvertConfig) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.configDir, p)
}
