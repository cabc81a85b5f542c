package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

const logFileName = "TMG2SQL.log"

const (
	levelWarn = iota
	levelInfo
	levelDebug
)

// verbosity gates logInfof and logDebugf. Warnings and errors always print.
var verbosity = levelWarn

func setVerbosity(v int) {
	switch {
	case v < levelWarn:
		verbosity = levelWarn
	case v > levelDebug:
		verbosity = levelDebug
	default:
		verbosity = v
	}
}

func logWarnf(format string, args ...any) {
	log.Printf(format, args...)
}

func logInfof(format string, args ...any) {
	if verbosity >= levelInfo {
		log.Printf(format, args...)
	}
}

func logDebugf(format string, args ...any) {
	if verbosity >= levelDebug {
		log.Printf(format, args...)
	}
}

// setupLogging sends the standard logger to stderr and, when toFile is set,
// also to a fresh TMG2SQL.log in baseDir. The returned func closes the file.
func setupLogging(baseDir string, toFile bool, verbose int) (func() error, error) {
	setVerbosity(verbose)
	log.SetFlags(log.LstdFlags)
	if !toFile {
		log.SetOutput(os.Stderr)
		return func() error { return nil }, nil
	}

	path := filepath.Join(baseDir, logFileName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove old log %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return func() error {
		log.SetOutput(os.Stderr)
		return f.Close()
	}, nil
}
