package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/term"
)

var closeLog = func() error { return nil }

// setupLog configures the default logger before flags are parsed. Logs go
// to stderr so stdout only carries the conversion summary.
func setupLog() {
	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(true)
	log.SetTimeFormat(time.Kitchen)
	if !term.IsTerminal(int(os.Stderr.Fd())) { //nolint:gosec
		log.SetFormatter(log.LogfmtFormatter)
	}
}

// configureLogging applies the verbosity flags and, when path is set, tees
// every record into that file.
func configureLogging(verbose, quiet bool, path string) error {
	switch {
	case verbose:
		log.SetLevel(log.DebugLevel)
	case quiet:
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}

	if path == "" {
		return nil
	}

	path, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec
		return fmt.Errorf("unable to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		return fmt.Errorf("unable to open log file: %w", err)
	}

	log.SetOutput(io.MultiWriter(os.Stderr, f))
	log.SetFormatter(log.LogfmtFormatter)
	closeLog = f.Close
	return nil
}
