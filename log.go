package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/kitten-tts-server/utils"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// setupLog configures the default logger: text on a terminal, JSON
// otherwise, and a copy to log.file when one is configured.
func setupLog() (func() error, error) {
	var out io.Writer = os.Stderr

	log.SetOutput(out)
	log.SetReportTimestamp(true)
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		log.SetFormatter(log.JSONFormatter)
	}
	if err := applyLogLevel(); err != nil {
		return nil, err
	}

	logFile := viper.GetString("log.file")
	if logFile == "" {
		return func() error { return nil }, nil
	}

	logFile = utils.ExpandPath(logFile)
	if err := utils.EnsureDir(filepath.Dir(logFile)); err != nil {
		return nil, fmt.Errorf("unable to create log directory: %w", err)
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("unable to open log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(out, f))
	return f.Close, nil
}

// applyLogLevel sets the default logger's level from log.level.
func applyLogLevel() error {
	level, err := logLevel()
	if err != nil {
		return err
	}
	log.SetLevel(level)
	return nil
}

func logLevel() (log.Level, error) {
	name := viper.GetString("log.level")
	if name == "" {
		return log.InfoLevel, nil
	}
	level, err := log.ParseLevel(name)
	if err != nil {
		return log.InfoLevel, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return level, nil
}
