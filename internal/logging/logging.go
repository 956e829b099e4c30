// Package logging configures the global zerolog logger: a console writer on
// stderr filtered by verbosity, and an append-only run log that always
// receives info and above.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogFileName is the run log inside the state directory.
const LogFileName = "dotkeeper.log"

// Options controls Setup.
type Options struct {
	Verbosity int
	Quiet     bool
	NoColor   bool
	Console   io.Writer
	// LogPath overrides the run log location. Empty means the XDG state dir.
	LogPath string
}

// DefaultLogPath returns $XDG_STATE_HOME/dotkeeper/dotkeeper.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "dotkeeper", LogFileName)
}

// ConsoleLevel maps -v/-q to the console threshold.
func ConsoleLevel(verbosity int, quiet bool) zerolog.Level {
	if quiet {
		return zerolog.ErrorLevel
	}
	switch verbosity {
	case 0:
		return zerolog.WarnLevel
	case 1:
		return zerolog.InfoLevel
	case 2:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

// Setup installs the global logger. The returned closer flushes the run log;
// it is safe to call when the run log could not be opened.
func Setup(opts Options) (io.Closer, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	consoleLevel := ConsoleLevel(opts.Verbosity, opts.Quiet)
	fileLevel := zerolog.InfoLevel
	if consoleLevel < fileLevel {
		fileLevel = consoleLevel
	}
	zerolog.SetGlobalLevel(fileLevel)

	writers := []io.Writer{
		&LevelFilter{
			Writer: zerolog.ConsoleWriter{Out: console, TimeFormat: time.Kitchen, NoColor: opts.NoColor},
			Min:    consoleLevel,
		},
	}

	logPath := opts.LogPath
	if logPath == "" {
		logPath = DefaultLogPath()
	}
	file, err := OpenRunLog(logPath)
	if err == nil {
		writers = append(writers, file)
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	if opts.Verbosity >= 2 {
		log.Logger = log.Logger.With().Caller().Logger()
	}
	if err != nil {
		log.Warn().Err(err).Str("path", logPath).Msg("run log unavailable, logging to console only")
		return nopCloser{}, err
	}
	log.Debug().Int("verbosity", opts.Verbosity).Str("log_file", logPath).Msg("logger initialized")
	return file, nil
}

// OpenRunLog opens the run log for appending, creating parent directories.
func OpenRunLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}

// GetLogger returns a child logger tagged with component.
func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// LogOperationStart logs the start of an operation and returns a function
// that logs its completion.
func LogOperationStart(logger zerolog.Logger, operation string) func() {
	start := time.Now()
	logger.Debug().Str("operation", operation).Msg("operation started")
	return func() {
		logger.Debug().Str("operation", operation).Dur("duration", time.Since(start)).Msg("operation completed")
	}
}

// LevelFilter drops events below Min before they reach Writer.
type LevelFilter struct {
	Writer io.Writer
	Min    zerolog.Level
}

func (f *LevelFilter) Write(p []byte) (int, error) {
	return f.Writer.Write(p)
}

func (f *LevelFilter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < f.Min {
		return len(p), nil
	}
	return f.Writer.Write(p)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
