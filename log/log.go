// Package log is a thin wrapper around zerolog shared by all packages.
// Output goes to stderr by default; an optional diagnostics file can be
// attached for long-running sessions.
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu       sync.Mutex
	logger   zerolog.Logger
	diagFile *os.File
)

func init() {
	w := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "2006-01-02 15:04:05",
	}
	logger = zerolog.New(w).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}

// SetLevel adjusts the global level ("debug", "info", "warn", "error").
func SetLevel(level string) error {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}
	mu.Lock()
	logger = logger.Level(l)
	mu.Unlock()
	return nil
}

// AttachFile mirrors log output into dir/diagnostics_log.txt in addition
// to stderr. The directory is created if missing.
func AttachFile(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	path := filepath.Join(dir, "diagnostics_log.txt")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if diagFile != nil {
		diagFile.Close()
	}
	diagFile = f
	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "2006-01-02 15:04:05",
	}
	fileWriter := zerolog.ConsoleWriter{
		Out:        f,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	logger = zerolog.New(io.MultiWriter(console, fileWriter)).
		With().Timestamp().Int("pid", os.Getpid()).Logger().
		Level(logger.GetLevel())
	return nil
}

// Close flushes and detaches the diagnostics file, if any.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
}

// get hands out a pointer to a snapshot of the current logger so the
// event methods (pointer receivers) have an addressable value.
func get() *zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	l := logger
	return &l
}

func Debug(msg string)                  { get().Debug().Msg(msg) }
func Debugf(format string, args ...any) { get().Debug().Msgf(format, args...) }
func Info(msg string)                   { get().Info().Msg(msg) }
func Infof(format string, args ...any)  { get().Info().Msgf(format, args...) }
func Warn(msg string)                   { get().Warn().Msg(msg) }
func Warnf(format string, args ...any)  { get().Warn().Msgf(format, args...) }
func Error(msg string)                  { get().Error().Msg(msg) }
func Errorf(format string, args ...any) { get().Error().Msgf(format, args...) }
