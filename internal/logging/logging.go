// Package logging builds the slog and zerolog loggers used across the
// process: rotating file output, optional GELF shipping to Graylog and the
// OpenTelemetry bridge.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, appName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", appName, sessionStart.Format("20060102_150405")),
	)
}

// RotationConfig bounds the size and age of log files.
type RotationConfig struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewFileWriter returns a size-rotated writer for path.
func NewFileWriter(path string, rc RotationConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rc.MaxSizeMB, // MB
		MaxBackups: rc.MaxBackups,
		MaxAge:     rc.MaxAgeDays,
		Compress:   rc.Compress,
	}
}

// NewGelfWriter returns a UDP writer shipping each log line to Graylog at addr.
func NewGelfWriter(addr string) (*gelf.Writer, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create GELF writer for %s: %w", addr, err)
	}
	return w, nil
}

// NewZerolog returns a zerolog logger for the database and influx managers,
// which log in zerolog's structured style.
func NewZerolog(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).
		Level(zerologLevel(level)).
		With().
		Timestamp().
		Logger()
}

func zerologLevel(level string) zerolog.Level {
	switch parseLevel(level) {
	case slog.LevelDebug:
		return zerolog.DebugLevel
	case slog.LevelWarn:
		return zerolog.WarnLevel
	case slog.LevelError:
		return zerolog.ErrorLevel
	default:
		if strings.EqualFold(level, "trace") {
			return zerolog.TraceLevel
		}
		return zerolog.InfoLevel
	}
}
