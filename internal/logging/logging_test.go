package logging

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		appName string
		want    string
	}{
		{
			name:    "basic path",
			logsDir: "logs",
			appName: "routemonitor",
			want:    filepath.Join("logs", "routemonitor.20260212_213836.log"),
		},
		{
			name:    "relative path with dot",
			logsDir: "./logs",
			appName: "routemonitor",
			want:    filepath.Join(".", "logs", "routemonitor.20260212_213836.log"),
		},
		{
			name:    "absolute path",
			logsDir: filepath.Join("/var", "log", "routemonitor"),
			appName: "routemonitor",
			want:    filepath.Join("/var", "log", "routemonitor", "routemonitor.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogFilePath(tt.logsDir, tt.appName, sessionStart)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	w := NewFileWriter(path, RotationConfig{MaxSizeMB: 50, MaxBackups: 5, MaxAgeDays: 14})
	defer w.Close()

	_, err := w.Write([]byte("line\n"))
	require.NoError(t, err)
	assert.Equal(t, path, w.Filename)
	assert.Equal(t, 50, w.MaxSize)
	assert.FileExists(t, path)
}

func TestNewGelfWriter(t *testing.T) {
	w, err := NewGelfWriter("127.0.0.1:12201")
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("udp is fire and forget"))
	assert.NoError(t, err)
}

func TestNewZerolog_Level(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"trace", zerolog.TraceLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.want, NewZerolog(&bytes.Buffer{}, tt.level).GetLevel())
		})
	}
}

func TestNewZerolog_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(&buf, "info")

	log.Debug().Msg("hidden")
	log.Info().Str("host", "localhost").Msg("Connected to database")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Connected to database", entry["message"])
	assert.Equal(t, "localhost", entry["host"])
	assert.Contains(t, entry, "time")
}
