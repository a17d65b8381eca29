package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// stdout is swapped by tests.
var stdout io.Writer = os.Stdout

const otelScope = "github.com/OCAP2/routemonitor"

// Options selects the outputs of a SlogManager.
type Options struct {
	// File receives text logs. When nil, logs go to stdout instead.
	File  io.Writer
	Level string
	// Provider enables the OTel bridge when non-nil.
	Provider *sdklog.LoggerProvider
	// Gelf receives JSON records, one per write, when non-nil.
	Gelf io.Writer
	// Context adds dynamic attributes to every record.
	Context ContextProvider
}

// SlogManager owns the process slog.Logger and the OTel provider feeding it.
type SlogManager struct {
	logger   *slog.Logger
	provider *sdklog.LoggerProvider
}

func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

var levels = map[string]slog.Level{
	"DEBUG": slog.LevelDebug,
	"INFO":  slog.LevelInfo,
	"WARN":  slog.LevelWarn,
	"ERROR": slog.LevelError,
}

// parseLevel falls back to info for unknown names.
func parseLevel(level string) slog.Level {
	if lvl, ok := levels[strings.ToUpper(level)]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// utcTimestamps renders record times as RFC3339 in UTC.
func utcTimestamps(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
	}
	return a
}

// Configure replaces any earlier logger with one built from opts.
func (m *SlogManager) Configure(opts Options) {
	lvl := parseLevel(opts.Level)
	hopts := &slog.HandlerOptions{Level: lvl, ReplaceAttr: utcTimestamps}

	text := opts.File
	if text == nil {
		text = stdout
	}
	handlers := []slog.Handler{slog.NewTextHandler(text, hopts)}
	if opts.Gelf != nil {
		handlers = append(handlers, slog.NewJSONHandler(opts.Gelf, hopts))
	}
	if opts.Provider != nil {
		handlers = append(handlers, otelslog.NewHandler(otelScope, otelslog.WithLoggerProvider(opts.Provider)))
	}

	var h slog.Handler = NewMultiHandler(handlers...)
	if opts.Context != nil {
		h = NewContextHandler(h, opts.Context)
	}

	m.provider = opts.Provider
	m.logger = slog.New(h)
	m.logger.Info("Logging initialized", "level", lvl.String())
}

// Logger returns slog.Default until Configure has run.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush pushes pending OTel records to the exporter.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.ForceFlush(ctx)
}
