package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textHandler(buf *bytes.Buffer, lvl slog.Level) slog.Handler {
	return slog.NewTextHandler(buf, &slog.HandlerOptions{Level: lvl})
}

// failingHandler accepts every level and fails every write.
type failingHandler struct {
	slog.Handler
}

func (failingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (failingHandler) Handle(context.Context, slog.Record) error {
	return errors.New("graylog unreachable")
}

func TestMultiHandler_FanOut(t *testing.T) {
	var a, b bytes.Buffer
	logger := slog.New(NewMultiHandler(textHandler(&a, slog.LevelInfo), nil, textHandler(&b, slog.LevelInfo)))

	logger.Info("trace reset", "role", "plane")

	for _, buf := range []*bytes.Buffer{&a, &b} {
		assert.Contains(t, buf.String(), "trace reset")
		assert.Contains(t, buf.String(), "role=plane")
	}
}

func TestMultiHandler_Enabled(t *testing.T) {
	ctx := context.Background()
	info := textHandler(&bytes.Buffer{}, slog.LevelInfo)
	debug := textHandler(&bytes.Buffer{}, slog.LevelDebug)

	assert.False(t, NewMultiHandler().Enabled(ctx, slog.LevelError))
	assert.False(t, NewMultiHandler(info).Enabled(ctx, slog.LevelDebug))
	assert.True(t, NewMultiHandler(info, debug).Enabled(ctx, slog.LevelDebug))
}

func TestMultiHandler_SkipsDisabledHandlers(t *testing.T) {
	var info, debug bytes.Buffer
	logger := slog.New(NewMultiHandler(textHandler(&info, slog.LevelInfo), textHandler(&debug, slog.LevelDebug)))

	logger.Debug("sample suppressed")

	assert.Empty(t, info.String())
	assert.Contains(t, debug.String(), "sample suppressed")
}

func TestMultiHandler_ContinuesAfterFailure(t *testing.T) {
	var buf bytes.Buffer
	h := NewMultiHandler(failingHandler{}, textHandler(&buf, slog.LevelInfo))

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "still delivered", 0)
	err := h.Handle(context.Background(), r)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "graylog unreachable")
	assert.Contains(t, buf.String(), "still delivered")
}

func TestMultiHandler_Derived(t *testing.T) {
	var buf bytes.Buffer
	m := NewMultiHandler(textHandler(&buf, slog.LevelInfo))

	slog.New(m.WithAttrs([]slog.Attr{slog.String("component", "receiver")})).Info("bound")
	slog.New(m.WithGroup("sample")).Info("decoded", "lon", 1.5)

	assert.Contains(t, buf.String(), "component=receiver")
	assert.Contains(t, buf.String(), "sample.lon=1.5")
	assert.Same(t, m, m.WithGroup(""))
}

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	calls := 0
	h := NewContextHandler(textHandler(&buf, slog.LevelInfo), func() []slog.Attr {
		calls++
		return []slog.Attr{slog.Int("call", calls)}
	})

	logger := slog.New(h.WithGroup("pipeline").WithAttrs([]slog.Attr{slog.String("role", "plane")}))
	logger.Info("one")
	logger.Info("two")

	assert.Equal(t, 2, calls)
	assert.Contains(t, buf.String(), "pipeline.role=plane")
	assert.Contains(t, buf.String(), "pipeline.call=2")
	assert.Same(t, h, h.WithGroup(""))
	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
}

func TestContextHandler_NilProvider(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewContextHandler(textHandler(&buf, slog.LevelInfo), nil)).Info("plain")
	assert.Contains(t, buf.String(), "plain")
}
