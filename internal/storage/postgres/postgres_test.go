package postgres

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/routemonitor/internal/config"
	"github.com/OCAP2/routemonitor/internal/model"
	gormstorage "github.com/OCAP2/routemonitor/internal/storage/gorm"
	"github.com/OCAP2/routemonitor/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachable() config.DBConfig {
	return config.DBConfig{
		Host:     "127.0.0.1",
		Port:     "1",
		Username: "postgres",
		Password: "postgres",
		Database: "routemonitor",
	}
}

func TestNew_FallsBackToSqlite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallback.db")

	b, err := New(unreachable(), path, gormstorage.Dependencies{
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		FlushInterval: time.Hour,
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, b.Fallback())
	assert.Equal(t, "sqlite", b.DB().Name())

	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartSession(&core.Session{Name: "fallback", StartTime: time.Now().UTC()}))
	require.NoError(t, b.RecordSamples([]core.TrackSample{{
		Role: core.RolePlane,
		Time: time.Now().UTC(),
	}}))
	require.NoError(t, b.EndSession())

	var count int64
	b.DB().Model(&model.TrackPoint{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestClose_ReleasesConnection(t *testing.T) {
	b, err := New(unreachable(), filepath.Join(t.TempDir(), "fallback.db"), gormstorage.Dependencies{}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())

	require.NoError(t, b.Close())

	sqlDB, err := b.DB().DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.Ping())
}
