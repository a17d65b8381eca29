// internal/storage/storage_test.go
package storage_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/OCAP2/routemonitor/internal/config"
	"github.com/OCAP2/routemonitor/internal/storage"
	gormstorage "github.com/OCAP2/routemonitor/internal/storage/gorm"
	influxstorage "github.com/OCAP2/routemonitor/internal/storage/influx"
	"github.com/OCAP2/routemonitor/internal/storage/memory"
	"github.com/OCAP2/routemonitor/internal/storage/natsbus"
	"github.com/OCAP2/routemonitor/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/routemonitor/internal/storage/sqlite"
	"github.com/OCAP2/routemonitor/internal/storage/websocket"
	"github.com/OCAP2/routemonitor/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface checks
var (
	_ storage.Backend    = (*memory.Backend)(nil)
	_ storage.Uploadable = (*memory.Backend)(nil)
	_ storage.Backend    = (*gormstorage.Backend)(nil)
	_ storage.Backend    = (*postgres.Backend)(nil)
	_ storage.Backend    = (*sqlitestorage.Backend)(nil)
	_ storage.Backend    = (*websocket.Backend)(nil)
	_ storage.Backend    = (*natsbus.Backend)(nil)
	_ storage.Backend    = (*influxstorage.Backend)(nil)
	_ storage.Backend    = (*storage.Multi)(nil)
)

type fakeBackend struct {
	initErr  error
	inits    int
	sessions int
	samples  int
	resets   int
	ends     int
	closes   int
	failRec  bool
}

func (f *fakeBackend) Init() error                             { f.inits++; return f.initErr }
func (f *fakeBackend) Close() error                            { f.closes++; return nil }
func (f *fakeBackend) StartSession(*core.Session) error        { f.sessions++; return nil }
func (f *fakeBackend) EndSession() error                       { f.ends++; return nil }
func (f *fakeBackend) RecordTraceReset(*core.TraceReset) error { f.resets++; return nil }
func (f *fakeBackend) RecordSamples(s []core.TrackSample) error {
	if f.failRec {
		return errors.New("boom")
	}
	f.samples += len(s)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewBackend_Single(t *testing.T) {
	b, err := storage.NewBackend(config.StorageConfig{Types: []string{"memory"}}, storage.Dependencies{})
	require.NoError(t, err)
	_, ok := b.(*memory.Backend)
	assert.True(t, ok)

	u, ok := storage.FindUploadable(b)
	assert.True(t, ok)
	assert.NotNil(t, u)
}

func TestNewBackend_Multi(t *testing.T) {
	b, err := storage.NewBackend(config.StorageConfig{Types: []string{"websocket", "memory"}}, storage.Dependencies{Logger: discard()})
	require.NoError(t, err)

	m, ok := b.(*storage.Multi)
	require.True(t, ok)
	require.Len(t, m.Backends(), 2)
	assert.Equal(t, "websocket", m.Backends()[0].Name)

	_, ok = storage.FindUploadable(b)
	assert.True(t, ok)
}

func TestNewBackend_Errors(t *testing.T) {
	_, err := storage.NewBackend(config.StorageConfig{}, storage.Dependencies{})
	assert.Error(t, err)

	_, err = storage.NewBackend(config.StorageConfig{Types: []string{"memory", "tape"}}, storage.Dependencies{})
	assert.ErrorContains(t, err, "unknown storage type: tape")
}

func TestFindUploadable_None(t *testing.T) {
	_, ok := storage.FindUploadable(&fakeBackend{})
	assert.False(t, ok)

	_, ok = storage.FindUploadable(storage.NewMulti(nil, storage.Named{Name: "fake", Backend: &fakeBackend{}}))
	assert.False(t, ok)
}

func TestMulti_FanOut(t *testing.T) {
	a, b := &fakeBackend{}, &fakeBackend{}
	m := storage.NewMulti(discard(), storage.Named{Name: "a", Backend: a}, storage.Named{Name: "b", Backend: b})

	require.NoError(t, m.Init())
	require.NoError(t, m.StartSession(&core.Session{}))
	require.NoError(t, m.RecordSamples(make([]core.TrackSample, 3)))
	require.NoError(t, m.RecordTraceReset(&core.TraceReset{}))
	require.NoError(t, m.EndSession())
	require.NoError(t, m.Close())

	for _, f := range []*fakeBackend{a, b} {
		assert.Equal(t, 1, f.inits)
		assert.Equal(t, 1, f.sessions)
		assert.Equal(t, 3, f.samples)
		assert.Equal(t, 1, f.resets)
		assert.Equal(t, 1, f.ends)
		assert.Equal(t, 1, f.closes)
	}
}

func TestMulti_DropsFailedInit(t *testing.T) {
	bad, good := &fakeBackend{initErr: errors.New("down")}, &fakeBackend{}
	m := storage.NewMulti(discard(), storage.Named{Name: "bad", Backend: bad}, storage.Named{Name: "good", Backend: good})

	require.NoError(t, m.Init())
	require.Len(t, m.Backends(), 1)

	require.NoError(t, m.RecordSamples(make([]core.TrackSample, 2)))
	assert.Equal(t, 0, bad.samples)
	assert.Equal(t, 2, good.samples)
}

func TestMulti_AllFailInit(t *testing.T) {
	m := storage.NewMulti(discard(), storage.Named{Name: "bad", Backend: &fakeBackend{initErr: errors.New("down")}})
	err := m.Init()
	require.Error(t, err)
	assert.ErrorContains(t, err, "bad: down")
}

func TestMulti_JoinsErrors(t *testing.T) {
	failing, ok := &fakeBackend{failRec: true}, &fakeBackend{}
	m := storage.NewMulti(discard(), storage.Named{Name: "failing", Backend: failing}, storage.Named{Name: "ok", Backend: ok})

	err := m.RecordSamples(make([]core.TrackSample, 1))
	require.Error(t, err)
	assert.ErrorContains(t, err, "failing: boom")
	assert.Equal(t, 1, ok.samples)
}
