// internal/storage/memory/memory_test.go
package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/routemonitor/internal/config"
	"github.com/OCAP2/routemonitor/pkg/core"
)

var sessionStart = time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

func sample(role core.Role, offset time.Duration, lon float64) core.TrackSample {
	return core.TrackSample{
		Role:      role,
		Time:      sessionStart.Add(offset),
		Sample:    core.PositionSample{Longitude: lon, Latitude: 1, Heading: 2},
		Projected: core.Position3D{X: lon * 10, Y: 10, Z: 10000},
		TraceLen:  1,
	}
}

func TestNew(t *testing.T) {
	b := New(config.MemoryConfig{})

	require.NotNil(t, b)
	assert.NoError(t, b.Init())
	assert.NoError(t, b.Close())
	assert.Empty(t, b.Samples(core.RolePlane))
}

func TestRecordSamples_GroupsByRole(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartSession(&core.Session{Name: "s", StartTime: sessionStart}))

	require.NoError(t, b.RecordSamples([]core.TrackSample{
		sample(core.RolePlane, 0, 1),
		sample(core.RoleTarget, 0, 2),
		sample(core.RolePlane, time.Second, 3),
	}))

	plane := b.Samples(core.RolePlane)
	require.Len(t, plane, 2)
	assert.Equal(t, 1.0, plane[0].Sample.Longitude)
	assert.Equal(t, 3.0, plane[1].Sample.Longitude)
	assert.Len(t, b.Samples(core.RoleTarget), 1)
}

func TestStartSession_ResetsData(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartSession(&core.Session{Name: "first"}))
	require.NoError(t, b.RecordSamples([]core.TrackSample{sample(core.RolePlane, 0, 1)}))
	require.NoError(t, b.RecordTraceReset(&core.TraceReset{Role: core.RolePlane}))

	require.NoError(t, b.StartSession(&core.Session{Name: "second"}))

	assert.Empty(t, b.Samples(core.RolePlane))
	assert.Empty(t, b.Resets())
}

func TestEndSession_WithoutSession(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	assert.NoError(t, b.EndSession())
	assert.Equal(t, "", b.GetExportedFilePath())
	assert.Equal(t, core.UploadMetadata{}, b.GetExportMetadata())
}

func TestGetExportMetadata(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartSession(&core.Session{Name: "Chase", Tag: "Track", StartTime: sessionStart}))
	require.NoError(t, b.RecordSamples([]core.TrackSample{
		sample(core.RolePlane, 90*time.Second, 1),
		sample(core.RoleTarget, 30*time.Second, 1),
	}))

	meta := b.GetExportMetadata()
	assert.Equal(t, "Chase", meta.Name)
	assert.Equal(t, "Track", meta.Tag)
	assert.Equal(t, 90.0, meta.Duration)
}

func TestConcurrentRecording(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartSession(&core.Session{StartTime: sessionStart}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = b.RecordSamples([]core.TrackSample{sample(core.RolePlane, time.Duration(i), float64(i))})
		}(i)
		go func() {
			defer wg.Done()
			_ = b.RecordTraceReset(&core.TraceReset{Role: core.RoleTarget})
		}()
	}
	wg.Wait()

	assert.Len(t, b.Samples(core.RolePlane), 50)
	assert.Len(t, b.Resets(), 50)
}
