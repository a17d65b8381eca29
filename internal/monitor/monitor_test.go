package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/routemonitor/internal/cache"
	"github.com/OCAP2/routemonitor/internal/geo"
	"github.com/OCAP2/routemonitor/internal/pipeline"
	"github.com/OCAP2/routemonitor/internal/scene"
	"github.com/OCAP2/routemonitor/pkg/core"
	"github.com/OCAP2/routemonitor/pkg/datagram"
)

type fakeQueues map[string]int

func (q fakeQueues) QueueLen(command string) int { return q[command] }

type fakeWriter struct{}

func (fakeWriter) Pending() int { return 7 }
func (fakeWriter) Dropped() uint64 { return 3 }
func (fakeWriter) GetLastFlushDuration() time.Duration { return 1500 * time.Microsecond }

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newPlane(t *testing.T, motion *pipeline.MotionControl) *pipeline.Updater {
	t.Helper()
	proj, err := geo.NewProjector(geo.EPSGLonLat)
	require.NoError(t, err)
	sc := scene.New(core.Viewpoint{})
	u, err := pipeline.New(
		pipeline.DefaultConfig(core.RolePlane, pipeline.PlanePort, true),
		pipeline.Dependencies{
			Projector:  proj,
			Attachment: sc.Layer("plane"),
			Marker:     sc.Marker("plane"),
			Camera:     sc.Camera(),
			Motion:     motion,
		},
	)
	require.NoError(t, err)
	return u
}

func TestGetProgramStatus(t *testing.T) {
	motion := pipeline.NewMotionControl(false)
	plane := newPlane(t, motion)
	require.NoError(t, plane.OnDatagram(datagram.Encode(core.PositionSample{Longitude: 1, Latitude: 2})))
	require.NoError(t, plane.OnDatagram(datagram.Encode(core.PositionSample{Longitude: 3, Latitude: 4})))
	require.Error(t, plane.OnDatagram([]byte{1, 2, 3}))

	svc := NewService(Dependencies{
		Pipelines: []Pipeline{plane},
		Queues:    fakeQueues{plane.Command(): 4},
		Writer:    fakeWriter{},
		Motion:    motion,
		Now:       func() time.Time { return fixedNow },
	})

	st := svc.GetProgramStatus()
	assert.Equal(t, fixedNow, st.Time)
	assert.False(t, st.MotionEnabled)
	assert.Equal(t, 7, st.PendingWrites)
	assert.Equal(t, uint64(3), st.DroppedWrites)
	assert.InDelta(t, 1.5, st.LastWriteDurationMs, 1e-6)

	require.Len(t, st.Pipelines, 1)
	ps := st.Pipelines[0]
	assert.Equal(t, "plane", ps.Role)
	assert.Equal(t, pipeline.PlanePort, ps.Port)
	assert.Equal(t, 4, ps.QueueLen)
	assert.Equal(t, uint64(2), ps.Accepted)
	assert.Equal(t, uint64(1), ps.Malformed)
	assert.Equal(t, uint64(2), ps.Suppressed)
	assert.Equal(t, 2, ps.TraceLen)
	assert.Equal(t, pipeline.DefaultCapacity, ps.Capacity)
	require.NotNil(t, ps.LastPoint)
	assert.Equal(t, core.Position3D{X: 3, Y: 4, Z: pipeline.DefaultTraceAltitude}, *ps.LastPoint)
}

func TestGetProgramStatus_Markers(t *testing.T) {
	markers := cache.NewMarkerCache()
	svc := NewService(Dependencies{
		Pipelines: []Pipeline{newPlane(t, nil)},
		Markers:   markers,
	})
	st := svc.GetProgramStatus()
	require.Len(t, st.Pipelines, 1)
	assert.Nil(t, st.Pipelines[0].Marker)
	assert.Nil(t, st.Pipelines[0].LastPoint)

	markers.Set(core.RolePlane, core.MarkerState{Heading: 270, Set: true})
	st = svc.GetProgramStatus()
	require.NotNil(t, st.Pipelines[0].Marker)
	assert.Equal(t, 270.0, st.Pipelines[0].Marker.Heading)
}

func TestGetProgramStatus_NoCollaborators(t *testing.T) {
	svc := NewService(Dependencies{})

	st := svc.GetProgramStatus()
	assert.Empty(t, st.Pipelines)
	assert.Zero(t, st.PendingWrites)
	assert.False(t, st.MotionEnabled)
}

func TestWriteStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "status.json")
	svc := NewService(Dependencies{
		StatusPath: path,
		Pipelines:  []Pipeline{newPlane(t, nil)},
		Motion:     pipeline.NewMotionControl(true),
		Now:        func() time.Time { return fixedNow },
	})

	require.NoError(t, svc.WriteStatus())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var st Status
	require.NoError(t, json.Unmarshal(data, &st))
	assert.True(t, st.MotionEnabled)
	require.Len(t, st.Pipelines, 1)
	assert.Equal(t, "plane", st.Pipelines[0].Role)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestStartStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	svc := NewService(Dependencies{
		StatusPath: path,
		Interval:   10 * time.Millisecond,
	})

	require.NoError(t, svc.Start())
	assert.True(t, svc.IsRunning())
	require.NoError(t, svc.Start(), "second start is a no-op")

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	svc.Stop()
	assert.False(t, svc.IsRunning())
	svc.Stop()
}

func TestStop_WritesFinalStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	svc := NewService(Dependencies{
		StatusPath: path,
		Interval:   time.Hour,
	})

	require.NoError(t, svc.Start())
	svc.Stop()

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestStart_RequiresPath(t *testing.T) {
	svc := NewService(Dependencies{})
	assert.Error(t, svc.Start())
	assert.False(t, svc.IsRunning())
}
