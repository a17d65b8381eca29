package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/routemonitor/pkg/core"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "missing.ini"))
	require.NoError(t, err)
	assert.Equal(t, Settings{Height: DefaultHeight}, s)
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Settings
	}{
		{
			name:    "keys without section",
			content: "lon=116.5\nangle=270\n",
			want:    Settings{Lon: 116.5, Angle: 270, Height: DefaultHeight},
		},
		{
			name: "QSettings general section",
			content: "[General]\nlon=-74\nlat=40.714\nangle=90\n" +
				"targetlon=116.39\ntargetlat=39.9\nheight=1200\n",
			want: Settings{Lon: -74, Lat: 40.714, Angle: 90, TargetLon: 116.39, TargetLat: 39.9, Height: 1200},
		},
		{
			name:    "general wins over unsectioned",
			content: "lon=1\nlat=2\n[General]\nlon=3\n",
			want:    Settings{Lon: 3, Lat: 2, Height: DefaultHeight},
		},
		{
			name:    "empty file",
			content: "",
			want:    Settings{Height: DefaultHeight},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "pos.ini")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			s, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s)
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not a number", "lon=east\n"},
		{"broken section", "[General\nlon=1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "pos.ini")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "pos.ini")
	want := Settings{
		Lon:       -74,
		Lat:       40.714,
		Angle:     90,
		TargetLon: 116.39,
		TargetLat: 39.9,
		Height:    1200,
	}

	require.NoError(t, Save(path, want))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "[", "keys are written without a section header")
	assert.Contains(t, string(data), "targetlat")

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSave_IgnoresExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, Save(path, Settings{Lon: 5, Height: 10}))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Settings{Lon: 5, Height: 10}, got)
}

func TestSettings_Samples(t *testing.T) {
	s := Settings{Lon: 1, Lat: 2, Angle: 3, TargetLon: 4, TargetLat: 5}

	assert.Equal(t, core.PositionSample{Longitude: 1, Latitude: 2, Heading: 3}, s.Plane())
	assert.Equal(t, core.PositionSample{Longitude: 4, Latitude: 5}, s.Target())
}

func TestSettings_Update(t *testing.T) {
	tests := []struct {
		name string
		last map[core.Role]core.PositionSample
		want Settings
	}{
		{
			name: "nothing received",
			last: nil,
			want: Settings{Lon: 1, Lat: 2, Angle: 3, TargetLon: 4, TargetLat: 5, Height: 10},
		},
		{
			name: "plane only",
			last: map[core.Role]core.PositionSample{
				core.RolePlane: {Longitude: 10, Latitude: 20, Heading: 30},
			},
			want: Settings{Lon: 10, Lat: 20, Angle: 30, TargetLon: 4, TargetLat: 5, Height: 10},
		},
		{
			name: "both",
			last: map[core.Role]core.PositionSample{
				core.RolePlane:  {Longitude: 10, Latitude: 20, Heading: 30},
				core.RoleTarget: {Longitude: 40, Latitude: 50, Heading: 60},
			},
			want: Settings{Lon: 10, Lat: 20, Angle: 30, TargetLon: 40, TargetLat: 50, Height: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := Settings{Lon: 1, Lat: 2, Angle: 3, TargetLon: 4, TargetLat: 5, Height: 10}
			assert.Equal(t, tt.want, base.Update(tt.last))
		})
	}
}
