// Package settings persists the last-known positions between runs in a
// QSettings-compatible INI file (pos.ini).
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-viper/encoding/ini"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/OCAP2/routemonitor/pkg/core"
)

// DefaultHeight is the camera range used when the file does not set one.
const DefaultHeight = 500000.0

const (
	// keys above the first section header
	sectionDefault = "default"
	// QSettings files keep unsectioned keys under [General]
	sectionGeneral = "general"
)

// Settings are the values restored at startup and saved at shutdown.
type Settings struct {
	Lon       float64
	Lat       float64
	Angle     float64
	TargetLon float64
	TargetLat float64
	Height    float64
}

func (s *Settings) fields() map[string]*float64 {
	return map[string]*float64{
		"lon":       &s.Lon,
		"lat":       &s.Lat,
		"angle":     &s.Angle,
		"targetlon": &s.TargetLon,
		"targetlat": &s.TargetLat,
		"height":    &s.Height,
	}
}

func newViper() (*viper.Viper, error) {
	codecs := viper.NewCodecRegistry()
	if err := codecs.RegisterCodec("ini", ini.Codec{}); err != nil {
		return nil, fmt.Errorf("failed to register ini codec: %w", err)
	}
	v := viper.NewWithOptions(viper.WithCodecRegistry(codecs))
	v.SetConfigType("ini")
	return v, nil
}

// Load reads the settings file. A missing file yields the defaults. Keys may
// sit above any section header or in a [General] section.
func Load(path string) (Settings, error) {
	s := Settings{Height: DefaultHeight}

	v, err := newViper()
	if err != nil {
		return s, err
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if isNotFound(err) {
			return s, nil
		}
		return Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}

	for key, dst := range s.fields() {
		for _, section := range []string{sectionGeneral, sectionDefault} {
			raw := v.Get(section + "." + key)
			if raw == nil {
				continue
			}
			f, err := cast.ToFloat64E(raw)
			if err != nil {
				return Settings{}, fmt.Errorf("failed to decode settings key %q: %w", key, err)
			}
			*dst = f
			break
		}
	}
	return s, nil
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// Save writes the settings file, creating its directory if needed. Keys are
// written without a section header.
func Save(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	v, err := newViper()
	if err != nil {
		return err
	}
	for key, src := range s.fields() {
		v.Set(sectionDefault+"."+key, *src)
	}

	// WriteConfigAs would pick the format from the file extension
	var buf bytes.Buffer
	if err := v.WriteConfigTo(&buf); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// Plane returns the saved plane sample.
func (s Settings) Plane() core.PositionSample {
	return core.PositionSample{Longitude: s.Lon, Latitude: s.Lat, Heading: s.Angle}
}

// Target returns the saved target sample. Its heading is not persisted.
func (s Settings) Target() core.PositionSample {
	return core.PositionSample{Longitude: s.TargetLon, Latitude: s.TargetLat}
}

// Update copies the last-known samples into the settings. Roles without a
// sample keep their saved values.
func (s Settings) Update(last map[core.Role]core.PositionSample) Settings {
	if p, ok := last[core.RolePlane]; ok {
		s.Lon, s.Lat, s.Angle = p.Longitude, p.Latitude, p.Heading
	}
	if t, ok := last[core.RoleTarget]; ok {
		s.TargetLon, s.TargetLat = t.Longitude, t.Latitude
	}
	return s
}
