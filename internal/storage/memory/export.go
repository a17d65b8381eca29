// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/OCAP2/routemonitor/pkg/core"
)

const exportVersion = "1"

// TrackExport is the root JSON structure
type TrackExport struct {
	Version   string      `json:"version"`
	Name      string      `json:"name"`
	Tag       string      `json:"tag"`
	StartTime time.Time   `json:"startTime"`
	Duration  float64     `json:"duration"`
	Frame     int         `json:"frame"`
	Capacity  int         `json:"capacity"`
	Tracks    []TrackJSON `json:"tracks"`
	Resets    [][]any     `json:"resets"`
}

// TrackJSON is one entity's recorded path
type TrackJSON struct {
	Role string `json:"role"`
	// Positions rows are [offsetMs, lon, lat, heading, [x, y, z], suppressed]
	Positions [][]any `json:"positions"`
}

// exportJSON writes the session data to a (gzipped) JSON file
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	// Build filename
	name := strings.ReplaceAll(b.session.Name, " ", "_")
	name = strings.ReplaceAll(name, ":", "_")
	timestamp := b.session.StartTime.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", name, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", name, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if b.cfg.CompressOutput {
		if err := b.writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := b.writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() TrackExport {
	export := TrackExport{
		Version:   exportVersion,
		Name:      b.session.Name,
		Tag:       b.session.Tag,
		StartTime: b.session.StartTime,
		Duration:  b.durationLocked().Seconds(),
		Frame:     b.session.Frame,
		Capacity:  b.session.Capacity,
		Tracks:    make([]TrackJSON, 0, len(b.samples)),
		Resets:    make([][]any, 0, len(b.resets)),
	}

	roles := make([]string, 0, len(b.samples))
	for role := range b.samples {
		roles = append(roles, role.String())
	}
	sort.Strings(roles)

	for _, role := range roles {
		samples := b.samples[core.Role(role)]
		track := TrackJSON{
			Role:      role,
			Positions: make([][]any, 0, len(samples)),
		}
		for _, s := range samples {
			track.Positions = append(track.Positions, []any{
				b.offsetMs(s.Time),
				s.Sample.Longitude,
				s.Sample.Latitude,
				s.Sample.Heading,
				[]float64{s.Projected.X, s.Projected.Y, s.Projected.Z},
				boolToInt(s.Suppressed),
			})
		}
		export.Tracks = append(export.Tracks, track)
	}

	for _, r := range b.resets {
		export.Resets = append(export.Resets, []any{b.offsetMs(r.Time), r.Role.String(), r.Discarded, r.Policy})
	}

	return export
}

func (b *Backend) offsetMs(t time.Time) int64 {
	return t.Sub(b.session.StartTime).Milliseconds()
}

// durationLocked spans from session start to the newest recorded sample.
func (b *Backend) durationLocked() time.Duration {
	var last time.Time
	for _, samples := range b.samples {
		if n := len(samples); n > 0 && samples[n-1].Time.After(last) {
			last = samples[n-1].Time
		}
	}
	if last.IsZero() || last.Before(b.session.StartTime) {
		return 0
	}
	return last.Sub(b.session.StartTime)
}

func (b *Backend) writeJSON(path string, data TrackExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func (b *Backend) writeGzipJSON(path string, data TrackExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
