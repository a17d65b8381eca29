package feed

import (
	"math"

	"github.com/OCAP2/routemonitor/pkg/core"
)

const earthRadiusM = 6371000.0

// Track moves an entity along a constant turn rate at constant speed.
// A zero turn rate flies a great circle.
type Track struct {
	lon, lat float64
	heading  float64
	speedMS  float64
	turnDegS float64
}

func NewTrack(start core.GeoPoint, heading, speedMS, turnDegS float64) *Track {
	return &Track{
		lon:      start.Longitude,
		lat:      start.Latitude,
		heading:  normalizeHeading(heading),
		speedMS:  speedMS,
		turnDegS: turnDegS,
	}
}

// Current returns the sample at the current position.
func (t *Track) Current() core.PositionSample {
	return core.PositionSample{Longitude: t.lon, Latitude: t.lat, Heading: t.heading}
}

// Step advances the track by dt seconds and returns the new sample.
func (t *Track) Step(dt float64) core.PositionSample {
	dist := t.speedMS * dt / earthRadiusM
	lat1 := t.lat * math.Pi / 180
	lon1 := t.lon * math.Pi / 180
	brg := t.heading * math.Pi / 180

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(dist) + math.Cos(lat1)*math.Sin(dist)*math.Cos(brg))
	lon2 := lon1 + math.Atan2(
		math.Sin(brg)*math.Sin(dist)*math.Cos(lat1),
		math.Cos(dist)-math.Sin(lat1)*math.Sin(lat2),
	)

	t.lat = lat2 * 180 / math.Pi
	t.lon = math.Mod(lon2*180/math.Pi+540, 360) - 180
	t.heading = normalizeHeading(t.heading + t.turnDegS*dt)
	return t.Current()
}

func normalizeHeading(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return h
}
