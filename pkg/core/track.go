// pkg/core/track.go
package core

import "time"

// Role identifies which tracked entity a pipeline serves.
type Role string

const (
	RolePlane  Role = "plane"
	RoleTarget Role = "target"
)

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// Position3D is a point in the working (render) frame.
type Position3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// GeoPoint is a geographic position in degrees with an altitude in meters.
type GeoPoint struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Altitude  float64 `json:"altitude"`
}

// PositionSample is one decoded position datagram.
type PositionSample struct {
	Reserved  byte    `json:"reserved"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Heading   float64 `json:"heading"`
}

// At returns the sample's position at the given altitude.
func (s PositionSample) At(altitude float64) GeoPoint {
	return GeoPoint{Longitude: s.Longitude, Latitude: s.Latitude, Altitude: altitude}
}

// Viewpoint describes a camera looking at a focal point.
type Viewpoint struct {
	Name    string   `json:"name"`
	Focal   GeoPoint `json:"focal"`
	Heading float64  `json:"heading"`
	Pitch   float64  `json:"pitch"`
	Range   float64  `json:"range"`
}

// MarkerState is the latest displayed position of an entity's icon.
type MarkerState struct {
	Position   Position3D `json:"position"`
	Geographic GeoPoint   `json:"geographic"`
	Heading    float64    `json:"heading"`
	Set        bool       `json:"set"`
}

// TrackSample is what a pipeline hands to storage for every accepted datagram.
type TrackSample struct {
	Role       Role           `json:"role"`
	Time       time.Time      `json:"time"`
	Sample     PositionSample `json:"sample"`
	Projected  Position3D     `json:"projected"`
	TraceLen   int            `json:"traceLen"`
	Suppressed bool           `json:"suppressed"`
}

// TraceReset records an overflow of a pipeline's trace.
type TraceReset struct {
	Role      Role      `json:"role"`
	Time      time.Time `json:"time"`
	Discarded int       `json:"discarded"`
	Policy    string    `json:"policy"`
}

// Session is one recording run covering both pipelines.
type Session struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Tag       string    `json:"tag"`
	StartTime time.Time `json:"startTime"`
	Frame     int       `json:"frame"` // EPSG code of projected coordinates
	Capacity  int       `json:"capacity"`
}

// UploadMetadata describes an exported track recording sent to a web server.
type UploadMetadata struct {
	Name     string
	Duration float64
	Tag      string
}
