package geo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/OCAP2/routemonitor/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Samples arrive as EPSG:4326 (lon, lat, height). The map works in a projected
// frame, EPSG:3857 unless configured otherwise; height passes through as Z.

const (
	EPSGLonLat      = 4326
	EPSGWebMercator = 3857
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ErrUnsupportedFrame is returned for working frames the projector cannot target.
var ErrUnsupportedFrame = errors.New("unsupported working frame")

type transformFunc func(a, b, c float64) (float64, float64, float64)

// Projector converts geographic points into the working frame and back.
// It is safe for concurrent use.
type Projector struct {
	target  int
	forward transformFunc
	inverse transformFunc
}

// NewProjector returns a Projector targeting the given EPSG code.
func NewProjector(target int) (*Projector, error) {
	p := &Projector{target: target}
	switch target {
	case EPSGLonLat:
		identity := func(a, b, c float64) (float64, float64, float64) { return a, b, c }
		p.forward = identity
		p.inverse = identity
	case EPSGWebMercator:
		epsg := wgs84.EPSG()
		p.forward = transformFunc(epsg.Transform(EPSGLonLat, target))
		p.inverse = transformFunc(epsg.Transform(target, EPSGLonLat))
	default:
		return nil, fmt.Errorf("%w: EPSG:%d", ErrUnsupportedFrame, target)
	}
	return p, nil
}

// Target returns the EPSG code of the working frame.
func (p *Projector) Target() int {
	return p.target
}

// Project converts a geographic point into the working frame.
func (p *Projector) Project(pt core.GeoPoint) core.Position3D {
	x, y, z := p.forward(pt.Longitude, pt.Latitude, pt.Altitude)
	return core.Position3D{X: x, Y: y, Z: z}
}

// Unproject converts a working-frame position back to geographic coordinates.
func (p *Projector) Unproject(pos core.Position3D) core.GeoPoint {
	lon, lat, alt := p.inverse(pos.X, pos.Y, pos.Z)
	return core.GeoPoint{Longitude: lon, Latitude: lat, Altitude: alt}
}

// GeoPointFromString parses a "long,lat" or "long,lat,elev" string.
func GeoPointFromString(coords string) (core.GeoPoint, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) < 2 {
		return core.GeoPoint{}, ErrInvalidCoordinates
	}
	long, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return core.GeoPoint{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return core.GeoPoint{}, ErrInvalidCoordinates
	}
	var elev float64
	if len(coordsSplit) > 2 {
		elev, err = strconv.ParseFloat(strings.TrimSpace(coordsSplit[2]), 64)
		if err != nil {
			return core.GeoPoint{}, ErrInvalidCoordinates
		}
	}
	return core.GeoPoint{Longitude: long, Latitude: lat, Altitude: elev}, nil
}

// PointFromPosition wraps a working-frame position as an XYZ geometry point.
// Non-finite coordinates are rejected.
func PointFromPosition(p core.Position3D) (geom.Point, error) {
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: p.X, Y: p.Y},
			Z:    p.Z,
			Type: geom.DimXYZ,
		},
	)
}

// LineStringFromPositions builds an XYZ line string in vertex order.
// Fewer than two vertices yields an empty line string.
func LineStringFromPositions(ps []core.Position3D) (geom.LineString, error) {
	if len(ps) < 2 {
		return geom.LineString{}, nil
	}
	coords := make([]float64, 0, len(ps)*3)
	for _, p := range ps {
		coords = append(coords, p.X, p.Y, p.Z)
	}
	seq := geom.NewSequence(coords, geom.DimXYZ)
	ls, err := geom.NewLineString(seq)
	if err != nil {
		return geom.LineString{}, fmt.Errorf("build line string: %w", err)
	}
	return ls, nil
}
