// Package convert maps between core track types and GORM models
package convert

import (
	"github.com/OCAP2/routemonitor/internal/geo"
	"github.com/OCAP2/routemonitor/internal/model"
	"github.com/OCAP2/routemonitor/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// pointToPosition3D converts a geom.Point to a core.Position3D
func pointToPosition3D(p geom.Point) core.Position3D {
	coord, ok := p.Coordinates()
	if !ok {
		return core.Position3D{}
	}
	return core.Position3D{X: coord.XY.X, Y: coord.XY.Y, Z: coord.Z}
}

// CoreToSession converts a core.Session to a GORM Session.
func CoreToSession(s core.Session, settings []byte) model.Session {
	return model.Session{
		ID:        s.ID,
		Name:      s.Name,
		Tag:       s.Tag,
		StartTime: s.StartTime,
		Frame:     s.Frame,
		Capacity:  s.Capacity,
		Settings:  datatypes.JSON(settings),
	}
}

// SessionToCore converts a GORM Session to a core.Session.
func SessionToCore(s model.Session) core.Session {
	return core.Session{
		ID:        s.ID,
		Name:      s.Name,
		Tag:       s.Tag,
		StartTime: s.StartTime,
		Frame:     s.Frame,
		Capacity:  s.Capacity,
	}
}

// CoreToTrackPoint converts a core.TrackSample to a GORM TrackPoint.
// A non-finite projected position is stored as an empty point.
func CoreToTrackPoint(s core.TrackSample, sessionID uint) model.TrackPoint {
	pos, err := geo.PointFromPosition(s.Projected)
	if err != nil {
		pos = geom.Point{}
	}
	return model.TrackPoint{
		Time:       s.Time,
		SessionID:  sessionID,
		Role:       s.Role.String(),
		Reserved:   s.Sample.Reserved,
		Longitude:  s.Sample.Longitude,
		Latitude:   s.Sample.Latitude,
		Heading:    s.Sample.Heading,
		Position:   pos,
		TraceLen:   s.TraceLen,
		Suppressed: s.Suppressed,
	}
}

// TrackPointToCore converts a GORM TrackPoint to a core.TrackSample.
func TrackPointToCore(p model.TrackPoint) core.TrackSample {
	return core.TrackSample{
		Role: core.Role(p.Role),
		Time: p.Time,
		Sample: core.PositionSample{
			Reserved:  p.Reserved,
			Longitude: p.Longitude,
			Latitude:  p.Latitude,
			Heading:   p.Heading,
		},
		Projected:  pointToPosition3D(p.Position),
		TraceLen:   p.TraceLen,
		Suppressed: p.Suppressed,
	}
}

// CoreToTraceReset converts a core.TraceReset to a GORM TraceReset.
func CoreToTraceReset(r core.TraceReset, sessionID uint) model.TraceReset {
	return model.TraceReset{
		Time:      r.Time,
		SessionID: sessionID,
		Role:      r.Role.String(),
		Discarded: r.Discarded,
		Policy:    r.Policy,
	}
}
