package pipeline

import (
	"github.com/OCAP2/routemonitor/internal/scene"
	"github.com/OCAP2/routemonitor/pkg/core"
)

// Follower keeps the camera focused on a pipeline's entity.
type Follower struct {
	camera   scene.Camera
	marker   scene.Marker
	strategy FocusStrategy
	fixed    core.GeoPoint
}

func NewFollower(camera scene.Camera, marker scene.Marker, strategy FocusStrategy, fixed core.GeoPoint) *Follower {
	return &Follower{
		camera:   camera,
		marker:   marker,
		strategy: strategy,
		fixed:    fixed,
	}
}

// Follow re-aims the camera for sample. Heading, pitch, range and focal
// altitude of the current viewpoint are kept.
func (f *Follower) Follow(sample core.PositionSample) core.Viewpoint {
	vp := f.camera.Viewpoint()

	switch f.strategy {
	case FocusFixed:
		vp.Focal.Longitude = f.fixed.Longitude
		vp.Focal.Latitude = f.fixed.Latitude
	default:
		vp.Focal.Longitude = sample.Longitude
		vp.Focal.Latitude = sample.Latitude
	}

	f.camera.SetViewpoint(vp)
	if f.marker != nil {
		f.marker.SetHeading(sample.Heading)
	}
	return vp
}
