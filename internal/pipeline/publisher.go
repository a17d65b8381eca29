package pipeline

import (
	"github.com/OCAP2/routemonitor/internal/cache"
	"github.com/OCAP2/routemonitor/internal/metrics"
	"github.com/OCAP2/routemonitor/internal/scene"
	"github.com/OCAP2/routemonitor/pkg/core"
)

// Publisher replaces a pipeline's drawables with a line-strip built from the
// current trace and keeps the marker in sync.
type Publisher struct {
	role       core.Role
	attachment scene.Attachment
	marker     scene.Marker
	markers    *cache.MarkerCache
}

func NewPublisher(role core.Role, attachment scene.Attachment, marker scene.Marker, markers *cache.MarkerCache) *Publisher {
	return &Publisher{
		role:       role,
		attachment: attachment,
		marker:     marker,
		markers:    markers,
	}
}

// Publish detaches everything at the attachment point and attaches a freshly
// built line-strip of trace, in order. The marker is moved only once its
// state has been set.
func (p *Publisher) Publish(trace []core.Position3D, m core.MarkerState) scene.Drawable {
	if m.Set {
		if p.marker != nil {
			p.marker.SetPosition(m.Position)
			p.marker.SetHeading(m.Heading)
		}
		if p.markers != nil {
			p.markers.Set(p.role, m)
		}
	}

	vertices := make([]core.Position3D, len(trace))
	copy(vertices, trace)
	d := scene.Drawable{
		Name:     p.role.String() + "-trace",
		Vertices: vertices,
		Style:    scene.TraceStyle,
	}

	p.attachment.DetachAll()
	p.attachment.Attach(d)
	metrics.GeometryPublished.WithLabelValues(p.role.String()).Inc()

	// a trace that has not left its first position has no line string yet
	if ls, err := d.LineString(); err == nil {
		metrics.TraceDistance.WithLabelValues(p.role.String()).Set(ls.Length())
	}
	return d
}
