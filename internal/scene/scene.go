// Package scene defines what the track pipelines need from the renderer and
// provides a headless implementation used by the application and tests.
package scene

import (
	"sync"

	"github.com/OCAP2/routemonitor/internal/geo"
	"github.com/OCAP2/routemonitor/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Color is RGBA in [0,1].
type Color [4]float32

var Red = Color{1, 0, 0, 1}

// LineStyle is applied to a whole line-strip.
type LineStyle struct {
	Color   Color   `json:"color"`
	Width   float32 `json:"width"`
	Stipple bool    `json:"stipple"`
}

// TraceStyle is the fixed style of every track line-strip.
var TraceStyle = LineStyle{Color: Red, Width: 4, Stipple: true}

// Drawable is an immutable line-strip ready to be attached to the scene.
type Drawable struct {
	Name     string            `json:"name"`
	Vertices []core.Position3D `json:"vertices"`
	Style    LineStyle         `json:"style"`
}

// LineString returns the drawable's vertices as an XYZ line string. It fails
// when the vertices do not span two distinct XY positions.
func (d Drawable) LineString() (geom.LineString, error) {
	return geo.LineStringFromPositions(d.Vertices)
}

// Attachment is a scene node drawables are hung from.
type Attachment interface {
	Attach(d Drawable)
	DetachAll()
}

// Marker is an entity icon.
type Marker interface {
	SetPosition(p core.Position3D)
	SetHeading(deg float64)
}

// Camera is the active camera controller.
type Camera interface {
	Viewpoint() core.Viewpoint
	SetViewpoint(vp core.Viewpoint)
}

// Scene is a headless scene graph holding named attachment points, markers
// and one camera.
type Scene struct {
	mu      sync.Mutex
	layers  map[string]*Layer
	markers map[string]*MarkerNode
	camera  *CameraNode
}

// New creates an empty scene whose camera starts at the given viewpoint.
func New(start core.Viewpoint) *Scene {
	return &Scene{
		layers:  make(map[string]*Layer),
		markers: make(map[string]*MarkerNode),
		camera:  &CameraNode{vp: start},
	}
}

// Layer returns the attachment point with the given name, creating it on first use.
func (s *Scene) Layer(name string) *Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.layers[name]
	if !ok {
		l = &Layer{name: name}
		s.layers[name] = l
	}
	return l
}

// Marker returns the marker with the given name, creating it on first use.
func (s *Scene) Marker(name string) *MarkerNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markers[name]
	if !ok {
		m = &MarkerNode{name: name}
		s.markers[name] = m
	}
	return m
}

// Camera returns the scene camera.
func (s *Scene) Camera() *CameraNode {
	return s.camera
}

// Layer is an attachment point.
type Layer struct {
	mu        sync.RWMutex
	name      string
	drawables []Drawable
	attaches  uint64
}

func (l *Layer) Attach(d Drawable) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.drawables = append(l.drawables, d)
	l.attaches++
}

func (l *Layer) DetachAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.drawables = nil
}

// Drawables returns the currently attached drawables.
func (l *Layer) Drawables() []Drawable {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Drawable, len(l.drawables))
	copy(out, l.drawables)
	return out
}

// Attaches returns how many drawables were ever attached.
func (l *Layer) Attaches() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.attaches
}

// MarkerNode is a headless marker.
type MarkerNode struct {
	mu         sync.RWMutex
	name       string
	position   core.Position3D
	heading    float64
	positioned bool
}

func (m *MarkerNode) SetPosition(p core.Position3D) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = p
	m.positioned = true
}

func (m *MarkerNode) SetHeading(deg float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heading = deg
}

// Position returns the marker position and whether it was ever set.
func (m *MarkerNode) Position() (core.Position3D, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.position, m.positioned
}

// Heading returns the marker heading in degrees.
func (m *MarkerNode) Heading() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.heading
}

// CameraNode is a headless camera controller.
type CameraNode struct {
	mu      sync.RWMutex
	vp      core.Viewpoint
	updates uint64
}

func (c *CameraNode) Viewpoint() core.Viewpoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vp
}

func (c *CameraNode) SetViewpoint(vp core.Viewpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vp = vp
	c.updates++
}

// Updates returns how many times the viewpoint was set.
func (c *CameraNode) Updates() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updates
}
