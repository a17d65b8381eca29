package pipeline

import (
	"sync"

	"github.com/OCAP2/routemonitor/pkg/core"
)

// Trace is a bounded, ordered sequence of working-frame points.
// Only the owning pipeline appends; snapshots may be taken from any goroutine.
type Trace struct {
	mu       sync.RWMutex
	points   []core.Position3D
	head     int // index of the oldest point once a sliding trace wrapped
	capacity int
	policy   OverflowPolicy
}

// NewTrace creates an empty trace.
func NewTrace(capacity int, policy OverflowPolicy) *Trace {
	return &Trace{
		points:   make([]core.Position3D, 0, capacity),
		capacity: capacity,
		policy:   policy,
	}
}

// Append adds p as the newest point. It returns how many points the overflow
// policy discarded to make room.
func (t *Trace) Append(p core.Position3D) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.points) < t.capacity {
		t.points = append(t.points, p)
		return 0
	}

	if t.policy == OverflowSlide {
		t.points[t.head] = p
		t.head = (t.head + 1) % t.capacity
		return 1
	}

	discarded := len(t.points)
	t.points = t.points[:0]
	t.head = 0
	t.points = append(t.points, p)
	return discarded
}

// Len returns the number of points.
func (t *Trace) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.points)
}

func (t *Trace) Capacity() int {
	return t.capacity
}

// Last returns the newest point.
func (t *Trace) Last() (core.Position3D, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.points) == 0 {
		return core.Position3D{}, false
	}
	i := len(t.points) - 1
	if t.head > 0 {
		i = t.head - 1
	}
	return t.points[i], true
}

// Snapshot returns the points oldest first. The result is a copy.
func (t *Trace) Snapshot() []core.Position3D {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]core.Position3D, 0, len(t.points))
	out = append(out, t.points[t.head:]...)
	out = append(out, t.points[:t.head]...)
	return out
}
