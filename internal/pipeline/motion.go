package pipeline

import "sync/atomic"

// MotionControl is the shared switch that lets users freeze rendering while
// traces keep growing. The zero value is disabled; use NewMotionControl.
type MotionControl struct {
	enabled atomic.Bool
}

// NewMotionControl returns a control in the given state.
func NewMotionControl(enabled bool) *MotionControl {
	m := &MotionControl{}
	m.enabled.Store(enabled)
	return m
}

func (m *MotionControl) Enabled() bool {
	return m.enabled.Load()
}

func (m *MotionControl) SetEnabled(v bool) {
	m.enabled.Store(v)
}

// Toggle flips the state and returns the new value.
func (m *MotionControl) Toggle() bool {
	for {
		old := m.enabled.Load()
		if m.enabled.CompareAndSwap(old, !old) {
			return !old
		}
	}
}
