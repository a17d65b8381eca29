// Package cache holds the latest per-role state shared between the pipeline
// goroutines, the status monitor and shutdown.
package cache

import (
	"maps"
	"sync"

	"github.com/OCAP2/routemonitor/pkg/core"
)

// byRole is a mutex-guarded map keyed by role.
type byRole[V any] struct {
	mu sync.RWMutex
	m  map[core.Role]V
}

func (c *byRole[V]) Get(role core.Role) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[role]
	return v, ok
}

func (c *byRole[V]) Set(role core.Role, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = make(map[core.Role]V)
	}
	c.m[role] = v
}

// Snapshot returns a copy the caller may modify.
func (c *byRole[V]) Snapshot() map[core.Role]V {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[core.Role]V, len(c.m))
	maps.Copy(out, c.m)
	return out
}

// TrackCache keeps the most recent decoded sample per role so the last-known
// positions can be written back to the settings file on shutdown.
type TrackCache struct {
	byRole[core.PositionSample]
}

func NewTrackCache() *TrackCache {
	return &TrackCache{}
}
