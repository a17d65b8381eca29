package cache

import "github.com/OCAP2/routemonitor/pkg/core"

// MarkerCache holds the latest marker state per role. The publisher writes it,
// the follower and the status monitor read it.
type MarkerCache struct {
	byRole[core.MarkerState]
}

func NewMarkerCache() *MarkerCache {
	return &MarkerCache{}
}
