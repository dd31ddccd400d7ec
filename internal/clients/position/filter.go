// Package position provides navigation.PositionSource implementations.
package position

import (
	"sync"

	"github.com/dpup/campusnav/server/internal/lib/geo"
	"github.com/dpup/campusnav/server/internal/lib/navigation"
)

// fixFilter applies the accuracy tier and the minimum time and distance
// between delivered fixes
type fixFilter struct {
	opts     navigation.WatchOptions
	geoUtils geo.GeoUtils

	mu   sync.Mutex
	last *navigation.Fix
}

func newFixFilter(opts navigation.WatchOptions) *fixFilter {
	return &fixFilter{
		opts:     opts,
		geoUtils: geo.NewGeoUtils(),
	}
}

// accept reports whether fix should be delivered and records it if so
func (f *fixFilter) accept(fix navigation.Fix) bool {
	if fix.Coordinate.Validate() != nil {
		return false
	}
	if limit := f.opts.Accuracy.MaxErrorMeters(); limit > 0 && fix.Accuracy > limit {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.last != nil {
		if f.opts.TimeInterval > 0 && fix.Timestamp.Sub(f.last.Timestamp) < f.opts.TimeInterval {
			return false
		}
		if f.opts.DistanceInterval > 0 {
			moved, err := f.geoUtils.PointToPoint(f.last.Coordinate, fix.Coordinate)
			if err != nil || moved < f.opts.DistanceInterval {
				return false
			}
		}
	}

	accepted := fix
	f.last = &accepted
	return true
}
