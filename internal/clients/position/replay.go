package position

import (
	"sync"
	"time"

	"github.com/dpup/campusnav/server/internal/lib/geo"
	"github.com/dpup/campusnav/server/internal/lib/navigation"
)

const metersPerDegreeLatitude = 111320.0

// ReplaySource replays a fixed walk, one point per interval
type ReplaySource struct {
	points   []geo.Point
	interval time.Duration
	offset   float64 // meters north of each point
	accuracy float64

	mu   sync.Mutex
	done chan struct{}
}

// NewReplaySource creates a source that walks points at interval
func NewReplaySource(points []geo.Point, interval time.Duration) *ReplaySource {
	return &ReplaySource{
		points:   points,
		interval: interval,
		accuracy: 5,
		done:     make(chan struct{}),
	}
}

// WithOffset shifts every replayed point north by meters, simulating a
// walker who strays from the path
func (r *ReplaySource) WithOffset(meters float64) *ReplaySource {
	r.offset = meters
	return r
}

// Finished is closed when the most recent Watch has replayed every point
func (r *ReplaySource) Finished() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Watch starts replaying in the background
func (r *ReplaySource) Watch(opts navigation.WatchOptions, onFix func(navigation.Fix)) (navigation.Subscription, error) {
	done := make(chan struct{})
	r.mu.Lock()
	r.done = done
	r.mu.Unlock()

	sub := &replaySubscription{stop: make(chan struct{})}
	filter := newFixFilter(opts)

	go func() {
		defer close(done)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for _, point := range r.points {
			select {
			case <-sub.stop:
				return
			case <-ticker.C:
			}

			fix := navigation.Fix{
				Coordinate: geo.Point{
					Latitude:  point.Latitude + r.offset/metersPerDegreeLatitude,
					Longitude: point.Longitude,
				},
				Accuracy:  r.accuracy,
				Timestamp: time.Now(),
			}
			if filter.accept(fix) {
				onFix(fix)
			}
		}
	}()

	return sub, nil
}

type replaySubscription struct {
	once sync.Once
	stop chan struct{}
}

func (s *replaySubscription) Unsubscribe() {
	s.once.Do(func() { close(s.stop) })
}
