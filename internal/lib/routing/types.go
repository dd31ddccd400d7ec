package routing

import (
	"context"

	"github.com/dpup/campusnav/server/internal/lib/geo"
)

// LabelUnavailable is used when the provider omits a distance or duration label
const LabelUnavailable = "unavailable"

// Route is a walking route returned by the directions provider. A Route is
// never modified after it is built; recalculation replaces it.
type Route struct {
	Points          []geo.Point `json:"points"`
	DistanceMeters  uint        `json:"distance_meters"`
	DurationSeconds uint        `json:"duration_seconds"`
	DistanceLabel   string      `json:"distance_label"`
	DurationLabel   string      `json:"duration_label"`
}

// Origin returns the first point of the route
func (r *Route) Origin() geo.Point {
	if r == nil || len(r.Points) == 0 {
		return geo.Point{}
	}
	return r.Points[0]
}

// End returns the last point of the route
func (r *Route) End() geo.Point {
	if r == nil || len(r.Points) == 0 {
		return geo.Point{}
	}
	return r.Points[len(r.Points)-1]
}

// Classification describes where a position sits relative to a route
type Classification string

const (
	OnRoute  Classification = "on_route"  // within the on-route band
	Drifting Classification = "drifting"  // inside the deviation threshold but leaving the path
	OffRoute Classification = "off_route" // beyond the deviation threshold
)

// Deviation is the result of checking a position against a route
type Deviation struct {
	Classification  Classification `json:"classification"`
	DistanceToRoute float64        `json:"distance_to_route"`
	RemainingMeters float64        `json:"remaining_meters"`
	ClosestPoint    geo.Point      `json:"closest_point"`
}

// IsOffRoute reports whether the position crossed the deviation threshold
func (d Deviation) IsOffRoute() bool {
	return d.Classification == OffRoute
}

// DeviationMatcher checks live positions against route geometry
type DeviationMatcher interface {
	// Check a single position against route
	CheckPosition(ctx context.Context, position geo.Point, route *Route) (Deviation, error)

	// Deviation threshold in meters
	Threshold() float64
}
