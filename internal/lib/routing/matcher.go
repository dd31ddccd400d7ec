package routing

import (
	"context"
	"errors"

	"github.com/dpup/campusnav/server/internal/lib/geo"
)

// DefaultDeviationThreshold is the distance in meters beyond which a walker is off route
const DefaultDeviationThreshold = 50.0

// deviationMatcher implements the DeviationMatcher interface
type deviationMatcher struct {
	geoUtils         geo.GeoUtils
	threshold        float64 // Distance in meters for OFF_ROUTE classification
	onRouteThreshold float64 // Distance in meters for ON_ROUTE classification
}

// NewDeviationMatcher creates a DeviationMatcher with the given deviation threshold.
// Non-positive thresholds fall back to DefaultDeviationThreshold.
func NewDeviationMatcher(thresholdMeters float64) DeviationMatcher {
	if thresholdMeters <= 0 {
		thresholdMeters = DefaultDeviationThreshold
	}
	return &deviationMatcher{
		geoUtils:         geo.NewGeoUtils(),
		threshold:        thresholdMeters,
		onRouteThreshold: thresholdMeters / 2,
	}
}

// CheckPosition classifies position against route
func (m *deviationMatcher) CheckPosition(ctx context.Context, position geo.Point, route *Route) (Deviation, error) {
	if route == nil || len(route.Points) == 0 {
		return Deviation{}, errors.New("route has no points")
	}
	if err := position.Validate(); err != nil {
		return Deviation{}, err
	}

	var deviation Deviation

	if len(route.Points) == 1 {
		// A single-point route degenerates to the distance to that point
		distance, err := m.geoUtils.PointToPoint(position, route.Points[0])
		if err != nil {
			return Deviation{}, err
		}
		deviation = Deviation{
			DistanceToRoute: distance,
			RemainingMeters: distance,
			ClosestPoint:    route.Points[0],
		}
	} else {
		distance, err := m.geoUtils.PointToPolyline(position, route.Points)
		if err != nil {
			return Deviation{}, err
		}
		closest, err := m.geoUtils.ClosestPointOnPolyline(position, route.Points)
		if err != nil {
			return Deviation{}, err
		}
		remaining, err := m.geoUtils.RemainingDistance(position, route.Points)
		if err != nil {
			return Deviation{}, err
		}
		deviation = Deviation{
			DistanceToRoute: distance,
			RemainingMeters: remaining,
			ClosestPoint:    closest,
		}
	}

	deviation.Classification = m.classify(deviation.DistanceToRoute)
	return deviation, nil
}

// Threshold returns the deviation threshold in meters
func (m *deviationMatcher) Threshold() float64 {
	return m.threshold
}

func (m *deviationMatcher) classify(distance float64) Classification {
	switch {
	case distance > m.threshold:
		return OffRoute
	case distance <= m.onRouteThreshold:
		return OnRoute
	default:
		return Drifting
	}
}
