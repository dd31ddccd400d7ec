package services

import (
	"context"
	"fmt"
	"math"

	"github.com/dpup/prefab/logging"

	"github.com/dpup/campusnav/server/internal/clients/google"
	"github.com/dpup/campusnav/server/internal/lib/geo"
	"github.com/dpup/campusnav/server/internal/lib/polyline"
	"github.com/dpup/campusnav/server/internal/lib/routing"
)

// DirectionsClient is the provider call RouteService depends on
type DirectionsClient interface {
	Directions(ctx context.Context, origin, destination geo.Point) (*google.DirectionsResponse, error)
}

// RouteService turns provider responses into validated walking routes
type RouteService struct {
	client DirectionsClient
}

// NewRouteService creates a new RouteService
func NewRouteService(client DirectionsClient) *RouteService {
	return &RouteService{client: client}
}

// FetchRoute requests walking directions and returns the fastest candidate.
// Every failure is a *routing.RouteError. The service never retries.
func (s *RouteService) FetchRoute(ctx context.Context, origin, destination geo.Point) (*routing.Route, error) {
	if err := origin.Validate(); err != nil {
		return nil, routing.NewRouteError(routing.KindInvalidPath, "", fmt.Errorf("invalid origin: %w", err))
	}
	if err := destination.Validate(); err != nil {
		return nil, routing.NewRouteError(routing.KindInvalidPath, "", fmt.Errorf("invalid destination: %w", err))
	}

	response, err := s.client.Directions(ctx, origin, destination)
	if err != nil {
		logging.Warnw(ctx, "Directions request failed", "error", err)
		return nil, err
	}

	if response.Status != "OK" || len(response.Routes) == 0 {
		return nil, routing.NewRouteError(routing.KindNoRouteFound, response.Status,
			fmt.Errorf("no route found: %s", response.ErrorMessage))
	}

	candidate, err := selectFastest(response.Routes)
	if err != nil {
		return nil, err
	}

	route, err := buildRoute(candidate)
	if err != nil {
		return nil, err
	}

	logging.Infow(ctx, "Route acquired",
		"candidates", len(response.Routes),
		"points", len(route.Points),
		"distance_meters", route.DistanceMeters,
		"duration_seconds", route.DurationSeconds)

	return route, nil
}

// selectFastest picks the candidate with the smallest first-leg duration; the
// first candidate wins ties. Candidates without a leg duration are skipped.
func selectFastest(candidates []google.DirectionsRoute) (google.DirectionsRoute, error) {
	best := -1
	bestDuration := math.Inf(1)

	for i, candidate := range candidates {
		duration, ok := candidate.DurationValue()
		if !ok {
			continue
		}
		if best < 0 || duration < bestDuration {
			best = i
			bestDuration = duration
		}
	}

	if best < 0 {
		return google.DirectionsRoute{}, routing.NewRouteError(routing.KindIncompleteRouteData, "",
			fmt.Errorf("none of %d routes has a leg duration", len(candidates)))
	}
	return candidates[best], nil
}

// buildRoute decodes the overview geometry and assembles the Route
func buildRoute(candidate google.DirectionsRoute) (*routing.Route, error) {
	if candidate.OverviewPolyline.Points == "" {
		return nil, routing.NewRouteError(routing.KindIncompleteRouteData, "",
			fmt.Errorf("route has no overview polyline"))
	}

	points, err := polyline.Decode(candidate.OverviewPolyline.Points)
	if err != nil {
		return nil, routing.NewRouteError(routing.KindDecode, "", err)
	}

	points = geo.FilterValidPoints(points)
	if len(points) == 0 {
		return nil, routing.NewRouteError(routing.KindInvalidRoutePoints, "",
			fmt.Errorf("no valid points in decoded route"))
	}

	route := &routing.Route{
		Points:        points,
		DistanceLabel: routing.LabelUnavailable,
		DurationLabel: routing.LabelUnavailable,
	}

	if duration, ok := candidate.DurationValue(); ok {
		route.DurationSeconds = toUnsigned(duration)
	}
	if distance, ok := candidate.DistanceValue(); ok {
		route.DistanceMeters = toUnsigned(distance)
	}

	leg := candidate.Legs[0]
	if leg.Distance != nil && leg.Distance.Text != "" {
		route.DistanceLabel = leg.Distance.Text
	}
	if leg.Duration != nil && leg.Duration.Text != "" {
		route.DurationLabel = leg.Duration.Text
	}

	return route, nil
}

func toUnsigned(v float64) uint {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	return uint(math.Round(v))
}
