package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/campusnav/server/internal/lib/geo"
)

// Straight walk east along the equator, ~111 m per 0.001 degree
func equatorRoute() *Route {
	return &Route{
		Points: []geo.Point{
			{Latitude: 0, Longitude: 0},
			{Latitude: 0, Longitude: 0.001},
			{Latitude: 0, Longitude: 0.002},
		},
		DistanceMeters:  222,
		DurationSeconds: 160,
		DistanceLabel:   "0.2 km",
		DurationLabel:   "3 min",
	}
}

func TestDeviationMatcher_CheckPosition(t *testing.T) {
	matcher := NewDeviationMatcher(50)
	ctx := context.Background()
	route := equatorRoute()

	tests := []struct {
		name     string
		position geo.Point
		want     Classification
	}{
		{"on the path", geo.Point{Latitude: 0, Longitude: 0.0005}, OnRoute},
		{"~11 m off", geo.Point{Latitude: 0.0001, Longitude: 0.0015}, OnRoute},
		{"~33 m off", geo.Point{Latitude: 0.0003, Longitude: 0.0015}, Drifting},
		{"~55 m off", geo.Point{Latitude: 0.0005, Longitude: 0.0015}, OffRoute},
		{"far away", geo.Point{Latitude: 0.01, Longitude: 0.01}, OffRoute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deviation, err := matcher.CheckPosition(ctx, tt.position, route)
			require.NoError(t, err)
			assert.Equal(t, tt.want, deviation.Classification)
			assert.Equal(t, tt.want == OffRoute, deviation.IsOffRoute())
		})
	}
}

func TestDeviationMatcher_RemainingMeters(t *testing.T) {
	matcher := NewDeviationMatcher(50)

	deviation, err := matcher.CheckPosition(context.Background(), geo.Point{Latitude: 0.0001, Longitude: 0.0005}, equatorRoute())
	require.NoError(t, err)
	assert.InDelta(t, 166.8, deviation.RemainingMeters, 1)
	assert.InDelta(t, 0.0005, deviation.ClosestPoint.Longitude, 1e-9)
	assert.InDelta(t, 11.1, deviation.DistanceToRoute, 0.5)
}

func TestDeviationMatcher_SinglePointRoute(t *testing.T) {
	matcher := NewDeviationMatcher(50)
	route := &Route{Points: []geo.Point{{Latitude: 0, Longitude: 0}}}

	near, err := matcher.CheckPosition(context.Background(), geo.Point{Latitude: 0.0001, Longitude: 0}, route)
	require.NoError(t, err)
	assert.Equal(t, OnRoute, near.Classification)
	assert.InDelta(t, near.DistanceToRoute, near.RemainingMeters, 1e-9)

	far, err := matcher.CheckPosition(context.Background(), geo.Point{Latitude: 0.001, Longitude: 0}, route)
	require.NoError(t, err)
	assert.Equal(t, OffRoute, far.Classification)
}

func TestDeviationMatcher_Errors(t *testing.T) {
	matcher := NewDeviationMatcher(50)
	ctx := context.Background()

	_, err := matcher.CheckPosition(ctx, geo.Point{}, nil)
	assert.Error(t, err)

	_, err = matcher.CheckPosition(ctx, geo.Point{}, &Route{})
	assert.Error(t, err)

	_, err = matcher.CheckPosition(ctx, geo.Point{Latitude: 95}, equatorRoute())
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)
}

func TestDeviationMatcher_DefaultThreshold(t *testing.T) {
	assert.Equal(t, DefaultDeviationThreshold, NewDeviationMatcher(0).Threshold())
	assert.Equal(t, 75.0, NewDeviationMatcher(75).Threshold())
}

func TestRoute_Endpoints(t *testing.T) {
	route := equatorRoute()
	assert.Equal(t, geo.Point{Latitude: 0, Longitude: 0}, route.Origin())
	assert.Equal(t, geo.Point{Latitude: 0, Longitude: 0.002}, route.End())

	var empty *Route
	assert.Equal(t, geo.Point{}, empty.End())
}
