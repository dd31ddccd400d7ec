package geo

import "errors"

// ErrInvalidPath is returned when a path has fewer than 2 points
var ErrInvalidPath = errors.New("invalid path: at least 2 points are required")

// ErrInvalidCoordinate is returned for points outside [-90, 90] / [-180, 180] or non-finite values
var ErrInvalidCoordinate = errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")

// Point represents a geographic coordinate
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks the coordinate invariant
func (p Point) Validate() error {
	if !isValidCoordinate(p) {
		return ErrInvalidCoordinate
	}
	return nil
}

// GeoUtils interface defines geographic calculation utilities
type GeoUtils interface {
	// Calculate great-circle distance between two points in meters
	PointToPoint(p1, p2 Point) (float64, error)

	// Calculate perpendicular distance from point to segment a-b in meters
	PointToSegment(point, a, b Point) float64

	// Calculate minimum distance from point to path in meters
	PointToPolyline(point Point, path []Point) (float64, error)

	// Report whether point lies further than thresholdMeters from path
	IsOffRoute(point Point, path []Point, thresholdMeters float64) (bool, error)

	// Find closest point on path to given point
	ClosestPointOnPolyline(point Point, path []Point) (Point, error)

	// Distance along path from the projection of point to the end of path
	RemainingDistance(point Point, path []Point) (float64, error)
}

// NewGeoUtils is implemented in geo.go
