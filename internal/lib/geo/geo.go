package geo

import (
	"math"
)

// Earth's radius in meters
const earthRadius = 6371000

// geoUtils implements the GeoUtils interface
type geoUtils struct{}

// NewGeoUtils creates a new GeoUtils implementation
func NewGeoUtils() GeoUtils {
	return &geoUtils{}
}

// PointToPoint calculates great-circle distance between two points using Haversine formula
func (g *geoUtils) PointToPoint(p1, p2 Point) (float64, error) {
	if !isValidCoordinate(p1) || !isValidCoordinate(p2) {
		return 0, ErrInvalidCoordinate
	}
	return haversine(p1, p2), nil
}

// PointToSegment calculates perpendicular distance from point to segment a-b.
// The projection is done on a local equirectangular plane centred on the
// segment, which holds at campus and metro scale. The projection parameter is
// clamped to [0, 1] so points beyond either end measure to that endpoint.
func (g *geoUtils) PointToSegment(point, a, b Point) float64 {
	closest, _ := projectOntoSegment(point, a, b)
	return haversine(point, closest)
}

// PointToPolyline calculates minimum distance from point to path
func (g *geoUtils) PointToPolyline(point Point, path []Point) (float64, error) {
	if !isValidCoordinate(point) {
		return 0, ErrInvalidCoordinate
	}
	if len(path) < 2 {
		return 0, ErrInvalidPath
	}

	minDistance := math.Inf(1)
	for i := 0; i < len(path)-1; i++ {
		distance := g.PointToSegment(point, path[i], path[i+1])
		if distance < minDistance {
			minDistance = distance
		}
	}

	return minDistance, nil
}

// IsOffRoute reports whether point is further than thresholdMeters from path
func (g *geoUtils) IsOffRoute(point Point, path []Point, thresholdMeters float64) (bool, error) {
	distance, err := g.PointToPolyline(point, path)
	if err != nil {
		return false, err
	}
	return distance > thresholdMeters, nil
}

// ClosestPointOnPolyline finds closest point on path to given point
func (g *geoUtils) ClosestPointOnPolyline(point Point, path []Point) (Point, error) {
	closest, _, _, err := g.locate(point, path)
	return closest, err
}

// RemainingDistance measures from the projection of point onto path to the end of path
func (g *geoUtils) RemainingDistance(point Point, path []Point) (float64, error) {
	closest, segment, _, err := g.locate(point, path)
	if err != nil {
		return 0, err
	}

	remaining := haversine(closest, path[segment+1])
	for i := segment + 1; i < len(path)-1; i++ {
		remaining += haversine(path[i], path[i+1])
	}
	return remaining, nil
}

// locate returns the closest point on path, the index of the segment it lies on
// and its distance from point
func (g *geoUtils) locate(point Point, path []Point) (Point, int, float64, error) {
	if !isValidCoordinate(point) {
		return Point{}, 0, 0, ErrInvalidCoordinate
	}
	if len(path) < 2 {
		return Point{}, 0, 0, ErrInvalidPath
	}

	var closestPoint Point
	closestSegment := 0
	minDistance := math.Inf(1)

	for i := 0; i < len(path)-1; i++ {
		candidate, _ := projectOntoSegment(point, path[i], path[i+1])
		distance := haversine(point, candidate)
		if distance < minDistance {
			minDistance = distance
			closestPoint = candidate
			closestSegment = i
		}
	}

	return closestPoint, closestSegment, minDistance, nil
}

// projectOntoSegment returns the closest point on segment a-b and the clamped
// projection parameter t
func projectOntoSegment(point, a, b Point) (Point, float64) {
	if a.Latitude == b.Latitude && a.Longitude == b.Longitude {
		return a, 0
	}

	// Scale longitude by the cosine of the segment's mean latitude
	refLat := (a.Latitude + b.Latitude) / 2 * math.Pi / 180
	kx := math.Cos(refLat)

	bx := (b.Longitude - a.Longitude) * kx
	by := b.Latitude - a.Latitude
	px := (point.Longitude - a.Longitude) * kx
	py := point.Latitude - a.Latitude

	t := (px*bx + py*by) / (bx*bx + by*by)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	return interpolatePoint(a, b, t), t
}

// interpolatePoint calculates a point along the segment between two points
// t=0 returns start, t=1 returns end, t=0.5 returns midpoint
func interpolatePoint(start, end Point, t float64) Point {
	lat := start.Latitude + t*(end.Latitude-start.Latitude)
	lon := start.Longitude + t*(end.Longitude-start.Longitude)

	return Point{Latitude: lat, Longitude: lon}
}

// haversine computes the great-circle distance without validating inputs
func haversine(p1, p2 Point) float64 {
	if p1.Latitude == p2.Latitude && p1.Longitude == p2.Longitude {
		return 0
	}

	lat1 := p1.Latitude * math.Pi / 180
	lon1 := p1.Longitude * math.Pi / 180
	lat2 := p2.Latitude * math.Pi / 180
	lon2 := p2.Longitude * math.Pi / 180

	dlat := lat2 - lat1
	dlon := lon2 - lon1

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// Coordinate Conversion Utilities

// NewPoint creates a Point from latitude and longitude values with validation
func NewPoint(latitude, longitude float64) (Point, error) {
	point := Point{Latitude: latitude, Longitude: longitude}
	if !isValidCoordinate(point) {
		return Point{}, ErrInvalidCoordinate
	}
	return point, nil
}

// FilterValidPoints drops points that are non-finite or out of range
func FilterValidPoints(points []Point) []Point {
	var filtered []Point
	for _, point := range points {
		if !isValidCoordinate(point) {
			continue // Skip invalid points
		}
		filtered = append(filtered, point)
	}
	return filtered
}

// isValidCoordinate validates latitude and longitude values
func isValidCoordinate(point Point) bool {
	if math.IsNaN(point.Latitude) || math.IsNaN(point.Longitude) ||
		math.IsInf(point.Latitude, 0) || math.IsInf(point.Longitude, 0) {
		return false
	}
	return point.Latitude >= -90 && point.Latitude <= 90 &&
		point.Longitude >= -180 && point.Longitude <= 180
}
