// Package export renders routes for map tools: KML for desktop GIS and
// GeoJSON for web maps.
package export

import (
	"errors"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-kml/v2"

	"github.com/dpup/campusnav/server/internal/lib/routing"
)

// ErrNoRoute is returned when there is nothing to export
var ErrNoRoute = errors.New("no route to export")

// WriteKML writes route as a KML document with the path and its end point
func WriteKML(w io.Writer, route *routing.Route, name string) error {
	if route == nil || len(route.Points) == 0 {
		return ErrNoRoute
	}

	coords := make([]kml.Coordinate, 0, len(route.Points))
	for _, p := range route.Points {
		coords = append(coords, kml.Coordinate{Lon: p.Longitude, Lat: p.Latitude})
	}
	end := route.End()

	doc := kml.KML(
		kml.Document(
			kml.Name(name),
			kml.Placemark(
				kml.Name(name),
				kml.Description(route.DistanceLabel+", "+route.DurationLabel),
				kml.LineString(
					kml.Tessellate(true),
					kml.Coordinates(coords...),
				),
			),
			kml.Placemark(
				kml.Name(name),
				kml.Point(
					kml.Coordinates(kml.Coordinate{Lon: end.Longitude, Lat: end.Latitude}),
				),
			),
		),
	)
	return doc.WriteIndent(w, "", "  ")
}

// GeoJSON returns route as a feature collection holding the path as a
// LineString and the destination as a Point
func GeoJSON(route *routing.Route, name string) ([]byte, error) {
	if route == nil || len(route.Points) == 0 {
		return nil, ErrNoRoute
	}

	line := make(orb.LineString, 0, len(route.Points))
	for _, p := range route.Points {
		line = append(line, orb.Point{p.Longitude, p.Latitude})
	}

	path := geojson.NewFeature(line)
	path.Properties["name"] = name
	path.Properties["distance_meters"] = route.DistanceMeters
	path.Properties["duration_seconds"] = route.DurationSeconds
	path.Properties["distance"] = route.DistanceLabel
	path.Properties["duration"] = route.DurationLabel

	end := route.End()
	destination := geojson.NewFeature(orb.Point{end.Longitude, end.Latitude})
	destination.Properties["name"] = name

	fc := geojson.NewFeatureCollection()
	fc.Append(path)
	fc.Append(destination)
	return fc.MarshalJSON()
}
