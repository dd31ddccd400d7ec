package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dpup/campusnav/server/internal/lib/geo"
	"github.com/dpup/campusnav/server/internal/lib/polyline"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	geoUtils := geo.NewGeoUtils()

	switch command {
	case "point-distance":
		handlePointDistance(geoUtils)
	case "polyline-distance":
		handlePolylineDistance(geoUtils)
	case "remaining-distance":
		handleRemainingDistance(geoUtils)
	case "decode-polyline":
		handleDecodePolyline()
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handlePointDistance(geoUtils geo.GeoUtils) {
	fs := flag.NewFlagSet("point-distance", flag.ExitOnError)
	lat1 := fs.Float64("lat1", 0, "Latitude of first point")
	lng1 := fs.Float64("lng1", 0, "Longitude of first point")
	lat2 := fs.Float64("lat2", 0, "Latitude of second point")
	lng2 := fs.Float64("lng2", 0, "Longitude of second point")

	fs.Parse(os.Args[2:])

	if *lat1 == 0 && *lng1 == 0 && *lat2 == 0 && *lng2 == 0 {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils point-distance --lat1 20.6540 --lng1 -100.4050 --lat2 20.6551 --lng2 -100.4048")
		fmt.Println("  (Main gate to the library)")
		os.Exit(1)
	}

	p1 := geo.Point{Latitude: *lat1, Longitude: *lng1}
	p2 := geo.Point{Latitude: *lat2, Longitude: *lng2}

	distance, err := geoUtils.PointToPoint(p1, p2)
	if err != nil {
		log.Fatalf("Error calculating distance: %v", err)
	}

	fmt.Printf("Distance between points:\n")
	fmt.Printf("  Point 1: (%.6f, %.6f)\n", p1.Latitude, p1.Longitude)
	fmt.Printf("  Point 2: (%.6f, %.6f)\n", p2.Latitude, p2.Longitude)
	fmt.Printf("  Distance: %.2f meters (%.2f km)\n", distance, distance/1000)
}

func handlePolylineDistance(geoUtils geo.GeoUtils) {
	fs := flag.NewFlagSet("polyline-distance", flag.ExitOnError)
	lat := fs.Float64("lat", 0, "Latitude of point")
	lng := fs.Float64("lng", 0, "Longitude of point")
	threshold := fs.Float64("threshold", 50, "Off-route threshold in meters")
	polylineStr := fs.String("polyline", "", "Encoded polyline string")

	fs.Parse(os.Args[2:])

	if *polylineStr == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils polyline-distance --lat 38.6 --lng -120.3 --polyline \"_p~iF~ps|U_ulLnnqC_mqNvxq`@\"")
		os.Exit(1)
	}

	point := geo.Point{Latitude: *lat, Longitude: *lng}
	path := mustDecode(*polylineStr)

	distance, err := geoUtils.PointToPolyline(point, path)
	if err != nil {
		log.Fatalf("Error calculating distance to polyline: %v", err)
	}
	closest, err := geoUtils.ClosestPointOnPolyline(point, path)
	if err != nil {
		log.Fatalf("Error finding closest point: %v", err)
	}
	offRoute, err := geoUtils.IsOffRoute(point, path, *threshold)
	if err != nil {
		log.Fatalf("Error checking deviation: %v", err)
	}

	fmt.Printf("Distance from point to polyline:\n")
	fmt.Printf("  Point: (%.6f, %.6f)\n", point.Latitude, point.Longitude)
	fmt.Printf("  Polyline: %d points\n", len(path))
	fmt.Printf("  Distance: %.2f meters\n", distance)
	fmt.Printf("  Closest point: (%.6f, %.6f)\n", closest.Latitude, closest.Longitude)
	fmt.Printf("  Off route (>%.0fm): %t\n", *threshold, offRoute)
}

func handleRemainingDistance(geoUtils geo.GeoUtils) {
	fs := flag.NewFlagSet("remaining-distance", flag.ExitOnError)
	lat := fs.Float64("lat", 0, "Latitude of point")
	lng := fs.Float64("lng", 0, "Longitude of point")
	polylineStr := fs.String("polyline", "", "Encoded polyline string")

	fs.Parse(os.Args[2:])

	if *polylineStr == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils remaining-distance --lat 38.5 --lng -120.2 --polyline \"_p~iF~ps|U_ulLnnqC_mqNvxq`@\"")
		os.Exit(1)
	}

	point := geo.Point{Latitude: *lat, Longitude: *lng}
	path := mustDecode(*polylineStr)

	remaining, err := geoUtils.RemainingDistance(point, path)
	if err != nil {
		log.Fatalf("Error calculating remaining distance: %v", err)
	}

	fmt.Printf("Remaining distance along route: %.2f meters (%.2f km)\n", remaining, remaining/1000)
}

func handleDecodePolyline() {
	fs := flag.NewFlagSet("decode-polyline", flag.ExitOnError)
	polylineStr := fs.String("polyline", "", "Encoded polyline string")

	fs.Parse(os.Args[2:])

	if *polylineStr == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils decode-polyline --polyline \"_p~iF~ps|U_ulLnnqC_mqNvxq`@\"")
		os.Exit(1)
	}

	points := mustDecode(*polylineStr)
	valid := geo.FilterValidPoints(points)

	fmt.Printf("Decoded %d points (%d valid):\n", len(points), len(valid))
	for i, p := range points {
		fmt.Printf("  %3d: (%.5f, %.5f)\n", i, p.Latitude, p.Longitude)
	}
}

func mustDecode(encoded string) []geo.Point {
	points, err := polyline.Decode(encoded)
	if err != nil {
		log.Fatalf("Error decoding polyline: %v", err)
	}
	return points
}

func printUsage() {
	fmt.Println("test-geo-utils - walking route geometry helpers")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  point-distance      Great-circle distance between two points")
	fmt.Println("  polyline-distance   Distance from a point to a route, with closest point")
	fmt.Println("  remaining-distance  Distance left along a route from a point")
	fmt.Println("  decode-polyline     Decode an encoded polyline")
	fmt.Println("  help                Show this help")
	fmt.Println()
	fmt.Println("Run a command without flags to see an example.")
}
