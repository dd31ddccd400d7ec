package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dpup/prefab/logging"

	"github.com/dpup/campusnav/server/internal/clients/google"
	"github.com/dpup/campusnav/server/internal/lib/geo"
	"github.com/dpup/campusnav/server/internal/lib/routing"
	"github.com/dpup/campusnav/server/internal/services"
)

func main() {
	var (
		apiKey    = flag.String("api-key", "", "Google Directions API key (or set GOOGLE_API_KEY env var)")
		originStr = flag.String("origin", "20.653985,-100.406072", "Origin coordinates (lat,lon)")
		destStr   = flag.String("dest", "20.655100,-100.404800", "Destination coordinates (lat,lon)")
		language  = flag.String("language", "es", "Response language")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		fmt.Printf("Google Directions Test Tool\n\n")
		fmt.Printf("Fetches the fastest walking route between two points.\n\n")
		fmt.Printf("Usage: %s [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		fmt.Printf("\nExamples:\n")
		fmt.Printf("  %s -api-key=YOUR_KEY\n", os.Args[0])
		fmt.Printf("  %s -origin=\"20.6540,-100.4050\" -dest=\"20.6551,-100.4048\" -language=en\n", os.Args[0])
		fmt.Printf("  GOOGLE_API_KEY=your_key %s\n", os.Args[0])
		return
	}

	// Get API key from flag or environment
	key := *apiKey
	if key == "" {
		key = os.Getenv("GOOGLE_API_KEY")
	}
	if key == "" {
		log.Fatal("Google Directions API key required. Use -api-key flag or GOOGLE_API_KEY env var")
	}

	origin, err := parsePoint(*originStr)
	if err != nil {
		log.Fatalf("Invalid origin coordinates: %v", err)
	}
	destination, err := parsePoint(*destStr)
	if err != nil {
		log.Fatalf("Invalid destination coordinates: %v", err)
	}

	fmt.Printf("Google Directions Test\n")
	fmt.Printf("======================\n")
	fmt.Printf("Origin: %.6f, %.6f\n", origin.Latitude, origin.Longitude)
	fmt.Printf("Destination: %.6f, %.6f\n", destination.Latitude, destination.Longitude)
	fmt.Printf("API Key: %s...\n", key[:min(len(key), 10)])
	fmt.Printf("\n")

	client := google.NewClient(key, google.DefaultTimeout)
	client.SetLocale(*language, "")
	routeService := services.NewRouteService(client)

	fmt.Printf("Testing FetchRoute...\n")
	route, err := routeService.FetchRoute(logging.EnsureLogger(context.Background()), origin, destination)
	if err != nil {
		var routeErr *routing.RouteError
		if errors.As(err, &routeErr) {
			log.Fatalf("FetchRoute failed (%s, retryable=%t): %v", routeErr.Kind, routing.IsRetryable(err), err)
		}
		log.Fatalf("FetchRoute failed: %v", err)
	}

	fmt.Printf("FetchRoute successful\n")
	fmt.Printf("Distance: %d m (%s)\n", route.DistanceMeters, route.DistanceLabel)
	fmt.Printf("Duration: %d s (%s)\n", route.DurationSeconds, route.DurationLabel)
	fmt.Printf("Points: %d\n", len(route.Points))
	end := route.End()
	fmt.Printf("Ends at: %.6f, %.6f\n", end.Latitude, end.Longitude)
}

func parsePoint(s string) (geo.Point, error) {
	var lat, lon float64
	if _, err := fmt.Sscanf(s, "%f,%f", &lat, &lon); err != nil {
		return geo.Point{}, err
	}
	return geo.NewPoint(lat, lon)
}
