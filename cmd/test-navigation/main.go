package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dpup/prefab/logging"

	"github.com/dpup/campusnav/server/internal/clients/google"
	"github.com/dpup/campusnav/server/internal/clients/position"
	"github.com/dpup/campusnav/server/internal/lib/geo"
	"github.com/dpup/campusnav/server/internal/lib/navigation"
	"github.com/dpup/campusnav/server/internal/lib/polyline"
	"github.com/dpup/campusnav/server/internal/lib/routing"
	"github.com/dpup/campusnav/server/internal/services"
)

// staticFetcher always returns the same decoded route, so the simulation can
// run without a Directions API key
type staticFetcher struct {
	points []geo.Point
}

func (f *staticFetcher) FetchRoute(ctx context.Context, origin, destination geo.Point) (*routing.Route, error) {
	points := append([]geo.Point{origin}, f.points...)
	return &routing.Route{
		Points:        points,
		DistanceLabel: routing.LabelUnavailable,
		DurationLabel: routing.LabelUnavailable,
	}, nil
}

func main() {
	var (
		apiKey      = flag.String("api-key", "", "Google Directions API key; without it the -polyline route is used")
		encoded     = flag.String("polyline", "_p~iF~ps|U_ulLnnqC_mqNvxq`@", "Encoded route to walk")
		offset      = flag.Float64("offset", 0, "Walk this many meters north of the route")
		step        = flag.Duration("step", 200*time.Millisecond, "Delay between replayed fixes")
		interval    = flag.Duration("recalc-interval", 2*time.Second, "Minimum time between recalculations")
		threshold   = flag.Float64("threshold", routing.DefaultDeviationThreshold, "Off-route threshold in meters")
		verbose     = flag.Bool("verbose", false, "Print full event JSON")
		destination = flag.String("dest", "", "Destination (lat,lon); defaults to the end of -polyline")
	)
	flag.Parse()

	walk, err := polyline.Decode(*encoded)
	if err != nil {
		log.Fatalf("Invalid polyline: %v", err)
	}
	walk = geo.FilterValidPoints(walk)
	if len(walk) < 2 {
		log.Fatal("Polyline needs at least two valid points")
	}

	dest := walk[len(walk)-1]
	if *destination != "" {
		var lat, lon float64
		if _, err := fmt.Sscanf(*destination, "%f,%f", &lat, &lon); err != nil {
			log.Fatalf("Invalid destination: %v", err)
		}
		dest = geo.Point{Latitude: lat, Longitude: lon}
	}

	var fetcher navigation.RouteFetcher = &staticFetcher{points: walk[1:]}
	key := *apiKey
	if key == "" {
		key = os.Getenv("GOOGLE_API_KEY")
	}
	if key != "" {
		fetcher = services.NewRouteService(google.NewClient(key, google.DefaultTimeout))
		log.Printf("Using Google Directions for routes")
	}

	source := position.NewReplaySource(walk, *step).WithOffset(*offset)

	opts := navigation.DefaultOptions()
	opts.DeviationThreshold = *threshold
	opts.RecalculationInterval = *interval
	opts.Watch = navigation.WatchOptions{Accuracy: navigation.AccuracyLow}
	opts.Context = logging.EnsureLogger(context.Background())

	engine := navigation.NewEngine(fetcher, source, opts)
	engine.AddListener(navigation.ListenerFunc(func(e navigation.Event) {
		if *verbose {
			data, _ := json.Marshal(e)
			log.Printf("%s", data)
			return
		}
		switch {
		case e.Deviation != nil:
			log.Printf("#%d %s state=%s %s %.1fm from route, %.0fm left",
				e.Seq, e.Type, e.State, e.Deviation.Classification, e.Deviation.DistanceToRoute, e.Deviation.RemainingMeters)
		case e.Route != nil:
			log.Printf("#%d %s state=%s points=%d %s %s",
				e.Seq, e.Type, e.State, len(e.Route.Points), e.Route.DistanceLabel, e.Route.DurationLabel)
		case e.Error != "":
			log.Printf("#%d %s state=%s error=%s (%s)", e.Seq, e.Type, e.State, e.Error, e.ErrorKind)
		default:
			log.Printf("#%d %s state=%s", e.Seq, e.Type, e.State)
		}
	}))

	if err := engine.UpdatePosition(walk[0]); err != nil {
		log.Fatalf("Invalid start: %v", err)
	}
	if err := engine.SelectDestination(opts.Context, navigation.Destination{
		Coordinate: dest,
		Label:      "Simulated destination",
		Kind:       navigation.KindPlace,
	}); err != nil {
		log.Fatalf("SelectDestination failed: %v", err)
	}
	if err := engine.StartNavigating(); err != nil {
		log.Fatalf("StartNavigating failed: %v", err)
	}

	<-source.Finished()
	// Let a trailing recalculation land
	time.Sleep(500 * time.Millisecond)

	snapshot := engine.Snapshot()
	if err := engine.StopNavigating(); err != nil {
		log.Fatalf("StopNavigating failed: %v", err)
	}

	fmt.Printf("\nWalk finished\n")
	fmt.Printf("  Fixes replayed: %d\n", len(walk))
	fmt.Printf("  Final state: %s\n", snapshot.State)
	if snapshot.LastRecalculationAt != nil {
		fmt.Printf("  Last recalculation: %s\n", snapshot.LastRecalculationAt.Format(time.RFC3339))
	}
	if snapshot.Deviation != nil {
		fmt.Printf("  Final deviation: %s (%.1fm)\n", snapshot.Deviation.Classification, snapshot.Deviation.DistanceToRoute)
	}
}
