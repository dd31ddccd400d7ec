package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/dpup/prefab"
	"github.com/dpup/prefab/logging"

	"github.com/dpup/campusnav/server/internal/cache"
	"github.com/dpup/campusnav/server/internal/clients/campus"
	"github.com/dpup/campusnav/server/internal/clients/google"
	"github.com/dpup/campusnav/server/internal/clients/position"
	"github.com/dpup/campusnav/server/internal/config"
	"github.com/dpup/campusnav/server/internal/lib/navigation"
	"github.com/dpup/campusnav/server/internal/services"
	"github.com/dpup/campusnav/server/internal/stream"
)

func main() {
	// Load configuration using Prefab's config system
	appConfig := loadConfig()

	// Background work is not tied to a request, so it needs its own logger
	ctx := logging.EnsureLogger(context.Background())

	// Initialize cache
	cacheInstance := cache.New[[]campus.Location]()
	cacheInstance.StartPeriodicCleanup(ctx, appConfig.Campus.RefreshInterval*2)

	// Initialize external API clients
	directionsClient := google.NewClient(appConfig.Directions.APIKey, appConfig.Directions.Timeout)
	directionsClient.SetBaseURL(appConfig.Directions.BaseURL)
	directionsClient.SetLocale(appConfig.Directions.Language, appConfig.Directions.Region)
	campusClient := campus.NewClient(appConfig.Campus.BaseURL, appConfig.Campus.Timeout)

	source := positionSource(ctx, appConfig.Position)
	places := loadPlaces(appConfig.Campus.PlacesFile)

	// Initialize services
	routeService := services.NewRouteService(directionsClient)
	searchService := services.NewSearchService(campusClient, cacheInstance, places, appConfig.Campus.RefreshInterval)

	engineOptions := appConfig.EngineOptions()
	engineOptions.Context = ctx
	engine := navigation.NewEngine(routeService, source, engineOptions)
	hub := stream.NewHub(ctx)
	engine.AddListener(hub)

	navigationService := services.NewNavigationService(engine, searchService, hub)

	log.Printf("Campus navigation server starting")
	log.Printf("Static places: %d", len(places))
	log.Printf("Position source: %s", appConfig.Position.Source)

	// Keep the campus location list warm so searches rarely wait on the backend
	periodicRefresh := services.NewPeriodicRefreshService(searchService, appConfig.Campus.RefreshInterval)
	if err := periodicRefresh.StartPeriodicRefresh(ctx); err != nil {
		log.Printf("Failed to start periodic refresh: %v", err)
	}
	defer periodicRefresh.Stop()
	defer hub.Close()

	// Server configuration (port, etc.) will be loaded from prefab.yaml/env vars
	server := prefab.New(
		prefab.WithHTTPHandlerFunc("/api/", navigationService.ServeHTTP),
		prefab.WithHTTPHandlerFunc("/", homepageHandler),
	)

	// Start the server (blocks until shutdown)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// loadConfig loads configuration using Prefab's config system
// Configuration is loaded from prefab.yaml and environment variables with PF__ prefix
func loadConfig() *config.Config {
	appConfig := config.DefaultConfig()

	// Unmarshal specific sections from Prefab's config using exact key paths
	if err := prefab.Config.Unmarshal("directions", &appConfig.Directions); err != nil {
		log.Fatalf("Failed to unmarshal directions section: %v", err)
	}

	if err := prefab.Config.Unmarshal("navigation", &appConfig.Navigation); err != nil {
		log.Fatalf("Failed to unmarshal navigation section: %v", err)
	}

	if err := prefab.Config.Unmarshal("position", &appConfig.Position); err != nil {
		log.Fatalf("Failed to unmarshal position section: %v", err)
	}

	if err := prefab.Config.Unmarshal("campus", &appConfig.Campus); err != nil {
		log.Fatalf("Failed to unmarshal campus section: %v", err)
	}

	if err := appConfig.Validate(); err != nil {
		log.Fatal(err)
	}

	return appConfig
}

// positionSource connects the configured live position feed
func positionSource(ctx context.Context, cfg config.PositionConfig) navigation.PositionSource {
	if cfg.Source != "mqtt" {
		return position.NewManualSource()
	}

	client, err := position.Connect(cfg.Broker, cfg.ClientID, cfg.ConnectTimeout)
	if err != nil {
		log.Fatalf("Failed to connect to MQTT broker %s: %v", cfg.Broker, err)
	}
	source := position.NewMQTTSource(ctx, client, cfg.DeviceID)
	log.Printf("Listening for positions on %s", source.Topic())
	return source
}

// loadPlaces reads the static places list. A missing file leaves search to
// the campus backend alone.
func loadPlaces(path string) []services.Place {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("Places file %s not found, using campus backend only", path)
		return nil
	}

	places, err := services.LoadPlaces(path)
	if err != nil {
		log.Fatalf("Failed to load places: %v", err)
	}
	return places
}

// homepageHandler serves a simple HTML homepage at the server root
func homepageHandler(w http.ResponseWriter, r *http.Request) {
	// Only handle the root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	html := `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>campusnav</title>
    <style>
        body {
            font-family: 'Courier New', Consolas, monospace;
            background: #fff;
            color: #1b5e20;
            padding: 20px;
            line-height: 1.4;
        }
        a { color: #0d47a1; text-decoration: none; }
        a:hover { text-decoration: underline; }
        pre { margin: 0; }
        .header { color: #e65100; }
    </style>
</head>
<body>
<pre>
<span class="header">campusnav</span>

Walking directions across campus with live off-route detection.

<span class="header">Navigation API:</span>
  <a href="/api/v1/navigation">GET  /api/v1/navigation</a>                 - Current session snapshot
  POST /api/v1/navigation/destination     - Select a place or person
  POST /api/v1/navigation/start           - Begin following the route
  POST /api/v1/navigation/stop            - End the session
  POST /api/v1/navigation/position        - Report a position
  <a href="/api/v1/navigation/route.kml">GET  /api/v1/navigation/route.kml</a>       - Route as KML
  <a href="/api/v1/navigation/route.geojson">GET  /api/v1/navigation/route.geojson</a>   - Route as GeoJSON
  GET  /api/v1/navigation/events          - Live events (WebSocket)

<span class="header">Search API:</span>
  <a href="/api/v1/search?q=biblioteca">GET  /api/v1/search?q={query}</a>         - Places and staff offices

<span class="header">Example Usage:</span>
  curl -X POST -d '{"label":"Biblioteca","latitude":20.6551,"longitude":-100.4048}' /api/v1/navigation/destination
</pre>
</body>
</html>`

	if _, err := fmt.Fprint(w, html); err != nil {
		slog.Error("Failed to write homepage HTML", "error", err)
	}
}
