package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dpup/campusnav/server/internal/lib/geo"
	"github.com/dpup/campusnav/server/internal/lib/navigation"
)

// Config represents the complete server configuration
type Config struct {
	Directions DirectionsConfig `yaml:"directions"`
	Navigation NavigationConfig `yaml:"navigation"`
	Position   PositionConfig   `yaml:"position"`
	Campus     CampusConfig     `yaml:"campus"`
}

// DirectionsConfig holds Google Directions API settings
type DirectionsConfig struct {
	APIKey   string        `yaml:"api_key" validate:"required"`
	BaseURL  string        `yaml:"base_url" validate:"omitempty,url"`
	Language string        `yaml:"language" validate:"omitempty,bcp47_language_tag"`
	Region   string        `yaml:"region" validate:"omitempty,len=2"`
	Timeout  time.Duration `yaml:"timeout" validate:"gt=0"`
}

// NavigationConfig holds deviation and recalculation tuning
type NavigationConfig struct {
	DeviationThreshold    float64         `yaml:"deviation_threshold" validate:"gt=0"`
	RecalculationInterval time.Duration   `yaml:"recalculation_interval" validate:"gt=0"`
	DefaultOrigin         CoordinatesYAML `yaml:"default_origin"`
}

// PositionConfig selects and configures the live position source
type PositionConfig struct {
	Source           string        `yaml:"source" validate:"oneof=mqtt manual"`
	Broker           string        `yaml:"broker" validate:"required_if=Source mqtt,omitempty,url"`
	ClientID         string        `yaml:"client_id"`
	DeviceID         string        `yaml:"device_id" validate:"required_if=Source mqtt"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout" validate:"gte=0"`
	Accuracy         string        `yaml:"accuracy" validate:"oneof=best_for_navigation high balanced low"`
	TimeInterval     time.Duration `yaml:"time_interval" validate:"gte=0"`
	DistanceInterval float64       `yaml:"distance_interval" validate:"gte=0"`
}

// CampusConfig holds campus backend and search settings
type CampusConfig struct {
	BaseURL         string        `yaml:"base_url" validate:"required,url"`
	Timeout         time.Duration `yaml:"timeout" validate:"gt=0"`
	PlacesFile      string        `yaml:"places_file"`
	RefreshInterval time.Duration `yaml:"refresh_interval" validate:"gt=0"`
}

// CoordinatesYAML represents lat/lon coordinates in YAML config
type CoordinatesYAML struct {
	Latitude  float64 `yaml:"latitude" validate:"latitude"`
	Longitude float64 `yaml:"longitude" validate:"longitude"`
}

// ToPoint converts CoordinatesYAML to a geo.Point
func (c CoordinatesYAML) ToPoint() geo.Point {
	return geo.Point{
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
	}
}

// WatchOptions converts the position settings for the engine
func (p PositionConfig) WatchOptions() navigation.WatchOptions {
	return navigation.WatchOptions{
		Accuracy:         navigation.Accuracy(p.Accuracy),
		TimeInterval:     p.TimeInterval,
		DistanceInterval: p.DistanceInterval,
	}
}

// EngineOptions converts the navigation and position settings for the engine
func (c *Config) EngineOptions() navigation.Options {
	origin := c.Navigation.DefaultOrigin.ToPoint()
	return navigation.Options{
		DeviationThreshold:    c.Navigation.DeviationThreshold,
		RecalculationInterval: c.Navigation.RecalculationInterval,
		FetchTimeout:          c.Directions.Timeout,
		Watch:                 c.Position.WatchOptions(),
		DefaultOrigin:         &origin,
	}
}

// Validate checks every section against its validation tags
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Directions: DirectionsConfig{
			BaseURL:  "https://maps.googleapis.com",
			Language: "es",
			Region:   "mx",
			Timeout:  10 * time.Second,
		},
		Navigation: NavigationConfig{
			DeviationThreshold:    50,
			RecalculationInterval: 10 * time.Second,
			// UTEQ campus centre
			DefaultOrigin: CoordinatesYAML{
				Latitude:  20.65398463798,
				Longitude: -100.40607234656,
			},
		},
		Position: PositionConfig{
			Source:           "manual",
			ConnectTimeout:   10 * time.Second,
			Accuracy:         string(navigation.AccuracyBestForNavigation),
			TimeInterval:     3 * time.Second,
			DistanceInterval: 10,
		},
		Campus: CampusConfig{
			BaseURL:         "https://uteq-connect-server-production.up.railway.app/api",
			Timeout:         10 * time.Second,
			PlacesFile:      "places.yaml",
			RefreshInterval: 15 * time.Minute,
		},
	}
}
