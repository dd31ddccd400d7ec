package services

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dpup/campusnav/server/internal/lib/geo"
	"github.com/dpup/campusnav/server/internal/lib/navigation"
)

// Place is a static campus destination from the places file
type Place struct {
	ID        string   `yaml:"id" validate:"required"`
	Name      string   `yaml:"name" validate:"required"`
	Aliases   []string `yaml:"aliases"`
	Latitude  float64  `yaml:"latitude" validate:"latitude"`
	Longitude float64  `yaml:"longitude" validate:"longitude"`
}

type placesFile struct {
	Places []Place `yaml:"places" validate:"dive"`
}

// Destination converts the place for the navigation engine
func (p Place) Destination() navigation.Destination {
	return navigation.Destination{
		ID:         p.ID,
		Coordinate: geo.Point{Latitude: p.Latitude, Longitude: p.Longitude},
		Label:      p.Name,
		Kind:       navigation.KindPlace,
	}
}

// LoadPlaces reads and validates a YAML places file
func LoadPlaces(path string) ([]Place, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read places file: %w", err)
	}
	return ParsePlaces(data)
}

// ParsePlaces decodes and validates places YAML
func ParsePlaces(data []byte) ([]Place, error) {
	var file placesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse places: %w", err)
	}

	v := validator.New()
	if err := v.Struct(file); err != nil {
		return nil, fmt.Errorf("invalid places: %w", err)
	}

	seen := make(map[string]bool, len(file.Places))
	for _, place := range file.Places {
		if seen[place.ID] {
			return nil, fmt.Errorf("invalid places: duplicate id %q", place.ID)
		}
		seen[place.ID] = true
	}

	return file.Places, nil
}
