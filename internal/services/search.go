package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dpup/prefab/logging"

	"github.com/dpup/campusnav/server/internal/cache"
	"github.com/dpup/campusnav/server/internal/clients/campus"
	"github.com/dpup/campusnav/server/internal/lib/navigation"
)

const locationsCacheKey = "campus:locations"

// CampusDirectory is the campus backend used for search
type CampusDirectory interface {
	ListLocations(ctx context.Context) ([]campus.Location, error)
	SearchPeople(ctx context.Context, query string) ([]campus.Person, error)
}

// SearchService resolves free text into navigable destinations. People are
// listed before places; backend failures degrade to the static places.
type SearchService struct {
	directory       CampusDirectory
	cache           *cache.Cache[[]campus.Location]
	places          []Place
	refreshInterval time.Duration
}

// NewSearchService creates a new SearchService
func NewSearchService(directory CampusDirectory, cache *cache.Cache[[]campus.Location], places []Place, refreshInterval time.Duration) *SearchService {
	return &SearchService{
		directory:       directory,
		cache:           cache,
		places:          places,
		refreshInterval: refreshInterval,
	}
}

// Search returns destinations matching query
func (s *SearchService) Search(ctx context.Context, query string) ([]navigation.Destination, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []navigation.Destination{}, nil
	}

	results := []navigation.Destination{}

	people, err := s.directory.SearchPeople(ctx, query)
	if err != nil {
		logging.Warnw(ctx, "Staff search failed, returning places only", "query", query, "error", err)
	}
	for _, person := range people {
		if !person.HasCoordinates() {
			continue
		}
		results = append(results, personDestination(person))
	}

	needle := strings.ToLower(query)
	seen := make(map[string]bool)

	for _, place := range s.places {
		seen[strings.ToLower(place.Name)] = true
		if matchesPlace(needle, place.Name, place.Aliases...) {
			results = append(results, place.Destination())
		}
	}

	locations, err := s.Locations(ctx)
	if err != nil {
		logging.Warnw(ctx, "Campus locations unavailable, using static places", "error", err)
	}
	for _, location := range locations {
		name := strings.ToLower(location.Name)
		if seen[name] || location.Position.Validate() != nil {
			continue
		}
		seen[name] = true
		if matchesPlace(needle, location.Name) {
			results = append(results, navigation.Destination{
				ID:         location.ID,
				Coordinate: location.Position,
				Label:      location.Name,
				Kind:       navigation.KindPlace,
			})
		}
	}

	return results, nil
}

// Locations returns campus locations, from cache when fresh. Stale data is
// served if a refresh fails and it is not yet very stale.
func (s *SearchService) Locations(ctx context.Context) ([]campus.Location, error) {
	if cached, found := s.cache.Get(locationsCacheKey); found {
		return cached, nil
	}

	locations, err := s.RefreshLocations(ctx)
	if err != nil {
		entry, exists := s.cache.GetWithMetadata(locationsCacheKey)
		if exists && !s.cache.IsVeryStale(locationsCacheKey) {
			logging.Warnw(ctx, "Refresh failed, returning stale locations",
				"cached_at", entry.CreatedAt, "error", err)
			return entry.Value, nil
		}
		return nil, err
	}
	return locations, nil
}

// RefreshLocations fetches the location list and caches it
func (s *SearchService) RefreshLocations(ctx context.Context) ([]campus.Location, error) {
	locations, err := s.directory.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh locations: %w", err)
	}

	s.cache.Set(locationsCacheKey, locations, s.refreshInterval, "campus")
	logging.Debugw(ctx, "Campus locations cached", "count", len(locations))
	return locations, nil
}

// Refresh implements Refresher for the periodic refresh loop
func (s *SearchService) Refresh(ctx context.Context) error {
	_, err := s.RefreshLocations(ctx)
	return err
}

func matchesPlace(needle, name string, aliases ...string) bool {
	if strings.Contains(strings.ToLower(name), needle) {
		return true
	}
	for _, alias := range aliases {
		if strings.Contains(strings.ToLower(alias), needle) {
			return true
		}
	}
	return false
}

func personDestination(person campus.Person) navigation.Destination {
	return navigation.Destination{
		ID:         person.EmployeeNumber,
		Coordinate: *person.Office.Coordinates,
		Label:      person.FullName,
		Kind:       navigation.KindPerson,
		Person: &navigation.PersonDetails{
			EmployeeNumber: person.EmployeeNumber,
			FullName:       person.FullName,
			Email:          person.Email,
			Phone:          person.Phone,
			Position:       person.Position,
			Department:     person.Department,
			Building:       person.Office.Name,
			Office:         person.Cubicle,
			Floor:          person.Floor,
		},
	}
}
