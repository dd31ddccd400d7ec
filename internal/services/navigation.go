package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dpup/prefab/logging"
	"github.com/go-playground/validator/v10"

	"github.com/dpup/campusnav/server/internal/lib/export"
	"github.com/dpup/campusnav/server/internal/lib/geo"
	"github.com/dpup/campusnav/server/internal/lib/navigation"
	"github.com/dpup/campusnav/server/internal/lib/routing"
)

// Navigator is the tracking engine as seen by the HTTP surface
type Navigator interface {
	Snapshot() navigation.Snapshot
	SelectDestination(ctx context.Context, dest navigation.Destination) error
	StartNavigating() error
	StopNavigating() error
	UpdatePosition(p geo.Point) error
	ReportError(err error)
}

// Searcher resolves free text into destinations
type Searcher interface {
	Search(ctx context.Context, query string) ([]navigation.Destination, error)
}

// EventStream serves engine events over a WebSocket
type EventStream interface {
	ServeWS(w http.ResponseWriter, r *http.Request, greeting []byte)
}

// NavigationService exposes the engine as a JSON API
type NavigationService struct {
	navigator Navigator
	searcher  Searcher
	events    EventStream
	validate  *validator.Validate
	mux       *http.ServeMux
}

type destinationRequest struct {
	ID        string                     `json:"id"`
	Kind      navigation.DestinationKind `json:"kind" validate:"omitempty,oneof=place person"`
	Label     string                     `json:"label" validate:"required"`
	Latitude  *float64                   `json:"latitude" validate:"required,latitude"`
	Longitude *float64                   `json:"longitude" validate:"required,longitude"`
	Person    *navigation.PersonDetails  `json:"person"`
}

type positionRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

type errorResponse struct {
	Error string            `json:"error"`
	Kind  routing.ErrorKind `json:"kind,omitempty"`
}

type snapshotMessage struct {
	Type     string              `json:"type"`
	Snapshot navigation.Snapshot `json:"snapshot"`
}

// NewNavigationService creates a new NavigationService
func NewNavigationService(navigator Navigator, searcher Searcher, events EventStream) *NavigationService {
	s := &NavigationService{
		navigator: navigator,
		searcher:  searcher,
		events:    events,
		validate:  validator.New(),
		mux:       http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /api/v1/navigation", s.handleSnapshot)
	s.mux.HandleFunc("POST /api/v1/navigation/destination", s.handleDestination)
	s.mux.HandleFunc("POST /api/v1/navigation/start", s.handleStart)
	s.mux.HandleFunc("POST /api/v1/navigation/stop", s.handleStop)
	s.mux.HandleFunc("POST /api/v1/navigation/position", s.handlePosition)
	s.mux.HandleFunc("GET /api/v1/navigation/route.kml", s.handleKML)
	s.mux.HandleFunc("GET /api/v1/navigation/route.geojson", s.handleGeoJSON)
	s.mux.HandleFunc("GET /api/v1/navigation/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/v1/search", s.handleSearch)

	return s
}

// ServeHTTP implements http.Handler
func (s *NavigationService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r.WithContext(logging.EnsureLogger(r.Context())))
}

func (s *NavigationService) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.navigator.Snapshot())
}

func (s *NavigationService) handleDestination(w http.ResponseWriter, r *http.Request) {
	var req destinationRequest
	if !s.decode(w, r, &req) {
		return
	}

	dest := navigation.Destination{
		ID:         req.ID,
		Coordinate: geo.Point{Latitude: *req.Latitude, Longitude: *req.Longitude},
		Label:      req.Label,
		Kind:       req.Kind,
		Person:     req.Person,
	}
	if dest.Kind == "" {
		dest.Kind = navigation.KindPlace
	}

	if err := s.selectDestination(r.Context(), dest); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.navigator.Snapshot())
}

// selectDestination retries once when the route request failed in transit.
// Only the final failure is published to event listeners.
func (s *NavigationService) selectDestination(ctx context.Context, dest navigation.Destination) error {
	ctx = navigation.DeferErrorEvent(ctx)
	err := s.navigator.SelectDestination(ctx, dest)
	if err != nil && routing.IsRetryable(err) {
		logging.Warnw(ctx, "Route request failed, retrying once", "destination", dest.Label, "error", err)
		err = s.navigator.SelectDestination(ctx, dest)
	}
	if err != nil {
		s.navigator.ReportError(err)
	}
	return err
}

func (s *NavigationService) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.navigator.StartNavigating(); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.navigator.Snapshot())
}

func (s *NavigationService) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.navigator.StopNavigating(); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.navigator.Snapshot())
}

func (s *NavigationService) handlePosition(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.navigator.UpdatePosition(geo.Point{Latitude: *req.Latitude, Longitude: *req.Longitude}); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.navigator.Snapshot())
}

func (s *NavigationService) handleKML(w http.ResponseWriter, r *http.Request) {
	snapshot := s.navigator.Snapshot()
	if snapshot.Route == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: export.ErrNoRoute.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
	w.Header().Set("Content-Disposition", `attachment; filename="route.kml"`)
	if err := export.WriteKML(w, snapshot.Route, routeName(snapshot)); err != nil {
		logging.Errorw(r.Context(), "Failed to write KML", "error", err)
	}
}

func (s *NavigationService) handleGeoJSON(w http.ResponseWriter, r *http.Request) {
	snapshot := s.navigator.Snapshot()
	data, err := export.GeoJSON(snapshot.Route, routeName(snapshot))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *NavigationService) handleEvents(w http.ResponseWriter, r *http.Request) {
	greeting, err := json.Marshal(snapshotMessage{Type: "snapshot", Snapshot: s.navigator.Snapshot()})
	if err != nil {
		logging.Errorw(r.Context(), "Failed to encode snapshot", "error", err)
		greeting = nil
	}
	s.events.ServeWS(w, r, greeting)
}

func (s *NavigationService) handleSearch(w http.ResponseWriter, r *http.Request) {
	results, err := s.searcher.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// decode reads and validates a JSON body, writing a 400 on failure
func (s *NavigationService) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return false
	}
	return true
}

func (s *NavigationService) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.Errorw(r.Context(), "Navigation request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: routing.KindOf(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, navigation.ErrInvalidState), errors.Is(err, navigation.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, navigation.ErrPositionUnknown):
		return http.StatusUnprocessableEntity
	}

	switch routing.KindOf(err) {
	case routing.KindInvalidPath:
		return http.StatusBadRequest
	case routing.KindNoRouteFound:
		return http.StatusNotFound
	case routing.KindPermissionDenied:
		return http.StatusForbidden
	case routing.KindNetwork:
		return http.StatusServiceUnavailable
	case routing.KindProvider, routing.KindDecode, routing.KindIncompleteRouteData, routing.KindInvalidRoutePoints:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func routeName(snapshot navigation.Snapshot) string {
	if snapshot.Destination != nil && snapshot.Destination.Label != "" {
		return snapshot.Destination.Label
	}
	return "Route"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
