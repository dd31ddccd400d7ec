// Package navigation owns the walking session: the current route, the live
// position, deviation checks and throttled recalculation.
package navigation

import (
	"context"
	"errors"
	"time"

	"github.com/dpup/campusnav/server/internal/lib/geo"
	"github.com/dpup/campusnav/server/internal/lib/routing"
)

var (
	// ErrInvalidState is returned when a command is not valid in the current state
	ErrInvalidState = errors.New("navigation: command not valid in current state")

	// ErrPositionUnknown is returned when no origin is available for a route request
	ErrPositionUnknown = errors.New("navigation: current position unknown")

	// ErrSuperseded is returned when a newer command replaced this one before it completed
	ErrSuperseded = errors.New("navigation: superseded by a newer request")
)

// State is the navigation state machine's current state
type State string

const (
	Idle          State = "idle"
	RoutePreview  State = "route_preview"
	Navigating    State = "navigating"
	Recalculating State = "recalculating"
)

// DestinationKind distinguishes static places from people
type DestinationKind string

const (
	KindPlace  DestinationKind = "place"
	KindPerson DestinationKind = "person"
)

// PersonDetails describes a staff member whose office is the destination
type PersonDetails struct {
	EmployeeNumber string `json:"employee_number,omitempty"`
	FullName       string `json:"full_name"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Position       string `json:"position,omitempty"`
	Department     string `json:"department,omitempty"`
	Building       string `json:"building,omitempty"`
	Office         string `json:"office,omitempty"`
	Floor          string `json:"floor,omitempty"`
}

// Destination is where the walker is headed. It does not change for the
// lifetime of one route; selecting again replaces it.
type Destination struct {
	ID         string          `json:"id,omitempty"`
	Coordinate geo.Point       `json:"coordinate"`
	Label      string          `json:"label"`
	Kind       DestinationKind `json:"kind"`
	Person     *PersonDetails  `json:"person,omitempty"`
}

// Session is the engine's single tracking session
type Session struct {
	ID                  string         `json:"id,omitempty"`
	State               State          `json:"state"`
	Destination         *Destination   `json:"destination,omitempty"`
	Route               *routing.Route `json:"route,omitempty"`
	LastPosition        *geo.Point     `json:"last_position,omitempty"`
	LastRecalculationAt *time.Time     `json:"last_recalculation_at,omitempty"`
}

// Snapshot is a read-only copy of the session plus derived progress
type Snapshot struct {
	Session
	Deviation *routing.Deviation `json:"deviation,omitempty"`
}

// Accuracy is the positioning accuracy tier requested from a source
type Accuracy string

const (
	AccuracyBestForNavigation Accuracy = "best_for_navigation"
	AccuracyHigh              Accuracy = "high"
	AccuracyBalanced          Accuracy = "balanced"
	AccuracyLow               Accuracy = "low"
)

// MaxErrorMeters is the largest reported fix error accepted for the tier
func (a Accuracy) MaxErrorMeters() float64 {
	switch a {
	case AccuracyBestForNavigation:
		return 25
	case AccuracyHigh:
		return 50
	case AccuracyBalanced:
		return 100
	default:
		return 0 // no limit
	}
}

// WatchOptions configures a position subscription
type WatchOptions struct {
	Accuracy         Accuracy      `json:"accuracy"`
	TimeInterval     time.Duration `json:"time_interval"`
	DistanceInterval float64       `json:"distance_interval"`
}

// Fix is a single position report
type Fix struct {
	Coordinate geo.Point `json:"coordinate"`
	Accuracy   float64   `json:"accuracy"` // meters, 0 when unknown
	Timestamp  time.Time `json:"timestamp"`
}

// Subscription is a live position stream
type Subscription interface {
	Unsubscribe()
}

// PositionSource delivers fixes until the subscription is released
type PositionSource interface {
	Watch(opts WatchOptions, onFix func(Fix)) (Subscription, error)
}

// RouteFetcher acquires a walking route
type RouteFetcher interface {
	FetchRoute(ctx context.Context, origin, destination geo.Point) (*routing.Route, error)
}

// Listener receives engine events. Handlers are called outside the engine
// lock, one event at a time in Seq order, and may call back into the engine.
// Events raised by such a call are delivered after the current handler returns.
type Listener interface {
	HandleEvent(Event)
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(Event)

func (f ListenerFunc) HandleEvent(e Event) {
	f(e)
}

// EventType names an engine notification
type EventType string

const (
	EventRouteUpdated          EventType = "route_updated"
	EventDeviationDetected     EventType = "deviation_detected"
	EventRecalculationStarted  EventType = "recalculation_started"
	EventRecalculationFinished EventType = "recalculation_finished"
	EventStateChanged          EventType = "state_changed"
	EventError                 EventType = "error"
)

// Event is a notification from the engine. Seq increases monotonically and
// reflects the order in which the engine produced events.
type Event struct {
	Seq       uint64             `json:"seq"`
	Type      EventType          `json:"type"`
	Time      time.Time          `json:"time"`
	SessionID string             `json:"session_id,omitempty"`
	State     State              `json:"state"`
	Route     *routing.Route     `json:"route,omitempty"`
	Deviation *routing.Deviation `json:"deviation,omitempty"`
	Err       error              `json:"-"`
	Error     string             `json:"error,omitempty"`
	ErrorKind routing.ErrorKind  `json:"error_kind,omitempty"`
	Fatal     bool               `json:"fatal,omitempty"`
}

// Options configures an Engine
type Options struct {
	DeviationThreshold    float64
	RecalculationInterval time.Duration
	FetchTimeout          time.Duration
	Watch                 WatchOptions
	DefaultOrigin         *geo.Point
	Clock                 func() time.Time

	// Context is the base context for work the engine starts on its own, such
	// as recalculations. A logger is attached when it carries none.
	Context context.Context
}

type deferErrorKey struct{}

// DeferErrorEvent marks ctx so that a failed SelectDestination fetch is
// returned without publishing an error event. Callers that retry publish the
// final failure with ReportError.
func DeferErrorEvent(ctx context.Context) context.Context {
	return context.WithValue(ctx, deferErrorKey{}, true)
}

func errorEventDeferred(ctx context.Context) bool {
	deferred, _ := ctx.Value(deferErrorKey{}).(bool)
	return deferred
}

// DefaultOptions returns the standard walking-navigation tuning
func DefaultOptions() Options {
	return Options{
		DeviationThreshold:    routing.DefaultDeviationThreshold,
		RecalculationInterval: 10 * time.Second,
		FetchTimeout:          10 * time.Second,
		Watch: WatchOptions{
			Accuracy:         AccuracyBestForNavigation,
			TimeInterval:     3 * time.Second,
			DistanceInterval: 10,
		},
	}
}
