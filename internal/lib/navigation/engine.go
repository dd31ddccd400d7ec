package navigation

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"
	"github.com/google/uuid"

	"github.com/dpup/campusnav/server/internal/lib/geo"
	"github.com/dpup/campusnav/server/internal/lib/routing"
)

// Engine is the navigation state machine. All session transitions happen
// under mu; route fetches and position subscriptions run without it and their
// results are applied only while the generation that started them is current.
type Engine struct {
	fetcher RouteFetcher
	source  PositionSource
	matcher routing.DeviationMatcher
	opts    Options
	now     func() time.Time
	ctx     context.Context

	mu           sync.Mutex
	session      Session
	generation   uint64
	cancelFetch  context.CancelFunc // non-nil while a fetch is in flight
	subscription Subscription
	subToken     uint64
	seq          uint64
	listeners    []Listener
	queue        []Event
	dispatching  bool
	deferred     error // last initial-fetch failure not yet published
}

// NewEngine creates an idle engine. Zero-valued options fall back to DefaultOptions.
func NewEngine(fetcher RouteFetcher, source PositionSource, opts Options) *Engine {
	defaults := DefaultOptions()
	if opts.DeviationThreshold <= 0 {
		opts.DeviationThreshold = defaults.DeviationThreshold
	}
	if opts.RecalculationInterval <= 0 {
		opts.RecalculationInterval = defaults.RecalculationInterval
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaults.FetchTimeout
	}
	if opts.Watch.Accuracy == "" {
		opts.Watch = defaults.Watch
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	return &Engine{
		fetcher: fetcher,
		source:  source,
		matcher: routing.NewDeviationMatcher(opts.DeviationThreshold),
		opts:    opts,
		now:     clock,
		ctx:     logging.EnsureLogger(ctx),
		session: Session{State: Idle},
	}
}

// AddListener registers l for all future events
func (e *Engine) AddListener(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// State returns the current state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.State
}

// Snapshot returns a copy of the session with the walker's progress along the route
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	session := e.session
	e.mu.Unlock()

	if session.Destination != nil {
		dest := *session.Destination
		session.Destination = &dest
	}
	if session.LastPosition != nil {
		pos := *session.LastPosition
		session.LastPosition = &pos
	}
	if session.LastRecalculationAt != nil {
		at := *session.LastRecalculationAt
		session.LastRecalculationAt = &at
	}

	snapshot := Snapshot{Session: session}
	if session.Route != nil && session.LastPosition != nil {
		deviation, err := e.matcher.CheckPosition(e.ctx, *session.LastPosition, session.Route)
		if err == nil {
			snapshot.Deviation = &deviation
		}
	}
	return snapshot
}

// SelectDestination fetches a route to dest from the last known position, or
// the default origin when there is none, and enters RoutePreview. It replaces
// any in-flight fetch. On failure the prior state is kept and the error is
// both returned and published, unless ctx was marked with DeferErrorEvent.
func (e *Engine) SelectDestination(ctx context.Context, dest Destination) error {
	ctx = logging.EnsureLogger(ctx)
	if err := dest.Coordinate.Validate(); err != nil {
		return routing.NewRouteError(routing.KindInvalidPath, "", fmt.Errorf("invalid destination: %w", err))
	}

	e.mu.Lock()
	origin, ok := e.originLocked()
	if !ok {
		e.mu.Unlock()
		return ErrPositionUnknown
	}

	var events []Event
	gen := e.supersedeLocked()
	e.deferred = nil
	if e.session.State == Recalculating {
		// The recalculation was just cancelled; keep following the current route
		e.session.State = Navigating
		events = append(events, e.eventLocked(EventStateChanged))
	}
	fetchCtx, cancel := context.WithTimeout(ctx, e.opts.FetchTimeout)
	e.cancelFetch = cancel
	e.publishLocked(events)

	logging.Infow(ctx, "Fetching route", "destination", dest.Label, "origin", origin)
	route, err := e.fetcher.FetchRoute(fetchCtx, origin, dest.Coordinate)
	cancel()

	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		return ErrSuperseded
	}
	e.cancelFetch = nil

	if err != nil {
		if errorEventDeferred(ctx) {
			e.deferred = err
			e.mu.Unlock()
			return err
		}
		event := e.eventLocked(EventError)
		setError(&event, err, true)
		e.publishLocked([]Event{event})
		return err
	}

	previous := e.session.State
	if previous == Idle {
		e.session.ID = uuid.NewString()
	}
	e.session.Destination = &dest
	e.session.Route = route
	e.session.LastRecalculationAt = nil
	e.session.State = RoutePreview
	sub := e.releaseSubscriptionLocked()

	routeEvent := e.eventLocked(EventRouteUpdated)
	routeEvent.Route = route
	events = []Event{routeEvent}
	if previous != RoutePreview {
		events = append(events, e.eventLocked(EventStateChanged))
	}
	e.publishLocked(events)

	if sub != nil {
		sub.Unsubscribe()
	}
	return nil
}

// ReportError publishes a fatal error event for err if it is the initial-fetch
// failure a deferred SelectDestination last returned. It publishes each such
// failure at most once and ignores any other error.
func (e *Engine) ReportError(err error) {
	e.mu.Lock()
	if err == nil || e.deferred == nil || !errors.Is(err, e.deferred) {
		e.mu.Unlock()
		return
	}
	e.deferred = nil
	event := e.eventLocked(EventError)
	setError(&event, err, true)
	e.publishLocked([]Event{event})
}

// StartNavigating subscribes to the position source and enters Navigating.
// It is only valid from RoutePreview.
func (e *Engine) StartNavigating() error {
	e.mu.Lock()
	if e.session.State != RoutePreview {
		state := e.session.State
		e.mu.Unlock()
		return fmt.Errorf("%w: cannot start navigating from %s", ErrInvalidState, state)
	}
	e.subToken++
	token := e.subToken
	gen := e.generation
	e.mu.Unlock()

	sub, err := e.source.Watch(e.opts.Watch, func(fix Fix) {
		e.handleFix(token, fix)
	})

	e.mu.Lock()
	if err != nil {
		routeErr := routing.NewRouteError(routing.KindPermissionDenied, "", err)
		event := e.eventLocked(EventError)
		setError(&event, routeErr, true)
		e.publishLocked([]Event{event})
		return routeErr
	}
	if gen != e.generation || token != e.subToken || e.session.State != RoutePreview {
		e.mu.Unlock()
		sub.Unsubscribe()
		return ErrSuperseded
	}
	e.subscription = sub
	e.session.State = Navigating
	e.publishLocked([]Event{e.eventLocked(EventStateChanged)})
	return nil
}

// StopNavigating releases the position stream, drops the route and
// destination and returns to Idle. The last known position is kept.
func (e *Engine) StopNavigating() error {
	e.mu.Lock()
	e.supersedeLocked()
	sub := e.releaseSubscriptionLocked()
	previous := e.session.State
	e.session = Session{
		State:        Idle,
		LastPosition: e.session.LastPosition,
	}
	var events []Event
	if previous != Idle {
		events = append(events, e.eventLocked(EventStateChanged))
	}
	e.publishLocked(events)

	if sub != nil {
		sub.Unsubscribe()
	}
	return nil
}

// ClearDestination is StopNavigating for callers that never started navigating
func (e *Engine) ClearDestination() error {
	return e.StopNavigating()
}

// UpdatePosition reports a position from outside the subscribed source. While
// navigating it is handled like a subscribed fix; otherwise it only seeds the
// origin for the next route request.
func (e *Engine) UpdatePosition(p geo.Point) error {
	if err := p.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	state := e.session.State
	token := e.subToken
	if state != Navigating && state != Recalculating {
		e.session.LastPosition = &p
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	e.handleFix(token, Fix{Coordinate: p, Timestamp: e.now()})
	return nil
}

// handleFix processes a fix from the subscription identified by token
func (e *Engine) handleFix(token uint64, fix Fix) {
	if fix.Coordinate.Validate() != nil {
		return
	}

	e.mu.Lock()
	state := e.session.State
	if token != e.subToken || (state != Navigating && state != Recalculating) {
		e.mu.Unlock()
		return
	}

	position := fix.Coordinate
	e.session.LastPosition = &position

	if state == Recalculating || e.session.Route == nil {
		e.mu.Unlock()
		return
	}

	deviation, err := e.matcher.CheckPosition(e.ctx, position, e.session.Route)
	if err != nil || !deviation.IsOffRoute() {
		e.mu.Unlock()
		return
	}

	deviationEvent := e.eventLocked(EventDeviationDetected)
	deviationEvent.Deviation = &deviation
	events := []Event{deviationEvent}

	now := e.now()
	last := e.session.LastRecalculationAt
	throttled := last != nil && now.Sub(*last) < e.opts.RecalculationInterval
	if throttled || e.cancelFetch != nil {
		e.publishLocked(events)
		return
	}

	gen := e.supersedeLocked()
	e.session.State = Recalculating
	e.session.LastRecalculationAt = &now
	fetchCtx, cancel := context.WithTimeout(e.ctx, e.opts.FetchTimeout)
	e.cancelFetch = cancel
	destination := e.session.Destination.Coordinate

	events = append(events,
		e.eventLocked(EventRecalculationStarted),
		e.eventLocked(EventStateChanged))
	e.publishLocked(events)

	go e.recalculate(fetchCtx, cancel, gen, position, destination)
}

// recalculate fetches a replacement route and applies it if nothing superseded it
func (e *Engine) recalculate(ctx context.Context, cancel context.CancelFunc, gen uint64, origin, destination geo.Point) {
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err, _ := errors.ParseStack(debug.Stack())
			skipFrames := 3
			numFrames := 5
			logging.Errorw(ctx, "Navigation: recovered from panic during recalculation",
				"error", r, "error.stack_trace", err.MinimalStack(skipFrames, numFrames))
			e.finishRecalculation(ctx, gen, nil, fmt.Errorf("route fetch panicked: %v", r))
		}
	}()

	logging.Infow(ctx, "Recalculating route", "origin", origin)
	route, err := e.fetcher.FetchRoute(ctx, origin, destination)
	e.finishRecalculation(ctx, gen, route, err)
}

// finishRecalculation returns the session to Navigating with the new route,
// or with the current one when err is set
func (e *Engine) finishRecalculation(ctx context.Context, gen uint64, route *routing.Route, err error) {
	e.mu.Lock()
	if gen != e.generation || e.session.State != Recalculating {
		e.mu.Unlock()
		return
	}
	e.cancelFetch = nil

	now := e.now()
	e.session.LastRecalculationAt = &now
	e.session.State = Navigating

	var events []Event
	if err != nil {
		logging.Warnw(ctx, "Recalculation failed, keeping current route", "error", err)
		failure := e.eventLocked(EventError)
		setError(&failure, err, false)
		finished := e.eventLocked(EventRecalculationFinished)
		setError(&finished, err, false)
		events = append(events, failure, finished)
	} else {
		e.session.Route = route
		updated := e.eventLocked(EventRouteUpdated)
		updated.Route = route
		events = append(events, updated, e.eventLocked(EventRecalculationFinished))
	}
	events = append(events, e.eventLocked(EventStateChanged))
	e.publishLocked(events)
}

// originLocked picks the origin for a route request
func (e *Engine) originLocked() (geo.Point, bool) {
	if e.session.LastPosition != nil {
		return *e.session.LastPosition, true
	}
	if e.opts.DefaultOrigin != nil {
		return *e.opts.DefaultOrigin, true
	}
	return geo.Point{}, false
}

// supersedeLocked invalidates any in-flight fetch and returns the new generation
func (e *Engine) supersedeLocked() uint64 {
	e.generation++
	if e.cancelFetch != nil {
		e.cancelFetch()
		e.cancelFetch = nil
	}
	return e.generation
}

// releaseSubscriptionLocked detaches the subscription; the caller unsubscribes
// it after dropping the lock
func (e *Engine) releaseSubscriptionLocked() Subscription {
	sub := e.subscription
	e.subscription = nil
	e.subToken++
	return sub
}

func (e *Engine) eventLocked(t EventType) Event {
	e.seq++
	return Event{
		Seq:       e.seq,
		Type:      t,
		Time:      e.now(),
		SessionID: e.session.ID,
		State:     e.session.State,
	}
}

// publishLocked queues events and releases mu. The goroutine that finds no
// delivery in progress delivers the queue, so listeners see events in Seq order.
func (e *Engine) publishLocked(events []Event) {
	e.queue = append(e.queue, events...)
	if e.dispatching {
		e.mu.Unlock()
		return
	}

	e.dispatching = true
	for len(e.queue) > 0 {
		batch := e.queue
		e.queue = nil
		listeners := make([]Listener, len(e.listeners))
		copy(listeners, e.listeners)
		e.mu.Unlock()

		for _, event := range batch {
			for _, l := range listeners {
				e.notify(l, event)
			}
		}
		e.mu.Lock()
	}
	e.dispatching = false
	e.mu.Unlock()
}

func (e *Engine) notify(l Listener, event Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.Errorw(e.ctx, "Navigation: listener panicked", "event", event.Type, "error", r)
		}
	}()
	l.HandleEvent(event)
}

func setError(event *Event, err error, fatal bool) {
	event.Err = err
	event.Error = err.Error()
	event.ErrorKind = routing.KindOf(err)
	event.Fatal = fatal
}
