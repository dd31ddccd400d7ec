package routing

import (
	"errors"
	"fmt"
)

// ErrorKind classifies route acquisition failures
type ErrorKind string

const (
	KindDecode              ErrorKind = "decode"
	KindInvalidPath         ErrorKind = "invalid_path"
	KindNoRouteFound        ErrorKind = "no_route_found"
	KindIncompleteRouteData ErrorKind = "incomplete_route_data"
	KindInvalidRoutePoints  ErrorKind = "invalid_route_points"
	KindNetwork             ErrorKind = "network"
	KindProvider            ErrorKind = "provider"
	KindPermissionDenied    ErrorKind = "permission_denied"
)

// RouteError is the single error type surfaced by route acquisition and
// position subscription. Code carries the provider status string or HTTP
// status when there is one.
type RouteError struct {
	Kind ErrorKind
	Code string
	Err  error
}

// NewRouteError builds a RouteError wrapping err
func NewRouteError(kind ErrorKind, code string, err error) *RouteError {
	return &RouteError{Kind: kind, Code: code, Err: err}
}

func (e *RouteError) Error() string {
	msg := string(e.Kind)
	if e.Code != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Code)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return "route error: " + msg
}

func (e *RouteError) Unwrap() error {
	return e.Err
}

// Is matches another *RouteError by kind, so callers can test with
// errors.Is(err, &RouteError{Kind: KindNetwork}).
func (e *RouteError) Is(target error) bool {
	t, ok := target.(*RouteError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

// KindOf returns the kind of the first RouteError in err's chain, or "" when
// there is none
func KindOf(err error) ErrorKind {
	var routeErr *RouteError
	if errors.As(err, &routeErr) {
		return routeErr.Kind
	}
	return ""
}

// IsRetryable reports whether err is a transient network failure worth one
// more attempt
func IsRetryable(err error) bool {
	return KindOf(err) == KindNetwork
}
