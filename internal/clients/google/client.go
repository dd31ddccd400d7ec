package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dpup/campusnav/server/internal/lib/geo"
	"github.com/dpup/campusnav/server/internal/lib/routing"
)

const (
	// DefaultBaseURL is the Directions API host
	DefaultBaseURL = "https://maps.googleapis.com"

	// DefaultTimeout bounds a single directions request
	DefaultTimeout = 10 * time.Second

	directionsPath = "/maps/api/directions/json"
)

// HTTPDoer is the subset of *http.Client used by Client
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client provides access to the Google Directions API
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	region     string
	httpClient HTTPDoer
}

// NewClient creates a new Directions API client. A zero timeout uses DefaultTimeout.
func NewClient(apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return NewClientWithHTTPDoer(apiKey, DefaultBaseURL, &http.Client{
		Timeout: timeout,
	})
}

// NewClientWithHTTPDoer creates a client with a custom transport, used by tests
func NewClientWithHTTPDoer(apiKey, baseURL string, doer HTTPDoer) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		language:   "es",
		region:     "mx",
		httpClient: doer,
	}
}

// SetBaseURL points the client at another Directions endpoint, such as a proxy
func (c *Client) SetBaseURL(baseURL string) {
	if baseURL != "" {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// SetLocale overrides the language and region sent with each request
func (c *Client) SetLocale(language, region string) {
	if language != "" {
		c.language = language
	}
	if region != "" {
		c.region = region
	}
}

// Directions requests walking directions with alternatives between origin and
// destination. Transport failures are reported as network RouteErrors and
// non-2xx responses as provider RouteErrors; the provider status field is
// left for the caller to interpret.
func (c *Client) Directions(ctx context.Context, origin, destination geo.Point) (*DirectionsResponse, error) {
	params := url.Values{}
	params.Set("origin", formatLatLng(origin))
	params.Set("destination", formatLatLng(destination))
	params.Set("mode", "walking")
	params.Set("alternatives", "true")
	params.Set("units", "metric")
	params.Set("language", c.language)
	params.Set("region", c.region)
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+directionsPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, routing.NewRouteError(routing.KindNetwork, "", fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, routing.NewRouteError(routing.KindNetwork, "", fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	// Handle rate limiting and errors
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, routing.NewRouteError(routing.KindProvider, strconv.Itoa(resp.StatusCode), errors.New("rate limit exceeded"))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, routing.NewRouteError(routing.KindProvider, strconv.Itoa(resp.StatusCode),
			fmt.Errorf("API error %d: %s", resp.StatusCode, string(body)))
	}

	var response DirectionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, routing.NewRouteError(routing.KindIncompleteRouteData, "", fmt.Errorf("failed to decode response: %w", err))
	}

	return &response, nil
}

func formatLatLng(p geo.Point) string {
	return strconv.FormatFloat(p.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(p.Longitude, 'f', -1, 64)
}

// DirectionsResponse represents the API response structure
type DirectionsResponse struct {
	Status       string            `json:"status"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Routes       []DirectionsRoute `json:"routes"`
}

// DirectionsRoute represents a single candidate route
type DirectionsRoute struct {
	Summary          string             `json:"summary"`
	Legs             []DirectionsLeg    `json:"legs"`
	OverviewPolyline DirectionsPolyline `json:"overview_polyline"`
}

// DirectionsLeg represents one leg of a route; walking requests have one
type DirectionsLeg struct {
	Distance     *TextValue `json:"distance,omitempty"`
	Duration     *TextValue `json:"duration,omitempty"`
	StartAddress string     `json:"start_address"`
	EndAddress   string     `json:"end_address"`
}

// TextValue pairs a localized label with its numeric value
type TextValue struct {
	Text  string   `json:"text"`
	Value *float64 `json:"value,omitempty"`
}

// DirectionsPolyline holds the encoded overview geometry
type DirectionsPolyline struct {
	Points string `json:"points"`
}

// DurationValue returns the first leg's duration in seconds, if present
func (r DirectionsRoute) DurationValue() (float64, bool) {
	if len(r.Legs) == 0 || r.Legs[0].Duration == nil || r.Legs[0].Duration.Value == nil {
		return 0, false
	}
	return *r.Legs[0].Duration.Value, true
}

// DistanceValue returns the first leg's distance in meters, if present
func (r DirectionsRoute) DistanceValue() (float64, bool) {
	if len(r.Legs) == 0 || r.Legs[0].Distance == nil || r.Legs[0].Distance.Value == nil {
		return 0, false
	}
	return *r.Legs[0].Distance.Value, true
}
