package campus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dpup/campusnav/server/internal/lib/geo"
)

// DefaultBaseURL is the campus backend API root
const DefaultBaseURL = "https://uteq-connect-server-production.up.railway.app/api"

// ErrUnsuccessful is returned when the backend answers with success=false
var ErrUnsuccessful = errors.New("campus API reported failure")

// HTTPDoer is the subset of *http.Client used by Client
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client provides access to the campus backend: places and staff directory
type Client struct {
	baseURL    string
	httpClient HTTPDoer
}

// NewClient creates a new campus API client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return NewClientWithHTTPDoer(baseURL, &http.Client{Timeout: timeout})
}

// NewClientWithHTTPDoer creates a client with a custom transport, used by tests
func NewClientWithHTTPDoer(baseURL string, doer HTTPDoer) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{baseURL: baseURL, httpClient: doer}
}

// Location is a named campus place
type Location struct {
	ID       string    `json:"_id"`
	Name     string    `json:"nombre"`
	Position geo.Point `json:"posicion"`
}

// Office is where a staff member can be found
type Office struct {
	ID          string     `json:"id,omitempty"`
	Name        string     `json:"nombre"`
	Coordinates *geo.Point `json:"coordenadas"`
}

// Person is a staff directory entry
type Person struct {
	EmployeeNumber string  `json:"numeroEmpleado"`
	FullName       string  `json:"nombreCompleto"`
	Email          string  `json:"email"`
	Phone          string  `json:"telefono"`
	Position       string  `json:"cargo"`
	Department     string  `json:"departamento"`
	Cubicle        string  `json:"cubiculo,omitempty"`
	Floor          string  `json:"planta,omitempty"`
	Office         *Office `json:"ubicacion"`
}

// HasCoordinates reports whether the person's office can be navigated to
func (p Person) HasCoordinates() bool {
	return p.Office != nil && p.Office.Coordinates != nil && p.Office.Coordinates.Validate() == nil
}

type envelope[T any] struct {
	Success bool `json:"success"`
	Data    []T  `json:"data"`
}

// ListLocations returns every campus place
func (c *Client) ListLocations(ctx context.Context) ([]Location, error) {
	var response envelope[Location]
	if err := c.get(ctx, "/locations", nil, &response); err != nil {
		return nil, err
	}
	if !response.Success {
		return nil, ErrUnsuccessful
	}
	return response.Data, nil
}

// SearchPeople queries the staff directory
func (c *Client) SearchPeople(ctx context.Context, query string) ([]Person, error) {
	params := url.Values{}
	params.Set("q", query)

	var response envelope[Person]
	if err := c.get(ctx, "/personal/buscar", params, &response); err != nil {
		return nil, err
	}
	if !response.Success {
		return nil, ErrUnsuccessful
	}
	return response.Data, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
