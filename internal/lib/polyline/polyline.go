// Package polyline decodes Google encoded polylines into geographic points.
package polyline

import (
	"errors"
	"fmt"

	"github.com/twpayne/go-polyline"

	"github.com/dpup/campusnav/server/internal/lib/geo"
)

// ErrEmpty is returned when the encoded string has no content
var ErrEmpty = errors.New("encoded polyline string is empty")

// DecodeError reports a malformed encoded polyline
type DecodeError struct {
	Encoded string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode polyline (%d bytes): %v", len(e.Encoded), e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode decodes a Google polyline string (precision 1e5) to a point sequence.
// Truncated groups, bytes outside the alphabet and overflowing runs fail with
// a *DecodeError; no partial result is returned.
func Decode(encoded string) ([]geo.Point, error) {
	if encoded == "" {
		return nil, &DecodeError{Encoded: encoded, Err: ErrEmpty}
	}

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, &DecodeError{Encoded: encoded, Err: err}
	}

	points := make([]geo.Point, len(coords))
	for i, coord := range coords {
		points[i] = geo.Point{
			Latitude:  coord[0],
			Longitude: coord[1],
		}
	}

	return points, nil
}

// Encode encodes points using the same codec
func Encode(points []geo.Point) string {
	coords := make([][]float64, len(points))
	for i, point := range points {
		coords[i] = []float64{point.Latitude, point.Longitude}
	}
	return string(polyline.EncodeCoords(coords))
}
