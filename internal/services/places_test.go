package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/campusnav/server/internal/lib/navigation"
)

func TestParsePlaces(t *testing.T) {
	data := []byte(`
places:
  - id: biblioteca
    name: Biblioteca
    aliases: [library, biblio]
    latitude: 20.6551
    longitude: -100.4048
  - id: rectoria
    name: Rectoría
    latitude: 20.6547
    longitude: -100.4061
`)

	places, err := ParsePlaces(data)
	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, []string{"library", "biblio"}, places[0].Aliases)

	dest := places[1].Destination()
	assert.Equal(t, navigation.KindPlace, dest.Kind)
	assert.Equal(t, "Rectoría", dest.Label)
	assert.Equal(t, -100.4061, dest.Coordinate.Longitude)
}

func TestParsePlaces_Invalid(t *testing.T) {
	tests := map[string]string{
		"missing name": "places:\n  - id: a\n    latitude: 1\n    longitude: 1\n",
		"bad latitude": "places:\n  - id: a\n    name: A\n    latitude: 95\n    longitude: 1\n",
		"duplicate id": "places:\n  - {id: a, name: A, latitude: 1, longitude: 1}\n  - {id: a, name: B, latitude: 1, longitude: 1}\n",
		"not yaml":     "places: [",
		"wrong type":   "places:\n  - id: a\n    name: A\n    latitude: north\n",
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePlaces([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoadPlaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "places.yaml")
	require.NoError(t, os.WriteFile(path, []byte("places:\n  - {id: a, name: A, latitude: 1, longitude: 2}\n"), 0o600))

	places, err := LoadPlaces(path)
	require.NoError(t, err)
	require.Len(t, places, 1)

	_, err = LoadPlaces(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
