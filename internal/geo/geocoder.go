package geo

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/hydrozone/sprinkler-weather/internal/weather"
)

// CacheFile is the on-disk name of the geocoder result cache.
const CacheFile = "geocoderCache.json"

// Geocoder resolves place names to coordinates through the Google
// geocoding API, with results cached in a JSON file so repeat lookups
// survive restarts and cost nothing.
type Geocoder struct {
	mu    sync.Mutex
	path  string
	cache map[string]weather.Coordinates
}

// NewGeocoder creates a Geocoder persisting its cache under dir.
// apiKey may be empty; lookups then fail until a key is configured, but
// cached entries keep resolving.
func NewGeocoder(apiKey, dir string) *Geocoder {
	geocoder.ApiKey = apiKey

	g := &Geocoder{
		path:  filepath.Join(dir, CacheFile),
		cache: make(map[string]weather.Coordinates),
	}

	data, err := os.ReadFile(g.path)
	if err == nil {
		if err := json.Unmarshal(data, &g.cache); err != nil {
			log.Printf("geocoder: corrupt cache file, starting empty: %v", err)
			g.cache = make(map[string]weather.Coordinates)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("geocoder: cannot read cache file: %v", err)
	}

	return g
}

// Resolve turns a city/country pair into coordinates.
func (g *Geocoder) Resolve(city, country string) (weather.Coordinates, error) {
	key := city + "," + country

	g.mu.Lock()
	if coords, ok := g.cache[key]; ok {
		g.mu.Unlock()
		return coords, nil
	}
	g.mu.Unlock()

	if geocoder.ApiKey == "" {
		return weather.Coordinates{}, fmt.Errorf("geocoder api key is not configured")
	}

	location, err := geocoder.Geocoding(geocoder.Address{
		City:    city,
		Country: country,
	})
	if err != nil {
		return weather.Coordinates{}, fmt.Errorf("geocode %q: %w", key, err)
	}

	coords := weather.Coordinates{Lat: location.Latitude, Lon: location.Longitude}

	g.mu.Lock()
	g.cache[key] = coords
	g.persistLocked()
	g.mu.Unlock()

	return coords, nil
}

// persistLocked writes the cache file best-effort; a failed write only
// costs a future API call.
func (g *Geocoder) persistLocked() {
	data, err := json.Marshal(g.cache)
	if err != nil {
		log.Printf("geocoder: marshal cache: %v", err)
		return
	}
	if err := os.WriteFile(g.path, data, 0o644); err != nil {
		log.Printf("geocoder: write cache: %v", err)
	}
}
