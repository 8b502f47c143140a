package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/hydrozone/sprinkler-weather/internal/weather"
)

type AppConfig struct {
	OpenWeatherAPIKey string
	WeatherAPIKey     string
	GeocoderAPIKey    string

	// PersistenceLocation is the directory holding observations.json
	// and geocoderCache.json.
	PersistenceLocation string

	// LocalPersistence enables snapshot + restore of the observation
	// store.
	LocalPersistence bool

	// PersistInterval controls how often the store is snapshotted.
	PersistInterval time.Duration

	// CacheTTL is the composer cache lifetime; DegradedCacheTTL applies
	// when one composition source failed.
	CacheTTL         time.Duration
	DegradedCacheTTL time.Duration

	// HTTPTimeout is the outbound client timeout for upstream calls.
	HTTPTimeout time.Duration

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	cfg.GeocoderAPIKey = os.Getenv("GOOGLE_GEOCODER_API_KEY")

	cfg.PersistenceLocation = getenvDefault("PERSISTENCE_LOCATION", ".")
	cfg.LocalPersistence = getenvBool("LOCAL_PERSISTENCE", true)

	var err error
	if cfg.PersistInterval, err = getenvDuration("PERSIST_INTERVAL", "30m"); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getenvDuration("CACHE_TTL", "5m"); err != nil {
		return nil, err
	}
	if cfg.DegradedCacheTTL, err = getenvDuration("DEGRADED_CACHE_TTL", "1m"); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	cfg.Port = getenvDefault("PORT", "8080")

	if cfg.LocalPersistence {
		if err := ensureDir(cfg.PersistenceLocation); err != nil {
			return nil, fmt.Errorf("%w: persistence location %q: %v",
				weather.ErrConfiguration, cfg.PersistenceLocation, err)
		}
	}

	return cfg, nil
}

// ensureDir verifies dir exists (creating it if needed) and is a
// writable directory.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory")
	}
	probe, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
