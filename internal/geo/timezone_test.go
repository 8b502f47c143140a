package geo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydrozone/sprinkler-weather/internal/weather"
)

func TestZoneResolution(t *testing.T) {
	r, err := NewTimeZoneResolver()
	require.NoError(t, err)

	nyc := weather.Coordinates{Lat: 40.7128, Lon: -74.0060}
	assert.Equal(t, "America/New_York", r.Zone(nyc).String())

	// Repeated lookups hit the loaded-location cache and stay stable.
	assert.Same(t, r.Zone(nyc), r.Zone(nyc))
}

func TestLocalMidnight(t *testing.T) {
	r, err := NewTimeZoneResolver()
	require.NoError(t, err)

	phoenix := weather.Coordinates{Lat: 33.4484, Lon: -112.0740}

	// 02:00 UTC on July 5 is still July 4 in Phoenix (UTC-7, no DST).
	instant := time.Date(2026, time.July, 5, 2, 0, 0, 0, time.UTC)
	midnight := r.LocalMidnight(phoenix, instant)

	assert.Equal(t, 2026, midnight.Year())
	assert.Equal(t, time.July, midnight.Month())
	assert.Equal(t, 4, midnight.Day())
	assert.Equal(t, 0, midnight.Hour())

	y, m, d := r.LocalCalendarDay(phoenix, instant)
	assert.Equal(t, 2026, y)
	assert.Equal(t, time.July, m)
	assert.Equal(t, 4, d)
}
