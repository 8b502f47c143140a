package weather

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydrozone/sprinkler-weather/internal/observability"
)

// fakeAdapter returns a canned forecast and counts fetches.
type fakeAdapter struct {
	tag   string
	days  []ForecastDay
	err   error
	calls int
}

func (f *fakeAdapter) Tag() string { return f.tag }

func (f *fakeAdapter) FetchDaily(context.Context, Coordinates, *time.Location) ([]ForecastDay, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.days, nil
}

var testCoords = Coordinates{Lat: 40.0, Lon: -75.0}

// testNow is 18:00 UTC so "today" has a usable partial bucket.
var testNow = time.Date(2026, time.March, 10, 18, 0, 0, 0, time.UTC)

// forecastFrom builds n days stamped at local midnight starting at
// start (inclusive).
func forecastFrom(start time.Time, n int, tag string) []ForecastDay {
	var days []ForecastDay
	for i := 0; i < n; i++ {
		days = append(days, ForecastDay{
			LocalMidnight: start.AddDate(0, 0, i).Unix(),
			MinTempF:      50,
			MaxTempF:      75,
			PrecipIn:      0.05,
			Provider:      tag,
		})
	}
	return days
}

func newTestComposer(obs []Observation, adapter ForecastAdapter, zone *time.Location) (*Composer, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(testNow)
	zones := &fakeZones{zone: zone}
	local := NewLocalProvider(&fakeSource{obs: obs}, zones, clock)

	registry := NewRegistry()
	registry.Register(adapter)

	metrics := observability.NewMetricsWith(prometheus.NewRegistry())
	composer := NewComposer(local, registry, zones, clock, metrics, 5*time.Minute, time.Minute)
	return composer, clock
}

func TestComposeHappyPath(t *testing.T) {
	midnight := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	adapter := &fakeAdapter{
		tag:  "openmeteo",
		days: forecastFrom(midnight.AddDate(0, 0, 1), 7, "openmeteo"),
	}
	obs := sampleEvery(testNow.Add(-8*24*time.Hour), testNow, time.Hour)
	composer, _ := newTestComposer(obs, adapter, time.UTC)

	series, err := composer.ViewForAdjustment(context.Background(), testCoords, "openmeteo")
	require.NoError(t, err)
	require.Len(t, series, 15)

	// Newest-first: today+7 forecast down to today-7 measured.
	assert.Equal(t, SourceForecast, series[0].Source)
	assert.EqualValues(t, midnight.AddDate(0, 0, 7).Unix(), series[0].LocalMidnight)
	assert.Equal(t, SourceLocal, series[14].Source)
	assert.EqualValues(t, midnight.AddDate(0, 0, -7).Unix(), series[14].LocalMidnight)

	todayKey := CalendarDay(midnight.Unix(), time.UTC)
	seen := make(map[int]bool)
	for i, d := range series {
		if i > 0 {
			// Strict monotonic decrease in local midnight.
			assert.Less(t, d.LocalMidnight, series[i-1].LocalMidnight)
		}

		day := CalendarDay(d.LocalMidnight, time.UTC)
		assert.False(t, seen[day], "duplicate calendar day %d", day)
		seen[day] = true

		// Every element within [today-7, today+7].
		assert.GreaterOrEqual(t, day, todayKey-7)
		assert.LessOrEqual(t, day, todayKey+7)

		if d.Source == SourceForecast {
			assert.Greater(t, day, todayKey)
		}
	}
}

func TestComposeColdStartInsufficient(t *testing.T) {
	adapter := &fakeAdapter{tag: "openmeteo", err: fmt.Errorf("%w: timeout", ErrUpstreamTransient)}

	// 12 hours of samples: below the aggregation gate, and the forecast
	// is down too.
	obs := sampleEvery(testNow.Add(-12*time.Hour), testNow, time.Hour)
	composer, _ := newTestComposer(obs, adapter, time.UTC)

	_, err := composer.ViewForAdjustment(context.Background(), testCoords, "openmeteo")
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestComposeFiltersForecastOverlapWithToday(t *testing.T) {
	midnight := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

	// Upstream includes today plus six future days.
	adapter := &fakeAdapter{
		tag:  "openmeteo",
		days: forecastFrom(midnight, 7, "openmeteo"),
	}
	obs := sampleEvery(testNow.Add(-8*24*time.Hour), testNow, time.Hour)
	composer, _ := newTestComposer(obs, adapter, time.UTC)

	series, err := composer.ViewForAdjustment(context.Background(), testCoords, "openmeteo")
	require.NoError(t, err)

	// Today's forecast entry is dropped in favor of the measured one.
	require.Len(t, series, 14)
	assert.Len(t, series.ForecastTail(), 6)

	seen := make(map[int]bool)
	for _, d := range series {
		day := CalendarDay(d.LocalMidnight, time.UTC)
		assert.False(t, seen[day], "duplicate calendar day %d", day)
		seen[day] = true
	}
}

func TestComposeForecastDownLocalUp(t *testing.T) {
	adapter := &fakeAdapter{tag: "openmeteo", err: fmt.Errorf("%w: 503", ErrUpstreamTransient)}
	obs := sampleEvery(testNow.Add(-8*24*time.Hour), testNow, time.Hour)
	composer, _ := newTestComposer(obs, adapter, time.UTC)

	series, err := composer.ViewForAdjustment(context.Background(), testCoords, "openmeteo")
	require.NoError(t, err)
	require.Len(t, series, 8)
	for _, d := range series {
		assert.Equal(t, SourceLocal, d.Source)
	}
}

func TestComposeLocalDownForecastUp(t *testing.T) {
	midnight := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	adapter := &fakeAdapter{
		tag:  "openmeteo",
		days: forecastFrom(midnight.AddDate(0, 0, 1), 7, "openmeteo"),
	}
	composer, _ := newTestComposer(nil, adapter, time.UTC)

	series, err := composer.ViewForAdjustment(context.Background(), testCoords, "openmeteo")
	require.NoError(t, err)
	require.Len(t, series, 7)
	for _, d := range series {
		assert.Equal(t, SourceForecast, d.Source)
	}
}

func TestComposeNonMidnightForecastStamps(t *testing.T) {
	zone := time.FixedZone("UTC-7", -7*3600)

	// Marks at 06:00 UTC land at 23:00 the previous local day, so only
	// a calendar-date comparison classifies them correctly.
	var days []ForecastDay
	for i := 0; i <= 7; i++ {
		mark := time.Date(2026, time.March, 10+i, 6, 0, 0, 0, time.UTC)
		days = append(days, ForecastDay{
			LocalMidnight: mark.Unix(),
			MinTempF:      50,
			MaxTempF:      75,
			Provider:      "openmeteo",
		})
	}
	adapter := &fakeAdapter{tag: "openmeteo", days: days}
	composer, _ := newTestComposer(nil, adapter, zone)

	series, err := composer.ViewForAdjustment(context.Background(), testCoords, "openmeteo")
	require.NoError(t, err)

	// testNow is March 10 11:00 local at UTC-7. Local dates of the
	// marks run March 9..16; exactly those after March 10 survive.
	require.Len(t, series, 6)
	todayKey := CalendarDay(testNow.Unix(), zone)
	for _, d := range series {
		assert.Greater(t, CalendarDay(d.LocalMidnight, zone), todayKey)
	}
}

func TestComposeCachesWithinTTL(t *testing.T) {
	midnight := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	adapter := &fakeAdapter{
		tag:  "openmeteo",
		days: forecastFrom(midnight.AddDate(0, 0, 1), 7, "openmeteo"),
	}
	obs := sampleEvery(testNow.Add(-8*24*time.Hour), testNow, time.Hour)
	composer, clock := newTestComposer(obs, adapter, time.UTC)

	first, err := composer.ViewForAdjustment(context.Background(), testCoords, "openmeteo")
	require.NoError(t, err)
	second, err := composer.ViewForAdjustment(context.Background(), testCoords, "openmeteo")
	require.NoError(t, err)

	assert.Equal(t, 1, adapter.calls, "second view within TTL must be served from cache")
	assert.Equal(t, first, second)

	clock.Advance(6 * time.Minute)
	_, err = composer.ViewForAdjustment(context.Background(), testCoords, "openmeteo")
	require.NoError(t, err)
	assert.Equal(t, 2, adapter.calls)
}

func TestComposeDegradedResultUsesShortTTL(t *testing.T) {
	adapter := &fakeAdapter{tag: "openmeteo", err: fmt.Errorf("%w: down", ErrUpstreamTransient)}
	obs := sampleEvery(testNow.Add(-8*24*time.Hour), testNow, time.Hour)
	composer, clock := newTestComposer(obs, adapter, time.UTC)

	_, err := composer.ViewForAdjustment(context.Background(), testCoords, "openmeteo")
	require.NoError(t, err)
	_, err = composer.ViewForAdjustment(context.Background(), testCoords, "openmeteo")
	require.NoError(t, err)
	assert.Equal(t, 1, adapter.calls)

	// Past the degraded TTL (but inside the normal one) the upstream is
	// retried.
	clock.Advance(2 * time.Minute)
	_, err = composer.ViewForAdjustment(context.Background(), testCoords, "openmeteo")
	require.NoError(t, err)
	assert.Equal(t, 2, adapter.calls)
}

func TestComposeFailureIsNotCached(t *testing.T) {
	adapter := &fakeAdapter{tag: "openmeteo", err: fmt.Errorf("%w: down", ErrUpstreamTransient)}
	composer, _ := newTestComposer(nil, adapter, time.UTC)

	_, err := composer.ViewForAdjustment(context.Background(), testCoords, "openmeteo")
	require.ErrorIs(t, err, ErrInsufficientData)

	// The upstream recovers; the next access must retry, not replay the
	// failure.
	midnight := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	adapter.err = nil
	adapter.days = forecastFrom(midnight.AddDate(0, 0, 1), 7, "openmeteo")

	series, err := composer.ViewForAdjustment(context.Background(), testCoords, "openmeteo")
	require.NoError(t, err)
	assert.Len(t, series, 7)
}

func TestComposeUnknownProvider(t *testing.T) {
	adapter := &fakeAdapter{tag: "openmeteo"}
	composer, _ := newTestComposer(nil, adapter, time.UTC)

	_, err := composer.ViewForAdjustment(context.Background(), testCoords, "darksky")
	assert.ErrorIs(t, err, ErrInvalidProvider)
	assert.Zero(t, adapter.calls)
}

func TestComposeDistinctKeysAreIndependent(t *testing.T) {
	midnight := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	adapter := &fakeAdapter{
		tag:  "openmeteo",
		days: forecastFrom(midnight.AddDate(0, 0, 1), 7, "openmeteo"),
	}
	composer, _ := newTestComposer(nil, adapter, time.UTC)

	_, err := composer.ViewForAdjustment(context.Background(), testCoords, "openmeteo")
	require.NoError(t, err)
	_, err = composer.ViewForAdjustment(context.Background(), Coordinates{Lat: 33.45, Lon: -112.07}, "openmeteo")
	require.NoError(t, err)

	// Different coordinates never share a cache entry.
	assert.Equal(t, 2, adapter.calls)
}

func TestViewForRainRestriction(t *testing.T) {
	midnight := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	adapter := &fakeAdapter{
		tag:  "openmeteo",
		days: forecastFrom(midnight.AddDate(0, 0, 1), 7, "openmeteo"),
	}
	obs := sampleEvery(testNow.Add(-8*24*time.Hour), testNow, time.Hour)
	composer, _ := newTestComposer(obs, adapter, time.UTC)

	current, forecast, err := composer.ViewForRainRestriction(context.Background(), testCoords, "openmeteo")
	require.NoError(t, err)

	assert.True(t, current.Raining) // hourly samples carry interval rain
	require.Len(t, forecast, 7)
	for _, d := range forecast {
		assert.Equal(t, SourceForecast, d.Source)
	}
}
