package weather

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/hydrozone/sprinkler-weather/internal/observability"
)

// composeTimeout bounds one composition regardless of the caller's
// context; the upstream fetch inside carries its own per-call timeout.
const composeTimeout = 30 * time.Second

// cachedView is one cached composition for a (coords, provider) key.
type cachedView struct {
	series    CombinedSeries
	coords    Coordinates
	createdAt time.Time
	ttl       time.Duration
	degraded  bool
}

// Composer produces the authoritative combined series for a
// (coords, providerTag) pair and caches it for short-TTL reuse. It is
// the single piece of cross-request state in the engine.
type Composer struct {
	local    *LocalProvider
	registry *Registry
	zones    ZoneResolver
	clock    clockwork.Clock
	metrics  *observability.Metrics

	ttl         time.Duration
	degradedTTL time.Duration

	mu     sync.Mutex
	cache  map[string]*cachedView
	flight singleflight.Group
}

// NewComposer creates a Composer. Degraded compositions (one source
// failed) are cached under degradedTTL so a flapping upstream is
// retried sooner than the normal TTL.
func NewComposer(
	local *LocalProvider,
	registry *Registry,
	zones ZoneResolver,
	clock clockwork.Clock,
	metrics *observability.Metrics,
	ttl, degradedTTL time.Duration,
) *Composer {
	return &Composer{
		local:       local,
		registry:    registry,
		zones:       zones,
		clock:       clock,
		metrics:     metrics,
		ttl:         ttl,
		degradedTTL: degradedTTL,
		cache:       make(map[string]*cachedView),
	}
}

// ViewForAdjustment returns the cached combined series for the
// adjustment-method consumer, composing when stale or missing.
// The returned series is a snapshot of one composition, newest-first.
func (c *Composer) ViewForAdjustment(ctx context.Context, coords Coordinates, providerTag string) (CombinedSeries, error) {
	if _, err := c.registry.Get(providerTag); err != nil {
		return nil, err
	}

	key := coords.Key() + "|" + providerTag

	if series, ok := c.cachedSeries(key); ok {
		c.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return series, nil
	}
	c.metrics.CacheLookups.WithLabelValues("miss").Inc()

	// Concurrent callers for the same key share one composition. The
	// compose runs under its own deadline so one caller's cancellation
	// cannot abort the result the other waiters expect.
	ch := c.flight.DoChan(key, func() (interface{}, error) {
		composeCtx, cancel := context.WithTimeout(context.Background(), composeTimeout)
		defer cancel()

		series, degraded, err := c.compose(composeCtx, coords, providerTag)
		if err != nil {
			c.metrics.Composes.WithLabelValues("error").Inc()
			return nil, err
		}

		ttl := c.ttl
		outcome := "ok"
		if degraded {
			ttl = c.degradedTTL
			outcome = "degraded"
		}
		c.metrics.Composes.WithLabelValues(outcome).Inc()

		c.mu.Lock()
		c.cache[key] = &cachedView{
			series:    series,
			coords:    coords,
			createdAt: c.clock.Now(),
			ttl:       ttl,
			degraded:  degraded,
		}
		c.mu.Unlock()

		return series, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(CombinedSeries), nil
	}
}

// ViewForRainRestriction returns the instantaneous 24-hour rollup plus
// the forecast tail of the combined series, composing transparently
// when nothing is cached.
func (c *Composer) ViewForRainRestriction(ctx context.Context, coords Coordinates, providerTag string) (CurrentConditions, []CombinedDay, error) {
	series, err := c.ViewForAdjustment(ctx, coords, providerTag)
	if err != nil {
		return CurrentConditions{}, nil, err
	}
	current, err := c.local.Current(coords)
	if err != nil {
		return CurrentConditions{}, nil, err
	}
	return current, series.ForecastTail(), nil
}

// cachedSeries returns the fresh cached series for key, if any.
func (c *Composer) cachedSeries(key string) (CombinedSeries, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	if c.clock.Now().Sub(entry.createdAt) > entry.ttl {
		delete(c.cache, key)
		return nil, false
	}
	return entry.series, true
}

// compose runs one composition: measured past + today from the local
// provider, future days from the selected adapter, overlap filtered by
// calendar day, ordered newest-first. degraded reports whether one of
// the two sources failed.
func (c *Composer) compose(ctx context.Context, coords Coordinates, providerTag string) (CombinedSeries, bool, error) {
	adapter, err := c.registry.Get(providerTag)
	if err != nil {
		return nil, false, err
	}

	zone := c.zones.Zone(coords)
	now := c.clock.Now()
	todayKey := CalendarDay(LocalMidnight(now, zone).Unix(), zone)

	localDays, localErr := c.local.WateringWindow(coords)
	localOK := localErr == nil && len(localDays) > 0
	if localErr != nil {
		log.Printf("composer: local window unavailable for %s: %v", coords.Key(), localErr)
	}

	rawForecast, forecastErr := adapter.FetchDaily(ctx, coords, zone)
	forecastOK := forecastErr == nil && len(rawForecast) > 0
	if forecastErr != nil {
		log.Printf("composer: forecast %s failed for %s: %v", providerTag, coords.Key(), forecastErr)
	}

	if !localOK && !forecastOK {
		return nil, false, ErrInsufficientData
	}

	// Keep only forecast days strictly after today's calendar date.
	// Comparing (year, month, day) tuples tolerates upstreams that
	// stamp days at non-midnight marks.
	var forecast []ForecastDay
	for _, d := range rawForecast {
		if CalendarDay(d.LocalMidnight, zone) > todayKey {
			forecast = append(forecast, d)
		}
	}

	// Measured data is authoritative for any day it covers.
	if localOK && len(forecast) > 0 {
		latestLocal := CalendarDay(localDays[0].LocalMidnight, zone)
		kept := forecast[:0]
		for _, d := range forecast {
			if CalendarDay(d.LocalMidnight, zone) > latestLocal {
				kept = append(kept, d)
			}
		}
		forecast = kept
	}

	combined := make(CombinedSeries, 0, len(localDays)+len(forecast))
	for _, b := range localDays {
		combined = append(combined, fromBucket(b))
	}
	for _, d := range forecast {
		combined = append(combined, fromForecast(d))
	}
	if len(combined) == 0 {
		return nil, false, ErrInsufficientData
	}

	sort.Slice(combined, func(i, j int) bool {
		return combined[i].LocalMidnight > combined[j].LocalMidnight
	})

	return combined, !(localOK && forecastOK), nil
}
