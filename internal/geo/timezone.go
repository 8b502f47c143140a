package geo

import (
	"log"
	"sync"
	"time"

	"github.com/ringsaturn/tzf"

	"github.com/hydrozone/sprinkler-weather/internal/weather"
)

// TimeZoneResolver maps coordinates to the IANA zone they fall in.
// Day boundaries throughout the engine are computed in the zone of the
// request coordinates, never in server-local time.
type TimeZoneResolver struct {
	finder tzf.F

	mu     sync.Mutex
	loaded map[string]*time.Location
}

// NewTimeZoneResolver builds a resolver over the embedded zone polygons.
func NewTimeZoneResolver() (*TimeZoneResolver, error) {
	finder, err := tzf.NewDefaultFinder()
	if err != nil {
		return nil, err
	}
	return &TimeZoneResolver{
		finder: finder,
		loaded: make(map[string]*time.Location),
	}, nil
}

// Zone returns the IANA zone containing coords. Coordinates outside
// any zone, and zone names missing from the host tzdata, fall back to
// UTC.
func (r *TimeZoneResolver) Zone(coords weather.Coordinates) *time.Location {
	name := r.finder.GetTimezoneName(coords.Lon, coords.Lat)
	if name == "" {
		return time.UTC
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if loc, ok := r.loaded[name]; ok {
		return loc
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("timezone: cannot load %q, falling back to UTC: %v", name, err)
		loc = time.UTC
	}
	r.loaded[name] = loc
	return loc
}

// LocalMidnight returns 00:00:00 of the day containing instant at coords.
func (r *TimeZoneResolver) LocalMidnight(coords weather.Coordinates, instant time.Time) time.Time {
	return weather.LocalMidnight(instant, r.Zone(coords))
}

// LocalCalendarDay returns the calendar date of instant at coords.
func (r *TimeZoneResolver) LocalCalendarDay(coords weather.Coordinates, instant time.Time) (int, time.Month, int) {
	t := instant.In(r.Zone(coords))
	return t.Year(), t.Month(), t.Day()
}
