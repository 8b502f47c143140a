package weather

import (
	"math"
	"time"

	"github.com/jonboulle/clockwork"
)

// LocalProvider surfaces the two measured views over the observation
// store: the instantaneous 24-hour rollup and the past-7+today watering
// window.
type LocalProvider struct {
	source ObservationSource
	zones  ZoneResolver
	clock  clockwork.Clock
}

// NewLocalProvider creates a LocalProvider over the given store view.
func NewLocalProvider(source ObservationSource, zones ZoneResolver, clock clockwork.Clock) *LocalProvider {
	return &LocalProvider{source: source, zones: zones, clock: clock}
}

// Current scans the last 24 hours of samples and returns the newest
// sample's instantaneous readings plus the rain total over the window.
// Temperature and humidity are floored to whole units, wind is rounded
// to one decimal. Fails with ErrInsufficientData when the window is empty.
func (p *LocalProvider) Current(coords Coordinates) (CurrentConditions, error) {
	now := p.clock.Now()
	cutoff := now.Add(-24 * time.Hour).Unix()

	obs := p.source.SnapshotView()

	var newest *Observation
	var precip float64
	for i := range obs {
		o := &obs[i]
		if o.Timestamp < cutoff {
			continue
		}
		if newest == nil || o.Timestamp > newest.Timestamp {
			newest = o
		}
		if o.IntervalRainIn != nil {
			precip += *o.IntervalRainIn
		}
	}
	if newest == nil {
		return CurrentConditions{}, ErrInsufficientData
	}

	cur := CurrentConditions{
		Timestamp:   newest.Timestamp,
		Precip24hIn: precip,
		Raining:     precip > 0,
	}
	if newest.TempF != nil {
		cur.TempF = int(math.Floor(*newest.TempF))
	}
	if newest.HumidityPct != nil {
		cur.HumidityPct = int(math.Floor(*newest.HumidityPct))
	}
	if newest.WindMPH != nil {
		cur.WindMPH = math.Round(*newest.WindMPH*10) / 10
	}
	return cur, nil
}

// WateringWindow returns the per-day rollups for the caller's zone.
func (p *LocalProvider) WateringWindow(coords Coordinates) ([]DayBucket, error) {
	zone := p.zones.Zone(coords)
	return AggregateDays(p.source.SnapshotView(), zone, p.clock.Now())
}
