package weather

import (
	"fmt"
	"time"
)

// SensorAbsent is the value some stations report for a sensor that is
// not installed. Readings carrying it are treated as absent.
const SensorAbsent = -9999.0

// Physical plausibility bounds for incoming readings. Values outside
// these ranges are discarded at ingest.
const (
	MinTempF    = -40.0
	MaxTempF    = 140.0
	MinHumidity = 0.0
	MaxHumidity = 100.0
)

// Coordinates identifies the place a request is about.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Key returns a canonical string key for indexing these coordinates in caches.
func (c Coordinates) Key() string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

// Observation is a single raw sample pushed by the weather station.
// Optional sensors are pointers; nil means the station did not report
// a usable value.
type Observation struct {
	Timestamp int64 `json:"timestamp"` // unix seconds, UTC

	TempF       *float64 `json:"tempF,omitempty"`
	HumidityPct *float64 `json:"humidityPct,omitempty"`
	WindMPH     *float64 `json:"windMph,omitempty"`

	// SolarKWhM2Day is the station's instantaneous solar radiation
	// converted to kWh/m²/day at ingest (W/m² · 24 / 1000).
	SolarKWhM2Day *float64 `json:"solarKWhM2Day,omitempty"`

	// DailyRainIn is the station's running rain total for the local
	// day. It resets at local midnight or on a power cycle.
	DailyRainIn *float64 `json:"dailyRainIn,omitempty"`

	// IntervalRainIn is the non-negative rain delta since the previous
	// sample, computed by the store at ingest.
	IntervalRainIn *float64 `json:"intervalRainIn,omitempty"`

	// RainRateInHr is the station's instantaneous rain rate.
	RainRateInHr *float64 `json:"rainRateInHr,omitempty"`
}

// Time returns the observation timestamp as a time.Time in UTC.
func (o Observation) Time() time.Time {
	return time.Unix(o.Timestamp, 0).UTC()
}

// DayBucket is a per-local-day rollup of raw observations. Buckets are
// derived on demand and never stored.
type DayBucket struct {
	LocalMidnight int64 `json:"localMidnightEpoch"`

	MeanTempF    float64  `json:"meanTempF"`
	MinTempF     float64  `json:"minTempF"`
	MaxTempF     float64  `json:"maxTempF"`
	MeanHumidity float64  `json:"meanHumidity"`
	MinHumidity  float64  `json:"minHumidity"`
	MaxHumidity  float64  `json:"maxHumidity"`
	PrecipIn     float64  `json:"precipIn"`
	MeanSolar    *float64 `json:"meanSolarKWhM2Day,omitempty"`
	MeanWindMPH  *float64 `json:"meanWindMph,omitempty"`

	SampleCount int  `json:"sampleCount"`
	Complete    bool `json:"complete"`
}

// ForecastDay is one future calendar day as reported by an upstream
// provider, already converted to canonical units.
type ForecastDay struct {
	LocalMidnight int64 `json:"localMidnightEpoch"`

	MinTempF float64 `json:"minTempF"`
	MaxTempF float64 `json:"maxTempF"`
	PrecipIn float64 `json:"precipIn"`

	HumidityPct   *float64 `json:"humidityPct,omitempty"`
	SolarKWhM2Day *float64 `json:"solarKWhM2Day,omitempty"`
	WindMPH       *float64 `json:"windMph,omitempty"`

	Provider string `json:"provider"`
}

// Source tags where a combined-series element came from.
type Source string

const (
	SourceLocal    Source = "local"
	SourceForecast Source = "forecast"
)

// CombinedDay is the union element shape of measured and forecast days.
// Fields that only one source can produce are optional.
type CombinedDay struct {
	LocalMidnight int64  `json:"localMidnightEpoch"`
	Source        Source `json:"source"`

	MinTempF float64 `json:"minTempF"`
	MaxTempF float64 `json:"maxTempF"`
	PrecipIn float64 `json:"precipIn"`

	MeanTempF     *float64 `json:"meanTempF,omitempty"`
	HumidityPct   *float64 `json:"humidityPct,omitempty"`
	MinHumidity   *float64 `json:"minHumidity,omitempty"`
	MaxHumidity   *float64 `json:"maxHumidity,omitempty"`
	SolarKWhM2Day *float64 `json:"solarKWhM2Day,omitempty"`
	WindMPH       *float64 `json:"windMph,omitempty"`

	Provider string `json:"provider,omitempty"`
}

// CombinedSeries is the composed measured-past + forecast-future view,
// ordered newest-first by LocalMidnight.
type CombinedSeries []CombinedDay

// ForecastTail returns the forecast-tagged slice of the series,
// preserving order.
func (s CombinedSeries) ForecastTail() []CombinedDay {
	var tail []CombinedDay
	for _, d := range s {
		if d.Source == SourceForecast {
			tail = append(tail, d)
		}
	}
	return tail
}

// fromBucket converts a measured day into the union shape.
func fromBucket(b DayBucket) CombinedDay {
	mean := b.MeanTempF
	hum := b.MeanHumidity
	minH := b.MinHumidity
	maxH := b.MaxHumidity
	return CombinedDay{
		LocalMidnight: b.LocalMidnight,
		Source:        SourceLocal,
		MinTempF:      b.MinTempF,
		MaxTempF:      b.MaxTempF,
		PrecipIn:      b.PrecipIn,
		MeanTempF:     &mean,
		HumidityPct:   &hum,
		MinHumidity:   &minH,
		MaxHumidity:   &maxH,
		SolarKWhM2Day: b.MeanSolar,
		WindMPH:       b.MeanWindMPH,
	}
}

// fromForecast converts a forecast day into the union shape.
func fromForecast(f ForecastDay) CombinedDay {
	return CombinedDay{
		LocalMidnight: f.LocalMidnight,
		Source:        SourceForecast,
		MinTempF:      f.MinTempF,
		MaxTempF:      f.MaxTempF,
		PrecipIn:      f.PrecipIn,
		HumidityPct:   f.HumidityPct,
		SolarKWhM2Day: f.SolarKWhM2Day,
		WindMPH:       f.WindMPH,
		Provider:      f.Provider,
	}
}

// CurrentConditions is the instantaneous rollup served to the
// rain-restriction consumer.
type CurrentConditions struct {
	Timestamp   int64   `json:"timestamp"`
	TempF       int     `json:"tempF"`       // floored
	HumidityPct int     `json:"humidityPct"` // floored
	WindMPH     float64 `json:"windMph"`     // one decimal
	Precip24hIn float64 `json:"precip24hIn"`
	Raining     bool    `json:"raining"`
}

// Float64 returns a pointer to v. Convenience for optional fields.
func Float64(v float64) *float64 { return &v }
