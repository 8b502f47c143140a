package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/hydrozone/sprinkler-weather/internal/observability"
	"github.com/hydrozone/sprinkler-weather/internal/weather"
)

// OpenWeatherAdapter fetches daily forecasts from the OpenWeatherMap
// One Call API. OpenWeather stamps each day at local solar noon, not
// midnight, so the composer's calendar-day comparison matters for this
// upstream; the adapter normalizes the stamp to local midnight itself.
type OpenWeatherAdapter struct {
	tag     string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	metrics *observability.Metrics
}

func NewOpenWeatherAdapter(client *http.Client, apiKey string, metrics *observability.Metrics) *OpenWeatherAdapter {
	return &OpenWeatherAdapter{
		tag:     "openweathermap",
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/3.0/onecall",
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: defaultBackoff(),
		},
		circuit: newBreaker("openweather"),
		metrics: metrics,
	}
}

func (p *OpenWeatherAdapter) Tag() string {
	return p.tag
}

func (p *OpenWeatherAdapter) FetchDaily(ctx context.Context, coords weather.Coordinates, zone *time.Location) ([]weather.ForecastDay, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: openweather api key is not configured", weather.ErrUpstreamTransient)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("appid", p.apiKey)
		values.Set("lat", fmt.Sprintf("%f", coords.Lat))
		values.Set("lon", fmt.Sprintf("%f", coords.Lon))
		values.Set("exclude", "current,minutely,hourly,alerts")
		values.Set("units", "imperial")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	var payload struct {
		Daily []struct {
			Dt   int64 `json:"dt"`
			Temp struct {
				Min *float64 `json:"min"`
				Max *float64 `json:"max"`
			} `json:"temp"`
			Humidity  *float64 `json:"humidity"`
			WindSpeed *float64 `json:"wind_speed"`
			// Rain stays in mm even with imperial units.
			RainMm *float64 `json:"rain"`
		} `json:"daily"`
	}

	if err := fetchJSON(ctx, p.tag, p.httpCfg, p.circuit, p.metrics, buildRequest, &payload); err != nil {
		return nil, err
	}

	if len(payload.Daily) == 0 {
		return nil, fmt.Errorf("%w: openweather: daily series", weather.ErrMissingField)
	}

	days := make([]weather.ForecastDay, 0, len(payload.Daily))
	for _, d := range payload.Daily {
		if d.Temp.Min == nil || d.Temp.Max == nil {
			continue
		}
		day := weather.ForecastDay{
			LocalMidnight: weather.LocalMidnight(time.Unix(d.Dt, 0), zone).Unix(),
			MinTempF:      *d.Temp.Min,
			MaxTempF:      *d.Temp.Max,
			HumidityPct:   d.Humidity,
			WindMPH:       d.WindSpeed,
			Provider:      p.tag,
		}
		if d.RainMm != nil {
			day.PrecipIn = *d.RainMm / 25.4
		}
		days = append(days, day)
	}

	if len(days) == 0 {
		return nil, fmt.Errorf("%w: openweather: no usable daily entries", weather.ErrMissingField)
	}
	return days, nil
}
