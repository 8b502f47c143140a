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

// WeatherAPIAdapter fetches daily forecasts from WeatherAPI.com.
// Days arrive keyed by date string; the adapter anchors each one at
// local midnight in the request zone.
type WeatherAPIAdapter struct {
	tag     string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	metrics *observability.Metrics
}

func NewWeatherAPIAdapter(client *http.Client, apiKey string, metrics *observability.Metrics) *WeatherAPIAdapter {
	return &WeatherAPIAdapter{
		tag:     "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1/forecast.json",
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: defaultBackoff(),
		},
		circuit: newBreaker("weatherapi"),
		metrics: metrics,
	}
}

func (p *WeatherAPIAdapter) Tag() string {
	return p.tag
}

func (p *WeatherAPIAdapter) FetchDaily(ctx context.Context, coords weather.Coordinates, zone *time.Location) ([]weather.ForecastDay, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: weatherapi api key is not configured", weather.ErrUpstreamTransient)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		values.Set("q", fmt.Sprintf("%f,%f", coords.Lat, coords.Lon))
		values.Set("days", "8")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	var payload struct {
		Forecast struct {
			ForecastDay []struct {
				Date string `json:"date"`
				Day  struct {
					MaxTempF    *float64 `json:"maxtemp_f"`
					MinTempF    *float64 `json:"mintemp_f"`
					PrecipIn    *float64 `json:"totalprecip_in"`
					AvgHumidity *float64 `json:"avghumidity"`
					MaxWindMPH  *float64 `json:"maxwind_mph"`
				} `json:"day"`
			} `json:"forecastday"`
		} `json:"forecast"`
	}

	if err := fetchJSON(ctx, p.tag, p.httpCfg, p.circuit, p.metrics, buildRequest, &payload); err != nil {
		return nil, err
	}

	if len(payload.Forecast.ForecastDay) == 0 {
		return nil, fmt.Errorf("%w: weatherapi: forecastday series", weather.ErrMissingField)
	}

	days := make([]weather.ForecastDay, 0, len(payload.Forecast.ForecastDay))
	for _, fd := range payload.Forecast.ForecastDay {
		if fd.Day.MaxTempF == nil || fd.Day.MinTempF == nil {
			continue
		}
		date, err := time.ParseInLocation("2006-01-02", fd.Date, zone)
		if err != nil {
			continue
		}
		day := weather.ForecastDay{
			LocalMidnight: date.Unix(),
			MinTempF:      *fd.Day.MinTempF,
			MaxTempF:      *fd.Day.MaxTempF,
			HumidityPct:   fd.Day.AvgHumidity,
			WindMPH:       fd.Day.MaxWindMPH,
			Provider:      p.tag,
		}
		if fd.Day.PrecipIn != nil {
			day.PrecipIn = *fd.Day.PrecipIn
		}
		days = append(days, day)
	}

	if len(days) == 0 {
		return nil, fmt.Errorf("%w: weatherapi: no usable daily entries", weather.ErrMissingField)
	}
	return days, nil
}
