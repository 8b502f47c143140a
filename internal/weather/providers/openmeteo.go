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

// OpenMeteoAdapter fetches daily forecasts from Open-Meteo. No API key
// required. Open-Meteo stamps each day at local midnight when asked for
// the request zone, and can deliver canonical units directly except for
// solar radiation (MJ/m², converted here).
type OpenMeteoAdapter struct {
	tag     string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	metrics *observability.Metrics
}

func NewOpenMeteoAdapter(client *http.Client, metrics *observability.Metrics) *OpenMeteoAdapter {
	return &OpenMeteoAdapter{
		tag:     "openmeteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: defaultBackoff(),
		},
		circuit: newBreaker("openmeteo"),
		metrics: metrics,
	}
}

func (p *OpenMeteoAdapter) Tag() string {
	return p.tag
}

func (p *OpenMeteoAdapter) FetchDaily(ctx context.Context, coords weather.Coordinates, zone *time.Location) ([]weather.ForecastDay, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", coords.Lat))
		values.Set("longitude", fmt.Sprintf("%f", coords.Lon))
		values.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum,relative_humidity_2m_mean,wind_speed_10m_max,shortwave_radiation_sum")
		values.Set("temperature_unit", "fahrenheit")
		values.Set("precipitation_unit", "inch")
		values.Set("wind_speed_unit", "mph")
		values.Set("timeformat", "unixtime")
		values.Set("timezone", zone.String())
		values.Set("forecast_days", "8")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	var payload struct {
		Daily struct {
			Time      []int64    `json:"time"`
			TempMax   []*float64 `json:"temperature_2m_max"`
			TempMin   []*float64 `json:"temperature_2m_min"`
			Precip    []*float64 `json:"precipitation_sum"`
			Humidity  []*float64 `json:"relative_humidity_2m_mean"`
			WindMax   []*float64 `json:"wind_speed_10m_max"`
			SolarMJM2 []*float64 `json:"shortwave_radiation_sum"`
		} `json:"daily"`
	}

	if err := fetchJSON(ctx, p.tag, p.httpCfg, p.circuit, p.metrics, buildRequest, &payload); err != nil {
		return nil, err
	}

	d := payload.Daily
	if len(d.Time) == 0 || len(d.TempMax) != len(d.Time) || len(d.TempMin) != len(d.Time) {
		return nil, fmt.Errorf("%w: openmeteo: daily temperature series", weather.ErrMissingField)
	}

	days := make([]weather.ForecastDay, 0, len(d.Time))
	for i, epoch := range d.Time {
		if d.TempMax[i] == nil || d.TempMin[i] == nil {
			continue
		}
		day := weather.ForecastDay{
			LocalMidnight: epoch,
			MinTempF:      *d.TempMin[i],
			MaxTempF:      *d.TempMax[i],
			Provider:      p.tag,
		}
		if i < len(d.Precip) && d.Precip[i] != nil {
			day.PrecipIn = *d.Precip[i]
		}
		if i < len(d.Humidity) && d.Humidity[i] != nil {
			day.HumidityPct = d.Humidity[i]
		}
		if i < len(d.WindMax) && d.WindMax[i] != nil {
			day.WindMPH = d.WindMax[i]
		}
		if i < len(d.SolarMJM2) && d.SolarMJM2[i] != nil {
			// MJ/m²/day to kWh/m²/day.
			day.SolarKWhM2Day = weather.Float64(*d.SolarMJM2[i] / 3.6)
		}
		days = append(days, day)
	}

	if len(days) == 0 {
		return nil, fmt.Errorf("%w: openmeteo: no usable daily entries", weather.ErrMissingField)
	}
	return days, nil
}
