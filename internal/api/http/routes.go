package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"

	"github.com/hydrozone/sprinkler-weather/internal/store"
	"github.com/hydrozone/sprinkler-weather/internal/weather"
)

var validate = validator.New()

// wuTimeLayout is the timestamp format Weather-Underground-compatible
// stations push.
const wuTimeLayout = "2006-01-02 15:04:05"

// defaultProvider is used when the caller does not select one.
const defaultProvider = "openmeteo"

// PlaceResolver turns a place name into coordinates. Optional; when
// absent, requests must carry lat/lon.
type PlaceResolver interface {
	Resolve(city, country string) (weather.Coordinates, error)
}

// Deps bundles what the HTTP handlers need.
type Deps struct {
	Store    *store.ObservationStore
	Composer *weather.Composer
	Registry *weather.Registry
	Places   PlaceResolver
	Clock    clockwork.Clock
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	// Weather-Underground-compatible station push. The station firmware
	// treats anything but "success" as a retryable failure, so this
	// endpoint absorbs bad fields rather than rejecting.
	app.Get("/weatherstation/updateweatherstation.php", func(c *fiber.Ctx) error {
		deps.Store.Ingest(parseObservation(c, deps.Clock.Now()))
		return c.SendString("success\n")
	})

	v1 := app.Group("/api/v1")

	v1.Get("/watering", func(c *fiber.Ctx) error {
		req, err := parseCoordsQuery(c, deps.Places)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		series, err := deps.Composer.ViewForAdjustment(c.UserContext(), req.coords(), req.Provider)
		if err != nil {
			return decisionError(err)
		}

		return c.JSON(fiber.Map{
			"coords":   req.coords(),
			"provider": req.Provider,
			"series":   series,
		})
	})

	v1.Get("/weather", func(c *fiber.Ctx) error {
		req, err := parseCoordsQuery(c, deps.Places)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		current, forecast, err := deps.Composer.ViewForRainRestriction(c.UserContext(), req.coords(), req.Provider)
		if err != nil {
			return decisionError(err)
		}

		return c.JSON(fiber.Map{
			"coords":        req.coords(),
			"current":       current,
			"forecast":      forecast,
			"lastRainEpoch": deps.Store.LastRainEpoch(),
		})
	})

	v1.Get("/providers", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"providers": deps.Registry.Tags(),
		})
	})
}

// decisionError maps engine error kinds onto HTTP statuses: bad
// provider tags are the caller's fault, an empty engine is a temporary
// service condition.
func decisionError(err error) error {
	switch {
	case errors.Is(err, weather.ErrInvalidProvider):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, weather.ErrInsufficientData):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to compose weather data")
	}
}

// coordsQuery holds the validated query parameters shared by the
// decision endpoints.
type coordsQuery struct {
	Lat      float64 `validate:"min=-90,max=90"`
	Lon      float64 `validate:"min=-180,max=180"`
	Provider string  `validate:"required"`
}

func (q coordsQuery) coords() weather.Coordinates {
	return weather.Coordinates{Lat: q.Lat, Lon: q.Lon}
}

func parseCoordsQuery(c *fiber.Ctx, places PlaceResolver) (coordsQuery, error) {
	var q coordsQuery

	q.Provider = c.Query("provider", defaultProvider)

	latStr, lonStr := c.Query("lat"), c.Query("lon")
	switch {
	case latStr != "" && lonStr != "":
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			return q, errors.New("invalid lat")
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			return q, errors.New("invalid lon")
		}
		q.Lat, q.Lon = lat, lon

	case c.Query("city") != "":
		if places == nil {
			return q, errors.New("place-name lookup is not configured; pass lat and lon")
		}
		coords, err := places.Resolve(c.Query("city"), c.Query("country"))
		if err != nil {
			return q, err
		}
		q.Lat, q.Lon = coords.Lat, coords.Lon

	default:
		return q, errors.New("lat and lon query parameters are required")
	}

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

// parseObservation converts the station's query parameters into an
// Observation. Missing, non-numeric, out-of-range, and -9999.0 values
// are all treated as absent.
func parseObservation(c *fiber.Ctx, now time.Time) weather.Observation {
	o := weather.Observation{
		Timestamp: parseStationTime(c.Query("dateutc"), now),
	}

	o.TempF = parseReading(c.Query("tempf"), weather.MinTempF, weather.MaxTempF)
	o.HumidityPct = parseReading(c.Query("humidity"), weather.MinHumidity, weather.MaxHumidity)
	o.WindMPH = parseReading(c.Query("windspeedmph"), 0, 500)
	o.DailyRainIn = parseReading(c.Query("dailyrainin"), 0, 100)
	o.RainRateInHr = parseReading(c.Query("rainin"), 0, 100)

	// Stations report instantaneous W/m²; the engine's canonical solar
	// unit is kWh/m²/day.
	if solar := parseReading(c.Query("solarradiation"), 0, 2000); solar != nil {
		o.SolarKWhM2Day = weather.Float64(*solar * 24 / 1000)
	}

	return o
}

// parseStationTime parses the station's dateutc field: the literal
// "now" or a UTC timestamp. Unparseable values fall back to now.
func parseStationTime(s string, now time.Time) int64 {
	if s == "" || s == "now" {
		return now.Unix()
	}
	ts, err := time.ParseInLocation(wuTimeLayout, s, time.UTC)
	if err != nil {
		return now.Unix()
	}
	return ts.Unix()
}

// parseReading parses one numeric station field, rejecting the
// sensor-absent sentinel and physically implausible values.
func parseReading(s string, min, max float64) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	if v == weather.SensorAbsent || v < min || v > max {
		return nil
	}
	return &v
}
