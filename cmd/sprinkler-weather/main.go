package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/hydrozone/sprinkler-weather/internal/api/http"
	"github.com/hydrozone/sprinkler-weather/internal/config"
	"github.com/hydrozone/sprinkler-weather/internal/geo"
	"github.com/hydrozone/sprinkler-weather/internal/observability"
	"github.com/hydrozone/sprinkler-weather/internal/scheduler"
	"github.com/hydrozone/sprinkler-weather/internal/store"
	"github.com/hydrozone/sprinkler-weather/internal/weather"
	"github.com/hydrozone/sprinkler-weather/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	clock := clockwork.NewRealClock()
	metrics := observability.NewMetrics()

	// Observation store, restored from the last snapshot when enabled.
	obsStore := store.New(cfg.PersistenceLocation, metrics)
	if cfg.LocalPersistence {
		if err := obsStore.Restore(); err != nil {
			log.Printf("ERROR: restoring observations: %v", err)
		}
	}

	zones, err := geo.NewTimeZoneResolver()
	if err != nil {
		log.Fatalf("failed to build timezone resolver: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Forecast adapters, selected per request by provider tag.
	registry := weather.NewRegistry()
	registry.Register(providers.NewOpenMeteoAdapter(httpClient, metrics))
	registry.Register(providers.NewOpenWeatherAdapter(httpClient, cfg.OpenWeatherAPIKey, metrics))
	registry.Register(providers.NewWeatherAPIAdapter(httpClient, cfg.WeatherAPIKey, metrics))

	local := weather.NewLocalProvider(obsStore, zones, clock)
	composer := weather.NewComposer(local, registry, zones, clock, metrics, cfg.CacheTTL, cfg.DegradedCacheTTL)

	// Optional place-name lookup; requires a Google API key.
	var places httpapi.PlaceResolver
	if cfg.GeocoderAPIKey != "" {
		places = geo.NewGeocoder(cfg.GeocoderAPIKey, cfg.PersistenceLocation)
	}

	// Store maintenance off the request path.
	sched := scheduler.New(obsStore, cfg.PersistInterval, cfg.LocalPersistence)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "sprinkler-weather",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "sprinkler-weather",
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Store:    obsStore,
		Composer: composer,
		Registry: registry,
		Places:   places,
		Clock:    clock,
	})

	// Start server with graceful shutdown
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}

	// Final snapshot so a clean restart resumes where we left off.
	if cfg.LocalPersistence {
		if err := obsStore.Persist(); err != nil {
			log.Printf("error persisting observations on shutdown: %v", err)
		}
	}
}
