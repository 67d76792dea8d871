package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	httpapi "github.com/i474232898/weather-collector/internal/api/http"
	"github.com/i474232898/weather-collector/internal/config"
	"github.com/i474232898/weather-collector/internal/logging"
	"github.com/i474232898/weather-collector/internal/queue"
	"github.com/i474232898/weather-collector/internal/scheduler"
	"github.com/i474232898/weather-collector/internal/store"
	"github.com/i474232898/weather-collector/internal/weather"
	"github.com/i474232898/weather-collector/internal/weather/providers"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(cfg, version, "weather-collector")
	slog.SetDefault(logger)

	// Dedicated HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	fetcher := providers.NewOpenWeatherFetcher(httpClient, providers.OpenWeatherConfig{
		APIKey:        cfg.OpenWeatherAPIKey,
		BaseURL:       cfg.OpenWeatherBaseURL,
		Location:      cfg.Location,
		RatePerMinute: cfg.ProviderRatePerMinute,
		Interval:      cfg.Interval,
	}, logger)

	publisher, err := queue.New(queue.Options{
		URL:          cfg.BrokerURL,
		Queue:        cfg.QueueName,
		Timeout:      cfg.BrokerTimeout,
		MQTTClientID: cfg.MQTTClientID,
	}, logger)
	if err != nil {
		log.Fatalf("failed to configure publisher: %v", err)
	}

	// Cycle journal: SQLite when a path is configured, memory otherwise.
	var journal weather.Store
	if cfg.JournalPath != "" {
		sqliteStore, err := store.OpenSQLite(cfg.JournalPath, cfg.JournalMaxHistory)
		if err != nil {
			log.Fatalf("failed to open cycle journal: %v", err)
		}
		defer sqliteStore.Close()
		journal = sqliteStore
	} else {
		journal = store.NewMemoryStore(cfg.JournalMaxHistory)
	}

	service := weather.NewService(fetcher, publisher, journal, cfg.CycleTimeout, logger)

	logger.Info("starting collector",
		"city", cfg.Location.City,
		"lat", cfg.Location.Lat,
		"lon", cfg.Location.Lon,
		"queue", cfg.QueueName,
		"interval", cfg.Interval,
	)

	sched := scheduler.New(cfg.Interval, service, logger)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	var app *fiber.App
	if cfg.HTTPEnabled() {
		app = fiber.New(fiber.Config{
			AppName:               "weather-collector",
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

		app.Use(fiberlogger.New())
		app.Use(recover.New())

		httpapi.RegisterRoutes(app, service)

		go func() {
			if err := app.Listen(":" + cfg.Port); err != nil {
				slog.Error("fiber server stopped", "error", err)
			}
		}()
	}

	// Runs until terminated.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	slog.Info("shutdown signal received")

	if app != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			slog.Error("error during shutdown", "error", err)
		}
	}
}
