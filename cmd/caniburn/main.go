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
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/firewatch/caniburn/internal"
	httpapi "github.com/firewatch/caniburn/internal/api/http"
	"github.com/firewatch/caniburn/internal/config"
	"github.com/firewatch/caniburn/internal/fire"
	"github.com/firewatch/caniburn/internal/fire/providers"
	"github.com/firewatch/caniburn/internal/geocode"
	"github.com/firewatch/caniburn/internal/metrics"
	"github.com/firewatch/caniburn/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := internal.NewLogger(os.Stdout, cfg.LogFormat, cfg.LogLevel)

	// Shared HTTP client for outbound collaborator calls. Request-level
	// timeouts live here, not in the status core.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Providers in priority order: satellite detection first, regulatory
	// second.
	provs := []fire.Provider{
		providers.NewFirmsProvider(httpClient, cfg.FirmsMapKey, cfg.CacheTTL, logger),
		providers.NewCwfisProvider(httpClient, cfg.CacheTTL, logger),
	}

	statusService := fire.NewService(provs, logger)
	geocoder := geocode.NewNominatimClient(httpClient, logger)
	watchService := fire.NewWatchService(geocoder, statusService)

	// Cache-warming scheduler for configured coordinates.
	sched := scheduler.New(cfg.WarmCoordinates, cfg.WarmInterval, statusService, logger)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Metrics on a separate listener, away from the API surface.
	metricsServer := metrics.NewServer(cfg.MetricsAddr, logger)
	go func() {
		if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	app := fiber.New(fiber.Config{
		AppName:               "caniburn",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "caniburn",
		})
	})

	httpapi.RegisterRoutes(app, watchService, statusService)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during metrics shutdown", "error", err)
	}
}
