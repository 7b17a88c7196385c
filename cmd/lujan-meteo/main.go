package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	httpapi "github.com/nmoreale/lujan-meteo/internal/api/http"
	"github.com/nmoreale/lujan-meteo/internal/config"
	"github.com/nmoreale/lujan-meteo/internal/meteo"
	"github.com/nmoreale/lujan-meteo/internal/meteo/providers"
	"github.com/nmoreale/lujan-meteo/internal/report"
	"github.com/nmoreale/lujan-meteo/internal/scheduler"
	"github.com/nmoreale/lujan-meteo/internal/store"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	if err := cfg.ResolveCoordinates(); err != nil {
		log.WithError(err).Fatal("failed to resolve basin coordinates")
	}

	log.WithFields(logrus.Fields{
		"data_dir":    cfg.DataDir,
		"ledger_mode": cfg.LedgerMode,
	}).Info("starting lujan-meteo")

	// Ledger writes are best-effort relative to snapshot persistence.
	ledger := store.NewLedger(cfg.LedgerFile, cfg.LedgerMode, log)

	snapshots, err := store.New(cfg.DataDir, ledger, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open snapshot store")
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.ProviderTimeout}

	openMeteo := providers.NewOpenMeteoProvider(httpClient)
	wunderground := providers.NewWundergroundProvider(httpClient, cfg.WundergroundAPIKey)

	collector := meteo.NewCollector(openMeteo, wunderground, snapshots, cfg.Sites, cfg.ProviderTimeout, log)

	sched := scheduler.New(collector, cfg.FetchInterval, log)
	if err := sched.Start(); err != nil {
		log.WithError(err).Fatal("failed to start scheduler")
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "lujan-meteo",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	reports := report.NewGenerator(snapshots, log)
	handler := httpapi.NewHandler(collector, snapshots, ledger, reports, log)
	handler.Register(app)

	go func() {
		if err := app.Listen(cfg.ListenAddr()); err != nil {
			log.WithError(err).Error("fiber server stopped")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.WithError(err).Error("error during shutdown")
	}
}
