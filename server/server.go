// Package server exposes the file index over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"fileindex/config"
	"fileindex/database"
	"fileindex/logging"
	routes "fileindex/server/routes"
)

const shutdownTimeout = 10 * time.Second

// New builds the Fiber app for cfg. The returned registry owns the open
// databases and must be closed once the app stops.
func New(cfg config.Config, logger *slog.Logger) (*fiber.App, *routes.Registry) {
	logger = logging.OrDiscard(logger)

	app := fiber.New(fiber.Config{
		AppName:               "fileindex",
		DisableStartupMessage: true,
	})
	app.Use(requestLogger(logger))

	reg := routes.NewRegistry(cfg.DataDir, cfg.Degree, database.Options{
		Codec:     cfg.Codec(),
		CacheSize: cfg.CacheSize,
		Logger:    logger,
	})
	routes.SetupRoutes(app, reg)
	return app, reg
}

// Run serves until ctx is cancelled, then shuts down and commits every
// open database.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger = logging.OrDiscard(logger)
	app, reg := New(cfg, logger)

	errc := make(chan error, 1)
	go func() {
		errc <- app.Listen(cfg.ListenAddr)
	}()
	logger.Info("fiber listening", "addr", cfg.ListenAddr, "data_dir", cfg.DataDir)

	select {
	case err := <-errc:
		return errors.Join(err, reg.Close())
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := app.ShutdownWithContext(shutdownCtx)
	return errors.Join(err, reg.Close())
}

func requestLogger(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		logger.Info("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration", time.Since(start),
		)
		return err
	}
}
