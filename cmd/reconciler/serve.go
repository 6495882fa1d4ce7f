package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/reconciler/internal/config"
	"github.com/ehr/reconciler/internal/domain/comparison"
	"github.com/ehr/reconciler/internal/platform/auth"
	"github.com/ehr/reconciler/internal/platform/db"
	"github.com/ehr/reconciler/internal/platform/metrics"
	"github.com/ehr/reconciler/internal/platform/middleware"
)

const version = "0.1.0"

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the comparison API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, repo, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	var pinger db.Pinger
	if pool != nil {
		defer pool.Close()
		pinger = pool
	} else {
		repo = comparison.NewMemoryRepo()
	}

	svc := comparison.NewService(repo, logger)
	e := newServer(cfg, logger, svc, pinger)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("auth", cfg.AuthEnabled()).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer wires middleware and routes. pinger is nil when persistence is
// disabled.
func newServer(cfg *config.Config, logger zerolog.Logger, svc *comparison.Service, pinger db.Pinger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.MaxBodyBytes))

	if cfg.AuthEnabled() {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSecret),
			Skipper:    auth.AuthSkipper,
		}))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pinger))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := e.Group("/api/v1", middleware.RequestTimeout(cfg.RequestTimeout))
	comparison.NewHandler(svc, cfg.AuthEnabled()).RegisterRoutes(api)

	return e
}
