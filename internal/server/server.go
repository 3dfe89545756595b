// Package server exposes tender collection over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"tenderscan/internal/config"
	"tenderscan/internal/engine"
)

// Collector runs one collection. *engine.Engine implements it.
type Collector interface {
	Collect(ctx context.Context, opts engine.RunOptions) (*engine.Summary, error)
}

type Server struct {
	echo      *echo.Echo
	collector Collector
	base      engine.RunOptions
	logger    *slog.Logger

	addr            string
	defaultTenders  int
	maxTenders      int
	runTimeout      time.Duration
	shutdownTimeout time.Duration
}

// New builds the API server. cfg must be validated.
func New(c Collector, cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		echo:            echo.New(),
		collector:       c,
		base:            engine.RunOptionsFromConfig(cfg),
		logger:          logger,
		addr:            cfg.Server.Addr,
		defaultTenders:  cfg.Server.DefaultTenders,
		maxTenders:      cfg.Server.MaxTenders,
		runTimeout:      cfg.Runtime.Timeout,
		shutdownTimeout: cfg.Server.ShutdownTimeout,
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ctx := c.Request().Context()
			if v.Error == nil {
				logger.InfoContext(ctx, "request completed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds())
			} else {
				logger.ErrorContext(ctx, "request failed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds(),
					"error", v.Error.Error())
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())

	e.GET("/tenders", s.handleTenders)
	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return s
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("starting server", "address", s.addr)
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	s.logger.Info("server exited properly")
	return nil
}
