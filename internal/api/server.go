// Package api exposes the journal over a small REST API.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pbaille/journal/internal/journal"
	"github.com/pbaille/journal/internal/mirror"
)

const maxImportBody = "10M"

// Config holds server settings
type Config struct {
	Addr       string
	DemoCount  int
	DemoWindow time.Duration
	// Now overrides the clock used for bucketing and export names
	Now func() time.Time
}

// Server handles HTTP requests for the journal
type Server struct {
	echo        *echo.Echo
	entries     *journal.Entries
	reflections *journal.Reflections
	mirror      *mirror.Mirror
	logger      *zap.Logger
	config      Config
}

// New creates a new API server
func New(entries *journal.Entries, reflections *journal.Reflections, m *mirror.Mirror, logger *zap.Logger, cfg Config) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))

	s := &Server{
		echo:        e,
		entries:     entries,
		reflections: reflections,
		mirror:      m,
		logger:      logger,
		config:      cfg,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.health)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Entries
	s.echo.GET("/entries", s.listEntries)
	s.echo.POST("/entries", s.addEntry)
	s.echo.GET("/feed", s.feed)
	s.echo.GET("/export", s.export)
	s.echo.POST("/import", s.importEntries, middleware.BodyLimit(maxImportBody))
	s.echo.POST("/demo", s.demo)
	s.echo.DELETE("/data", s.forget)

	// Reflections
	s.echo.GET("/reflections", s.listReflections)
	s.echo.GET("/reflection", s.reflectionStatus)
	s.echo.POST("/reflection", s.reflect)
}

// Handler returns the server as an http.Handler
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until the listener fails or Shutdown is called
func (s *Server) Run() error {
	s.logger.Info("starting server", zap.String("addr", s.config.Addr))
	if err := s.echo.Start(s.config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func writeError(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"error": message})
}
