// Package server exposes a document store over HTTP, with live queries
// streamed to clients as Server-Sent Events.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/existflow/ironboard/internal/logger"
	"github.com/existflow/ironboard/internal/store"
)

// DefaultKeepAlive is how often an idle stream sends a comment line
const DefaultKeepAlive = 25 * time.Second

// Server is the document API server
type Server struct {
	store     store.Store
	echo      *echo.Echo
	log       *logger.Logger
	keepAlive time.Duration
}

// Option configures a Server
type Option func(*Server)

// WithKeepAlive sets the stream keep-alive interval
func WithKeepAlive(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.keepAlive = d
		}
	}
}

// New creates a server in front of st
func New(st store.Store, log *logger.Logger, opts ...Option) *Server {
	s := &Server{
		store:     st,
		log:       log.With(logger.F("component", "server")),
		keepAlive: DefaultKeepAlive,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupEcho()
	return s
}

func (s *Server) setupEcho() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(s.requestLogger)
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())

	// Health check
	e.GET("/health", s.handleHealth)

	// API v1, identity supplied by the upstream proxy
	api := e.Group("/api/v1")
	api.Use(s.identityMiddleware)
	api.POST("/collections/*", s.handleCreate)
	api.PATCH("/documents/*", s.handleUpdate)
	api.DELETE("/documents/*", s.handleDelete)
	api.POST("/batch", s.handleBatch)
	api.GET("/stream/*", s.handleStream)

	s.echo = e
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.echo
}

// Start starts the server
func (s *Server) Start(addr string) error {
	s.log.Info("server listening", logger.F("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown stops accepting requests and ends open streams
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
