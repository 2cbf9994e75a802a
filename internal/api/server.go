// Package api exposes the HTTP surface: subscription management, interactive
// concert search, metrics and health.
package api

import (
	"context"
	"net/http"
	"time"

	"example.com/concertbot/config"
	"example.com/concertbot/internal/aggregator"
	"example.com/concertbot/internal/api/handlers"
	"example.com/concertbot/internal/metrics"
	"example.com/concertbot/internal/repositories"
	"example.com/concertbot/internal/services"
	"example.com/concertbot/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Server represents the HTTP server
type Server struct {
	config     config.Config
	router     *gin.Engine
	httpServer *http.Server
}

// Dependencies bundles everything the HTTP surface needs
type Dependencies struct {
	Users          *repositories.UserRepository
	Favorites      *repositories.FavoriteRepository
	Dispatcher     *services.Dispatcher
	Aggregator     *aggregator.Aggregator
	Collector      *metrics.Collector
	Tracer         tracing.Tracer
	TrackedArtists []string
}

// NewServer creates a new HTTP server
func NewServer(cfg config.Config, deps Dependencies) *Server {
	server := &Server{config: cfg}
	server.router = server.setupRouter(deps)
	server.httpServer = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}
	return server
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter(deps Dependencies) *gin.Engine {
	if s.config.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	favoritesHandler := handlers.NewFavoritesHandler(deps.Users, deps.Favorites, deps.Tracer)
	favoritesHandler.RegisterRoutes(router)

	concertsHandler := handlers.NewConcertsHandler(deps.Dispatcher, deps.Aggregator, deps.TrackedArtists, deps.Tracer)
	concertsHandler.RegisterRoutes(router)

	metricsHandler := handlers.NewMetricsHandler(deps.Collector)
	metricsHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.Server.Address).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
