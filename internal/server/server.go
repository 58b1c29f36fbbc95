// Package server assembles the HTTP surface: REST endpoints, metrics, and
// the websocket upgrade route.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parlorhq/parlor/internal/api"
	"github.com/parlorhq/parlor/internal/config"
	"github.com/parlorhq/parlor/internal/middleware"
	"github.com/parlorhq/parlor/internal/websocket"
)

// Dependencies holds all service dependencies for the server
type Dependencies struct {
	HealthHandler   *api.HealthHandler
	ICEHandler      *api.ICEServersHandler
	LobbyHandler    *api.LobbyHandler
	CommentsHandler *api.CommentsHandler
	WSHandler       *websocket.Handler
	Logger          *slog.Logger
}

// New creates an HTTP server with all routes configured.
func New(cfg *config.Config, deps *Dependencies) *http.Server {
	mux := http.NewServeMux()

	registerRoutes(mux, cfg, deps)

	handler := chainMiddleware(mux,
		requestIDMiddleware,
		corsMiddleware(cfg),
		loggingMiddleware(deps.Logger),
		recoverMiddleware(deps.Logger),
	)

	return &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux, cfg *config.Config, deps *Dependencies) {
	mux.Handle("GET /health", deps.HealthHandler)
	mux.Handle("GET /ice-servers", deps.ICEHandler)
	mux.Handle("GET /rooms", deps.LobbyHandler)

	// Comments hit external upstreams, so they get a per-IP limiter.
	commentsLimiter := middleware.NewRateLimiter(cfg.CommentsRatePerMin)
	mux.Handle("GET /comments/{videoId}", commentsLimiter.Middleware(deps.CommentsHandler))

	mux.Handle("GET /metrics", promhttp.Handler())

	mux.Handle("GET /ws", deps.WSHandler)
}
