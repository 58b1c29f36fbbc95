package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parlorhq/parlor/internal/api"
	"github.com/parlorhq/parlor/internal/config"
	"github.com/parlorhq/parlor/internal/dispatch"
	"github.com/parlorhq/parlor/internal/domain"
	"github.com/parlorhq/parlor/internal/pubsub"
	"github.com/parlorhq/parlor/internal/room"
	"github.com/parlorhq/parlor/internal/server"
	"github.com/parlorhq/parlor/internal/sfu"
	"github.com/parlorhq/parlor/internal/websocket"
	"github.com/parlorhq/parlor/internal/youtube"
)

func main() {
	// Structured logging from the start
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize PubSub (in-memory for single instance, Redis for scale-out)
	var ps pubsub.PubSub
	switch cfg.PubSubType {
	case "redis":
		rps, err := pubsub.NewRedisPubSub(cfg.RedisURL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		ps = rps
		slog.Info("using redis pubsub", "url", cfg.RedisURL)
	default:
		ps = pubsub.NewMemoryPubSub()
	}
	defer ps.Close()

	// Media workers must own their ports before we accept any client. A bind
	// failure here means another process holds the media range.
	engine, err := sfu.NewEngine(cfg, logger)
	if err != nil {
		slog.Error("failed to start media workers", "error", err)
		os.Exit(1)
	}
	defer engine.Close()
	slog.Info("media workers started", "count", engine.WorkerCount(), "first_port", cfg.MediaPort)

	clock := domain.RealClock{}
	registry := room.NewRegistry(clock, logger)

	// Voice control plane on top of the media workers
	voice := sfu.NewHandler(engine, ps, logger)

	// YouTube title lookups and comment proxying
	titles := youtube.NewOEmbedClient()
	comments := youtube.NewCommentsClient(cfg.InvidiousInstances, logger)

	// WebSocket hub and the event dispatcher behind it
	hub := websocket.NewHub(ps, logger)
	dispatcher := dispatch.NewDispatcher(registry, hub, voice, titles, clock, logger)
	hub.SetEventHandler(dispatcher)
	go hub.Run(context.Background())
	wsHandler := websocket.NewHandler(hub, logger)

	// Playback sync ticker
	heartbeat := dispatch.NewHeartbeat(registry, hub, clock, logger)
	heartbeatCtx, stopHeartbeat := context.WithCancel(context.Background())
	defer stopHeartbeat()
	go heartbeat.Run(heartbeatCtx)

	// Create and start server
	deps := &server.Dependencies{
		HealthHandler:   api.NewHealthHandler(registry),
		ICEHandler:      api.NewICEServersHandler(cfg),
		LobbyHandler:    api.NewLobbyHandler(registry, cfg.RoomsEndpointEnabled),
		CommentsHandler: api.NewCommentsHandler(comments),
		WSHandler:       wsHandler,
		Logger:          logger,
	}

	srv := server.New(cfg, deps)

	// Graceful shutdown setup
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-shutdownCtx.Done()
	slog.Info("shutting down gracefully...")

	// Give active connections 10 seconds to finish
	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer timeoutCancel()

	if err := srv.Shutdown(timeoutCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
