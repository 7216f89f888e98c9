package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/tracker-engine/internal/config"
	"github.com/jwebster45206/tracker-engine/internal/events"
	"github.com/jwebster45206/tracker-engine/internal/handlers"
	"github.com/jwebster45206/tracker-engine/internal/logger"
	"github.com/jwebster45206/tracker-engine/internal/middleware"
	"github.com/jwebster45206/tracker-engine/internal/queue"
	"github.com/jwebster45206/tracker-engine/internal/storage"
	"github.com/jwebster45206/tracker-engine/internal/tracker"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg)

	log.Info("Starting Tracker Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"world", cfg.WorldFile)

	store, err := storage.NewRedisStorage(cfg.RedisURL, cfg.SnapshotTTL, log)
	if err != nil {
		log.Error("Failed to create storage", "error", err)
		os.Exit(1)
	}
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := store.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	// Queue, broadcaster and lock share the storage connection.
	rdb := store.Client()
	mutationQueue := queue.NewMutationQueue(queue.NewClientFromRedis(rdb, log))
	broadcaster := events.NewBroadcaster(rdb, log)
	hostname, _ := os.Hostname()
	locker := tracker.NewRedisLocker(rdb, "api-"+hostname, log)

	trackers := tracker.NewManager(store, broadcaster, locker, log)
	trackers.SetDefaultWorld(cfg.WorldFile)

	mux := http.NewServeMux()
	mux.Handle("GET /health", handlers.NewHealthHandler(store, mutationQueue, log))
	handlers.NewTrackersHandler(trackers, mutationQueue, log).Register(mux)
	handlers.NewEventsHandler(broadcaster, log).Register(mux)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(log, mux),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the events endpoint streams indefinitely.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
