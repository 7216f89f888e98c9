package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/tracker-engine/internal/config"
	"github.com/jwebster45206/tracker-engine/internal/events"
	"github.com/jwebster45206/tracker-engine/internal/logger"
	"github.com/jwebster45206/tracker-engine/internal/queue"
	"github.com/jwebster45206/tracker-engine/internal/storage"
	"github.com/jwebster45206/tracker-engine/internal/tracker"
	"github.com/jwebster45206/tracker-engine/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg)

	log.Info("Starting Tracker Engine Worker",
		"environment", cfg.Environment,
		"redis_url", cfg.RedisURL)

	store, err := storage.NewRedisStorage(cfg.RedisURL, cfg.SnapshotTTL, log)
	if err != nil {
		log.Error("Failed to create storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing storage connection", "error", err)
		}
	}()

	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := store.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage service initialized successfully")

	rdb := store.Client()
	mutationQueue := queue.NewMutationQueue(queue.NewClientFromRedis(rdb, log))
	broadcaster := events.NewBroadcaster(rdb, log)

	workerID := os.Getenv("WORKER_ID")
	locker := tracker.NewRedisLocker(rdb, workerID, log)
	trackers := tracker.NewManager(store, broadcaster, locker, log)
	trackers.SetDefaultWorld(cfg.WorldFile)

	w := worker.New(mutationQueue, trackers, broadcaster, log, workerID)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Start(); err != nil {
			log.Error("Worker error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("Worker started, waiting for requests...")

	<-quit
	log.Info("Worker shutdown signal received")
	w.Stop()

	// Give worker time to finish current request
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Warn("Worker did not stop in time")
	}

	log.Info("Worker exited")
}
