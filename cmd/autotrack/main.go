package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/tracker-engine/internal/autotrack"
	"github.com/jwebster45206/tracker-engine/internal/config"
	"github.com/jwebster45206/tracker-engine/internal/logger"
	"github.com/jwebster45206/tracker-engine/internal/queue"
	"github.com/jwebster45206/tracker-engine/internal/storage"
	"github.com/jwebster45206/tracker-engine/pkg/catalog"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg)

	trackerID, err := uuid.Parse(cfg.TrackerID)
	if err != nil {
		log.Error("TRACKER_ID must be a tracker UUID", "tracker_id", cfg.TrackerID, "error", err)
		os.Exit(1)
	}
	log = logger.WithTracker(log, trackerID.String())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.NewRedisStorage(cfg.RedisURL, cfg.SnapshotTTL, log)
	if err != nil {
		log.Error("Failed to create storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	storageCtx, storageCancel := context.WithTimeout(ctx, 2*time.Minute)
	defer storageCancel()
	if err := store.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}

	// Limits come from the tracker's own world so decoded counts never
	// exceed what the engine accepts.
	rec, err := store.LoadTracker(ctx, trackerID)
	if err != nil {
		log.Error("Failed to load tracker", "error", err)
		os.Exit(1)
	}
	if rec == nil {
		log.Error("Tracker not found")
		os.Exit(1)
	}
	world, err := catalog.Resolve(rec.World)
	if err != nil {
		log.Error("Failed to load world", "world", rec.World, "error", err)
		os.Exit(1)
	}
	rules, limits := autotrack.ForWorld(autotrack.ALttPItems, world)
	log.Info("Auto-tracking items", "world", world.Name, "items", len(rules))

	sink := autotrack.QueueSink{
		Queue:     queue.NewMutationQueue(queue.NewClientFromRedis(store.Client(), log)),
		TrackerID: trackerID,
	}

	// Reconnect until stopped; a fresh connection re-sends every count.
	for ctx.Err() == nil {
		if err := run(ctx, cfg, sink, rules, limits, log); err != nil {
			log.Warn("usb2snes connection lost", "error", err)
		}
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
		}
	}
	log.Info("Auto-tracker exited")
}

func run(ctx context.Context, cfg *config.Config, sink autotrack.Sink, rules []autotrack.ItemRule, limits map[string]int, log *slog.Logger) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	device, err := autotrack.DialUSB2SNES(dialCtx, cfg.USB2SNESURL, cfg.USB2SNESDevice, "tracker-engine", log)
	if err != nil {
		return err
	}
	defer device.Close()

	poller := autotrack.NewPoller(device, sink, rules, limits, cfg.AutotrackInterval, log)
	poller.MaxFailures = 5
	return poller.Run(ctx)
}
