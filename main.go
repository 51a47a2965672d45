package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"pawmeds/config"
	"pawmeds/cron"
	"pawmeds/database/kv"
	"pawmeds/database/repository/notifindex"
	"pawmeds/database/repository/schedules"
	"pawmeds/services/diagnostics"
	"pawmeds/services/notification"
	"pawmeds/services/reconciler"
	"pawmeds/services/scheduler"
	"pawmeds/utils"
)

func main() {
	cfg := config.Load()
	logger := utils.NewLogger(cfg.IsProduction())
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Infrastructure.
	store, err := kv.NewRedisStore(cfg)
	if err != nil {
		logger.Fatal("main: index store unavailable", zap.Error(err))
	}
	plugin := notification.NewAsynqPlugin(cfg)
	defer plugin.Close()

	source, err := schedules.NewMongoSource(ctx, cfg)
	if err != nil {
		logger.Fatal("main: schedule source unavailable", zap.Error(err))
	}
	sender, err := notification.NewFCMSender(ctx, cfg, source.DeviceToken)
	if err != nil {
		logger.Fatal("main: FCM unavailable", zap.Error(err))
	}

	// Engine services, constructed once and passed by reference.
	sink := diagnostics.NewLogSink(logger)
	index := notifindex.NewRepository(store, plugin, sink, logger)
	cache := schedules.NewCache()
	orch := scheduler.NewOrchestrator(plugin, index, cache, sink, logger, cfg)
	rec := reconciler.New(plugin, index, orch, sink, logger)

	// Delivery worker.
	worker := cron.NewReminderWorker(cfg, sender, logger)
	worker.Run()
	defer worker.Shutdown()

	// On-launch pass: warm the cache, reconcile, schedule today.
	var scopes []cron.Scope
	for _, petID := range cfg.PetIDs {
		scopes = append(scopes, cron.Scope{UserID: cfg.UserID, PetID: petID})

		if err := source.Warm(ctx, cache, cfg.UserID, petID); err != nil {
			logger.Warn("main: schedule cache warm failed, staying offline",
				zap.String("petId", petID), zap.Error(err))
		}
		rep, err := rec.RescheduleAll(ctx, cfg.UserID, petID)
		if err != nil {
			logger.Error("main: launch reschedule failed",
				zap.String("petId", petID), zap.Error(err))
			continue
		}
		logger.Info("launch pass complete",
			zap.String("petId", petID),
			zap.Int("orphans", rep.Orphans),
			zap.Int("missing", rep.Missing),
			zap.Int("scheduled", rep.Reschedule.Scheduled),
			zap.Int("immediate", rep.Reschedule.Immediate),
			zap.Int("missed", rep.Reschedule.Missed),
			zap.Bool("cacheEmpty", rep.Reschedule.CacheEmpty))
	}

	go cron.RunLifecycle(ctx, cfg.ReconcileInterval(), scopes, rec, index, source, cache, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")
	cancel()
}
