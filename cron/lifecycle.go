package cron

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pawmeds/database/repository/notifindex"
	"pawmeds/database/repository/schedules"
	"pawmeds/services/reconciler"
)

// Scope identifies one user/pet pair the lifecycle loop keeps healthy.
type Scope struct {
	UserID string
	PetID  string
}

// RunLifecycle drives the engine's external triggers: a periodic
// reconciliation tick and a local-midnight rollover that prunes old index
// days and re-derives the new day's reminders. The engine never schedules
// its own background work; this loop is the app-lifecycle stand-in.
func RunLifecycle(
	ctx context.Context,
	interval time.Duration,
	scopes []Scope,
	rec *reconciler.Reconciler,
	index *notifindex.Repository,
	source *schedules.MongoSource,
	cache *schedules.Cache,
	logger *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastDay := time.Now().Format("2006-01-02")

	for {
		select {
		case <-ctx.Done():
			logger.Info("lifecycle loop shutdown signal received")
			return
		case <-ticker.C:
			today := time.Now().Format("2006-01-02")
			rollover := today != lastDay
			lastDay = today

			for _, scope := range scopes {
				if source != nil {
					if err := source.Warm(ctx, cache, scope.UserID, scope.PetID); err != nil {
						logger.Warn("schedule cache refresh failed",
							zap.String("petId", scope.PetID), zap.Error(err))
					}
				}

				if rollover {
					pruned := index.PruneOldDays(ctx, scope.UserID, scope.PetID)
					logger.Info("date rollover",
						zap.String("petId", scope.PetID), zap.Int("prunedDays", pruned))
					if _, err := rec.RescheduleAll(ctx, scope.UserID, scope.PetID); err != nil {
						logger.Error("rollover reschedule failed",
							zap.String("petId", scope.PetID), zap.Error(err))
					}
					continue
				}

				if _, err := rec.Reconcile(ctx, scope.UserID, scope.PetID); err != nil {
					logger.Error("periodic reconcile failed",
						zap.String("petId", scope.PetID), zap.Error(err))
				}
			}
		}
	}
}
