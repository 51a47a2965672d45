// Package reconciler heals divergence between the OS plugin's actual
// pending notifications and the per-day index. The plugin is ground truth;
// the index is a derived cache and always loses a direct conflict.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pawmeds/database/repository/notifindex"
	"pawmeds/models"
	"pawmeds/services/diagnostics"
	"pawmeds/services/notification"
	"pawmeds/services/scheduler"
)

// Report summarizes one reconciliation pass.
type Report struct {
	// Orphans the plugin knew about but the index did not; each was
	// canceled. Typically left behind by a crash between scheduling and
	// the index write.
	Orphans int
	// Missing entries the index claimed but the plugin no longer has.
	// Any missing entry forces a full re-derivation of the day.
	Missing int
	// Rebuilt is set when the day's index was cleared and re-derived from
	// schedule data.
	Rebuilt bool
	// Reschedule is the result of the re-derivation pass, when one ran.
	Reschedule scheduler.Result
}

// Reconciler diffs plugin state against the index. Run on app start,
// resume and date rollover; callers must not run two passes for the same
// scope concurrently.
type Reconciler struct {
	plugin notification.Plugin
	index  *notifindex.Repository
	orch   *scheduler.Orchestrator
	sink   diagnostics.Sink
	logger *zap.Logger
	now    func() time.Time
}

func New(
	plugin notification.Plugin,
	index *notifindex.Repository,
	orch *scheduler.Orchestrator,
	sink diagnostics.Sink,
	logger *zap.Logger,
) *Reconciler {
	if sink == nil {
		sink = diagnostics.NopSink{}
	}
	return &Reconciler{
		plugin: plugin,
		index:  index,
		orch:   orch,
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the reconciler's notion of "now".
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Reconcile runs one repair pass for the scope.
func (r *Reconciler) Reconcile(ctx context.Context, userID, petID string) (Report, error) {
	var rep Report
	if r.plugin == nil {
		return rep, notification.ErrPluginNotInitialized
	}

	pending, err := r.plugin.ListPending(ctx)
	if err != nil {
		return rep, fmt.Errorf("reconcile: pending snapshot unavailable: %w", err)
	}

	// Only notifications whose payload parses to this scope participate.
	// Unparseable items are logged and left alone rather than guessed at.
	pluginIDs := make(map[int32]bool)
	for _, p := range pending {
		payload, err := models.ParsePayload(p.Payload)
		if err != nil {
			r.logger.Warn("reconcile: skipping unparseable pending payload",
				zap.Int32("notificationId", p.ID), zap.Error(err))
			continue
		}
		if payload.UserID != userID || payload.PetID != petID {
			continue
		}
		pluginIDs[p.ID] = true
	}

	today := r.now()
	entries := r.index.Load(ctx, userID, petID, today)
	indexIDs := make(map[int32]bool, len(entries))
	for _, e := range entries {
		indexIDs[e.NotificationID] = true
	}

	// Orphans: plugin-only notifications. Cancel each; the plugin already
	// fired-and-forgot whatever context produced them.
	for id := range pluginIDs {
		if indexIDs[id] {
			continue
		}
		rep.Orphans++
		if err := r.plugin.Cancel(ctx, id); err != nil {
			r.logger.Warn("reconcile: orphan cancel failed",
				zap.Int32("notificationId", id), zap.Error(err))
		}
	}

	// Missing: index-only entries. The plugin side lacks the context to
	// resurrect them individually, so the whole day is cleared and
	// re-derived from authoritative schedule data.
	for id := range indexIDs {
		if !pluginIDs[id] {
			rep.Missing++
		}
	}
	if rep.Missing > 0 {
		if err := r.index.Clear(ctx, userID, petID, today); err != nil {
			r.logger.Warn("reconcile: index clear failed", zap.Error(err))
		}
		res, err := r.orch.ScheduleAllForToday(ctx, userID, petID)
		if err != nil {
			return rep, fmt.Errorf("reconcile: re-derive failed: %w", err)
		}
		rep.Rebuilt = true
		rep.Reschedule = res
	}

	r.sink.Report(diagnostics.NewEvent(diagnostics.EventReconcileCompleted, map[string]any{
		"userId":  userID,
		"petId":   petID,
		"orphans": rep.Orphans,
		"missing": rep.Missing,
		"rebuilt": rep.Rebuilt,
	}))
	return rep, nil
}

// RescheduleAll is the full recovery entry point: a reconciliation pass
// followed by a fresh scheduling pass. Safe to call repeatedly; both
// halves are idempotent.
func (r *Reconciler) RescheduleAll(ctx context.Context, userID, petID string) (Report, error) {
	rep, err := r.Reconcile(ctx, userID, petID)
	if err != nil {
		return rep, err
	}
	if !rep.Rebuilt {
		res, err := r.orch.ScheduleAllForToday(ctx, userID, petID)
		if err != nil {
			return rep, err
		}
		rep.Reschedule = res
	}
	return rep, nil
}
