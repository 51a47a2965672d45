// Package scheduler computes, classifies and drives treatment reminder
// notifications for one user/pet scope per day. It owns the deterministic
// ID discipline and the per-pet pending limit; the notification plugin does
// the actual OS-level work and the notifindex repository keeps the derived
// bookkeeping.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pawmeds/config"
	"pawmeds/database/repository/notifindex"
	"pawmeds/database/repository/schedules"
	"pawmeds/models"
	"pawmeds/services/diagnostics"
	"pawmeds/services/notification"
)

// rollingWindow is how far ahead a slot may be and still get scheduled
// once a pet is at the device's pending-notification ceiling.
const rollingWindow = 24 * time.Hour

// Result tallies one scheduling pass.
type Result struct {
	Scheduled  int
	Immediate  int
	Missed     int
	Skipped    int // dropped by the rolling-24h limit policy
	CacheEmpty bool
	Errors     []error

	limitWarned bool // at most one pending_limit_warning per pass
}

// Orchestrator is the stateful reminder scheduling service. All calls for
// a given (user, pet) scope must be serialized by the caller.
type Orchestrator struct {
	plugin notification.Plugin
	index  *notifindex.Repository
	cache  *schedules.Cache
	sink   diagnostics.Sink
	logger *zap.Logger

	grace         time.Duration
	followupHours int
	maxPending    int
	warnPending   int
	now           func() time.Time
}

// NewOrchestrator wires the scheduling service. Every collaborator is an
// explicit dependency; there is no package-level state.
func NewOrchestrator(
	plugin notification.Plugin,
	index *notifindex.Repository,
	cache *schedules.Cache,
	sink diagnostics.Sink,
	logger *zap.Logger,
	cfg config.Config,
) *Orchestrator {
	if sink == nil {
		sink = diagnostics.NopSink{}
	}
	return &Orchestrator{
		plugin:        plugin,
		index:         index,
		cache:         cache,
		sink:          sink,
		logger:        logger,
		grace:         cfg.GraceWindow(),
		followupHours: cfg.FollowupOffsetHours,
		maxPending:    cfg.MaxPendingPerPet,
		warnPending:   cfg.WarnPendingPerPet,
		now:           time.Now,
	}
}

// WithClock overrides the orchestrator's notion of "now". Tests use this
// to pin the scheduling instant.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// ScheduleAllForToday scans the cached active schedules for the pet and
// schedules every reminder slot due today. A failure on one schedule is
// isolated: it lands in Result.Errors and the remaining schedules are
// still processed. The backing data store is never consulted — if the
// cache has no snapshot for the pet, the pass returns with CacheEmpty set.
func (o *Orchestrator) ScheduleAllForToday(ctx context.Context, userID, petID string) (Result, error) {
	var res Result
	if o.plugin == nil {
		return res, notification.ErrPluginNotInitialized
	}

	if !o.cache.SettingsFor(userID).Enabled {
		o.logger.Debug("notifications disabled for user, skipping pass", zap.String("userId", userID))
		return res, nil
	}

	scheds, warmed := o.cache.ActiveForPet(petID)
	if !warmed {
		res.CacheEmpty = true
		return res, nil
	}

	for _, s := range scheds {
		if s.UserID != userID || !s.WantsRemindersToday() {
			continue
		}
		o.scheduleSlots(ctx, &res, s)
	}

	o.updateGroupSummary(ctx, userID, petID)
	return res, nil
}

// ScheduleForSchedule is the idempotent create-or-update for one schedule:
// it first cancels everything previously scheduled for it, then
// re-schedules from current data. Because notification IDs are
// deterministic, calling this twice produces exactly the same IDs and
// index content as calling it once.
func (o *Orchestrator) ScheduleForSchedule(ctx context.Context, s models.TreatmentSchedule) (Result, error) {
	var res Result
	if o.plugin == nil {
		return res, notification.ErrPluginNotInitialized
	}

	o.cancelScheduleNotifications(ctx, s.UserID, s.PetID, s.ID, s.TimeSlots)

	if s.WantsRemindersToday() && o.cache.SettingsFor(s.UserID).Enabled {
		o.scheduleSlots(ctx, &res, s)
	}

	o.updateGroupSummary(ctx, s.UserID, s.PetID)
	return res, nil
}

// CancelForSchedule cancels every notification for a schedule and removes
// its index entries. Used when a treatment schedule is deleted. Individual
// cancel failures are logged and skipped, never fatal.
func (o *Orchestrator) CancelForSchedule(ctx context.Context, userID, petID, scheduleID string) error {
	if o.plugin == nil {
		return notification.ErrPluginNotInitialized
	}
	var slots []string
	if s, ok := o.cache.ScheduleByID(scheduleID); ok {
		slots = s.TimeSlots
	}
	o.cancelScheduleNotifications(ctx, userID, petID, scheduleID, slots)
	o.updateGroupSummary(ctx, userID, petID)
	return nil
}

// CancelSlot cancels the initial, follow-up and snooze notifications of a
// single time slot.
func (o *Orchestrator) CancelSlot(ctx context.Context, userID, petID, scheduleID, timeSlot string) error {
	if o.plugin == nil {
		return notification.ErrPluginNotInitialized
	}
	for _, kind := range []models.ReminderKind{models.KindInitial, models.KindFollowup, models.KindSnooze} {
		id := NotificationID(userID, petID, scheduleID, timeSlot, kind)
		if err := o.plugin.Cancel(ctx, id); err != nil {
			o.logger.Warn("cancel failed, skipping",
				zap.Int32("notificationId", id), zap.Error(err))
			continue
		}
		o.index.RemoveBy(ctx, userID, petID, scheduleID, timeSlot, kind)
	}
	o.updateGroupSummary(ctx, userID, petID)
	return nil
}

// SnoozeSlot re-arms a fired reminder to go off again after the given
// delay. The snooze notification reuses the deterministic ID for its
// (schedule, slot, snooze) triple, so repeated snoozes replace each other.
func (o *Orchestrator) SnoozeSlot(ctx context.Context, s models.TreatmentSchedule, timeSlot string, delay time.Duration) error {
	if o.plugin == nil {
		return notification.ErrPluginNotInitialized
	}
	var res Result
	o.scheduleOne(ctx, &res, s, timeSlot, models.KindSnooze, o.now().Add(delay), ClassScheduled)
	o.updateGroupSummary(ctx, s.UserID, s.PetID)
	if len(res.Errors) > 0 {
		return res.Errors[0]
	}
	return nil
}

// scheduleSlots processes every reminder slot of one schedule for today.
func (o *Orchestrator) scheduleSlots(ctx context.Context, res *Result, s models.TreatmentSchedule) {
	now := o.now()
	for _, slot := range s.TimeSlots {
		instant, err := SlotInstant(now, slot)
		if err != nil {
			res.Errors = append(res.Errors, err)
			continue
		}

		class := Classify(instant, now, o.grace)
		if class == ClassMissed {
			res.Missed++
			continue
		}

		if !o.scheduleOne(ctx, res, s, slot, models.KindInitial, instant, class) {
			continue
		}

		offset := s.FollowupOffsetHours
		if offset <= 0 {
			offset = o.followupHours
		}
		followAt := FollowupInstant(instant, offset)
		followClass := Classify(followAt, now, o.grace)
		if followClass == ClassMissed {
			res.Missed++
			continue
		}
		o.scheduleOne(ctx, res, s, slot, models.KindFollowup, followAt, followClass)
	}
}

// scheduleOne schedules a single notification, writes its index entry and
// updates the counters. Returns false when nothing was scheduled.
func (o *Orchestrator) scheduleOne(
	ctx context.Context,
	res *Result,
	s models.TreatmentSchedule,
	slot string,
	kind models.ReminderKind,
	at time.Time,
	class Classification,
) bool {
	now := o.now()

	count := o.index.CountForPet(ctx, s.UserID, s.PetID)
	if count >= o.warnPending && !res.limitWarned {
		res.limitWarned = true
		o.sink.Report(diagnostics.NewEvent(diagnostics.EventPendingLimitWarn, map[string]any{
			"petId": s.PetID,
			"count": count,
		}))
	}
	if count >= o.maxPending && at.After(now.Add(rollingWindow)) {
		// At the device ceiling only the next 24h of reminders fit; the
		// rest get picked up by a later reconciliation pass.
		res.Skipped++
		return false
	}

	payload := models.NotificationPayload{
		UserID:        s.UserID,
		PetID:         s.PetID,
		ScheduleID:    s.ID,
		TimeSlot:      slot,
		Kind:          kind,
		TreatmentType: s.TreatmentType,
	}
	raw, err := payload.Encode()
	if err != nil {
		res.Errors = append(res.Errors, err)
		return false
	}

	fireAt := at
	if class == ClassImmediate {
		fireAt = now
	}
	title, body := notification.Content(s.TreatmentType, kind)
	id := NotificationID(s.UserID, s.PetID, s.ID, slot, kind)

	err = o.plugin.ScheduleAt(ctx, notification.Request{
		ID:       id,
		Title:    title,
		Body:     body,
		At:       fireAt,
		Channel:  notification.ChannelReminders,
		Payload:  raw,
		GroupKey: s.PetID,
	})
	if err != nil {
		res.Errors = append(res.Errors, err)
		return false
	}

	if err := o.index.Put(ctx, s.UserID, s.PetID, payload.Entry(id)); err != nil {
		// The notification is live but unrecorded; reconciliation will
		// treat it as an orphan and heal it. Surface the save failure.
		res.Errors = append(res.Errors, err)
	}

	switch class {
	case ClassImmediate:
		res.Immediate++
	default:
		res.Scheduled++
	}
	return true
}

// cancelScheduleNotifications cancels both the IDs the index knows about
// and the deterministically derivable IDs for the schedule's slots, so a
// stale or empty index cannot leave notifications behind.
func (o *Orchestrator) cancelScheduleNotifications(ctx context.Context, userID, petID, scheduleID string, slots []string) {
	ids := make(map[int32]bool)
	for _, slot := range slots {
		for _, kind := range []models.ReminderKind{models.KindInitial, models.KindFollowup, models.KindSnooze} {
			ids[NotificationID(userID, petID, scheduleID, slot, kind)] = true
		}
	}
	for _, e := range o.index.Load(ctx, userID, petID, o.now()) {
		if e.ScheduleID == scheduleID {
			ids[e.NotificationID] = true
		}
	}

	for id := range ids {
		if err := o.plugin.Cancel(ctx, id); err != nil {
			o.logger.Warn("cancel failed, skipping",
				zap.Int32("notificationId", id), zap.Error(err))
		}
	}
	o.index.RemoveAllForSchedule(ctx, userID, petID, scheduleID)
}

// updateGroupSummary recomputes the pet's outstanding-entry breakdown and
// refreshes (or clears) the single per-pet summary notification. This is a
// non-critical path: failures are logged and never escalated.
func (o *Orchestrator) updateGroupSummary(ctx context.Context, userID, petID string) {
	entries := o.index.Load(ctx, userID, petID, o.now())
	breakdown := notifindex.CategorizeByType(entries)

	var err error
	if breakdown.Total() == 0 {
		err = o.plugin.CancelGroupSummary(ctx, userID, petID)
	} else {
		err = o.plugin.ShowGroupSummary(ctx, userID, petID, notification.SummaryContent(breakdown))
	}
	if err != nil {
		o.logger.Warn("group summary update failed",
			zap.String("petId", petID), zap.Error(err))
	}
}
