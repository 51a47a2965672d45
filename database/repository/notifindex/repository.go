// Package notifindex is the per-user, per-pet, per-day record of which
// reminder notifications are currently scheduled. It is a derived cache of
// the OS plugin's state, guarded by a content checksum; on corruption it
// rebuilds itself from the plugin's pending set rather than trusting
// stored data.
package notifindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pawmeds/database/kv"
	"pawmeds/models"
	"pawmeds/services/diagnostics"
)

const keyPrefix = "notif_index_v2"

// PendingSource is the narrow slice of the notification plugin the index
// needs for corruption recovery: the current pending-notification snapshot.
type PendingSource interface {
	ListPending(ctx context.Context) ([]models.PendingNotification, error)
}

// Repository stores and repairs the notification index.
type Repository struct {
	store   kv.Store
	pending PendingSource
	sink    diagnostics.Sink
	logger  *zap.Logger
	now     func() time.Time
}

// NewRepository wires an index repository. The pending source may be nil,
// in which case corruption recovery degrades straight to an empty index.
func NewRepository(store kv.Store, pending PendingSource, sink diagnostics.Sink, logger *zap.Logger) *Repository {
	if sink == nil {
		sink = diagnostics.NopSink{}
	}
	return &Repository{
		store:   store,
		pending: pending,
		sink:    sink,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the repository's notion of "now". Tests use this to
// pin the current day.
func (r *Repository) WithClock(now func() time.Time) *Repository {
	r.now = now
	return r
}

// Key returns the storage key for one scope/day record.
func Key(userID, petID string, day time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%s", keyPrefix, userID, petID, day.Format("2006-01-02"))
}

// Load returns the entries recorded for the given day. A missing record is
// the expected state for a new day and yields an empty list; so does a
// transient read failure or an unrecoverable corrupt record. Load never
// returns an error.
func (r *Repository) Load(ctx context.Context, userID, petID string, day time.Time) []models.ScheduledNotificationEntry {
	key := Key(userID, petID, day)

	raw, err := r.store.Get(ctx, key)
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		r.logger.Warn("index read failed, treating as empty",
			zap.String("key", key), zap.Error(err))
		return nil
	}

	var rec indexRecord
	if err := json.Unmarshal(raw, &rec); err != nil || !rec.valid() {
		return r.rebuild(ctx, userID, petID, day)
	}
	return rec.Entries
}

// Save persists entries together with a freshly computed checksum as a
// single value write. Unlike the other index operations this propagates
// failures: a scheduling pass must know its bookkeeping did not stick.
func (r *Repository) Save(ctx context.Context, userID, petID string, day time.Time, entries []models.ScheduledNotificationEntry) error {
	rec := indexRecord{Entries: entries, Checksum: checksumOf(entries)}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal index record: %w", err)
	}
	if err := r.store.Set(ctx, Key(userID, petID, day), raw); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	return nil
}

// Put upserts one entry into today's record, keyed by notification ID.
// Re-putting the same entry is a no-op in effect.
func (r *Repository) Put(ctx context.Context, userID, petID string, entry models.ScheduledNotificationEntry) error {
	day := r.now()
	entries := r.Load(ctx, userID, petID, day)

	replaced := false
	for i, e := range entries {
		if e.NotificationID == entry.NotificationID {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}
	return r.Save(ctx, userID, petID, day, entries)
}

// RemoveBy deletes today's entry matching (scheduleID, timeSlot, kind) and
// returns how many entries were removed. Failures are swallowed: the OS
// plugin has already honored the cancellation, and a stale index entry is
// exactly what reconciliation exists to clean up.
func (r *Repository) RemoveBy(ctx context.Context, userID, petID, scheduleID, timeSlot string, kind models.ReminderKind) int {
	return r.removeMatching(ctx, userID, petID, func(e models.ScheduledNotificationEntry) bool {
		return e.ScheduleID == scheduleID && e.TimeSlot == timeSlot && e.Kind == kind
	})
}

// RemoveAllForSchedule deletes every entry for a schedule from today's
// record, with the same best-effort contract as RemoveBy.
func (r *Repository) RemoveAllForSchedule(ctx context.Context, userID, petID, scheduleID string) int {
	return r.removeMatching(ctx, userID, petID, func(e models.ScheduledNotificationEntry) bool {
		return e.ScheduleID == scheduleID
	})
}

func (r *Repository) removeMatching(ctx context.Context, userID, petID string, match func(models.ScheduledNotificationEntry) bool) int {
	day := r.now()
	entries := r.Load(ctx, userID, petID, day)

	kept := entries[:0]
	removed := 0
	for _, e := range entries {
		if match(e) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	if removed == 0 {
		return 0
	}
	if err := r.Save(ctx, userID, petID, day, kept); err != nil {
		r.logger.Warn("index removal not persisted",
			zap.String("userId", userID), zap.String("petId", petID), zap.Error(err))
		return 0
	}
	return removed
}

// CountForPet returns the number of outstanding entries for the pet today.
func (r *Repository) CountForPet(ctx context.Context, userID, petID string) int {
	return len(r.Load(ctx, userID, petID, r.now()))
}

// Clear drops the whole record for a day. Used by reconciliation before a
// full re-derivation from schedule data.
func (r *Repository) Clear(ctx context.Context, userID, petID string, day time.Time) error {
	return r.store.Delete(ctx, Key(userID, petID, day))
}

// PruneOldDays removes index records older than yesterday for the scope,
// returning how many records were dropped. Retention is today+yesterday
// only, to bound storage.
func (r *Repository) PruneOldDays(ctx context.Context, userID, petID string) int {
	keep := map[string]bool{
		Key(userID, petID, r.now()):                   true,
		Key(userID, petID, r.now().AddDate(0, 0, -1)): true,
	}
	pattern := fmt.Sprintf("%s_%s_%s_*", keyPrefix, userID, petID)
	keys, err := r.store.Keys(ctx, pattern)
	if err != nil {
		r.logger.Warn("index prune: key scan failed", zap.Error(err))
		return 0
	}
	pruned := 0
	for _, k := range keys {
		if keep[k] {
			continue
		}
		if err := r.store.Delete(ctx, k); err != nil {
			r.logger.Warn("index prune: delete failed", zap.String("key", k), zap.Error(err))
			continue
		}
		pruned++
	}
	return pruned
}

// CategorizeByType counts entries per treatment type.
func CategorizeByType(entries []models.ScheduledNotificationEntry) models.TypeBreakdown {
	var b models.TypeBreakdown
	for _, e := range entries {
		switch e.TreatmentType {
		case models.TreatmentMedication:
			b.Medication++
		case models.TreatmentFluid:
			b.Fluid++
		}
	}
	return b
}

// rebuild recovers an index whose checksum no longer matches its entries.
// The plugin's pending set is ground truth: every pending payload that
// parses cleanly and belongs to this scope becomes an entry in the new
// record. Foreign, partial or undecodable payloads are dropped, never
// guessed at. If nothing can be recovered the day degrades to an empty
// index and the corrupt record is reset.
func (r *Repository) rebuild(ctx context.Context, userID, petID string, day time.Time) []models.ScheduledNotificationEntry {
	r.sink.Report(diagnostics.NewEvent(diagnostics.EventCorruptionDetected, map[string]any{
		"userId": userID,
		"petId":  petID,
		"day":    day.Format("2006-01-02"),
	}))

	var recovered []models.ScheduledNotificationEntry
	if r.pending != nil {
		pending, err := r.pending.ListPending(ctx)
		if err != nil {
			r.logger.Warn("index rebuild: pending snapshot unavailable", zap.Error(err))
		}
		for _, p := range pending {
			payload, err := models.ParsePayload(p.Payload)
			if err != nil {
				continue
			}
			if payload.UserID != userID || payload.PetID != petID {
				continue
			}
			recovered = append(recovered, payload.Entry(p.ID))
		}
	}

	if len(recovered) == 0 {
		if err := r.Clear(ctx, userID, petID, day); err != nil {
			r.logger.Warn("index rebuild: reset failed", zap.Error(err))
		}
		r.sink.Report(diagnostics.NewEvent(diagnostics.EventRebuildFailed, map[string]any{
			"userId": userID,
			"petId":  petID,
		}))
		return nil
	}

	if err := r.Save(ctx, userID, petID, day, recovered); err != nil {
		r.logger.Warn("index rebuild: persist failed", zap.Error(err))
	}
	r.sink.Report(diagnostics.NewEvent(diagnostics.EventRebuildSucceeded, map[string]any{
		"userId":    userID,
		"petId":     petID,
		"recovered": len(recovered),
	}))
	return recovered
}
