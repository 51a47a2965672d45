package notifindex

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pawmeds/database/kv"
	"pawmeds/models"
	"pawmeds/services/diagnostics"
)

type fakePending struct {
	items []models.PendingNotification
	err   error
}

func (f *fakePending) ListPending(context.Context) ([]models.PendingNotification, error) {
	return f.items, f.err
}

type recordingSink struct {
	events []diagnostics.Event
}

func (s *recordingSink) Report(e diagnostics.Event) { s.events = append(s.events, e) }

func (s *recordingSink) names() []string {
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Name)
	}
	return out
}

var testDay = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestRepo(pending PendingSource) (*Repository, *kv.MemoryStore, *recordingSink) {
	store := kv.NewMemoryStore()
	sink := &recordingSink{}
	repo := NewRepository(store, pending, sink, zap.NewNop()).
		WithClock(func() time.Time { return testDay })
	return repo, store, sink
}

func entry(id int32, scheduleID, slot string, kind models.ReminderKind) models.ScheduledNotificationEntry {
	return models.ScheduledNotificationEntry{
		NotificationID: id,
		ScheduleID:     scheduleID,
		TreatmentType:  models.TreatmentMedication,
		TimeSlot:       slot,
		Kind:           kind,
	}
}

func TestLoadMissingRecordIsEmpty(t *testing.T) {
	repo, _, sink := newTestRepo(nil)

	got := repo.Load(context.Background(), "u1", "p1", testDay)
	assert.Empty(t, got)
	assert.Empty(t, sink.events, "a brand-new day is not a corruption")
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	repo, _, _ := newTestRepo(nil)
	ctx := context.Background()

	entries := []models.ScheduledNotificationEntry{
		entry(1, "s1", "08:00", models.KindInitial),
		entry(2, "s1", "08:00", models.KindFollowup),
	}
	require.NoError(t, repo.Save(ctx, "u1", "p1", testDay, entries))
	assert.Equal(t, entries, repo.Load(ctx, "u1", "p1", testDay))
}

func TestChecksumIsOrderIndependent(t *testing.T) {
	a := []models.ScheduledNotificationEntry{
		entry(1, "s1", "08:00", models.KindInitial),
		entry(2, "s1", "08:00", models.KindFollowup),
	}
	b := []models.ScheduledNotificationEntry{a[1], a[0]}
	assert.Equal(t, checksumOf(a), checksumOf(b))
}

func TestCorruptedRecordTriggersRebuildFromPlugin(t *testing.T) {
	payload := models.NotificationPayload{
		UserID: "u1", PetID: "p1", ScheduleID: "s1",
		TimeSlot: "08:00", Kind: models.KindInitial,
		TreatmentType: models.TreatmentMedication,
	}
	raw, err := payload.Encode()
	require.NoError(t, err)

	foreign := models.NotificationPayload{
		UserID: "u2", PetID: "p9", ScheduleID: "s9",
		TimeSlot: "09:00", Kind: models.KindInitial,
		TreatmentType: models.TreatmentFluid,
	}
	foreignRaw, err := foreign.Encode()
	require.NoError(t, err)

	pending := &fakePending{items: []models.PendingNotification{
		{ID: 42, Payload: raw},
		{ID: 43, Payload: foreignRaw},        // other scope, must be ignored
		{ID: 44, Payload: []byte("{broken")}, // undecodable, must be ignored
	}}
	repo, store, sink := newTestRepo(pending)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "u1", "p1", testDay,
		[]models.ScheduledNotificationEntry{entry(1, "s1", "08:00", models.KindInitial)}))

	// Flip stored bytes without updating the checksum.
	key := Key("u1", "p1", testDay)
	stored, err := store.Get(ctx, key)
	require.NoError(t, err)
	corrupted := bytes.Replace(stored, []byte(`"s1"`), []byte(`"sX"`), 1)
	require.NotEqual(t, stored, corrupted)
	require.NoError(t, store.Set(ctx, key, corrupted))

	got := repo.Load(ctx, "u1", "p1", testDay)
	require.Len(t, got, 1)
	assert.Equal(t, int32(42), got[0].NotificationID)
	assert.Equal(t, "s1", got[0].ScheduleID)

	assert.Equal(t, []string{
		diagnostics.EventCorruptionDetected,
		diagnostics.EventRebuildSucceeded,
	}, sink.names())

	// The rebuilt record is persisted with a fresh checksum.
	sink.events = nil
	assert.Equal(t, got, repo.Load(ctx, "u1", "p1", testDay))
	assert.Empty(t, sink.events)
}

func TestCorruptionWithNothingToRecoverDegradesToEmpty(t *testing.T) {
	repo, store, sink := newTestRepo(&fakePending{})
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "u1", "p1", testDay,
		[]models.ScheduledNotificationEntry{entry(1, "s1", "08:00", models.KindInitial)}))

	key := Key("u1", "p1", testDay)
	stored, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, key, bytes.Replace(stored, []byte("08:00"), []byte("09:00"), 1)))

	assert.Empty(t, repo.Load(ctx, "u1", "p1", testDay))
	assert.Equal(t, []string{
		diagnostics.EventCorruptionDetected,
		diagnostics.EventRebuildFailed,
	}, sink.names())

	// The corrupt record was reset, so the next load is a clean miss.
	sink.events = nil
	assert.Empty(t, repo.Load(ctx, "u1", "p1", testDay))
	assert.Empty(t, sink.events)
}

func TestPutIsIdempotentUpsert(t *testing.T) {
	repo, _, _ := newTestRepo(nil)
	ctx := context.Background()

	e := entry(7, "s1", "08:00", models.KindInitial)
	require.NoError(t, repo.Put(ctx, "u1", "p1", e))
	require.NoError(t, repo.Put(ctx, "u1", "p1", e))
	assert.Equal(t, 1, repo.CountForPet(ctx, "u1", "p1"))

	updated := e
	updated.TimeSlot = "08:30"
	require.NoError(t, repo.Put(ctx, "u1", "p1", updated))

	got := repo.Load(ctx, "u1", "p1", testDay)
	require.Len(t, got, 1)
	assert.Equal(t, "08:30", got[0].TimeSlot)
}

func TestRemoveByAndRemoveAllForSchedule(t *testing.T) {
	repo, _, _ := newTestRepo(nil)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "u1", "p1", testDay, []models.ScheduledNotificationEntry{
		entry(1, "s1", "08:00", models.KindInitial),
		entry(2, "s1", "08:00", models.KindFollowup),
		entry(3, "s2", "12:00", models.KindInitial),
	}))

	assert.Equal(t, 1, repo.RemoveBy(ctx, "u1", "p1", "s1", "08:00", models.KindFollowup))
	assert.Equal(t, 0, repo.RemoveBy(ctx, "u1", "p1", "s1", "20:00", models.KindInitial))
	assert.Equal(t, 1, repo.RemoveAllForSchedule(ctx, "u1", "p1", "s1"))
	assert.Equal(t, 1, repo.CountForPet(ctx, "u1", "p1"))
}

func TestPruneOldDaysKeepsTodayAndYesterday(t *testing.T) {
	repo, _, _ := newTestRepo(nil)
	ctx := context.Background()

	days := []time.Time{
		testDay,
		testDay.AddDate(0, 0, -1),
		testDay.AddDate(0, 0, -2),
		testDay.AddDate(0, 0, -7),
	}
	for _, d := range days {
		require.NoError(t, repo.Save(ctx, "u1", "p1", d,
			[]models.ScheduledNotificationEntry{entry(1, "s1", "08:00", models.KindInitial)}))
	}

	assert.Equal(t, 2, repo.PruneOldDays(ctx, "u1", "p1"))
	assert.Len(t, repo.Load(ctx, "u1", "p1", testDay), 1)
	assert.Len(t, repo.Load(ctx, "u1", "p1", testDay.AddDate(0, 0, -1)), 1)
	assert.Empty(t, repo.Load(ctx, "u1", "p1", testDay.AddDate(0, 0, -2)))
}

func TestCategorizeByType(t *testing.T) {
	entries := []models.ScheduledNotificationEntry{
		entry(1, "s1", "08:00", models.KindInitial),
		entry(2, "s1", "08:00", models.KindFollowup),
		{NotificationID: 3, ScheduleID: "s2", TreatmentType: models.TreatmentFluid, TimeSlot: "12:00", Kind: models.KindInitial},
	}
	b := CategorizeByType(entries)
	assert.Equal(t, 2, b.Medication)
	assert.Equal(t, 1, b.Fluid)
	assert.Equal(t, 3, b.Total())
}
