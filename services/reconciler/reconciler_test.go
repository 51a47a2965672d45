package reconciler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pawmeds/config"
	"pawmeds/database/kv"
	"pawmeds/database/repository/notifindex"
	"pawmeds/database/repository/schedules"
	"pawmeds/models"
	"pawmeds/services/notification"
	"pawmeds/services/scheduler"
)

type fakePlugin struct {
	mu        sync.Mutex
	scheduled map[int32][]byte
}

func newFakePlugin() *fakePlugin {
	return &fakePlugin{scheduled: make(map[int32][]byte)}
}

func (f *fakePlugin) ScheduleAt(_ context.Context, req notification.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled[req.ID] = req.Payload
	return nil
}

func (f *fakePlugin) Cancel(_ context.Context, id int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.scheduled, id)
	return nil
}

func (f *fakePlugin) CancelAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = make(map[int32][]byte)
	return nil
}

func (f *fakePlugin) ListPending(context.Context) ([]models.PendingNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PendingNotification
	for id, payload := range f.scheduled {
		out = append(out, models.PendingNotification{ID: id, Payload: payload})
	}
	return out, nil
}

func (f *fakePlugin) ShowGroupSummary(context.Context, string, string, notification.Summary) error {
	return nil
}

func (f *fakePlugin) CancelGroupSummary(context.Context, string, string) error {
	return nil
}

func (f *fakePlugin) has(id int32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.scheduled[id]
	return ok
}

var now = time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)

type fixture struct {
	plugin *fakePlugin
	index  *notifindex.Repository
	cache  *schedules.Cache
	rec    *Reconciler
}

func newFixture() *fixture {
	clock := func() time.Time { return now }
	plugin := newFakePlugin()
	index := notifindex.NewRepository(kv.NewMemoryStore(), plugin, nil, zap.NewNop()).WithClock(clock)
	cache := schedules.NewCache()
	cfg := config.Config{
		GraceWindowMinutes:  5,
		FollowupOffsetHours: 2,
		MaxPendingPerPet:    50,
		WarnPendingPerPet:   40,
	}
	orch := scheduler.NewOrchestrator(plugin, index, cache, nil, zap.NewNop(), cfg).WithClock(clock)
	rec := New(plugin, index, orch, nil, zap.NewNop()).WithClock(clock)
	return &fixture{plugin: plugin, index: index, cache: cache, rec: rec}
}

func payloadFor(userID, petID, scheduleID, slot string) []byte {
	raw, _ := models.NotificationPayload{
		UserID:        userID,
		PetID:         petID,
		ScheduleID:    scheduleID,
		TimeSlot:      slot,
		Kind:          models.KindInitial,
		TreatmentType: models.TreatmentMedication,
	}.Encode()
	return raw
}

func activeSchedule() models.TreatmentSchedule {
	return models.TreatmentSchedule{
		ID:               "s1",
		UserID:           "u1",
		PetID:            "p1",
		TreatmentType:    models.TreatmentMedication,
		TimeSlots:        []string{"08:00"},
		Active:           true,
		RemindersEnabled: true,
	}
}

func TestReconcileCancelsOrphans(t *testing.T) {
	f := newFixture()
	f.cache.ReplaceForPet("p1", nil)
	ctx := context.Background()

	// The plugin knows a notification the index never recorded — the
	// classic crash between scheduling and the index write.
	f.plugin.scheduled[999] = payloadFor("u1", "p1", "s-ghost", "06:00")

	rep, err := f.rec.Reconcile(ctx, "u1", "p1")
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Orphans)
	assert.Zero(t, rep.Missing)
	assert.False(t, rep.Rebuilt)
	assert.False(t, f.plugin.has(999))
}

func TestReconcileLeavesOtherScopesAlone(t *testing.T) {
	f := newFixture()
	f.cache.ReplaceForPet("p1", nil)
	ctx := context.Background()

	f.plugin.scheduled[500] = payloadFor("u2", "p9", "s9", "06:00")
	f.plugin.scheduled[501] = []byte("{not json")

	rep, err := f.rec.Reconcile(ctx, "u1", "p1")
	require.NoError(t, err)

	assert.Zero(t, rep.Orphans)
	assert.True(t, f.plugin.has(500), "another pet's notification must survive")
	assert.True(t, f.plugin.has(501), "unparseable payloads are not guessed at")
}

func TestReconcileRebuildsOnMissingEntries(t *testing.T) {
	f := newFixture()
	f.cache.ReplaceForPet("p1", []models.TreatmentSchedule{activeSchedule()})
	ctx := context.Background()

	// The index claims a notification the plugin no longer has.
	require.NoError(t, f.index.Save(ctx, "u1", "p1", now, []models.ScheduledNotificationEntry{{
		NotificationID: 111,
		ScheduleID:     "s1",
		TreatmentType:  models.TreatmentMedication,
		TimeSlot:       "08:00",
		Kind:           models.KindInitial,
	}}))

	rep, err := f.rec.Reconcile(ctx, "u1", "p1")
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Missing)
	assert.True(t, rep.Rebuilt)
	assert.Equal(t, 2, rep.Reschedule.Scheduled, "re-derived initial + followup")

	// The stale entry is gone; the index now mirrors the plugin.
	for _, e := range f.index.Load(ctx, "u1", "p1", now) {
		assert.NotEqual(t, int32(111), e.NotificationID)
		assert.True(t, f.plugin.has(e.NotificationID))
	}
}

func TestReconcileConverges(t *testing.T) {
	f := newFixture()
	f.cache.ReplaceForPet("p1", []models.TreatmentSchedule{activeSchedule()})
	ctx := context.Background()

	// Divergence on both sides at once.
	f.plugin.scheduled[999] = payloadFor("u1", "p1", "s-ghost", "06:00")
	require.NoError(t, f.index.Save(ctx, "u1", "p1", now, []models.ScheduledNotificationEntry{{
		NotificationID: 111,
		ScheduleID:     "s1",
		TreatmentType:  models.TreatmentMedication,
		TimeSlot:       "08:00",
		Kind:           models.KindInitial,
	}}))

	first, err := f.rec.Reconcile(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Orphans)
	assert.Equal(t, 1, first.Missing)

	second, err := f.rec.Reconcile(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.Zero(t, second.Orphans)
	assert.Zero(t, second.Missing)
	assert.False(t, second.Rebuilt)
}

func TestRescheduleAllRunsSchedulingPass(t *testing.T) {
	f := newFixture()
	f.cache.ReplaceForPet("p1", []models.TreatmentSchedule{activeSchedule()})

	rep, err := f.rec.RescheduleAll(context.Background(), "u1", "p1")
	require.NoError(t, err)

	assert.False(t, rep.Rebuilt)
	assert.Equal(t, 2, rep.Reschedule.Scheduled)
}
