// Package notification holds the OS-notification plugin contract the
// scheduling engine drives, plus the asynq-backed production implementation
// and the FCM delivery path used by the reminder worker.
package notification

import (
	"context"
	"errors"
	"time"

	"pawmeds/models"
)

// ErrPluginNotInitialized is a programming-contract violation: the plugin
// must be constructed and handed to the engine before any scheduling call.
// It is the only engine failure treated as fatal rather than degraded.
var ErrPluginNotInitialized = errors.New("notification plugin not initialized")

// ChannelReminders is the notification channel every treatment reminder
// goes out on.
const ChannelReminders = "treatment_reminders"

// Request is everything the plugin needs to schedule one notification.
type Request struct {
	ID       int32
	Title    string
	Body     string
	At       time.Time
	Channel  string
	Payload  []byte
	GroupKey string
}

// Summary is the content of a pet's group-summary notification.
type Summary struct {
	Title string
	Body  string
}

// Plugin is the narrow contract the engine consumes from the OS
// notification layer. Any call may fail; the engine isolates failures so
// one bad call never aborts an unrelated operation.
type Plugin interface {
	// ScheduleAt registers a notification to fire at the given instant.
	// Scheduling the same ID again replaces the earlier registration.
	ScheduleAt(ctx context.Context, req Request) error
	// Cancel removes one pending notification by ID. Canceling an unknown
	// ID is not an error.
	Cancel(ctx context.Context, id int32) error
	// CancelAll removes every pending notification.
	CancelAll(ctx context.Context) error
	// ListPending returns the authoritative set of scheduled-but-unfired
	// notifications with their payloads.
	ListPending(ctx context.Context) ([]models.PendingNotification, error)
	// ShowGroupSummary creates or updates the single per-pet summary
	// notification.
	ShowGroupSummary(ctx context.Context, userID, petID string, summary Summary) error
	// CancelGroupSummary removes the per-pet summary notification.
	CancelGroupSummary(ctx context.Context, userID, petID string) error
}
