package models

import "fmt"

// TreatmentType identifies the kind of treatment a reminder is for.
type TreatmentType string

const (
	TreatmentMedication TreatmentType = "medication"
	TreatmentFluid      TreatmentType = "fluid"
)

func (t TreatmentType) Valid() bool {
	return t == TreatmentMedication || t == TreatmentFluid
}

// ReminderKind is the stage of a reminder: the initial slot notification,
// the generic follow-up, or a user-requested snooze.
type ReminderKind string

const (
	KindInitial  ReminderKind = "initial"
	KindFollowup ReminderKind = "followup"
	KindSnooze   ReminderKind = "snooze"
)

func (k ReminderKind) Valid() bool {
	return k == KindInitial || k == KindFollowup || k == KindSnooze
}

// ScheduledNotificationEntry is one outstanding reminder record in the
// per-day notification index. Entries are immutable values; an update
// replaces the entry with the same NotificationID.
type ScheduledNotificationEntry struct {
	NotificationID int32         `json:"notificationId"`
	ScheduleID     string        `json:"scheduleId"`
	TreatmentType  TreatmentType `json:"treatmentType"`
	TimeSlot       string        `json:"timeSlot"` // "HH:mm", the nominal daily slot
	Kind           ReminderKind  `json:"kind"`
}

// Validate checks the entry has all required fields with valid enum values.
func (e ScheduledNotificationEntry) Validate() error {
	if e.ScheduleID == "" {
		return fmt.Errorf("entry %d: missing scheduleId", e.NotificationID)
	}
	if e.TimeSlot == "" {
		return fmt.Errorf("entry %d: missing timeSlot", e.NotificationID)
	}
	if !e.TreatmentType.Valid() {
		return fmt.Errorf("entry %d: invalid treatmentType %q", e.NotificationID, e.TreatmentType)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("entry %d: invalid kind %q", e.NotificationID, e.Kind)
	}
	return nil
}

// PendingNotification is one item from the OS plugin's pending set: the
// notification ID plus the raw payload it was scheduled with. The plugin's
// pending set is the ground truth during reconciliation.
type PendingNotification struct {
	ID      int32  `json:"id"`
	Payload []byte `json:"payload"`
}

// TypeBreakdown is the per-treatment-type count of outstanding entries,
// used for group-summary notification content.
type TypeBreakdown struct {
	Medication int `json:"medication"`
	Fluid      int `json:"fluid"`
}

func (b TypeBreakdown) Total() int { return b.Medication + b.Fluid }
