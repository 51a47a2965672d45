package models

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrUnparseablePayload marks a pending-notification payload that could not
// be decoded into a valid NotificationPayload. Callers skip such items
// rather than guessing at their contents.
var ErrUnparseablePayload = errors.New("unparseable notification payload")

var payloadValidate = validator.New()

// NotificationPayload is the machine-readable data attached to every
// scheduled notification. It is never shown to the user; it exists for
// tap-handling (deep links) and for reconciliation, which rebuilds the
// index from these payloads after corruption.
type NotificationPayload struct {
	UserID        string        `json:"userId" validate:"required"`
	PetID         string        `json:"petId" validate:"required"`
	ScheduleID    string        `json:"scheduleId" validate:"required"`
	TimeSlot      string        `json:"timeSlot" validate:"required"`
	Kind          ReminderKind  `json:"kind" validate:"required,oneof=initial followup snooze"`
	TreatmentType TreatmentType `json:"treatmentType" validate:"required,oneof=medication fluid"`
}

// Encode serializes the payload for handing to the notification plugin.
func (p NotificationPayload) Encode() ([]byte, error) {
	if err := payloadValidate.Struct(p); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return json.Marshal(p)
}

// ParsePayload decodes and validates a raw payload. Invalid or partial
// payloads come back as ErrUnparseablePayload wraps, never as half-filled
// records.
func ParsePayload(raw []byte) (NotificationPayload, error) {
	var p NotificationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return NotificationPayload{}, fmt.Errorf("%w: %v", ErrUnparseablePayload, err)
	}
	if err := payloadValidate.Struct(p); err != nil {
		return NotificationPayload{}, fmt.Errorf("%w: %v", ErrUnparseablePayload, err)
	}
	return p, nil
}

// Entry converts a parsed payload into its index entry form.
func (p NotificationPayload) Entry(id int32) ScheduledNotificationEntry {
	return ScheduledNotificationEntry{
		NotificationID: id,
		ScheduleID:     p.ScheduleID,
		TreatmentType:  p.TreatmentType,
		TimeSlot:       p.TimeSlot,
		Kind:           p.Kind,
	}
}
