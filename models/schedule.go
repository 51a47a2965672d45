package models

import "time"

// Frequency is how often a treatment schedule repeats.
type Frequency string

const (
	FrequencyOnceDaily  Frequency = "onceDaily"
	FrequencyTwiceDaily Frequency = "twiceDaily"
	FrequencyCustom     Frequency = "custom"
)

// TreatmentSchedule is an active treatment plan for a pet, read-only from
// the scheduling engine's perspective. MedicationName, Dosage and VolumeML
// exist for the UI and records screens only — they must never leak into
// notification titles or bodies.
type TreatmentSchedule struct {
	ID                  string        `json:"id" bson:"id"`
	UserID              string        `json:"userId" bson:"user_id"`
	PetID               string        `json:"petId" bson:"pet_id"`
	TreatmentType       TreatmentType `json:"treatmentType" bson:"treatment_type"`
	Frequency           Frequency     `json:"frequency" bson:"frequency"`
	TimeSlots           []string      `json:"timeSlots" bson:"time_slots"` // "HH:mm" per reminder
	Active              bool          `json:"active" bson:"active"`
	RemindersEnabled    bool          `json:"remindersEnabled" bson:"reminders_enabled"`
	FollowupOffsetHours int           `json:"followupOffsetHours" bson:"followup_offset_hours"`

	MedicationName string    `json:"medicationName,omitempty" bson:"medication_name,omitempty"`
	Dosage         string    `json:"dosage,omitempty" bson:"dosage,omitempty"`
	VolumeML       int       `json:"volumeMl,omitempty" bson:"volume_ml,omitempty"`
	CreatedAt      time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" bson:"updated_at"`
}

// WantsRemindersToday reports whether this schedule should produce
// notifications today.
func (s TreatmentSchedule) WantsRemindersToday() bool {
	return s.Active && s.RemindersEnabled && len(s.TimeSlots) > 0
}
