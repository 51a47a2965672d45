package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadRoundTrip(t *testing.T) {
	p := NotificationPayload{
		UserID:        "u1",
		PetID:         "p1",
		ScheduleID:    "s1",
		TimeSlot:      "08:00",
		Kind:          KindInitial,
		TreatmentType: TreatmentFluid,
	}
	raw, err := p.Encode()
	require.NoError(t, err)

	got, err := ParsePayload(raw)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestParsePayloadRejectsPartialAndInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{oops`},
		{"missing petId", `{"userId":"u1","scheduleId":"s1","timeSlot":"08:00","kind":"initial","treatmentType":"medication"}`},
		{"bad kind", `{"userId":"u1","petId":"p1","scheduleId":"s1","timeSlot":"08:00","kind":"someday","treatmentType":"medication"}`},
		{"bad treatment type", `{"userId":"u1","petId":"p1","scheduleId":"s1","timeSlot":"08:00","kind":"initial","treatmentType":"walkies"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePayload([]byte(tt.raw))
			assert.ErrorIs(t, err, ErrUnparseablePayload)
		})
	}
}

func TestEntryValidation(t *testing.T) {
	good := ScheduledNotificationEntry{
		NotificationID: 1,
		ScheduleID:     "s1",
		TreatmentType:  TreatmentMedication,
		TimeSlot:       "08:00",
		Kind:           KindInitial,
	}
	assert.NoError(t, good.Validate())

	bad := good
	bad.Kind = "nudge"
	assert.Error(t, bad.Validate())
}
