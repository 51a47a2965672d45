package notification

import (
	"fmt"

	"pawmeds/models"
)

// Notification text is fixed per (treatment type, kind). Titles and bodies
// deliberately carry no medication names, dosages or volumes: the content a
// lock screen shows must stay generic, and anything the app needs for
// deep-linking rides in the hidden payload instead.

// Content returns the user-visible title and body for a reminder.
func Content(treatment models.TreatmentType, kind models.ReminderKind) (title, body string) {
	switch kind {
	case models.KindFollowup:
		return "Treatment check-in", "Your pet may still need a scheduled treatment. Tap to review."
	case models.KindSnooze:
		return "Snoozed reminder", "A treatment reminder you snoozed is due again."
	}
	switch treatment {
	case models.TreatmentFluid:
		return "Fluid therapy reminder", "It's time for your pet's scheduled fluids."
	default:
		return "Medication reminder", "It's time for your pet's scheduled medication."
	}
}

// SummaryContent builds the group-summary text from a per-type breakdown.
func SummaryContent(breakdown models.TypeBreakdown) Summary {
	return Summary{
		Title: "Upcoming treatments",
		Body: fmt.Sprintf("%d medication and %d fluid reminders scheduled today.",
			breakdown.Medication, breakdown.Fluid),
	}
}
