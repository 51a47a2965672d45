package scheduler

import (
	"pawmeds/models"
	"pawmeds/utils"
)

// NotificationID derives the deterministic ID for one logical reminder.
// Unique within a day/pet scope; stable across repeated scheduling calls.
func NotificationID(userID, petID, scheduleID, timeSlot string, kind models.ReminderKind) int32 {
	return utils.StableNotificationID(userID, petID, scheduleID, timeSlot, string(kind))
}
