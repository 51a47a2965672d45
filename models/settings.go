package models

// NotificationSettings are the user-level notification toggles. The
// scheduling engine consumes them but never mutates them.
type NotificationSettings struct {
	UserID        string `json:"userId" bson:"user_id"`
	Enabled       bool   `json:"enabled" bson:"enabled"`
	WeeklySummary bool   `json:"weeklySummary" bson:"weekly_summary"`
	EndOfDayTime  string `json:"endOfDayTime" bson:"end_of_day_time"` // "HH:mm"
}

// DefaultNotificationSettings is what a user gets before saving anything.
func DefaultNotificationSettings(userID string) NotificationSettings {
	return NotificationSettings{
		UserID:        userID,
		Enabled:       true,
		WeeklySummary: true,
		EndOfDayTime:  "21:00",
	}
}
