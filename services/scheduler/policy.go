package scheduler

import (
	"fmt"
	"time"
)

// Classification is the scheduling decision for one reminder instant.
type Classification int

const (
	// ClassScheduled: the instant is still in the future, schedule normally.
	ClassScheduled Classification = iota
	// ClassImmediate: the instant just passed (within the grace window),
	// fire right away instead of silently dropping a reminder that was only
	// delayed by app-launch timing.
	ClassImmediate
	// ClassMissed: past the grace window; do not schedule or fire.
	ClassMissed
)

func (c Classification) String() string {
	switch c {
	case ClassScheduled:
		return "scheduled"
	case ClassImmediate:
		return "immediate"
	default:
		return "missed"
	}
}

// Classify decides how a reminder instant relates to now.
func Classify(scheduled, now time.Time, grace time.Duration) Classification {
	if scheduled.After(now) {
		return ClassScheduled
	}
	if now.Sub(scheduled) <= grace {
		return ClassImmediate
	}
	return ClassMissed
}

// SlotInstant resolves a nominal "HH:mm" daily slot to an absolute instant
// on the given day, in the day's timezone.
func SlotInstant(day time.Time, slot string) (time.Time, error) {
	parsed, err := time.Parse("15:04", slot)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time slot %q: %w", slot, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, day.Location()), nil
}

// FollowupInstant adds the follow-up offset to an initial reminder instant.
// The addition is absolute (zone-carrying), not wall-clock on a stripped
// date: an 11pm slot with a 2h offset lands at 1am the next calendar day,
// and crossing a daylight-saving transition shifts the wall clock rather
// than the elapsed duration.
func FollowupInstant(initial time.Time, offsetHours int) time.Time {
	return initial.Add(time.Duration(offsetHours) * time.Hour)
}
