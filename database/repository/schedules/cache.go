// Package schedules exposes active treatment schedules to the scheduling
// engine. The engine only ever reads the in-memory cache (offline-first);
// the mongo source exists for the app runner to warm that cache from.
package schedules

import (
	"sync"

	"pawmeds/models"
)

// Cache is the offline-first snapshot of active treatment schedules and
// notification settings. A pet with no snapshot yet is distinguishable
// from a pet with zero schedules: scheduling passes report "cache empty"
// for the former instead of silently doing nothing.
type Cache struct {
	mu       sync.RWMutex
	byPet    map[string][]models.TreatmentSchedule
	settings map[string]models.NotificationSettings
}

func NewCache() *Cache {
	return &Cache{
		byPet:    make(map[string][]models.TreatmentSchedule),
		settings: make(map[string]models.NotificationSettings),
	}
}

// ReplaceForPet swaps in a fresh snapshot for one pet and marks it warmed.
func (c *Cache) ReplaceForPet(petID string, scheds []models.TreatmentSchedule) {
	cp := make([]models.TreatmentSchedule, len(scheds))
	copy(cp, scheds)
	c.mu.Lock()
	c.byPet[petID] = cp
	c.mu.Unlock()
}

// ActiveForPet returns the cached active schedules for a pet. warmed is
// false when no snapshot has ever been loaded for the pet.
func (c *Cache) ActiveForPet(petID string) (scheds []models.TreatmentSchedule, warmed bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	all, ok := c.byPet[petID]
	if !ok {
		return nil, false
	}
	for _, s := range all {
		if s.Active {
			scheds = append(scheds, s)
		}
	}
	return scheds, true
}

// ScheduleByID looks up one cached schedule across all pets.
func (c *Cache) ScheduleByID(scheduleID string) (models.TreatmentSchedule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, scheds := range c.byPet {
		for _, s := range scheds {
			if s.ID == scheduleID {
				return s, true
			}
		}
	}
	return models.TreatmentSchedule{}, false
}

// PutSettings stores a user's notification settings snapshot.
func (c *Cache) PutSettings(s models.NotificationSettings) {
	c.mu.Lock()
	c.settings[s.UserID] = s
	c.mu.Unlock()
}

// SettingsFor returns the cached settings for a user, falling back to the
// defaults when nothing has been loaded.
func (c *Cache) SettingsFor(userID string) models.NotificationSettings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.settings[userID]; ok {
		return s
	}
	return models.DefaultNotificationSettings(userID)
}
