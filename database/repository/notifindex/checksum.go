package notifindex

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"

	"pawmeds/models"
)

// indexRecord is the persisted form: entries plus an integrity checksum
// written together in one value, so a reader never sees one without the
// other.
type indexRecord struct {
	Entries  []models.ScheduledNotificationEntry `json:"entries"`
	Checksum string                              `json:"checksum"`
}

// checksumOf computes an order-independent FNV-1a hash over the entries.
// Entries are sorted by notification ID before hashing so that two records
// with the same content always produce the same checksum regardless of
// insertion order.
func checksumOf(entries []models.ScheduledNotificationEntry) string {
	sorted := make([]models.ScheduledNotificationEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].NotificationID < sorted[j].NotificationID
	})

	h := fnv.New64a()
	for _, e := range sorted {
		b, err := json.Marshal(e)
		if err != nil {
			// Entries are plain value structs; marshal cannot fail for them.
			continue
		}
		h.Write(b)
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// valid reports whether the stored checksum matches the stored entries.
func (r indexRecord) valid() bool {
	return r.Checksum == checksumOf(r.Entries)
}
