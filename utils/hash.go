package utils

import (
	"hash/fnv"
	"strings"
)

// StableNotificationID hashes the identifying parts of a reminder into a
// deterministic int32. The same logical reminder always maps to the same
// ID, which is what makes re-scheduling idempotent: repeated calls replace
// rather than duplicate. The sign bit is masked off because notification
// IDs must be non-negative.
func StableNotificationID(parts ...string) int32 {
	h := fnv.New32a()
	h.Write([]byte(strings.Join(parts, "|")))
	return int32(h.Sum32() & 0x7fffffff)
}
