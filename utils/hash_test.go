package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStableNotificationID(t *testing.T) {
	a := StableNotificationID("u1", "p1", "s1", "08:00", "initial")
	b := StableNotificationID("u1", "p1", "s1", "08:00", "initial")
	assert.Equal(t, a, b, "same logical reminder, same ID")
	assert.GreaterOrEqual(t, a, int32(0))

	c := StableNotificationID("u1", "p1", "s1", "08:00", "followup")
	assert.NotEqual(t, a, c)

	// Joining with a separator keeps adjacent parts from colliding.
	d := StableNotificationID("u1", "p1s1", "", "08:00", "initial")
	assert.NotEqual(t, a, d)
}
