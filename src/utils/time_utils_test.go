package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResetTime(t *testing.T) {
	ts := time.Date(2026, 4, 1, 13, 37, 42, 123456789, time.UTC)

	assert.Equal(t, time.Date(2026, 4, 1, 13, 37, 0, 0, time.UTC), ResetTime(ts, "minute"))
	assert.Equal(t, time.Date(2026, 4, 1, 13, 0, 0, 0, time.UTC), ResetTime(ts, "hour"))
	assert.Equal(t, ts, ResetTime(ts, "day"))
}
