package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDurationDoublesPerAttempt(t *testing.T) {
	base := 2 * time.Second
	assert.Equal(t, 2*time.Second, backoffDuration(base, 0))
	assert.Equal(t, 4*time.Second, backoffDuration(base, 1))
	assert.Equal(t, 8*time.Second, backoffDuration(base, 2))
	assert.Equal(t, 16*time.Second, backoffDuration(base, 3))
}

func TestBackoffDurationClampsNegativeAttempts(t *testing.T) {
	base := time.Second
	assert.Equal(t, base, backoffDuration(base, -1))
}
