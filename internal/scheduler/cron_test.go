package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandFireTimesStopsAtBacklogCap(t *testing.T) {
	schedule, err := cronParser.Parse("@every 1m")
	require.NoError(t, err)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	horizon := from.Add(time.Hour)

	out := expandFireTimes(schedule, from, horizon, 3)
	require.Len(t, out, 3)
	assert.True(t, out[0].Before(out[1]))
	assert.True(t, out[1].Before(out[2]))
}

func TestExpandFireTimesStopsAtHorizon(t *testing.T) {
	schedule, err := cronParser.Parse("@every 1h")
	require.NoError(t, err)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	horizon := from.Add(90 * time.Minute)

	out := expandFireTimes(schedule, from, horizon, 10)
	assert.Len(t, out, 1)
}

func TestExpandFireTimesReturnsNoneWhenHorizonBeforeFirstFire(t *testing.T) {
	schedule, err := cronParser.Parse("@every 1h")
	require.NoError(t, err)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	horizon := from.Add(time.Minute)

	out := expandFireTimes(schedule, from, horizon, 10)
	assert.Empty(t, out)
}
