package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokensPerDayToIncrementKeepsPeriodAtLeastOneMinute(t *testing.T) {
	increment, periodDays, periodMicros := TokensPerDayToIncrement(1_000_000)
	period := time.Duration(periodDays)*24*time.Hour + time.Duration(periodMicros)*time.Microsecond
	assert.GreaterOrEqual(t, period, time.Minute)
	assert.Greater(t, increment, int32(0))
}

func TestTokensPerDayToIncrementLowRate(t *testing.T) {
	increment, periodDays, periodMicros := TokensPerDayToIncrement(1)
	assert.Equal(t, int32(1), increment)
	assert.Equal(t, int32(1), periodDays)
	assert.Equal(t, int64(0), periodMicros)
}

func TestTokensPerDayToIncrementZeroOrNegativeFallsBackToOnePerDay(t *testing.T) {
	increment, periodDays, periodMicros := TokensPerDayToIncrement(0)
	assert.Equal(t, int32(1), increment)
	assert.Equal(t, int32(1), periodDays)
	assert.Equal(t, int64(0), periodMicros)

	increment, periodDays, periodMicros = TokensPerDayToIncrement(-5)
	assert.Equal(t, int32(1), increment)
	assert.Equal(t, int32(1), periodDays)
	assert.Equal(t, int64(0), periodMicros)
}

func TestTenantPeriodCombinesDaysAndMicros(t *testing.T) {
	tenant := Tenant{PeriodDays: 2, PeriodMicros: 500_000}
	assert.Equal(t, 2*24*time.Hour+500*time.Millisecond, tenant.Period())
}

func TestScheduledJobStateInvariants(t *testing.T) {
	nonce := int64(100)
	execID := "execution_1"

	queued := ScheduledJob{}
	assert.True(t, queued.IsQueued())
	assert.False(t, queued.IsLeased())
	assert.False(t, queued.IsCompleted())

	leased := ScheduledJob{LockNonce: &nonce}
	assert.False(t, leased.IsQueued())
	assert.True(t, leased.IsLeased())
	assert.False(t, leased.IsCompleted())

	completed := ScheduledJob{ExecutionID: &execID}
	assert.False(t, completed.IsQueued())
	assert.False(t, completed.IsLeased())
	assert.True(t, completed.IsCompleted())
}
