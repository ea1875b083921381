package models

import "time"

// Tenant is the unit of isolation and admission-control rate limiting.
// Tokens are debited at dispatch time and refunded only by the lease
// reaper, never on execution failure (see internal/broker/reaper.go;
// periodic refill is in internal/scheduler/tokens.go).
type Tenant struct {
	ID     string `json:"id" gorm:"type:varchar(40);primaryKey"`
	Name   string `json:"name" gorm:"type:varchar(255);not null"`
	Region string `json:"region" gorm:"type:varchar(64);not null;index:idx_tenants_region"`

	Tokens        int32     `json:"tokens" gorm:"not null;default:0"`
	MaxTokens     int32     `json:"max_tokens" gorm:"not null"`
	Increment     int32     `json:"increment" gorm:"not null"`
	PeriodDays    int32     `json:"period_days" gorm:"not null;default:0"`
	PeriodMicros  int64     `json:"period_micros" gorm:"not null;default:0"`
	NextIncrement time.Time `json:"next_increment" gorm:"not null;index:idx_tenants_next_increment"`

	MaxTimeoutMs     int32 `json:"max_timeout_ms" gorm:"not null;default:60000"`
	MaxRetries       int32 `json:"max_retries" gorm:"not null;default:5"`
	MaxResponseBytes int64 `json:"max_response_bytes" gorm:"not null;default:1048576"`
	MaxRequestBytes  int64 `json:"max_request_bytes" gorm:"not null;default:1048576"`
	RetainForDays    int32 `json:"retain_for_days" gorm:"not null;default:30"`
	MaxDelayDays     int32 `json:"max_delay_days" gorm:"not null;default:365"`
	MaxCronJobs      int32 `json:"max_cron_jobs" gorm:"not null;default:50"`

	CurrentSigningKeyID *string `json:"current_signing_key_id,omitempty" gorm:"type:varchar(40);index"`
	NextSigningKeyID    *string `json:"next_signing_key_id,omitempty" gorm:"type:varchar(40)"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Tenant) TableName() string { return "tenants" }

// Period returns the refill cadence as a time.Duration, combining the
// day and microsecond components the way tenants.period is stored
// (mirrors chrono::TimeDelta::days + microseconds in the source).
func (t Tenant) Period() time.Duration {
	return time.Duration(t.PeriodDays)*24*time.Hour + time.Duration(t.PeriodMicros)*time.Microsecond
}

// TokensPerDayToIncrement picks the smallest integer increment that keeps
// the refill period at or above one minute, so refill scheduling frequency
// stays bounded regardless of how generous tokensPerDay is.
func TokensPerDayToIncrement(tokensPerDay int32) (increment int32, periodDays int32, periodMicros int64) {
	if tokensPerDay <= 0 {
		return 1, 1, 0
	}
	const minPeriod = time.Minute
	const day = 24 * time.Hour
	perDayDuration := day / time.Duration(tokensPerDay)
	inc := int32(1)
	for perDayDuration*time.Duration(inc) < minPeriod {
		inc++
	}
	period := perDayDuration * time.Duration(inc)
	return inc, int32(period / day), int64((period % day) / time.Microsecond)
}
