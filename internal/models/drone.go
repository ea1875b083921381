package models

import "time"

// Drone is a region-resident worker process. Upserted on every
// DroneCheckin; CheckinBy marks when the broker should consider it
// gone if no further checkin arrives.
type Drone struct {
	ID          string    `json:"id" gorm:"type:varchar(64);primaryKey"`
	IP          string    `json:"ip" gorm:"type:varchar(64);not null"`
	Region      string    `json:"region" gorm:"type:varchar(64);not null;index:idx_drones_region"`
	LastCheckin time.Time `json:"last_checkin" gorm:"not null"`
	CheckinBy   time.Time `json:"checkin_by" gorm:"not null"`
}

func (Drone) TableName() string { return "drones" }

// CheckinGracePeriod is added to the broker's current time at checkin
// to produce CheckinBy.
const CheckinGracePeriod = 15 * time.Second

// CheckinAgainDelay is the interval the broker tells a drone to wait
// before its next checkin.
const CheckinAgainDelay = 9 * time.Second
