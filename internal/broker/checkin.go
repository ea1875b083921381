package broker

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/rocktick/rocktick/internal/models"
)

// Checkin upserts the calling drone's liveness row and tells it when to
// check in again.
func Checkin(ctx context.Context, db *gorm.DB, droneID, ip, region string, droneTimeMs int64) (int64, error) {
	now := time.Now().UTC()
	checkinBy := now.Add(models.CheckinGracePeriod)

	err := db.WithContext(ctx).Exec(`
		INSERT INTO drones (id, ip, region, last_checkin, checkin_by)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET ip = EXCLUDED.ip, region = EXCLUDED.region,
			last_checkin = EXCLUDED.last_checkin, checkin_by = EXCLUDED.checkin_by
	`, droneID, ip, region, now, checkinBy).Error
	if err != nil {
		return 0, fmt.Errorf("checkin: upsert drone: %w", err)
	}

	return droneTimeMs + models.CheckinAgainDelay.Milliseconds(), nil
}
