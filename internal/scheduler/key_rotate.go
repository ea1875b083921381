package scheduler

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/rocktick/rocktick/internal/models"
	"github.com/rocktick/rocktick/internal/secrets"
)

// KeyRotationScheduler re-wraps tenant signing secrets sealed under a
// retired master key onto the newest one in the ring, so old master
// keys can eventually be dropped from configuration.
type KeyRotationScheduler struct {
	KeyRing *secrets.KeyRing
}

func (k *KeyRotationScheduler) Name() string { return "key_rotation" }

func (k *KeyRotationScheduler) RunOnce(ctx context.Context, tx *gorm.DB) (bool, error) {
	maxMasterKeyID := k.KeyRing.Max()

	var row models.SigningKey
	err := tx.Raw(`
		SELECT * FROM signing_keys
		WHERE master_key_id < ?
		LIMIT 1 FOR UPDATE SKIP LOCKED
	`, maxMasterKeyID).Scan(&row).Error
	if err != nil {
		return false, fmt.Errorf("key rotation: candidate query: %w", err)
	}
	if row.ID == "" {
		return true, nil
	}

	rotated, err := k.KeyRing.Rotate(&row)
	if err != nil {
		return false, fmt.Errorf("key rotation: rotate %s: %w", row.ID, err)
	}

	return false, tx.Exec(`
		UPDATE signing_keys SET master_key_id = ?, key_version = ?, encrypted_dek = ? WHERE id = ?
	`, rotated.MasterKeyID, rotated.KeyVersion, rotated.EncryptedDEK, rotated.ID).Error
}
