package models

import "time"

// SigningKey is an envelope-encrypted tenant signing secret: a
// per-secret DEK wrapped under a process MasterKey, and the plaintext
// secret encrypted under that DEK. Two independent AES-256-GCM nonces
// are stored since the DEK and the secret are separate ciphertexts.
type SigningKey struct {
	ID            string     `json:"id" gorm:"type:varchar(40);primaryKey"`
	TenantID      string     `json:"tenant_id" gorm:"type:varchar(40);not null;index:idx_signingkeys_tenant"`
	MasterKeyID   int32      `json:"master_key_id" gorm:"not null"`
	KeyVersion    int32      `json:"key_version" gorm:"not null"`
	EncryptedDEK  []byte     `json:"encrypted_dek" gorm:"type:bytea;not null"`
	EncryptedData []byte     `json:"encrypted_data" gorm:"type:bytea;not null"`
	DEKNonce      []byte     `json:"dek_nonce" gorm:"type:bytea;not null"`
	DataNonce     []byte     `json:"data_nonce" gorm:"type:bytea;not null"`
	Algorithm     string     `json:"algorithm" gorm:"type:varchar(32);not null;default:'AES-256-GCM'"`
	CreatedAt     time.Time  `json:"created_at" gorm:"autoCreateTime"`
	RetiredAt     *time.Time `json:"retired_at,omitempty"`
}

func (SigningKey) TableName() string { return "signing_keys" }
