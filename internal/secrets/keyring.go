// Package secrets implements envelope-encrypted tenant signing
// secrets: a per-secret DEK wrapped under a process master key, and
// the secret itself sealed under that DEK, both AES-256-GCM.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rocktick/rocktick/internal/models"
)

// MasterKey is a root AES-256 key identified by a small integer id,
// configured at process boot and never persisted in the relational
// store.
type MasterKey struct {
	ID  int32
	Key [32]byte
}

// KeyRing holds every currently-valid master key so signing-key rows
// encrypted under a retired master key can still be opened during a
// rotation window. Immutable after construction, safe for concurrent
// read-only use.
type KeyRing struct {
	keys map[int32][32]byte
}

// NewKeyRing builds a ring from the configured master keys. Returns an
// error if fewer than one key is supplied, since a keyring with no keys
// can never open anything.
func NewKeyRing(keys []MasterKey) (*KeyRing, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("secrets: at least one master key is required")
	}
	ring := &KeyRing{keys: make(map[int32][32]byte, len(keys))}
	for _, k := range keys {
		ring.keys[k.ID] = k.Key
	}
	return ring, nil
}

// LoadKeyRingFromEnv parses a "id:hexkey,id:hexkey,..." list (the
// SECRETS_MASTER_KEYS format) into a KeyRing.
func LoadKeyRingFromEnv(raw string) (*KeyRing, error) {
	var keys []MasterKey
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("secrets: malformed master key entry %q", entry)
		}
		id, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("secrets: malformed master key id %q: %w", parts[0], err)
		}
		decoded, err := hex.DecodeString(parts[1])
		if err != nil {
			return nil, fmt.Errorf("secrets: malformed master key hex for id %d: %w", id, err)
		}
		if len(decoded) != 32 {
			return nil, fmt.Errorf("secrets: master key %d must decode to 32 bytes, got %d", id, len(decoded))
		}
		var key [32]byte
		copy(key[:], decoded)
		keys = append(keys, MasterKey{ID: int32(id), Key: key})
	}
	return NewKeyRing(keys)
}

// Seal encrypts secret under a fresh DEK, itself wrapped under master
// key masterKeyID, producing a row ready to persist.
func (r *KeyRing) Seal(masterKeyID int32, keyVersion int32, secret []byte) (*models.SigningKey, error) {
	masterKey, ok := r.keys[masterKeyID]
	if !ok {
		return nil, fmt.Errorf("secrets: unknown master key id %d", masterKeyID)
	}

	var dek [32]byte
	if _, err := io.ReadFull(rand.Reader, dek[:]); err != nil {
		return nil, fmt.Errorf("secrets: generate dek: %w", err)
	}

	encryptedDEK, dekNonce, err := gcmSeal(masterKey[:], dek[:])
	if err != nil {
		return nil, fmt.Errorf("secrets: wrap dek: %w", err)
	}

	encryptedData, dataNonce, err := gcmSeal(dek[:], secret)
	if err != nil {
		return nil, fmt.Errorf("secrets: encrypt secret: %w", err)
	}

	return &models.SigningKey{
		MasterKeyID:   masterKeyID,
		KeyVersion:    keyVersion,
		EncryptedDEK:  encryptedDEK,
		EncryptedData: encryptedData,
		DEKNonce:      dekNonce,
		DataNonce:     dataNonce,
		Algorithm:     "AES-256-GCM",
	}, nil
}

// Open unwraps row's DEK with the matching master key, then decrypts
// the signing secret. A decryption failure here is never fatal to
// dispatch: the caller logs and proceeds without a signature.
func (r *KeyRing) Open(row *models.SigningKey) ([]byte, error) {
	masterKey, ok := r.keys[row.MasterKeyID]
	if !ok {
		return nil, fmt.Errorf("secrets: unknown master key id %d", row.MasterKeyID)
	}

	dek, err := gcmOpen(masterKey[:], row.DEKNonce, row.EncryptedDEK)
	if err != nil {
		return nil, fmt.Errorf("secrets: unwrap dek: %w", err)
	}

	secret, err := gcmOpen(dek, row.DataNonce, row.EncryptedData)
	if err != nil {
		return nil, fmt.Errorf("secrets: decrypt secret: %w", err)
	}
	return secret, nil
}

// Max returns the highest master key id in the ring: the key new and
// rotated secrets should be wrapped under.
func (r *KeyRing) Max() int32 {
	var max int32
	first := true
	for id := range r.keys {
		if first || id > max {
			max = id
			first = false
		}
	}
	return max
}

// Rotate re-wraps row's DEK under the ring's current max master key,
// leaving the encrypted secret data itself untouched, and bumps
// KeyVersion: unwrap the DEK with the secret's existing (possibly
// retired) master key, re-seal it under the newest key, keep the DEK
// nonce and the encrypted payload unchanged.
func (r *KeyRing) Rotate(row *models.SigningKey) (*models.SigningKey, error) {
	oldMasterKey, ok := r.keys[row.MasterKeyID]
	if !ok {
		return nil, fmt.Errorf("secrets: unknown master key id %d", row.MasterKeyID)
	}
	newMasterKeyID := r.Max()
	newMasterKey, ok := r.keys[newMasterKeyID]
	if !ok {
		return nil, fmt.Errorf("secrets: unknown master key id %d", newMasterKeyID)
	}

	dek, err := gcmOpen(oldMasterKey[:], row.DEKNonce, row.EncryptedDEK)
	if err != nil {
		return nil, fmt.Errorf("secrets: unwrap dek for rotation: %w", err)
	}

	reencryptedDEK, err := gcmSealWithNonce(newMasterKey[:], row.DEKNonce, dek)
	if err != nil {
		return nil, fmt.Errorf("secrets: rewrap dek: %w", err)
	}

	rotated := *row
	rotated.MasterKeyID = newMasterKeyID
	rotated.KeyVersion = row.KeyVersion + 1
	rotated.EncryptedDEK = reencryptedDEK
	return &rotated, nil
}

func gcmSeal(key, plaintext []byte) (ciphertext, nonce []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, err
	}
	ciphertext = gcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// gcmSealWithNonce seals plaintext under key using a caller-supplied
// nonce rather than a fresh random one. Used only by Rotate, which
// reuses the DEK's existing nonce when re-wrapping it under a new
// master key (the DEK's bytes don't change, only the key wrapping
// them does, so nonce reuse here doesn't create a key+nonce collision
// under the same key).
func gcmSealWithNonce(key, nonce, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("secrets: nonce length %d, want %d", len(nonce), gcm.NonceSize())
	}
	return gcm.Seal(nil, nonce, plaintext, nil), nil
}

func gcmOpen(key, nonce, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, nonce, ciphertext, nil)
}
