package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyRing(t *testing.T) (*KeyRing, int32) {
	t.Helper()
	var key [32]byte
	copy(key[:], []byte("01234567890123456789012345678901"))
	ring, err := NewKeyRing([]MasterKey{{ID: 1, Key: key}})
	require.NoError(t, err)
	return ring, 1
}

func TestSealOpenRoundTrip(t *testing.T) {
	ring, keyID := testKeyRing(t)

	row, err := ring.Seal(keyID, 1, []byte("tenant-webhook-secret"))
	require.NoError(t, err)
	assert.Equal(t, "AES-256-GCM", row.Algorithm)
	assert.NotEmpty(t, row.EncryptedData)
	assert.NotEmpty(t, row.EncryptedDEK)

	plaintext, err := ring.Open(row)
	require.NoError(t, err)
	assert.Equal(t, "tenant-webhook-secret", string(plaintext))
}

func TestOpenRejectsUnknownMasterKey(t *testing.T) {
	ring, keyID := testKeyRing(t)
	row, err := ring.Seal(keyID, 1, []byte("secret"))
	require.NoError(t, err)

	row.MasterKeyID = 99
	_, err = ring.Open(row)
	assert.Error(t, err)
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	ring, keyID := testKeyRing(t)
	row, err := ring.Seal(keyID, 1, []byte("secret"))
	require.NoError(t, err)

	row.EncryptedData[0] ^= 0xFF
	_, err = ring.Open(row)
	assert.Error(t, err)
}

func TestNewKeyRingRequiresAtLeastOneKey(t *testing.T) {
	_, err := NewKeyRing(nil)
	assert.Error(t, err)
}
