// Package idgen generates ULID-based entity ids and the
// non-cryptographic sharding hash derived from them.
package idgen

import (
	"crypto/rand"
	"hash/maphash"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
	seed    = maphash.MakeSeed()
)

// Generate returns a monotonically increasing id for "now", prefixed
// with the entity kind (e.g. "request", "workflow", "scheduled_job").
func Generate(prefix string) string {
	mu.Lock()
	defer mu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return prefix + "_" + id.String()
}

// GenerateForTime returns an id whose embedded timestamp is t rather
// than now, so ordering by id approximates ordering by fire time even
// when the row is inserted well before or after t (cron expansion,
// workflow retry scheduling).
func GenerateForTime(prefix string, t time.Time) string {
	mu.Lock()
	defer mu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(t), entropy)
	return prefix + "_" + id.String()
}

// ShardHash truncates a 64-bit string hash to its low 32 bits, used to
// bucket scheduled_jobs rows for partitioning/sharding. Not
// cryptographic; matches the original's DefaultHasher role.
func ShardHash(id string) int32 {
	var h maphash.Hash
	h.SetSeed(seed)
	_, _ = h.WriteString(id)
	full := h.Sum64()
	return int32(full & 0xFFFFFFFF)
}
