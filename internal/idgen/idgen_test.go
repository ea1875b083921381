package idgen

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateHasPrefix(t *testing.T) {
	id := Generate("request")
	assert.True(t, strings.HasPrefix(id, "request_"))
}

func TestGenerateForTimeOrdersByTimestamp(t *testing.T) {
	earlier := time.Unix(1000, 0)
	later := time.Unix(2000, 0)

	a := GenerateForTime("scheduled_job", earlier)
	b := GenerateForTime("scheduled_job", later)

	assert.Less(t, a, b)
}

func TestShardHashIsDeterministic(t *testing.T) {
	id := "scheduled_job_01H000000000000000000000"
	assert.Equal(t, ShardHash(id), ShardHash(id))
}

func TestShardHashVariesByInput(t *testing.T) {
	assert.NotEqual(t, ShardHash("a"), ShardHash("b"))
}
