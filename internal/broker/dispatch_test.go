package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntervalLiteralFormatsMilliseconds(t *testing.T) {
	assert.Equal(t, "3000 milliseconds", intervalLiteral(3*time.Second))
	assert.Equal(t, "500 milliseconds", intervalLiteral(500*time.Millisecond))
}

func TestUrlPathExtractsPathAndQuery(t *testing.T) {
	assert.Equal(t, "/webhooks/fire", urlPath("https://example.com/webhooks/fire"))
	assert.Equal(t, "/webhooks/fire?id=1", urlPath("https://example.com/webhooks/fire?id=1"))
}

func TestUrlPathFallsBackOnUnparseableURL(t *testing.T) {
	raw := "://not-a-url"
	assert.Equal(t, raw, urlPath(raw))
}
