package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFormatHeadersRoundTrip(t *testing.T) {
	raw := "Content-Type: application/json\nX-Custom: value"
	headers := ParseHeaders(raw)
	assert.Equal(t, "application/json", headers["Content-Type"])
	assert.Equal(t, "value", headers["X-Custom"])

	formatted := FormatHeaders(headers)
	assert.Equal(t, "Content-Type: application/json\nX-Custom: value", formatted)
}

func TestParseHeadersSkipsBlankLines(t *testing.T) {
	headers := ParseHeaders("Content-Type: text/plain\n\n\nX-Foo: bar\n")
	assert.Len(t, headers, 2)
}

func TestStripRocktickHeadersIsCaseInsensitive(t *testing.T) {
	headers := map[string]string{
		"Rocktick-Job-Id":    "abc",
		"rocktick-signature": "xyz",
		"Content-Type":       "application/json",
	}
	stripped := StripRocktickHeaders(headers)
	assert.Len(t, stripped, 1)
	assert.Equal(t, "application/json", stripped["Content-Type"])
}

func TestFormatHeadersIsSortedForDeterminism(t *testing.T) {
	headers := map[string]string{"Zeta": "1", "Alpha": "2"}
	assert.Equal(t, "Alpha: 2\nZeta: 1", FormatHeaders(headers))
}
