package dronerpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTripsJobSpec(t *testing.T) {
	spec := JobSpec{
		JobID:     "scheduled_job_1",
		LockNonce: 1700000000,
		Method:    "POST",
		URL:       "https://example.com/fire",
		Headers:   map[string]string{"X-Foo": "bar"},
		Body:      []byte(`{"a":1}`),
		TimeoutMs: 5000,
	}

	data, err := Codec.Marshal(&spec)
	require.NoError(t, err)

	var decoded JobSpec
	require.NoError(t, Codec.Unmarshal(data, &decoded))
	assert.Equal(t, spec, decoded)
}

func TestCodecName(t *testing.T) {
	assert.Equal(t, "json", Codec.Name())
}

func TestCodecRoundTripsExecutionFrame(t *testing.T) {
	errMsg := "boom"
	frame := JobExecutionFrame{
		JobID:         "scheduled_job_2",
		LockNonce:     42,
		Success:       false,
		ResponseError: &errMsg,
		ReqMethod:     "GET",
		ReqURL:        "https://example.com",
	}

	data, err := Codec.Marshal(&frame)
	require.NoError(t, err)

	var decoded JobExecutionFrame
	require.NoError(t, Codec.Unmarshal(data, &decoded))
	require.NotNil(t, decoded.ResponseError)
	assert.Equal(t, "boom", *decoded.ResponseError)
}
