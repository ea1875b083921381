// Package dronerpc defines the three-method drone-broker RPC surface
// and its transport. No protoc toolchain runs in this build, so wire
// messages are hand-written plain Go structs rather than generated
// pb.go types; see codec.go for how they're framed over
// google.golang.org/grpc without protobuf encoding.
package dronerpc

// DroneCheckinRequest is the unary request for DroneCheckin.
type DroneCheckinRequest struct {
	DroneID     string `json:"drone_id"`
	DroneIP     string `json:"drone_ip"`
	DroneRegion string `json:"drone_region"`
	DroneTimeMs int64  `json:"drone_time_ms"`
}

// DroneCheckinResponse tells the drone when to check in again.
type DroneCheckinResponse struct {
	CheckinAgainAtMs int64 `json:"checkin_again_at_ms"`
}

// GetJobsRequest opens the server-streaming job feed for a region.
type GetJobsRequest struct {
	Region string `json:"region"`
}

// JobSpec is one dispatched job, streamed from broker to drone.
type JobSpec struct {
	JobID            string            `json:"job_id"`
	LockNonce        int64             `json:"lock_nonce"`
	ScheduledAt      int64             `json:"scheduled_at_ms"`
	Method           string            `json:"method"`
	URL              string            `json:"url"`
	Headers          map[string]string `json:"headers"`
	Body             []byte            `json:"body,omitempty"`
	TimeoutMs        int32             `json:"timeout_ms"`
	MaxResponseBytes int64             `json:"max_response_bytes,omitempty"`
}

// ResponseFrame is the embedded HTTP response a drone reports, if any.
type ResponseFrame struct {
	Status  int32             `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    []byte            `json:"body,omitempty"`
}

// JobExecutionFrame is one outcome reported by a drone over the
// RecordExecution stream.
type JobExecutionFrame struct {
	JobID         string            `json:"job_id"`
	LockNonce     int64             `json:"lock_nonce"`
	Success       bool              `json:"success"`
	Response      *ResponseFrame    `json:"response,omitempty"`
	ResponseError *string           `json:"response_error,omitempty"`
	ReqMethod     string            `json:"req_method"`
	ReqURL        string            `json:"req_url"`
	ReqHeaders    map[string]string `json:"req_headers"`
	ReqBody       []byte            `json:"req_body,omitempty"`
	ExecutedAtMs  int64             `json:"executed_at_ms"`
}

// RecordExecutionResponse acknowledges one committed execution frame.
type RecordExecutionResponse struct {
	JobID string `json:"job_id"`
}
