package dronerpc

import "encoding/json"

// jsonCodec lets the drone-broker RPC surface run over real
// google.golang.org/grpc transport (framing, flow control, bidi and
// server streaming) without a protoc code-generation step. Rocktick's
// messages are plain Go structs marshaled as JSON rather than
// protobuf wire format; grpc.ForceServerCodec / grpc.ForceCodec is the
// standard extension point the ecosystem uses for this (the same
// mechanism behind e.g. grpc-gateway's encoding bridges).
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Codec is the shared codec instance wired into both the broker's
// grpc.Server and the drone's grpc client connection.
var Codec = jsonCodec{}
