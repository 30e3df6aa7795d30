package cln

import "encoding/json"

// jsonCodecName is the subtype passed to grpc.CallContentSubtype so every
// RPC on the connection is marshaled as JSON instead of protobuf.
const jsonCodecName = "json"

// jsonCodec lets this package talk to Core Lightning's gRPC plugin
// without a generated protobuf client: CLN's plugin methods accept the
// same JSON shapes its JSON-RPC-over-stdio interface does, so a plain
// JSON encoding.Codec registered under the gRPC "json" content-subtype
// is sufficient to invoke them by method path by hand.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}
