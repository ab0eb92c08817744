package controlplanepb

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// jsonCodec implements encoding.Codec and registers itself under the name
// "proto", overriding grpc's built-in protobuf codec for this process.
// grpc.Server and grpc.ClientConn both select a codec by the content
// subtype negotiated on the wire, defaulting to "proto" when none is
// requested, so registering under that name is what makes
// Register/NewControlPlaneClient work without a CallContentSubtype on
// every call site.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "proto" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("controlplanepb: marshal %T: %w", v, err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("controlplanepb: unmarshal %T: %w", v, err)
	}
	return nil
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
