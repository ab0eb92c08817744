// Package rttwire implements the diagnostic RTT probe wire format: the
// first VerificationLen bytes of a request echoed back with an 8-byte
// little-endian round-trip-nanoseconds trailer appended. The trailer is
// expressed as a gopacket decoding layer rather than hand-rolled slicing, so the fixed-length trailer framing gets
// the same DecodeFromBytes/SerializeTo idiom the rest of the stack uses for
// wire data.
package rttwire

import (
	"encoding/binary"
	"fmt"

	"github.com/gopacket/gopacket"
)

// Diagnostic defaults for the RTT probe, chosen since the wire format itself
// defines no fixed bounds: VerificationLen must fit inside any request the
// caller sends, and the request length bracket keeps probes inside one
// unfragmented UDP datagram.
const (
	VerificationLen = 8
	MinRequestLen   = VerificationLen
	MaxRequestLen   = 1472
)

// LayerTypeRTTTrailer identifies the 8-byte MAC-to-MAC round-trip trailer.
var LayerTypeRTTTrailer = gopacket.RegisterLayerType(
	2001,
	gopacket.LayerTypeMetadata{Name: "RTTTrailer", Decoder: gopacket.DecodeFunc(decodeRTTTrailer)},
)

// Trailer is the 8-byte little-endian round-trip-nanoseconds field appended
// after the echoed verification bytes in an RTT probe response.
type Trailer struct {
	gopacket.BaseLayer
	ElapsedNanos int64
}

func (t *Trailer) LayerType() gopacket.LayerType { return LayerTypeRTTTrailer }

// DecodeFromBytes reads the trailer from the tail of an RTT response, after
// the caller has already sliced off the echoed verification prefix.
func (t *Trailer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < 8 {
		return fmt.Errorf("rttwire: trailer too short: %d bytes", len(data))
	}
	t.ElapsedNanos = int64(binary.LittleEndian.Uint64(data[:8]))
	t.BaseLayer = gopacket.BaseLayer{Contents: data[:8], Payload: data[8:]}
	return nil
}

func (t *Trailer) CanDecode() gopacket.LayerClass    { return LayerTypeRTTTrailer }
func (t *Trailer) NextLayerType() gopacket.LayerType { return gopacket.LayerTypePayload }
func (t *Trailer) Payload() []byte                   { return t.BaseLayer.Payload }

// SerializeTo prepends the trailer's 8 bytes to whatever already sits in b.
// It does not write the echoed verification prefix; BuildResponse places
// that in front of the serialized trailer.
func (t *Trailer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(8)
	if err != nil {
		return fmt.Errorf("rttwire: prepend trailer: %w", err)
	}
	binary.LittleEndian.PutUint64(bytes, uint64(t.ElapsedNanos))
	return nil
}

func decodeRTTTrailer(data []byte, p gopacket.PacketBuilder) error {
	t := &Trailer{}
	if err := t.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(t)
	return p.SetApplicationLayer(t)
}

// BuildResponse assembles an RTT response: the first VerificationLen bytes
// of req echoed back, followed by the trailer encoding elapsedNanos.
func BuildResponse(req []byte, elapsedNanos int64) ([]byte, error) {
	if len(req) < VerificationLen {
		return nil, fmt.Errorf("rttwire: request too short for verification: %d bytes", len(req))
	}

	buf := gopacket.NewSerializeBuffer()
	trailer := &Trailer{ElapsedNanos: elapsedNanos}
	if err := trailer.SerializeTo(buf, gopacket.SerializeOptions{}); err != nil {
		return nil, err
	}

	resp := make([]byte, VerificationLen+len(buf.Bytes()))
	copy(resp, req[:VerificationLen])
	copy(resp[VerificationLen:], buf.Bytes())
	return resp, nil
}

// ParseResponse splits an RTT response into its echoed verification prefix
// and the decoded trailer.
func ParseResponse(resp []byte) (verification []byte, trailer Trailer, err error) {
	if len(resp) < VerificationLen+8 {
		return nil, Trailer{}, fmt.Errorf("rttwire: response too short: %d bytes", len(resp))
	}

	var t Trailer
	if err := t.DecodeFromBytes(resp[VerificationLen:], gopacket.NilDecodeFeedback); err != nil {
		return nil, Trailer{}, err
	}
	return resp[:VerificationLen], t, nil
}
