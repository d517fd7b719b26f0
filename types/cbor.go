package types

import (
	"github.com/fxamacker/cbor/v2"
)

// Cbor is the encoder used for every value that is persisted, hashed or put on
// the wire. Core deterministic encoding so that two encodings of the same
// value are always byte-equal.
var Cbor = cborCodec{}

type cborCodec struct{}

var encMode, _ = cbor.CoreDetEncOptions().EncMode()

func (cborCodec) Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func (cborCodec) Unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}
