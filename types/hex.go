package types

import (
	"encoding/hex"
	"fmt"
)

// Bytes is a byte slice that marshals to/from 0x-prefixed hex in text based
// encodings (JSON, query parameters).
type Bytes []byte

func (b Bytes) MarshalText() ([]byte, error) {
	if len(b) == 0 {
		return nil, nil
	}
	return toHex(b), nil
}

func (b *Bytes) UnmarshalText(src []byte) error {
	res, err := fromHex(src)
	if err != nil {
		return err
	}
	*b = res
	return nil
}

func toHex(value []byte) []byte {
	if len(value) == 0 {
		return nil
	}
	dst := make([]byte, len(value)*2+2)
	copy(dst, "0x")
	hex.Encode(dst[2:], value)
	return dst
}

func fromHex(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	if len(src) < 2 || src[0] != '0' || (src[1] != 'x' && src[1] != 'X') {
		return nil, fmt.Errorf("hex string without 0x prefix")
	}
	dst := make([]byte, (len(src)-2)/2)
	if _, err := hex.Decode(dst, src[2:]); err != nil {
		return nil, err
	}
	return dst, nil
}
