package gate

import (
	"errors"
	"fmt"
)

// SignatureLength is the length of a detached secp256k1 signature
// [R ‖ S ‖ V], always the trailing slice of a guarded payload.
const SignatureLength = 65

var ErrSignatureTooShort = errors.New("payload shorter than signature length")

// Envelope is a guarded payload split into the actual action bytes and the
// detached signature that was appended to them.
type Envelope struct {
	Payload   []byte
	Signature []byte
}

// ParseEnvelope splits buf into the actual payload and the trailing
// signature. This is the only place where the signature suffix convention is
// decoded, call sites never slice the buffer themselves.
func ParseEnvelope(buf []byte) (*Envelope, error) {
	if len(buf) < SignatureLength {
		return nil, fmt.Errorf("%w: got %d bytes, need at least %d", ErrSignatureTooShort, len(buf), SignatureLength)
	}
	split := len(buf) - SignatureLength
	return &Envelope{
		Payload:   buf[:split],
		Signature: buf[split:],
	}, nil
}

// Seal appends the detached signature to the payload, producing the byte
// string a guarded entry point expects.
func Seal(payload, signature []byte) ([]byte, error) {
	if len(signature) != SignatureLength {
		return nil, fmt.Errorf("invalid signature length: got %d bytes, expected %d", len(signature), SignatureLength)
	}
	buf := make([]byte, 0, len(payload)+SignatureLength)
	buf = append(buf, payload...)
	buf = append(buf, signature...)
	return buf, nil
}
