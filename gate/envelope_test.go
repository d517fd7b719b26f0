package gate

import (
	"testing"

	"github.com/stretchr/testify/require"

	test "github.com/guardline-io/guardline/internal/testutils"
)

func TestParseEnvelope_TooShort(t *testing.T) {
	_, err := ParseEnvelope(nil)
	require.ErrorIs(t, err, ErrSignatureTooShort)

	_, err = ParseEnvelope(test.RandomBytes(t, SignatureLength-1))
	require.ErrorIs(t, err, ErrSignatureTooShort)
}

func TestParseEnvelope_SignatureOnly(t *testing.T) {
	sig := test.RandomBytes(t, SignatureLength)
	env, err := ParseEnvelope(sig)
	require.NoError(t, err)
	require.Empty(t, env.Payload)
	require.Equal(t, sig, env.Signature)
}

func TestParseEnvelope_SplitsTrailingSignature(t *testing.T) {
	payload := test.RandomBytes(t, 40)
	sig := test.RandomBytes(t, SignatureLength)
	buf, err := Seal(payload, sig)
	require.NoError(t, err)

	env, err := ParseEnvelope(buf)
	require.NoError(t, err)
	require.Equal(t, payload, env.Payload)
	require.Equal(t, sig, env.Signature)
}

func TestSeal_RejectsWrongSignatureLength(t *testing.T) {
	_, err := Seal(test.RandomBytes(t, 10), test.RandomBytes(t, SignatureLength-1))
	require.ErrorContains(t, err, "invalid signature length")

	_, err = Seal(test.RandomBytes(t, 10), test.RandomBytes(t, SignatureLength+1))
	require.ErrorContains(t, err, "invalid signature length")
}
