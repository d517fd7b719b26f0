package sig

import (
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

// CreateSigner generates a fresh secp256k1 key and returns it together with
// the address the gate recovers for signatures made with it.
func CreateSigner(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey)
}

// Sign signs the 32 byte digest, returning the 65 byte [R ‖ S ‖ V] signature
// the gate expects as the trailing payload slice.
func Sign(t *testing.T, key *ecdsa.PrivateKey, digest []byte) []byte {
	t.Helper()
	sig, err := crypto.Sign(digest, key)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	return sig
}
