package gate

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

/*
ExecutionDigest computes the message the trusted signer signs for a guarded
call: keccak256(caller ‖ value ‖ payload), value encoded as 8 bytes big
endian. The caller is the identity that invokes the guarded entry point, so
for a call relayed through the settlement executor it is the executor's
address, not the end user's.
*/
func ExecutionDigest(caller common.Address, value uint64, payload []byte) []byte {
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], value)
	return crypto.Keccak256(caller.Bytes(), v[:], payload)
}

// RecoverSigner returns the address that produced the 65 byte signature over
// the 32 byte digest.
func RecoverSigner(digest, signature []byte) (common.Address, error) {
	pubKey, err := crypto.SigToPub(digest, signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("recovering public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}
