/*
Package account defines the boundary with the modular account host: the
entry point the settlement executor submits payloads through, the structured
result it returns and the single-action call envelope carried inside a
guarded payload.
*/
package account

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/guardline-io/guardline/types"
)

type (
	// Call is the single-action execution envelope: one target, an attached
	// value and the opaque input the target interprets.
	Call struct {
		_      struct{} `cbor:",toarray"`
		Target types.Bytes
		Value  uint64
		Input  types.Bytes
	}

	// Result is the structured outcome the host returns for a dispatched
	// payload: a success flag and an optional array of per-action returns.
	Result struct {
		_       struct{} `cbor:",toarray"`
		Success bool
		Returns []types.Bytes
	}

	// Host is the "execute on behalf of account" entry point. The host
	// routes the payload through the account's pre/post hooks; caller is
	// the identity the hooks see as the invoker of the guarded action.
	Host interface {
		ExecuteFromExecutor(ctx context.Context, account, caller common.Address, value uint64, payload []byte) (*Result, error)
	}
)

// NewCall wraps the input bytes into a single-action envelope for the target.
func NewCall(target common.Address, value uint64, input []byte) ([]byte, error) {
	return types.Cbor.Marshal(&Call{Target: target.Bytes(), Value: value, Input: input})
}
