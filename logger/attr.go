package logger

import (
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
)

/*
Log attribute key values. Generally shouldn't be used directly, use
appropriate "attribute constructor function" instead.

Only define names here if they are common for multiple modules, module
specific names should be defined in the module.
*/
const (
	ModuleKey  = "module"
	ErrorKey   = "err"
	AccountKey = "account"
	NonceKey   = "nonce"
	HashKey    = "execution_hash"
	DataKey    = "data"
)

/*
Error adds error to the log

	if err:= f(); err != nil {
		log.Error("calling f", logger.Error(err))
	}
*/
func Error(err error) slog.Attr {
	return slog.Any(ErrorKey, err)
}

// Account adds the protected account address field.
func Account(addr common.Address) slog.Attr {
	return slog.String(AccountKey, addr.Hex())
}

// Nonce adds the settlement nonce field.
func Nonce(n uint64) slog.Attr {
	return slog.Uint64(NonceKey, n)
}

// ExecutionHash is used to log the digest the gate verified (or would have
// verified, on the bypass path).
func ExecutionHash(h []byte) slog.Attr {
	return slog.String(HashKey, fmt.Sprintf("%X", h))
}

/*
Data adds additional data field to the message.

Use of anonymous types is discouraged.
*/
func Data(d any) slog.Attr {
	return slog.Any(DataKey, d)
}
