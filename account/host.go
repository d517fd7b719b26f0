package account

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/guardline-io/guardline/gate"
	"github.com/guardline-io/guardline/logger"
	"github.com/guardline-io/guardline/token"
	"github.com/guardline-io/guardline/types"
)

/*
InProcessHost is the reference host: it serializes calls per process, routes
every dispatched payload through the gate's PreCheck/PostCheck hooks and
executes the effective action against the token ledger. The daemon and the
executor tests run against it; a real deployment substitutes the framework
that owns the accounts.
*/
type InProcessHost struct {
	gate   *gate.Gate
	ledger *token.Ledger
	log    *slog.Logger
}

func NewInProcessHost(g *gate.Gate, ledger *token.Ledger, log *slog.Logger) *InProcessHost {
	if log == nil {
		log = logger.NewNop()
	}
	return &InProcessHost{gate: g, ledger: ledger, log: log.With(logger.ModuleKey, "host")}
}

func (h *InProcessHost) ExecuteFromExecutor(ctx context.Context, account, caller common.Address, value uint64, payload []byte) (*Result, error) {
	decision, err := h.gate.PreCheck(account, caller, value, payload)
	if err != nil {
		return nil, fmt.Errorf("pre-execution check: %w", err)
	}

	ret, err := h.execute(account, decision.Payload)
	if err != nil {
		return nil, fmt.Errorf("executing guarded action: %w", err)
	}

	if err := h.gate.PostCheck(decision); err != nil {
		return nil, fmt.Errorf("post-execution check: %w", err)
	}
	h.log.Debug("guarded call executed",
		logger.Account(account),
		slog.String("outcome", decision.Outcome.String()),
		logger.ExecutionHash(decision.ExecutionHash))
	return &Result{Success: true, Returns: []types.Bytes{ret}}, nil
}

// execute applies the effective action. The reference host understands the
// single-action envelope with a token approve input.
func (h *InProcessHost) execute(account common.Address, payload []byte) (types.Bytes, error) {
	call := &Call{}
	if err := types.Cbor.Unmarshal(payload, call); err != nil {
		return nil, fmt.Errorf("decoding call envelope: %w", err)
	}
	attr := &token.ApproveAttributes{}
	if err := types.Cbor.Unmarshal(call.Input, attr); err != nil {
		return nil, fmt.Errorf("decoding approve input: %w", err)
	}
	h.ledger.Approve(common.BytesToAddress(call.Target), account, common.BytesToAddress(attr.Spender), attr.Amount)
	receipt, err := types.Cbor.Marshal(attr)
	if err != nil {
		return nil, fmt.Errorf("encoding approve receipt: %w", err)
	}
	return receipt, nil
}
