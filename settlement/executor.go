/*
Package settlement implements the nonce-ordered settlement executor: it
validates a settlement request, advances the account's strictly monotonic
nonce and dispatches exactly one guarded approve action through the protected
account so that the authorization gate evaluates it. The executor never moves
funds itself; an independently authorized finalizer later consumes the
granted allowance.
*/
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/guardline-io/guardline/account"
	"github.com/guardline-io/guardline/event"
	"github.com/guardline-io/guardline/gate"
	"github.com/guardline-io/guardline/keyvaluedb"
	"github.com/guardline-io/guardline/liveness"
	"github.com/guardline-io/guardline/logger"
	"github.com/guardline-io/guardline/token"
	"github.com/guardline-io/guardline/types"
)

var (
	ErrInvalidAmount      = errors.New("settlement amount must be greater than zero")
	ErrInvalidToken       = errors.New("token address must not be zero")
	ErrInvalidTarget      = errors.New("settlement target must not be zero")
	ErrSignerOffline      = errors.New("trusted signer is offline, settlement not permitted")
	ErrNotInitialized     = errors.New("executor not installed for account")
	ErrAlreadyInitialized = errors.New("executor already installed for account")
	ErrInvalidNonce       = errors.New("nonce mismatch")
	ErrApprovalFailed     = errors.New("guarded approval dispatch failed")
)

type (
	// Request carries the transient parameters of one settlement. Caller is
	// the submitting party, recorded in the settlement notification; the
	// gate sees the executor itself as the caller of the guarded action.
	Request struct {
		Account          common.Address
		Token            common.Address
		Amount           uint64
		SettlementTarget common.Address
		OpaqueData       types.Bytes
		Nonce            uint64
		Signature        types.Bytes
		Caller           common.Address
	}

	Executor struct {
		identity common.Address
		oracle   liveness.Oracle
		host     account.Host
		store    keyvaluedb.KeyValueDB
		events   event.Handler
		log      *slog.Logger

		// one settlement at a time; the nonce advance and the dispatch it
		// precedes form a single atomic unit under this lock
		mu sync.Mutex
	}

	nonceRecord struct {
		_     struct{} `cbor:",toarray"`
		Nonce uint64
	}

	// ExecutedEvent is the content of the "settlement executed" notification.
	ExecutedEvent struct {
		Account          common.Address
		Caller           common.Address
		Token            common.Address
		Amount           uint64
		SettlementTarget common.Address
		Nonce            uint64
		OpaqueData       types.Bytes
	}

	// InstalledEvent / UninstalledEvent report executor lifecycle changes.
	InstalledEvent struct {
		Account common.Address
	}
	UninstalledEvent struct {
		Account common.Address
	}
)

// New creates an executor. identity is the address the protected accounts
// see as the immediate caller of the guarded entry point; signatures must
// bind to it.
func New(identity common.Address, oracle liveness.Oracle, host account.Host, opts ...Option) (*Executor, error) {
	if identity == (common.Address{}) {
		return nil, errors.New("executor identity is zero address")
	}
	if oracle == nil {
		return nil, errors.New("liveness oracle is nil")
	}
	if host == nil {
		return nil, errors.New("account host is nil")
	}
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return &Executor{
		identity: identity,
		oracle:   oracle,
		host:     host,
		store:    options.store,
		events:   options.events,
		log:      options.log.With(logger.ModuleKey, "settlement"),
	}, nil
}

// Identity returns the address the executor uses as caller identity on
// guarded calls.
func (x *Executor) Identity() common.Address {
	return x.identity
}

// Install initializes the account's nonce row at zero.
func (x *Executor) Install(acc common.Address) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	_, found, err := x.nonceRow(acc)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("%w: %s", ErrAlreadyInitialized, acc.Hex())
	}
	if err := x.store.Write(acc.Bytes(), &nonceRecord{Nonce: 0}); err != nil {
		return fmt.Errorf("storing nonce row: %w", err)
	}
	x.log.Info("executor installed", logger.Account(acc))
	x.events(&event.Event{EventType: event.ExecutorInstalled, Content: InstalledEvent{Account: acc}})
	return nil
}

// Uninstall drops the account's nonce row. Idempotent.
func (x *Executor) Uninstall(acc common.Address) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.store.Delete(acc.Bytes()); err != nil {
		return fmt.Errorf("deleting nonce row: %w", err)
	}
	x.log.Info("executor uninstalled", logger.Account(acc))
	x.events(&event.Event{EventType: event.ExecutorUninstalled, Content: UninstalledEvent{Account: acc}})
	return nil
}

// IsInstalled reports whether the executor is installed for the account.
func (x *Executor) IsInstalled(acc common.Address) (bool, error) {
	_, found, err := x.nonceRow(acc)
	return found, err
}

// GetNonce returns the next expected nonce for the account.
func (x *Executor) GetNonce(acc common.Address) (uint64, error) {
	rec, found, err := x.nonceRow(acc)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("%w: %s", ErrNotInitialized, acc.Hex())
	}
	return rec.Nonce, nil
}

// IsAlive is a passthrough read of the shared liveness oracle.
func (x *Executor) IsAlive() bool {
	return x.oracle.IsAlive()
}

/*
ExecuteSettlement validates the request, advances the nonce and dispatches
the guarded approve action naming the settlement target as spender.

The nonce is advanced before the dispatch so that a malicious callee reached
through the guarded call cannot replay the same nonce; if the dispatch then
fails the advance is rolled back with the rest of the operation.

Unlike the gate, the executor refuses to operate while the signer is offline:
settlement is considered too sensitive to permit under bypass.
*/
func (x *Executor) ExecuteSettlement(ctx context.Context, req *Request) error {
	if req == nil {
		return errors.New("request is nil")
	}
	if req.Amount == 0 {
		return ErrInvalidAmount
	}
	if req.Token == (common.Address{}) {
		return ErrInvalidToken
	}
	if req.SettlementTarget == (common.Address{}) {
		return ErrInvalidTarget
	}
	if !x.oracle.IsAlive() {
		return ErrSignerOffline
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	rec, found, err := x.nonceRow(req.Account)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotInitialized, req.Account.Hex())
	}
	if req.Nonce != rec.Nonce {
		return fmt.Errorf("%w: expected %d, got %d", ErrInvalidNonce, rec.Nonce, req.Nonce)
	}

	// advance the nonce before any external call
	if err := x.store.Write(req.Account.Bytes(), &nonceRecord{Nonce: rec.Nonce + 1}); err != nil {
		return fmt.Errorf("advancing nonce: %w", err)
	}

	if err := x.dispatchApproval(ctx, req); err != nil {
		// the exported nonce advance is part of the failed unit, undo it
		if rbErr := x.store.Write(req.Account.Bytes(), &nonceRecord{Nonce: rec.Nonce}); rbErr != nil {
			return errors.Join(err, fmt.Errorf("restoring nonce: %w", rbErr))
		}
		return err
	}

	x.log.Info("settlement executed",
		logger.Account(req.Account),
		logger.Nonce(req.Nonce),
		slog.String("token", req.Token.Hex()),
		slog.Uint64("amount", req.Amount),
		slog.String("settlement_target", req.SettlementTarget.Hex()))
	x.events(&event.Event{EventType: event.SettlementExecuted, Content: ExecutedEvent{
		Account:          req.Account,
		Caller:           req.Caller,
		Token:            req.Token,
		Amount:           req.Amount,
		SettlementTarget: req.SettlementTarget,
		Nonce:            req.Nonce,
		OpaqueData:       req.OpaqueData,
	}})
	return nil
}

func (x *Executor) dispatchApproval(ctx context.Context, req *Request) error {
	envelope, err := ApprovalEnvelope(req.Token, req.SettlementTarget, req.Amount)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrApprovalFailed, err)
	}
	payload, err := gate.Seal(envelope, req.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrApprovalFailed, err)
	}
	res, err := x.host.ExecuteFromExecutor(ctx, req.Account, x.identity, 0, payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrApprovalFailed, err)
	}
	if !res.Success {
		return fmt.Errorf("%w: host reported failure", ErrApprovalFailed)
	}
	if len(res.Returns) == 0 {
		return fmt.Errorf("%w: host returned no results", ErrApprovalFailed)
	}
	return nil
}

func (x *Executor) nonceRow(acc common.Address) (*nonceRecord, bool, error) {
	rec := &nonceRecord{}
	found, err := x.store.Read(acc.Bytes(), rec)
	if err != nil {
		return nil, false, fmt.Errorf("reading nonce row: %w", err)
	}
	return rec, found, nil
}

/*
ApprovalEnvelope builds the unsigned guarded action for one settlement: an
approve naming the settlement target as spender, wrapped into the account's
single-action call envelope. This is exactly the byte string the off-chain
signer must sign (see SigningBytes).
*/
func ApprovalEnvelope(tokenAddr, settlementTarget common.Address, amount uint64) ([]byte, error) {
	input, err := types.Cbor.Marshal(&token.ApproveAttributes{Spender: settlementTarget.Bytes(), Amount: amount})
	if err != nil {
		return nil, fmt.Errorf("encoding approve input: %w", err)
	}
	return account.NewCall(tokenAddr, 0, input)
}

/*
SigningBytes returns the digest the trusted signer must sign for a
settlement: keccak256(executor ‖ 0 ‖ approval envelope). The executor, not
the end caller, is the caller identity because the protected account treats
the executor as the immediate caller of the guarded entry point; the value is
zero because the approve call transfers none.
*/
func SigningBytes(executor, tokenAddr, settlementTarget common.Address, amount uint64) ([]byte, error) {
	envelope, err := ApprovalEnvelope(tokenAddr, settlementTarget, amount)
	if err != nil {
		return nil, err
	}
	return gate.ExecutionDigest(executor, 0, envelope), nil
}
