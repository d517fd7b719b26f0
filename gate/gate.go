/*
Package gate implements the pre-execution authorization hook installed per
protected account. On every guarded call it consults the liveness oracle: if
the trusted signer is reported offline the call is allowed through without
verification (a deliberate, audited fail-open), otherwise the trailing
detached signature must verify against the account's configured signer.
*/
package gate

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/guardline-io/guardline/event"
	"github.com/guardline-io/guardline/keyvaluedb"
	"github.com/guardline-io/guardline/liveness"
	"github.com/guardline-io/guardline/logger"
	"github.com/guardline-io/guardline/types"
)

var (
	ErrAlreadyInitialized = errors.New("gate already installed for account")
	ErrNotInitialized     = errors.New("gate not installed for account")
	ErrInvalidPublicKey   = errors.New("invalid signer address in configuration")
	ErrInvalidSignature   = errors.New("signature verification failed")
	ErrNotAuthorized      = errors.New("signer can only be updated by the installed account itself")
)

type (
	Gate struct {
		store  keyvaluedb.KeyValueDB
		oracle liveness.Oracle
		events event.Handler
		log    *slog.Logger

		// serializes the install lifecycle; guarded call evaluation itself
		// is read-only and already serialized per account by the host
		mu sync.Mutex
	}

	installRecord struct {
		_      struct{} `cbor:",toarray"`
		Signer types.Bytes
	}

	// event contents
	InstalledEvent struct {
		Account common.Address
		Signer  common.Address
	}
	UninstalledEvent struct {
		Account common.Address
	}
	SignerRotatedEvent struct {
		Account   common.Address
		OldSigner common.Address
		NewSigner common.Address
	}
	VerifiedEvent struct {
		Account       common.Address
		Caller        common.Address
		ExecutionHash types.Bytes
	}
	BypassedEvent struct {
		Account       common.Address
		Caller        common.Address
		ExecutionHash types.Bytes
	}
)

func New(oracle liveness.Oracle, opts ...Option) (*Gate, error) {
	if oracle == nil {
		return nil, errors.New("liveness oracle is nil")
	}
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return &Gate{
		store:  options.store,
		oracle: oracle,
		events: options.events,
		log:    options.log.With(logger.ModuleKey, "gate"),
	}, nil
}

/*
Install records the trusted signer for the account. The configuration bytes
are the 20 byte signer address; a zero address is rejected. Installing an
already installed account fails with ErrAlreadyInitialized and changes
nothing.
*/
func (g *Gate) Install(account common.Address, config []byte) error {
	signer, err := signerFromConfig(config)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	_, found, err := g.record(account)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("%w: %s", ErrAlreadyInitialized, account.Hex())
	}
	if err := g.store.Write(account.Bytes(), &installRecord{Signer: signer.Bytes()}); err != nil {
		return fmt.Errorf("storing install record: %w", err)
	}
	g.log.Info("gate installed", logger.Account(account), slog.String("signer", signer.Hex()))
	g.events(&event.Event{EventType: event.GateInstalled, Content: InstalledEvent{Account: account, Signer: signer}})
	return nil
}

// Uninstall clears the account's install record. Uninstalling an account
// that is not installed is not an error.
func (g *Gate) Uninstall(account common.Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.store.Delete(account.Bytes()); err != nil {
		return fmt.Errorf("deleting install record: %w", err)
	}
	g.log.Info("gate uninstalled", logger.Account(account))
	g.events(&event.Event{EventType: event.GateUninstalled, Content: UninstalledEvent{Account: account}})
	return nil
}

// IsInitialized reports whether the gate is installed for the account. The
// host consults this before routing guarded calls.
func (g *Gate) IsInitialized(account common.Address) (bool, error) {
	_, found, err := g.record(account)
	return found, err
}

// Signer returns the trusted signer configured for the account.
func (g *Gate) Signer(account common.Address) (common.Address, error) {
	rec, found, err := g.record(account)
	if err != nil {
		return common.Address{}, err
	}
	if !found {
		return common.Address{}, fmt.Errorf("%w: %s", ErrNotInitialized, account.Hex())
	}
	return common.BytesToAddress(rec.Signer), nil
}

/*
UpdateSigner rotates the trusted signer of an installed account. Only the
account itself may request the rotation.
*/
func (g *Gate) UpdateSigner(requestor, account, newSigner common.Address) error {
	if requestor != account {
		return ErrNotAuthorized
	}
	if newSigner == (common.Address{}) {
		return fmt.Errorf("%w: zero address", ErrInvalidPublicKey)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, found, err := g.record(account)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotInitialized, account.Hex())
	}
	oldSigner := common.BytesToAddress(rec.Signer)
	if err := g.store.Write(account.Bytes(), &installRecord{Signer: newSigner.Bytes()}); err != nil {
		return fmt.Errorf("storing install record: %w", err)
	}
	g.log.Info("trusted signer rotated", logger.Account(account), slog.String("signer", newSigner.Hex()))
	g.events(&event.Event{EventType: event.SignerRotated, Content: SignerRotatedEvent{Account: account, OldSigner: oldSigner, NewSigner: newSigner}})
	return nil
}

/*
PreCheck evaluates a guarded call for an installed account.

When the oracle reports the signer offline the call is allowed through
unconditionally; the digest over the full payload is computed for audit
logging only and carried in the bypass notification. Otherwise the payload
must carry a trailing 65 byte signature by the account's trusted signer over
keccak256(caller ‖ value ‖ actual payload); the returned decision carries the
actual payload with the signature stripped.
*/
func (g *Gate) PreCheck(account, caller common.Address, value uint64, payload []byte) (*Decision, error) {
	rec, found, err := g.record(account)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotInitialized, account.Hex())
	}

	if !g.oracle.IsAlive() {
		hash := ExecutionDigest(caller, value, payload)
		g.log.Warn("signature verification bypassed, signer reported offline",
			logger.Account(account), logger.ExecutionHash(hash))
		g.events(&event.Event{EventType: event.VerificationBypassed, Content: BypassedEvent{Account: account, Caller: caller, ExecutionHash: hash}})
		return &Decision{Outcome: OutcomeBypassed, ExecutionHash: hash, Payload: payload}, nil
	}

	env, err := ParseEnvelope(payload)
	if err != nil {
		return nil, err
	}
	hash := ExecutionDigest(caller, value, env.Payload)
	signer, err := RecoverSigner(hash, env.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !bytes.Equal(signer.Bytes(), rec.Signer) {
		return nil, fmt.Errorf("%w: recovered %s, trusted signer is %s",
			ErrInvalidSignature, signer.Hex(), common.BytesToAddress(rec.Signer).Hex())
	}
	g.log.Debug("guarded call verified", logger.Account(account), logger.ExecutionHash(hash))
	g.events(&event.Event{EventType: event.ExecutionVerified, Content: VerifiedEvent{Account: account, Caller: caller, ExecutionHash: hash}})
	return &Decision{Outcome: OutcomeVerified, ExecutionHash: hash, Payload: env.Payload}, nil
}

// PostCheck runs after the guarded action. No post-state to verify, present
// to satisfy the host's hook contract.
func (g *Gate) PostCheck(*Decision) error {
	return nil
}

func (g *Gate) record(account common.Address) (*installRecord, bool, error) {
	rec := &installRecord{}
	found, err := g.store.Read(account.Bytes(), rec)
	if err != nil {
		return nil, false, fmt.Errorf("reading install record: %w", err)
	}
	return rec, found, nil
}

func signerFromConfig(config []byte) (common.Address, error) {
	if len(config) != common.AddressLength {
		return common.Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPublicKey, common.AddressLength, len(config))
	}
	signer := common.BytesToAddress(config)
	if signer == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: zero address", ErrInvalidPublicKey)
	}
	return signer, nil
}
