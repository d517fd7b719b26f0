package gate

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/guardline-io/guardline/event"
	test "github.com/guardline-io/guardline/internal/testutils"
	testsig "github.com/guardline-io/guardline/internal/testutils/sig"
	"github.com/guardline-io/guardline/liveness"
)

type eventRecorder struct {
	events []*event.Event
}

func (r *eventRecorder) handle(e *event.Event) {
	r.events = append(r.events, e)
}

func (r *eventRecorder) lastType(t *testing.T) event.Type {
	t.Helper()
	require.NotEmpty(t, r.events)
	return r.events[len(r.events)-1].EventType
}

func setupGate(t *testing.T) (*Gate, *liveness.Flag, *eventRecorder) {
	t.Helper()
	oracle := liveness.NewFlag()
	rec := &eventRecorder{}
	g, err := New(oracle, WithEventHandler(rec.handle))
	require.NoError(t, err)
	return g, oracle, rec
}

func TestNew_NilOracle(t *testing.T) {
	_, err := New(nil)
	require.ErrorContains(t, err, "liveness oracle is nil")
}

func TestInstall_OK(t *testing.T) {
	g, _, rec := setupGate(t)
	account := test.RandomAddress(t)
	_, signerAddr := testsig.CreateSigner(t)

	require.NoError(t, g.Install(account, signerAddr.Bytes()))

	installed, err := g.IsInitialized(account)
	require.NoError(t, err)
	require.True(t, installed)

	confSigner, err := g.Signer(account)
	require.NoError(t, err)
	require.Equal(t, signerAddr, confSigner)
	require.Equal(t, event.GateInstalled, rec.lastType(t))
}

func TestInstall_TwiceFails(t *testing.T) {
	g, _, _ := setupGate(t)
	account := test.RandomAddress(t)
	_, signerAddr := testsig.CreateSigner(t)

	require.NoError(t, g.Install(account, signerAddr.Bytes()))
	err := g.Install(account, signerAddr.Bytes())
	require.ErrorIs(t, err, ErrAlreadyInitialized)

	// no state change, original signer still configured
	confSigner, err := g.Signer(account)
	require.NoError(t, err)
	require.Equal(t, signerAddr, confSigner)
}

func TestInstall_InvalidConfig(t *testing.T) {
	g, _, _ := setupGate(t)
	account := test.RandomAddress(t)

	// zero signer address
	require.ErrorIs(t, g.Install(account, make([]byte, common.AddressLength)), ErrInvalidPublicKey)
	// wrong length
	require.ErrorIs(t, g.Install(account, test.RandomBytes(t, 19)), ErrInvalidPublicKey)
	require.ErrorIs(t, g.Install(account, nil), ErrInvalidPublicKey)

	installed, err := g.IsInitialized(account)
	require.NoError(t, err)
	require.False(t, installed)
}

func TestUninstall_Idempotent(t *testing.T) {
	g, _, rec := setupGate(t)
	account := test.RandomAddress(t)
	_, signerAddr := testsig.CreateSigner(t)

	require.NoError(t, g.Install(account, signerAddr.Bytes()))
	require.NoError(t, g.Uninstall(account))

	installed, err := g.IsInitialized(account)
	require.NoError(t, err)
	require.False(t, installed)
	require.Equal(t, event.GateUninstalled, rec.lastType(t))

	// uninstalling an already uninstalled account is not an error
	require.NoError(t, g.Uninstall(account))

	// and the account can be installed again
	require.NoError(t, g.Install(account, signerAddr.Bytes()))
}

func TestPreCheck_NotInstalled(t *testing.T) {
	g, _, _ := setupGate(t)
	_, err := g.PreCheck(test.RandomAddress(t), test.RandomAddress(t), 0, nil)
	require.ErrorIs(t, err, ErrNotInitialized)
}

// Scenario A: oracle offline, empty payload on an installed account is
// accepted with a bypass notification.
func TestPreCheck_BypassWhenSignerOffline(t *testing.T) {
	g, oracle, rec := setupGate(t)
	account := test.RandomAddress(t)
	caller := test.RandomAddress(t)
	_, signerAddr := testsig.CreateSigner(t)
	require.NoError(t, g.Install(account, signerAddr.Bytes()))

	require.NoError(t, oracle.SetAlive(false))

	decision, err := g.PreCheck(account, caller, 0, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeBypassed, decision.Outcome)
	require.Equal(t, ExecutionDigest(caller, 0, nil), decision.ExecutionHash)
	require.Empty(t, decision.Payload)
	require.Equal(t, event.VerificationBypassed, rec.lastType(t))

	// any payload content passes under bypass, even garbage shorter than a
	// signature
	decision, err = g.PreCheck(account, caller, 7, []byte{0x01, 0x02})
	require.NoError(t, err)
	require.Equal(t, OutcomeBypassed, decision.Outcome)
	require.Equal(t, []byte{0x01, 0x02}, decision.Payload)
}

// Scenario B: oracle alive, correctly signed payload is accepted with a
// verified notification carrying the computed hash.
func TestPreCheck_ValidSignature(t *testing.T) {
	g, _, rec := setupGate(t)
	account := test.RandomAddress(t)
	caller := test.RandomAddress(t)
	signerKey, signerAddr := testsig.CreateSigner(t)
	require.NoError(t, g.Install(account, signerAddr.Bytes()))

	actualPayload := test.RandomBytes(t, 32)
	digest := ExecutionDigest(caller, 0, actualPayload)
	sig := testsig.Sign(t, signerKey, digest)
	payload, err := Seal(actualPayload, sig)
	require.NoError(t, err)

	decision, err := g.PreCheck(account, caller, 0, payload)
	require.NoError(t, err)
	require.Equal(t, OutcomeVerified, decision.Outcome)
	require.Equal(t, digest, decision.ExecutionHash)
	// the signature suffix is stripped from the effective action
	require.Equal(t, actualPayload, decision.Payload)
	require.Equal(t, event.ExecutionVerified, rec.lastType(t))
}

// Scenario C: 64 byte suffix is a format error, no event emitted.
func TestPreCheck_PayloadTooShort(t *testing.T) {
	g, _, rec := setupGate(t)
	account := test.RandomAddress(t)
	_, signerAddr := testsig.CreateSigner(t)
	require.NoError(t, g.Install(account, signerAddr.Bytes()))
	eventCount := len(rec.events)

	_, err := g.PreCheck(account, test.RandomAddress(t), 0, test.RandomBytes(t, 64))
	require.ErrorIs(t, err, ErrSignatureTooShort)
	require.Len(t, rec.events, eventCount)
}

func TestPreCheck_WrongSigner(t *testing.T) {
	g, _, _ := setupGate(t)
	account := test.RandomAddress(t)
	caller := test.RandomAddress(t)
	_, signerAddr := testsig.CreateSigner(t)
	otherKey, _ := testsig.CreateSigner(t)
	require.NoError(t, g.Install(account, signerAddr.Bytes()))

	actualPayload := test.RandomBytes(t, 32)
	sig := testsig.Sign(t, otherKey, ExecutionDigest(caller, 0, actualPayload))
	payload, err := Seal(actualPayload, sig)
	require.NoError(t, err)

	_, err = g.PreCheck(account, caller, 0, payload)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestPreCheck_MutationsRejected(t *testing.T) {
	g, _, _ := setupGate(t)
	account := test.RandomAddress(t)
	caller := test.RandomAddress(t)
	signerKey, signerAddr := testsig.CreateSigner(t)
	require.NoError(t, g.Install(account, signerAddr.Bytes()))

	actualPayload := test.RandomBytes(t, 32)
	sig := testsig.Sign(t, signerKey, ExecutionDigest(caller, 0, actualPayload))
	payload, err := Seal(actualPayload, sig)
	require.NoError(t, err)

	// flip one bit of the actual payload
	mutated := append([]byte{}, payload...)
	mutated[3] ^= 0x01
	_, err = g.PreCheck(account, caller, 0, mutated)
	require.ErrorIs(t, err, ErrInvalidSignature)

	// flip one bit of the signature
	mutated = append([]byte{}, payload...)
	mutated[len(mutated)-2] ^= 0x01
	_, err = g.PreCheck(account, caller, 0, mutated)
	require.ErrorIs(t, err, ErrInvalidSignature)

	// signature over a different value does not verify
	_, err = g.PreCheck(account, caller, 1, payload)
	require.ErrorIs(t, err, ErrInvalidSignature)

	// signature bound to a different caller identity does not verify
	_, err = g.PreCheck(account, test.RandomAddress(t), 0, payload)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestUpdateSigner(t *testing.T) {
	g, _, rec := setupGate(t)
	account := test.RandomAddress(t)
	_, signerAddr := testsig.CreateSigner(t)
	newKey, newSignerAddr := testsig.CreateSigner(t)
	require.NoError(t, g.Install(account, signerAddr.Bytes()))

	// only the account itself may rotate
	require.ErrorIs(t, g.UpdateSigner(test.RandomAddress(t), account, newSignerAddr), ErrNotAuthorized)
	// zero signer rejected
	require.ErrorIs(t, g.UpdateSigner(account, account, common.Address{}), ErrInvalidPublicKey)
	// not installed account rejected
	other := test.RandomAddress(t)
	require.ErrorIs(t, g.UpdateSigner(other, other, newSignerAddr), ErrNotInitialized)

	require.NoError(t, g.UpdateSigner(account, account, newSignerAddr))
	require.Equal(t, event.SignerRotated, rec.lastType(t))

	// signatures by the new signer verify now
	caller := test.RandomAddress(t)
	actualPayload := test.RandomBytes(t, 16)
	sig := testsig.Sign(t, newKey, ExecutionDigest(caller, 0, actualPayload))
	payload, err := Seal(actualPayload, sig)
	require.NoError(t, err)
	decision, err := g.PreCheck(account, caller, 0, payload)
	require.NoError(t, err)
	require.Equal(t, OutcomeVerified, decision.Outcome)
}

func TestPostCheck_NoOp(t *testing.T) {
	g, _, _ := setupGate(t)
	require.NoError(t, g.PostCheck(nil))
	require.NoError(t, g.PostCheck(&Decision{Outcome: OutcomeBypassed}))
}
