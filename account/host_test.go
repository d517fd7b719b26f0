package account

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/guardline-io/guardline/gate"
	test "github.com/guardline-io/guardline/internal/testutils"
	testsig "github.com/guardline-io/guardline/internal/testutils/sig"
	"github.com/guardline-io/guardline/liveness"
	"github.com/guardline-io/guardline/token"
	"github.com/guardline-io/guardline/types"
)

func TestInProcessHost_VerifiedApprove(t *testing.T) {
	oracle := liveness.NewFlag()
	g, err := gate.New(oracle)
	require.NoError(t, err)
	ledger := token.NewLedger()
	host := NewInProcessHost(g, ledger, nil)

	acc := test.RandomAddress(t)
	caller := test.RandomAddress(t)
	tok := test.RandomAddress(t)
	spender := test.RandomAddress(t)
	signerKey, signerAddr := testsig.CreateSigner(t)
	require.NoError(t, g.Install(acc, signerAddr.Bytes()))

	input, err := types.Cbor.Marshal(&token.ApproveAttributes{Spender: spender.Bytes(), Amount: 250})
	require.NoError(t, err)
	envelope, err := NewCall(tok, 0, input)
	require.NoError(t, err)
	sig := testsig.Sign(t, signerKey, gate.ExecutionDigest(caller, 0, envelope))
	payload, err := gate.Seal(envelope, sig)
	require.NoError(t, err)

	res, err := host.ExecuteFromExecutor(context.Background(), acc, caller, 0, payload)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, res.Returns, 1)
	require.Equal(t, uint256.NewInt(250), ledger.Allowance(tok, acc, spender))
}

func TestInProcessHost_RejectedByGate(t *testing.T) {
	oracle := liveness.NewFlag()
	g, err := gate.New(oracle)
	require.NoError(t, err)
	host := NewInProcessHost(g, token.NewLedger(), nil)

	// account not installed
	_, err = host.ExecuteFromExecutor(context.Background(), test.RandomAddress(t), test.RandomAddress(t), 0, nil)
	require.ErrorIs(t, err, gate.ErrNotInitialized)
}

func TestInProcessHost_BypassedGarbagePayloadFailsExecution(t *testing.T) {
	oracle := liveness.NewFlag()
	g, err := gate.New(oracle)
	require.NoError(t, err)
	host := NewInProcessHost(g, token.NewLedger(), nil)

	acc := test.RandomAddress(t)
	_, signerAddr := testsig.CreateSigner(t)
	require.NoError(t, g.Install(acc, signerAddr.Bytes()))
	require.NoError(t, oracle.SetAlive(false))

	// the gate lets the call through but the action itself is undecodable
	_, err = host.ExecuteFromExecutor(context.Background(), acc, test.RandomAddress(t), 0, []byte{0xff})
	require.ErrorContains(t, err, "executing guarded action")
}
