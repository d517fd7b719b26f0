package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/guardline-io/guardline/gate"
	"github.com/guardline-io/guardline/keyvaluedb/boltdb"
	"github.com/guardline-io/guardline/liveness"
	"github.com/guardline-io/guardline/settlement"
	"github.com/guardline-io/guardline/token"

	acct "github.com/guardline-io/guardline/account"
)

const (
	flagNameAccount = "account"
	flagNameSigner  = "signer"
)

// newInstallCmd installs the gate and the executor for a protected account
// by writing the install records directly into the daemon's databases. Run
// while the daemon is stopped.
func newInstallCmd(baseConfig *baseConfiguration) *cobra.Command {
	var accountHex, signerHex string
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the authorization gate and the settlement executor for an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(accountHex) {
				return fmt.Errorf("invalid account address %q", accountHex)
			}
			if !common.IsHexAddress(signerHex) {
				return fmt.Errorf("invalid signer address %q", signerHex)
			}
			return runInstall(baseConfig, common.HexToAddress(accountHex), common.HexToAddress(signerHex))
		},
	}
	cmd.Flags().StringVar(&accountHex, flagNameAccount, "", "protected account address")
	cmd.Flags().StringVar(&signerHex, flagNameSigner, "", "trusted signer address for the account")
	_ = cmd.MarkFlagRequired(flagNameAccount)
	_ = cmd.MarkFlagRequired(flagNameSigner)
	return cmd
}

func runInstall(baseConfig *baseConfiguration, accountAddr, signerAddr common.Address) error {
	gateDB, err := boltdb.New(filepath.Join(baseConfig.HomeDir, gateDBFile))
	if err != nil {
		return fmt.Errorf("opening gate db: %w", err)
	}
	defer gateDB.Close()
	executorDB, err := boltdb.New(filepath.Join(baseConfig.HomeDir, executorDBFile))
	if err != nil {
		return fmt.Errorf("opening executor db: %w", err)
	}
	defer executorDB.Close()

	oracle := liveness.NewFlag()
	g, err := gate.New(oracle, gate.WithStore(gateDB), gate.WithLogger(baseConfig.Logger))
	if err != nil {
		return fmt.Errorf("initializing authorization gate: %w", err)
	}
	if err := g.Install(accountAddr, signerAddr.Bytes()); err != nil {
		return fmt.Errorf("installing gate: %w", err)
	}

	host := acct.NewInProcessHost(g, token.NewLedger(), baseConfig.Logger)
	// identity is irrelevant for the install record, any non-zero address works
	executor, err := settlement.New(common.Address{0x01}, oracle, host,
		settlement.WithStore(executorDB), settlement.WithLogger(baseConfig.Logger))
	if err != nil {
		return fmt.Errorf("initializing settlement executor: %w", err)
	}
	if err := executor.Install(accountAddr); err != nil {
		return fmt.Errorf("installing executor: %w", err)
	}
	baseConfig.Logger.Info(fmt.Sprintf("installed gate and executor for %s, trusted signer %s", accountAddr.Hex(), signerAddr.Hex()))
	return nil
}
