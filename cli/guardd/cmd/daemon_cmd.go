package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/guardline-io/guardline/account"
	"github.com/guardline-io/guardline/event"
	"github.com/guardline-io/guardline/gate"
	"github.com/guardline-io/guardline/keyvaluedb/boltdb"
	"github.com/guardline-io/guardline/liveness"
	"github.com/guardline-io/guardline/logger"
	"github.com/guardline-io/guardline/rpc"
	"github.com/guardline-io/guardline/settlement"
	"github.com/guardline-io/guardline/token"
)

const (
	flagNameServerAddress   = "server-address"
	flagNameExecutorAddress = "executor-address"

	gateDBFile     = "gate.db"
	executorDBFile = "executor.db"
	livenessDBFile = "liveness.db"
)

type daemonConfiguration struct {
	Base *baseConfiguration

	ServerAddress   string
	ExecutorAddress string
}

func newDaemonCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &daemonConfiguration{Base: baseConfig}
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the settlement service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), config)
		},
	}
	cmd.Flags().StringVar(&config.ServerAddress, flagNameServerAddress, "localhost:9654", "TCP address for the REST server to listen on")
	cmd.Flags().StringVar(&config.ExecutorAddress, flagNameExecutorAddress, "", "executor caller identity, a 20 byte hex address the off-chain signer binds signatures to")
	_ = cmd.MarkFlagRequired(flagNameExecutorAddress)
	return cmd
}

func runDaemon(ctx context.Context, config *daemonConfiguration) error {
	log := config.Base.Logger
	if !common.IsHexAddress(config.ExecutorAddress) {
		return fmt.Errorf("invalid executor address %q", config.ExecutorAddress)
	}
	executorAddr := common.HexToAddress(config.ExecutorAddress)

	if err := os.MkdirAll(config.Base.HomeDir, 0700); err != nil {
		return fmt.Errorf("creating home directory: %w", err)
	}
	gateDB, err := boltdb.New(filepath.Join(config.Base.HomeDir, gateDBFile))
	if err != nil {
		return fmt.Errorf("opening gate db: %w", err)
	}
	defer gateDB.Close()
	executorDB, err := boltdb.New(filepath.Join(config.Base.HomeDir, executorDBFile))
	if err != nil {
		return fmt.Errorf("opening executor db: %w", err)
	}
	defer executorDB.Close()
	livenessDB, err := boltdb.New(filepath.Join(config.Base.HomeDir, livenessDBFile))
	if err != nil {
		return fmt.Errorf("opening liveness db: %w", err)
	}
	defer livenessDB.Close()

	oracle, err := liveness.NewStore(livenessDB)
	if err != nil {
		return fmt.Errorf("initializing liveness oracle: %w", err)
	}

	bus := event.NewBus()
	defer bus.Close()
	events, err := bus.Subscribe(64)
	if err != nil {
		return err
	}
	go logEvents(ctx, log, events)

	g, err := gate.New(oracle,
		gate.WithStore(gateDB),
		gate.WithLogger(log),
		gate.WithEventHandler(bus.Handle))
	if err != nil {
		return fmt.Errorf("initializing authorization gate: %w", err)
	}
	host := account.NewInProcessHost(g, token.NewLedger(), log)
	executor, err := settlement.New(executorAddr, oracle, host,
		settlement.WithStore(executorDB),
		settlement.WithLogger(log),
		settlement.WithEventHandler(bus.Handle))
	if err != nil {
		return fmt.Errorf("initializing settlement executor: %w", err)
	}

	server := rpc.NewHTTPServer(
		&rpc.ServerConfiguration{
			Address:           config.ServerAddress,
			ReadTimeout:       3 * time.Second,
			ReadHeaderTimeout: time.Second,
			WriteTimeout:      5 * time.Second,
			IdleTimeout:       30 * time.Second,
		},
		rpc.NewAPI(executor, oracle, log),
	)
	log.Info("guardd daemon starting", slog.String("addr", config.ServerAddress), slog.String("executor", executorAddr.Hex()))
	return rpc.Run(ctx, server)
}

func logEvents(ctx context.Context, log *slog.Logger, events <-chan *event.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			log.Info("event", slog.Int("type", int(e.EventType)), logger.Data(e.Content))
		}
	}
}
