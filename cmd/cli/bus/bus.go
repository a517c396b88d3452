package bus

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bacalhau-project/contractnet/cmd/util"
	"github.com/bacalhau-project/contractnet/cmd/util/flags/configflags"
	"github.com/bacalhau-project/contractnet/pkg/cnerrors"
	"github.com/bacalhau-project/contractnet/pkg/config/types"
	"github.com/bacalhau-project/contractnet/pkg/pubsub/nats"
)

var busFlags = map[string][]configflags.Definition{
	"bus": configflags.BusFlags,
}

func NewCmd() *cobra.Command {
	busCmd := &cobra.Command{
		Use:   "bus",
		Short: "Run a NATS server the agents can connect to",
		Long: `Run an embedded NATS server on --bus-address and --bus-port. Supervisors and machines
started with the nats transport and the same address and port exchange messages through it.`,
		Example: `  # Listen on all interfaces on the default port
  contractnet bus --bus-address 0.0.0.0`,
		Args: cobra.NoArgs,
		RunE: runBus,
	}
	if err := configflags.RegisterFlags(busCmd, busFlags); err != nil {
		panic(fmt.Sprintf("DEVELOPER ERROR: %s", err))
	}
	return busCmd
}

func runBus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := util.LoadConfig(cmd, busFlags)
	if err != nil {
		return err
	}
	if cfg.Bus.Transport != types.TransportNATS {
		return cnerrors.New("the bus command only serves the %s transport, got %q", types.TransportNATS, cfg.Bus.Transport).
			WithCode(cnerrors.ConfigurationError).
			WithComponent("BusServer").
			WithHint("libp2p agents connect to each other with --peer, and the in-memory bus only exists inside devstack")
	}

	server, err := nats.NewServer(ctx, nats.ServerParams{
		Name: "contractnet-bus",
		Host: cfg.Bus.Address,
		Port: cfg.Bus.Port,
	})
	if err != nil {
		return err
	}
	util.GetCleanupManager(ctx).RegisterCallback(func() error {
		server.Stop()
		return nil
	})

	log.Ctx(ctx).Info().Msgf("bus listening on %s, press Ctrl+C to stop", server.ClientURL())
	cmd.Printf("export CONTRACTNET_BUS_ADDRESS=%s CONTRACTNET_BUS_PORT=%d\n", cfg.Bus.Address, cfg.Bus.Port)
	<-ctx.Done()
	return nil
}
