package supervisor

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bacalhau-project/contractnet/cmd/util"
	"github.com/bacalhau-project/contractnet/cmd/util/flags/configflags"
	"github.com/bacalhau-project/contractnet/pkg/node"
)

var supervisorFlags = map[string][]configflags.Definition{
	"bus":        configflags.BusFlags,
	"supervisor": configflags.SupervisorFlags,
	"api":        configflags.APIFlags,
}

func NewCmd() *cobra.Command {
	supervisorCmd := &cobra.Command{
		Use:   "supervisor",
		Short: "Run a supervisor that periodically auctions jobs",
		Long: `Run a supervisor that periodically auctions a job of a random type to the machines
listening on the bus, and awards it to the machine that bids the shortest execution time.`,
		Example: `  # Auction a job every 10 seconds over the NATS server at 127.0.0.1:4222
  contractnet supervisor --id supervisor_001

  # Auction only job_A and job_B, collecting bids for 5 seconds
  contractnet supervisor --job-types job_A,job_B --deadline 5s`,
		Args: cobra.NoArgs,
		RunE: runSupervisor,
	}
	if err := configflags.RegisterFlags(supervisorCmd, supervisorFlags); err != nil {
		panic(fmt.Sprintf("DEVELOPER ERROR: %s", err))
	}
	return supervisorCmd
}

func runSupervisor(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := util.LoadConfig(cmd, supervisorFlags)
	if err != nil {
		return err
	}
	if err = node.ValidateSupervisor(cfg.Supervisor); err != nil {
		return err
	}

	bus, err := node.NewBus(ctx, cfg.Bus, cfg.Supervisor.ID)
	if err != nil {
		return err
	}
	sup, err := node.NewSupervisor(cfg.Supervisor, bus, nil)
	if err != nil {
		_ = bus.Close(ctx)
		return err
	}
	n, err := node.NewNode(node.NodeConfig{
		Agent:   sup,
		Bus:     bus,
		OwnsBus: true,
		API:     cfg.API,
	})
	if err != nil {
		_ = bus.Close(ctx)
		return err
	}
	return util.RunNode(cmd, n)
}
