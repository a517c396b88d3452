package machine

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bacalhau-project/contractnet/cmd/util"
	"github.com/bacalhau-project/contractnet/cmd/util/flags/configflags"
	"github.com/bacalhau-project/contractnet/pkg/node"
)

var machineFlags = map[string][]configflags.Definition{
	"bus":     configflags.BusFlags,
	"machine": configflags.MachineFlags,
	"api":     configflags.APIFlags,
}

func NewCmd() *cobra.Command {
	machineCmd := &cobra.Command{
		Use:   "machine",
		Short: "Run a machine that bids on the jobs it can execute",
		Long: `Run a machine that answers every call for proposals on the bus with a bid, if it can
execute the job type, or a rejection otherwise. Awarded jobs are executed by waiting for
the bid execution time and reported back to the supervisor.`,
		Example: `  # A machine executing job_A in 3 seconds and job_B in 5 seconds
  contractnet machine --id machine_001 --capabilities job_A:3,job_B:5`,
		Args: cobra.NoArgs,
		RunE: runMachine,
	}
	if err := configflags.RegisterFlags(machineCmd, machineFlags); err != nil {
		panic(fmt.Sprintf("DEVELOPER ERROR: %s", err))
	}
	return machineCmd
}

func runMachine(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := util.LoadConfig(cmd, machineFlags)
	if err != nil {
		return err
	}
	if err = node.ValidateMachine(cfg.Machine); err != nil {
		return err
	}

	bus, err := node.NewBus(ctx, cfg.Bus, cfg.Machine.ID)
	if err != nil {
		return err
	}
	m, err := node.NewMachine(cfg.Machine, bus, nil)
	if err != nil {
		_ = bus.Close(ctx)
		return err
	}
	n, err := node.NewNode(node.NodeConfig{
		Agent:   m,
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
