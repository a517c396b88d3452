package devstack

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bacalhau-project/contractnet/cmd/util"
	"github.com/bacalhau-project/contractnet/cmd/util/cols"
	"github.com/bacalhau-project/contractnet/cmd/util/flags/cliflags"
	"github.com/bacalhau-project/contractnet/cmd/util/output"
	"github.com/bacalhau-project/contractnet/pkg/config"
	"github.com/bacalhau-project/contractnet/pkg/config/types"
	"github.com/bacalhau-project/contractnet/pkg/devstack"
)

type DevStackOptions struct {
	Transport   string
	BusPort     int
	APIPort     int
	Deadline    time.Duration
	JobInterval time.Duration
	JobTypes    []string
	// RunFor stops the stack after a fixed time, 0 runs until interrupted.
	RunFor     time.Duration
	OutputOpts output.OutputOptions
}

func NewDevStackOptions() *DevStackOptions {
	return &DevStackOptions{
		Transport:   types.TransportNATS,
		BusPort:     config.DefaultBusPort,
		Deadline:    3 * time.Second,
		JobInterval: 8 * time.Second,
		JobTypes:    config.Default.Supervisor.JobTypes,
		OutputOpts:  output.OutputOptions{Format: output.TableFormat},
	}
}

func NewCmd() *cobra.Command {
	ODs := NewDevStackOptions()

	devstackCmd := &cobra.Command{
		Use:   "devstack",
		Short: "Start a supervisor and five machines in a single process",
		Long: `Start a supervisor and the five demo machines in a single process, connected through
an embedded NATS server or an in-memory bus. The state and counters of every agent are
printed when the stack stops.`,
		Example: `  # Run the demo until Ctrl+C
  contractnet devstack

  # Run for a minute over the in-memory bus, serving status APIs from port 20000
  contractnet devstack --transport inmemory --run-for 1m --api-port 20000`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := runDevstack(cmd, ODs); err != nil {
				util.Fatal(cmd, err, 1)
			}
		},
	}

	devstackCmd.Flags().StringVar(&ODs.Transport, "transport", ODs.Transport,
		fmt.Sprintf("The bus connecting the agents, %s or %s.", types.TransportNATS, types.TransportInMemory))
	devstackCmd.Flags().IntVar(&ODs.BusPort, "bus-port", ODs.BusPort,
		"The port of the embedded NATS server (0 picks a free port).")
	devstackCmd.Flags().IntVar(&ODs.APIPort, "api-port", ODs.APIPort,
		"The status API port of the supervisor, machines use the following ports (0 disables the status APIs).")
	devstackCmd.Flags().DurationVar(&ODs.Deadline, "deadline", ODs.Deadline,
		"How long bids are collected for each job.")
	devstackCmd.Flags().DurationVar(&ODs.JobInterval, "job-interval", ODs.JobInterval,
		"The pause between the end of an auction and the start of the next one.")
	devstackCmd.Flags().StringSliceVar(&ODs.JobTypes, "job-types", ODs.JobTypes,
		"The job types auctioned.")
	devstackCmd.Flags().DurationVar(&ODs.RunFor, "run-for", ODs.RunFor,
		"Stop the stack after this long (0 runs until interrupted).")
	devstackCmd.Flags().AddFlagSet(cliflags.OutputFormatFlags(&ODs.OutputOpts))

	return devstackCmd
}

func runDevstack(cmd *cobra.Command, ODs *DevStackOptions) error {
	ctx := cmd.Context()
	cm := util.GetCleanupManager(ctx)

	sup := config.Default.Supervisor
	sup.Deadline = types.Duration(ODs.Deadline)
	sup.JobInterval = types.Duration(ODs.JobInterval)
	sup.JobTypes = ODs.JobTypes

	stack, err := devstack.Setup(ctx, cm,
		devstack.WithTransport(ODs.Transport),
		devstack.WithBusPort(ODs.BusPort),
		devstack.WithAPIPort(ODs.APIPort),
		devstack.WithSupervisor(sup),
	)
	if err != nil {
		return err
	}
	if err = stack.Start(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), util.ShutdownTimeout)
		defer cancel()
		_ = stack.Stop(stopCtx)
		return err
	}

	if url := stack.BusURL(); url != "" {
		cmd.Printf("Bus listening on %s\n", url)
		if addr, ok := stack.BusServer.Server.Addr().(*net.TCPAddr); ok {
			cmd.Printf("Connect more agents with:\n  contractnet machine --bus-port %d --id machine_006 --capabilities job_A:1\n\n", addr.Port)
		}
	}
	for _, n := range stack.Nodes {
		if n.APIServer != nil {
			cmd.Printf("%s status: %s/api/v1/stats\n", n.ID, n.APIServer.GetURI())
		}
	}

	runCtx := ctx
	if ODs.RunFor > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, ODs.RunFor)
		defer cancel()
	}
	<-runCtx.Done()
	log.Ctx(ctx).Info().Msg("Shutting down devstack")

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), util.ShutdownTimeout)
	defer cancel()
	if err = stack.Stop(stopCtx); err != nil {
		return err
	}
	return output.Output(cmd, cols.AgentColumns, ODs.OutputOpts, stack.AgentInfos(stopCtx))
}
