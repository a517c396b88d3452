package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/bacalhau-project/contractnet/cmd/cli/bus"
	configcmd "github.com/bacalhau-project/contractnet/cmd/cli/config"
	"github.com/bacalhau-project/contractnet/cmd/cli/devstack"
	"github.com/bacalhau-project/contractnet/cmd/cli/machine"
	"github.com/bacalhau-project/contractnet/cmd/cli/supervisor"
	"github.com/bacalhau-project/contractnet/cmd/cli/version"
	"github.com/bacalhau-project/contractnet/cmd/util"
	"github.com/bacalhau-project/contractnet/cmd/util/flags/configflags"
	"github.com/bacalhau-project/contractnet/pkg/config"
	"github.com/bacalhau-project/contractnet/pkg/logger"
	"github.com/bacalhau-project/contractnet/pkg/system"
	"github.com/bacalhau-project/contractnet/pkg/telemetry"
)

var ShutdownSignals = []os.Signal{
	syscall.SIGTERM,
	syscall.SIGINT,
}

func NewRootCmd() *cobra.Command {
	RootCmd := &cobra.Command{
		Use:   os.Args[0],
		Short: "Allocate jobs to machines with Contract Net auctions",
		Long: `Run the supervisor and machines of a Contract Net job auction.
A supervisor announces jobs on a pub/sub bus, machines bid with their execution
time, and the fastest bidder is awarded the job.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := util.LoadConfig(cmd, nil)
			if err != nil {
				return err
			}
			if err = logger.ConfigureLogging(cfg.Logging.Level, cfg.Logging.Mode); err != nil {
				return err
			}

			cm := system.NewCleanupManager()
			cm.RegisterCallbackWithContext(telemetry.Cleanup)
			if cfg.Metrics.Enabled {
				telemetry.SetupMetrics()
				telemetry.SetupTracing()
			}
			ctx = context.WithValue(ctx, util.SystemManagerKey, cm)

			var names []string
			root := cmd
			for ; root.HasParent(); root = root.Parent() {
				names = append([]string{root.Name()}, names...)
			}
			name := fmt.Sprintf("contractnet.%s", strings.Join(names, "."))
			ctx, span := telemetry.NewSpan(ctx, name, "")
			ctx = context.WithValue(ctx, spanKey, span)

			cmd.SetContext(ctx)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			if span, ok := ctx.Value(spanKey).(trace.Span); ok {
				span.End()
			}
			if cm, ok := ctx.Value(util.SystemManagerKey).(*system.CleanupManager); ok {
				cm.Cleanup(context.WithoutCancel(ctx))
			}
		},
	}

	// ====== Run agents
	RootCmd.AddCommand(supervisor.NewCmd())
	RootCmd.AddCommand(machine.NewCmd())
	RootCmd.AddCommand(bus.NewCmd())
	RootCmd.AddCommand(devstack.NewCmd())

	// ====== Inspect
	RootCmd.AddCommand(configcmd.NewCmd())
	RootCmd.AddCommand(version.NewCmd())

	RootCmd.PersistentFlags().String(util.ConfigDirFlag, config.DefaultConfigDir,
		fmt.Sprintf("The directory holding %s.", config.ConfigFileName))
	if err := configflags.RegisterFlags(RootCmd, configflags.GlobalFlags); err != nil {
		panic(fmt.Sprintf("DEVELOPER ERROR: %s", err))
	}
	return RootCmd
}

func Execute() {
	rootCmd := NewRootCmd()

	// Ensure commands are able to stop cleanly if someone presses ctrl+c
	ctx, cancel := signal.NotifyContext(context.Background(), ShutdownSignals...)
	defer cancel()
	rootCmd.SetContext(ctx)

	// Use stdout, not stderr for cmd.Print output, so that the stats tables can be piped
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)

	if err := rootCmd.Execute(); err != nil {
		util.Fatal(rootCmd, err, 1)
	}
}

type contextKey struct {
	name string
}

var spanKey = contextKey{name: "context key for storing the root span"}
