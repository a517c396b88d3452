package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bacalhau-project/contractnet/cmd/util"
	"github.com/bacalhau-project/contractnet/cmd/util/flags/configflags"
	"github.com/bacalhau-project/contractnet/pkg/config"
)

func NewCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Interact with the contractnet configuration",
	}
	configCmd.AddCommand(newShowCmd())
	return configCmd
}

var showFlags = map[string][]configflags.Definition{
	"bus":        configflags.BusFlags,
	"supervisor": configflags.SupervisorFlags,
	"api":        configflags.APIFlags,
}

func newShowCmd() *cobra.Command {
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: fmt.Sprintf(`Print the configuration agents would run with, merged from the defaults,
%s in the config directory, CONTRACTNET_ environment variables and flags.`, config.ConfigFileName),
		Example: `  # Check which NATS server agents connect to
  CONTRACTNET_BUS_PORT=5222 contractnet config show`,
		Args: cobra.NoArgs,
		RunE: runShow,
	}
	if err := configflags.RegisterFlags(showCmd, showFlags); err != nil {
		panic(fmt.Sprintf("DEVELOPER ERROR: %s", err))
	}
	return showCmd
}

func runShow(cmd *cobra.Command, _ []string) error {
	cfg, err := util.LoadConfig(cmd, showFlags)
	if err != nil {
		return err
	}
	out, err := config.Render(cfg)
	if err != nil {
		return err
	}
	cmd.Print(string(out))
	return nil
}
