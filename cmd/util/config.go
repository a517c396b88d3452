package util

import (
	"github.com/spf13/cobra"

	"github.com/bacalhau-project/contractnet/cmd/util/flags/configflags"
	"github.com/bacalhau-project/contractnet/pkg/config"
	"github.com/bacalhau-project/contractnet/pkg/config/types"
)

// ConfigDirFlag is the root flag naming the directory holding config.yaml.
const ConfigDirFlag = "config-dir"

// LoadConfig returns the configuration of cmd from config.yaml, environment variables and the
// flags of register. The global flags of the root command are always bound.
func LoadConfig(cmd *cobra.Command, register map[string][]configflags.Definition) (types.ContractNet, error) {
	all := make(map[string][]configflags.Definition, len(register)+len(configflags.GlobalFlags))
	for name, defs := range configflags.GlobalFlags {
		all[name] = defs
	}
	for name, defs := range register {
		all[name] = defs
	}

	flags, err := configflags.BindFlags(cmd, all)
	if err != nil {
		return types.ContractNet{}, err
	}
	configDir, err := cmd.Flags().GetString(ConfigDirFlag)
	if err != nil {
		configDir = config.DefaultConfigDir
	}
	return config.Load(configDir,
		config.WithFlags(flags),
		config.WithEnvironmentVariables(configflags.EnvironmentVariables(all)),
	)
}
