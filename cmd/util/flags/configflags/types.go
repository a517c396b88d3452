package configflags

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bacalhau-project/contractnet/pkg/config"
	"github.com/bacalhau-project/contractnet/pkg/config/types"
)

// Default is the configuration flag defaults are taken from.
var Default = config.Default

// Definition ties a command line flag to a configuration key.
type Definition struct {
	FlagName     string
	ConfigPath   string
	DefaultValue interface{}
	Description  string
	// EnvironmentVariables are read in addition to the CONTRACTNET_ prefixed one.
	EnvironmentVariables []string
	Deprecated           bool
	DeprecatedMessage    string
}

// RegisterFlags adds one flag set per entry of register to the persistent flags of cmd.
func RegisterFlags(cmd *cobra.Command, register map[string][]Definition) error {
	for name, defs := range register {
		fset := pflag.NewFlagSet(name, pflag.ContinueOnError)
		for _, def := range defs {
			switch v := def.DefaultValue.(type) {
			case int:
				fset.Int(def.FlagName, v, def.Description)
			case bool:
				fset.Bool(def.FlagName, v, def.Description)
			case string:
				fset.String(def.FlagName, v, def.Description)
			case []string:
				fset.StringSlice(def.FlagName, v, def.Description)
			case types.Duration:
				fset.Duration(def.FlagName, v.AsTimeDuration(), def.Description)
			case time.Duration:
				fset.Duration(def.FlagName, v, def.Description)
			default:
				return fmt.Errorf("unhandled type: %T for flag %s", v, def.FlagName)
			}
			if def.Deprecated {
				if err := fset.MarkDeprecated(def.FlagName, def.DeprecatedMessage); err != nil {
					return err
				}
			}
		}
		cmd.PersistentFlags().AddFlagSet(fset)
	}
	return nil
}

// BindFlags returns the flags of register keyed by their configuration path, for config.WithFlags.
// Flags are looked up in the parsed flag set of cmd, so flags inherited from a parent are found too.
func BindFlags(cmd *cobra.Command, register map[string][]Definition) (map[string]*pflag.Flag, error) {
	flags := make(map[string]*pflag.Flag)
	for _, defs := range register {
		for _, def := range defs {
			flag := cmd.Flags().Lookup(def.FlagName)
			if flag == nil {
				return nil, fmt.Errorf("flag %q of config key %q is not registered on %s", def.FlagName, def.ConfigPath, cmd.Name())
			}
			flags[def.ConfigPath] = flag
		}
	}
	return flags, nil
}

// EnvironmentVariables returns the environment variables of register keyed by configuration path,
// for config.WithEnvironmentVariables. The CONTRACTNET_ prefixed variable keeps precedence.
func EnvironmentVariables(register map[string][]Definition) map[string][]string {
	env := make(map[string][]string)
	for _, defs := range register {
		for _, def := range defs {
			if len(def.EnvironmentVariables) > 0 {
				env[def.ConfigPath] = append([]string{config.KeyAsEnvVar(def.ConfigPath)}, def.EnvironmentVariables...)
			}
		}
	}
	return env
}
