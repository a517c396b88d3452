package configflags

import (
	"github.com/bacalhau-project/contractnet/pkg/config/types"
)

var LogFlags = []Definition{
	{
		FlagName:             "log-mode",
		ConfigPath:           types.LoggingModeKey,
		DefaultValue:         Default.Logging.Mode,
		Description:          `Log format: 'default','json','combined','event'`,
		EnvironmentVariables: []string{"LOG_TYPE"},
	},
	{
		FlagName:             "log-level",
		ConfigPath:           types.LoggingLevelKey,
		DefaultValue:         Default.Logging.Level,
		Description:          `Log level: 'trace', 'debug', 'info', 'warn', 'error', 'fatal'`,
		EnvironmentVariables: []string{"LOG_LEVEL"},
	},
}

var MetricsFlags = []Definition{
	{
		FlagName:     "metrics",
		ConfigPath:   types.MetricsEnabledKey,
		DefaultValue: Default.Metrics.Enabled,
		Description:  `Record auction metrics in memory, report them on the status API and log finished spans.`,
	},
}

// GlobalFlags are registered on the root command and read by every command.
var GlobalFlags = map[string][]Definition{
	"logging": LogFlags,
	"metrics": MetricsFlags,
}
