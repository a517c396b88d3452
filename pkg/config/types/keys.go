package types

// Configuration keys, as used by flags, environment variables and config.WithValues.
const (
	BusTransportKey     = "bus.transport"
	BusAddressKey       = "bus.address"
	BusPortKey          = "bus.port"
	BusReconnectWaitKey = "bus.reconnectwait"
	BusPeersKey         = "bus.peers"

	SupervisorIDKey          = "supervisor.id"
	SupervisorDeadlineKey    = "supervisor.deadline"
	SupervisorJobIntervalKey = "supervisor.jobinterval"
	SupervisorStartDelayKey  = "supervisor.startdelay"
	SupervisorJobTypesKey    = "supervisor.jobtypes"

	MachineIDKey           = "machine.id"
	MachineCapabilitiesKey = "machine.capabilities"
	MachineBidRetentionKey = "machine.bidretention"

	APIEnabledKey = "api.enabled"
	APIHostKey    = "api.host"
	APIPortKey    = "api.port"

	LoggingLevelKey = "logging.level"
	LoggingModeKey  = "logging.mode"

	MetricsEnabledKey = "metrics.enabled"
)
