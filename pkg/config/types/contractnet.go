package types

import (
	"errors"
	"fmt"

	"github.com/multiformats/go-multiaddr"

	"github.com/bacalhau-project/contractnet/pkg/lib/validate"
	"github.com/bacalhau-project/contractnet/pkg/logger"
	"github.com/bacalhau-project/contractnet/pkg/models"
)

// Validatable is implemented by every configuration section.
type Validatable interface {
	Validate() error
}

// Transports supported by the bus.
const (
	TransportNATS     = "nats"
	TransportLibp2p   = "libp2p"
	TransportInMemory = "inmemory"
)

var Transports = []string{TransportNATS, TransportLibp2p, TransportInMemory}

type ContractNet struct {
	Bus        Bus        `yaml:"Bus,omitempty"`
	Supervisor Supervisor `yaml:"Supervisor,omitempty"`
	Machine    Machine    `yaml:"Machine,omitempty"`
	API        API        `yaml:"API,omitempty"`
	Logging    Logging    `yaml:"Logging,omitempty"`
	Metrics    Metrics    `yaml:"Metrics,omitempty"`
}

// Validate checks the sections shared by every agent. The Supervisor and Machine
// sections are validated by the commands that run them.
func (c ContractNet) Validate() error {
	return errors.Join(
		c.Bus.Validate(),
		c.API.Validate(),
		c.Logging.Validate(),
	)
}

type Bus struct {
	// Transport is one of "nats", "libp2p" or "inmemory".
	Transport string `yaml:"Transport,omitempty"`
	// Address is the host of the NATS server, or the address libp2p listens on.
	Address string `yaml:"Address,omitempty"`
	Port    int    `yaml:"Port,omitempty"`
	// ReconnectWait is the pause between NATS reconnection attempts.
	ReconnectWait Duration `yaml:"ReconnectWait,omitempty"`
	// Peers are the libp2p multiaddrs to connect to, including their /p2p/ component.
	Peers []string `yaml:"Peers,omitempty"`
}

func (c Bus) Validate() error {
	err := errors.Join(
		validate.OneOf(c.Transport, Transports, "bus transport %q must be one of %v", c.Transport, Transports),
		validate.IsGreaterOrEqualToZero(c.ReconnectWait, "bus reconnect wait cannot be negative"),
		validatePort(c.Port, "bus"),
	)
	if c.Transport != TransportInMemory {
		err = errors.Join(err, validate.NotBlank(c.Address, "bus address cannot be blank"))
	}
	for _, peer := range c.Peers {
		if _, perr := multiaddr.NewMultiaddr(peer); perr != nil {
			err = errors.Join(err, fmt.Errorf("invalid bus peer %q: %w", peer, perr))
		}
	}
	return err
}

type Supervisor struct {
	ID string `yaml:"ID,omitempty"`
	// Deadline is how long bids are collected for each job.
	Deadline Duration `yaml:"Deadline,omitempty"`
	// JobInterval is the pause between two auctions.
	JobInterval Duration `yaml:"JobInterval,omitempty"`
	// StartDelay is the pause before the first auction.
	StartDelay Duration `yaml:"StartDelay,omitempty"`
	JobTypes   []string `yaml:"JobTypes,omitempty"`
}

func (c Supervisor) Validate() error {
	_, typesErr := models.ParseJobTypes(c.JobTypes)
	return errors.Join(
		models.ValidateAgentID(c.ID),
		validate.IsGreaterThanZero(c.Deadline, "supervisor deadline must be greater than zero"),
		validate.IsGreaterThanZero(c.JobInterval, "supervisor job interval must be greater than zero"),
		validate.IsGreaterOrEqualToZero(c.StartDelay, "supervisor start delay cannot be negative"),
		typesErr,
	)
}

type Machine struct {
	ID string `yaml:"ID,omitempty"`
	// Capabilities is a list such as "job_A:5,job_B:3" mapping job types to execution seconds.
	Capabilities string `yaml:"Capabilities,omitempty"`
	// BidRetention is how long a sent bid can still be awarded.
	BidRetention Duration `yaml:"BidRetention,omitempty"`
}

func (c Machine) Validate() error {
	_, capErr := models.ParseCapabilities(c.Capabilities)
	return errors.Join(
		models.ValidateAgentID(c.ID),
		capErr,
		validate.IsGreaterThanZero(c.BidRetention, "machine bid retention must be greater than zero"),
	)
}

// CapabilityTable parses the configured capabilities.
func (c Machine) CapabilityTable() (models.CapabilityTable, error) {
	return models.ParseCapabilities(c.Capabilities)
}

// API configures the optional status API served by every agent.
type API struct {
	Enabled bool   `yaml:"Enabled,omitempty"`
	Host    string `yaml:"Host,omitempty"`
	Port    int    `yaml:"Port,omitempty"`
}

func (c API) Validate() error {
	if !c.Enabled {
		return nil
	}
	return errors.Join(
		validate.NotBlank(c.Host, "API host cannot be blank"),
		validatePort(c.Port, "API"),
	)
}

// Logging represents the configuration settings for logging.
type Logging struct {
	// Level specifies the logging level (one of: "trace" "debug", "info", "warn", "error", "fatal").
	Level string `yaml:"Level,omitempty"`
	// Mode specifies the format of the logs (one of: "default", "json", "combined" or "event").
	Mode string `yaml:"Mode,omitempty"`
}

func (c Logging) Validate() error {
	_, levelErr := logger.ParseLevel(c.Level)
	_, modeErr := logger.ParseLogType(c.Mode)
	return errors.Join(levelErr, modeErr)
}

type Metrics struct {
	// Enabled installs an in-process meter provider that the status API reports from.
	Enabled bool `yaml:"Enabled,omitempty"`
}

func validatePort(port int, name string) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%s port %d must be between 0 and 65535", name, port)
	}
	return nil
}
