package nats

import (
	"github.com/bacalhau-project/contractnet/pkg/cnerrors"
)

const busClientComponent = "NATSBus"
const busServerComponent = "NATSServer"

// NewConfigurationError creates a new error for a configuration error
func NewConfigurationError(message string, args ...interface{}) cnerrors.Error {
	return cnerrors.New(message, args...).
		WithComponent(busClientComponent).
		WithCode(cnerrors.ConfigurationError)
}

// NewTransportWrappedError creates a new error for a failure reported by NATS
func NewTransportWrappedError(err error, message string, args ...interface{}) cnerrors.Error {
	return cnerrors.Wrap(err, message, args...).
		WithComponent(busClientComponent).
		WithCode(cnerrors.TransportError)
}
