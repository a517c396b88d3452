package libp2p

import (
	"github.com/bacalhau-project/contractnet/pkg/cnerrors"
)

const busComponent = "Libp2pBus"

// NewConfigurationWrappedError creates a new error for a configuration error
func NewConfigurationWrappedError(err error, message string, args ...interface{}) cnerrors.Error {
	return cnerrors.Wrap(err, message, args...).
		WithComponent(busComponent).
		WithCode(cnerrors.ConfigurationError)
}

// NewTransportWrappedError creates a new error for a failure reported by libp2p
func NewTransportWrappedError(err error, message string, args ...interface{}) cnerrors.Error {
	return cnerrors.Wrap(err, message, args...).
		WithComponent(busComponent).
		WithCode(cnerrors.TransportError)
}
