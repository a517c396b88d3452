package pubsub

import (
	"github.com/bacalhau-project/contractnet/pkg/cnerrors"
)

const busComponent = "Bus"

// NewTransportError creates a new error for a bus that could not be reached or used
func NewTransportError(message string, args ...interface{}) cnerrors.Error {
	return cnerrors.New(message, args...).
		WithComponent(busComponent).
		WithCode(cnerrors.TransportError)
}

// NewTransportWrappedError wraps an error returned by the underlying transport
func NewTransportWrappedError(err error, message string, args ...interface{}) cnerrors.Error {
	return cnerrors.Wrap(err, message, args...).
		WithComponent(busComponent).
		WithCode(cnerrors.TransportError)
}

// ErrBusClosed is returned when publishing or subscribing on a closed bus.
var ErrBusClosed = NewTransportError("bus is closed")
