package cnerrors

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrorCode classifies an error so callers can decide how to react to it
// without matching on messages.
type ErrorCode string

const (
	// ConfigurationError means an agent was started with invalid settings.
	ConfigurationError ErrorCode = "ConfigurationError"
	// TransportError means the pub/sub bus could not be reached or used.
	TransportError ErrorCode = "TransportError"
	// ProtocolError means a peer sent a message that does not follow the protocol.
	ProtocolError ErrorCode = "ProtocolError"
	// InternalError is used when nothing more specific applies.
	InternalError ErrorCode = "InternalError"
)

// Error is the error type returned at the boundaries of the agents.
type Error interface {
	error
	// ErrorWrapped returns the message including every wrapping context.
	ErrorWrapped() string
	Unwrap() error
	Code() ErrorCode
	Component() string
	Hint() string
	StackTrace() pkgerrors.StackTrace

	WithCode(code ErrorCode) Error
	WithComponent(component string) Error
	WithHint(hint string, args ...any) Error
}

type errorImpl struct {
	message      string
	wrappingMsg  string
	cause        error
	code         ErrorCode
	component    string
	hint         string
	stack        pkgerrors.StackTrace
	wrapsCNError bool
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// New creates an error with the given message, capturing the current stack.
func New(format string, args ...any) Error {
	return &errorImpl{
		message: fmt.Sprintf(format, args...),
		code:    InternalError,
		stack:   callers(),
	}
}

// Wrap adds context to an existing error. If err is already an Error, its message,
// code, component and stack are preserved and the context only shows in ErrorWrapped.
// Wrap returns nil if err is nil.
func Wrap(err error, format string, args ...any) Error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	var cnErr Error
	if errors.As(err, &cnErr) {
		return &errorImpl{
			message:      cnErr.Error(),
			wrappingMsg:  msg,
			cause:        err,
			code:         cnErr.Code(),
			component:    cnErr.Component(),
			hint:         cnErr.Hint(),
			stack:        cnErr.StackTrace(),
			wrapsCNError: true,
		}
	}
	return &errorImpl{
		message:     msg + ": " + err.Error(),
		wrappingMsg: msg,
		cause:       err,
		code:        InternalError,
		stack:       callers(),
	}
}

func callers() pkgerrors.StackTrace {
	// skip this function and the constructor that called it
	st := pkgerrors.New("").(stackTracer).StackTrace()
	if len(st) > 2 {
		return st[2:]
	}
	return st
}

func (e *errorImpl) Error() string {
	return e.message
}

func (e *errorImpl) ErrorWrapped() string {
	if !e.wrapsCNError {
		return e.message
	}
	var inner Error
	errors.As(e.cause, &inner)
	return e.wrappingMsg + ": " + inner.ErrorWrapped()
}

func (e *errorImpl) Unwrap() error {
	return e.cause
}

func (e *errorImpl) Code() ErrorCode                  { return e.code }
func (e *errorImpl) Component() string                { return e.component }
func (e *errorImpl) Hint() string                     { return e.hint }
func (e *errorImpl) StackTrace() pkgerrors.StackTrace { return e.stack }

func (e *errorImpl) WithCode(code ErrorCode) Error {
	e.code = code
	return e
}

func (e *errorImpl) WithComponent(component string) Error {
	e.component = component
	return e
}

func (e *errorImpl) WithHint(hint string, args ...any) Error {
	e.hint = fmt.Sprintf(hint, args...)
	return e
}

// IsCode returns true if any Error in err's chain carries the given code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		var cnErr Error
		if !errors.As(err, &cnErr) {
			return false
		}
		if cnErr.Code() == code {
			return true
		}
		err = cnErr.Unwrap()
	}
	return false
}

// compile-time interface check
var _ Error = (*errorImpl)(nil)
