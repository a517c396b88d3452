package nats

import (
	"github.com/nats-io/nats-server/v2/server"
	"github.com/rs/zerolog"
)

// serverLogger routes the embedded bus server's log lines into zerolog,
// tagged with the server name.
type serverLogger struct {
	logger zerolog.Logger
}

func newServerLogger(logger zerolog.Logger, serverName string) serverLogger {
	return serverLogger{logger: logger.With().Str("BusServer", serverName).Logger()}
}

// Connection notices are emitted for every agent that joins, so they go to trace.
func (l serverLogger) Noticef(format string, v ...interface{}) {
	l.logger.Trace().Msgf(format, v...)
}

func (l serverLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn().Msgf(format, v...)
}

// Fatalf is logged as an error. The server keeps running inside the agent process.
func (l serverLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error().Msgf(format, v...)
}

func (l serverLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error().Msgf(format, v...)
}

func (l serverLogger) Debugf(format string, v ...interface{}) {
	l.logger.Trace().Msgf(format, v...)
}

func (l serverLogger) Tracef(format string, v ...interface{}) {
	l.logger.Trace().Msgf(format, v...)
}

var _ server.Logger = serverLogger{}
