package nats

import (
	"context"
	"os"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/rs/zerolog/log"

	"github.com/bacalhau-project/contractnet/pkg/cnerrors"
)

const ReadyForConnectionsTimeout = 5 * time.Second

type ServerParams struct {
	// Name identifies the server in logs
	Name string
	Host string
	// Port to listen on. -1 picks a random free port.
	Port              int
	ConnectionTimeout time.Duration
}

// Server is an embedded NATS server used by `contractnet bus`, devstack and tests.
type Server struct {
	Server *server.Server
}

// NewServer starts an embedded NATS server and waits until it accepts connections.
func NewServer(ctx context.Context, params ServerParams) (*Server, error) {
	opts := &server.Options{
		ServerName: params.Name,
		Host:       params.Host,
		Port:       params.Port,
		Debug:      true, // will only be used if log level is debug
		NoSigs:     true, // disable terminating the server on SIGINT/SIGTERM
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, cnerrors.Wrap(err, "failed to create NATS server").
			WithComponent(busServerComponent).
			WithCode(cnerrors.ConfigurationError)
	}
	ns.SetLoggerV2(newServerLogger(log.Logger, opts.ServerName), opts.Debug, opts.Trace, opts.TraceVerbose)
	go ns.Start()

	if params.ConnectionTimeout == 0 {
		params.ConnectionTimeout = ReadyForConnectionsTimeout
	}
	if !ns.ReadyForConnections(params.ConnectionTimeout) {
		ns.Shutdown()
		return nil, cnerrors.New("NATS server not ready for connection within %s", params.ConnectionTimeout).
			WithComponent(busServerComponent).
			WithCode(cnerrors.TransportError).
			WithHint("check that port %d is not already in use, or run %s bus with a different --bus-port",
				params.Port, os.Args[0])
	}
	log.Ctx(ctx).Debug().Msgf("NATS server %s listening on %s", ns.ID(), ns.ClientURL())
	return &Server{
		Server: ns,
	}, nil
}

// ClientURL returns the URL clients should use to connect to the server.
func (s *Server) ClientURL() string {
	return s.Server.ClientURL()
}

// Stop stops the NATS server
func (s *Server) Stop() {
	s.Server.Shutdown()
	s.Server.WaitForShutdown()
}
