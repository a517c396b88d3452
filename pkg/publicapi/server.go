package publicapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddelware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bacalhau-project/contractnet/pkg/cnerrors"
	"github.com/bacalhau-project/contractnet/pkg/lib/validate"
	"github.com/bacalhau-project/contractnet/pkg/models"
	"github.com/bacalhau-project/contractnet/pkg/publicapi/endpoint/agent"
	"github.com/bacalhau-project/contractnet/pkg/publicapi/middleware"
)

const component = "APIServer"

type Config struct {
	// These are TCP connection deadlines and not HTTP timeouts. They don't control the time it takes for our handlers
	// to complete. Deadlines operate on the connection, so our server will fail to return a result only after
	// the handlers try to access connection properties
	ReadHeaderTimeout time.Duration // the amount of time allowed to read request headers
	ReadTimeout       time.Duration // the maximum duration for reading the entire request, including the body
	WriteTimeout      time.Duration // the maximum duration before timing out writes of the response

	// This represents maximum duration for handlers to complete, or else fail the request with 503 error code.
	RequestHandlerTimeout time.Duration

	// SkippedLogPaths are not logged, e.g. health checks.
	SkippedLogPaths []string
	LogLevel        zerolog.Level
}

var DefaultConfig = Config{
	ReadHeaderTimeout:     10 * time.Second,
	ReadTimeout:           20 * time.Second,
	WriteTimeout:          20 * time.Second,
	RequestHandlerTimeout: 30 * time.Second,
	SkippedLogPaths:       []string{"/api/v1/healthz"},
	LogLevel:              zerolog.DebugLevel,
}

type ServerParams struct {
	Address string
	// Port to listen on. 0 picks a random free port.
	Port  int
	Agent models.AgentInfoProvider
	// Config is optional. DefaultConfig is used when not set.
	Config *Config
}

// Server is the status API of a single agent.
type Server struct {
	Router  *echo.Echo
	Address string
	Port    int

	httpServer *http.Server
	listener   net.Listener
	config     Config
}

func NewAPIServer(params ServerParams) (*Server, error) {
	err := errors.Join(
		validate.NotBlank(params.Address, "API address cannot be blank"),
		validate.IsGreaterOrEqualToZero(params.Port, "API port cannot be negative"),
		validate.NotNil(params.Agent, "API agent info provider cannot be nil"),
	)
	if err != nil {
		return nil, cnerrors.Wrap(err, "invalid API server configuration").
			WithCode(cnerrors.ConfigurationError).
			WithComponent(component)
	}
	config := DefaultConfig
	if params.Config != nil {
		config = *params.Config
	}

	server := &Server{
		Router:  echo.New(),
		Address: params.Address,
		Port:    params.Port,
		config:  config,
	}
	server.Router.HideBanner = true
	server.Router.HidePort = true
	server.Router.HTTPErrorHandler = middleware.CustomHTTPErrorHandler

	server.Router.Use(
		echomiddelware.RequestID(),
		middleware.RequestLogger(log.Logger, config.LogLevel, middleware.PathMatchSkipper(config.SkippedLogPaths)),
		echomiddelware.Recover(),
		echomiddelware.ContextTimeoutWithConfig(echomiddelware.ContextTimeoutConfig{
			Timeout: config.RequestHandlerTimeout,
		}),
	)
	agent.NewEndpoint(agent.EndpointParams{
		Router:            server.Router,
		AgentInfoProvider: params.Agent,
	})
	return server, nil
}

// GetURI returns the HTTP URI that the server is listening on.
func (s *Server) GetURI() string {
	return fmt.Sprintf("http://%s:%d", s.Address, s.Port)
}

// ListenAndServe binds the listen address and serves requests in the background
// until Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", net.JoinHostPort(s.Address, fmt.Sprint(s.Port)))
	if err != nil {
		return cnerrors.Wrap(err, "API server failed to listen on %s:%d", s.Address, s.Port).
			WithCode(cnerrors.ConfigurationError).
			WithComponent(component).
			WithHint("choose another port with --api-port")
	}
	s.listener = listener
	if s.Port == 0 {
		s.Port = listener.Addr().(*net.TCPAddr).Port
	}

	s.httpServer = &http.Server{
		Handler:           s.Router,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	log.Ctx(ctx).Debug().Msgf("API server listening on %s", s.GetURI())
	go func() {
		if serveErr := s.httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			log.Ctx(ctx).Error().Err(serveErr).Msg("API server stopped unexpectedly")
		}
	}()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return cnerrors.Wrap(err, "failed to shut down API server").WithComponent(component)
	}
	log.Ctx(ctx).Debug().Msgf("API server on %s closed", s.GetURI())
	return nil
}
