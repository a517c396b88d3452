package agent

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bacalhau-project/contractnet/pkg/models"
	"github.com/bacalhau-project/contractnet/pkg/publicapi/apimodels"
	"github.com/bacalhau-project/contractnet/pkg/publicapi/middleware"
	"github.com/bacalhau-project/contractnet/pkg/telemetry"
	"github.com/bacalhau-project/contractnet/pkg/version"
)

type EndpointParams struct {
	Router            *echo.Echo
	AgentInfoProvider models.AgentInfoProvider
}

type Endpoint struct {
	router            *echo.Echo
	agentInfoProvider models.AgentInfoProvider
}

func NewEndpoint(params EndpointParams) *Endpoint {
	e := &Endpoint{
		router:            params.Router,
		agentInfoProvider: params.AgentInfoProvider,
	}

	// JSON group
	g := e.router.Group("/api/v1")
	g.Use(middleware.SetContentType(echo.MIMEApplicationJSON))
	g.GET("/healthz", e.healthz)
	g.GET("/version", e.version)
	g.GET("/stats", e.stats)
	g.GET("/metrics", e.metrics)
	return e
}

// healthz reports the agent is up.
func (e *Endpoint) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, &apimodels.IsAliveResponse{
		Status: "OK",
	})
}

// version returns the build version of the agent.
func (e *Endpoint) version(c echo.Context) error {
	return c.JSON(http.StatusOK, apimodels.GetVersionResponse{
		BuildVersionInfo: version.Get(),
	})
}

// stats returns the agent kind, id, state and counters.
func (e *Endpoint) stats(c echo.Context) error {
	return c.JSON(http.StatusOK, apimodels.GetStatsResponse{
		Agent: e.agentInfoProvider.GetAgentInfo(c.Request().Context()),
	})
}

// metrics returns the in-process otel instruments when metrics are enabled.
func (e *Endpoint) metrics(c echo.Context) error {
	if !telemetry.MetricsEnabled() {
		return echo.NewHTTPError(http.StatusNotFound, "metrics are not enabled, restart the agent with --metrics")
	}
	rm, err := telemetry.Collect(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to collect metrics").SetInternal(err)
	}
	return c.JSON(http.StatusOK, apimodels.GetMetricsResponse{
		Metrics: telemetry.Snapshot(rm),
	})
}
