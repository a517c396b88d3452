//go:build unit || !integration

package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacalhau-project/contractnet/pkg/models"
	"github.com/bacalhau-project/contractnet/pkg/publicapi/apimodels"
	"github.com/bacalhau-project/contractnet/pkg/telemetry"
)

type fixedInfoProvider models.AgentInfo

func (p fixedInfoProvider) GetAgentInfo(context.Context) models.AgentInfo {
	return models.AgentInfo(p)
}

func newRouter() *echo.Echo {
	router := echo.New()
	NewEndpoint(EndpointParams{
		Router: router,
		AgentInfoProvider: fixedInfoProvider{
			Kind:         models.AgentKindMachine,
			ID:           "machine_001",
			State:        "Executing",
			CurrentJob:   "job_1",
			Capabilities: "job_A:3s",
			Stats:        map[string]int{"bids_sent": 2},
		},
	})
	return router
}

func get(t *testing.T, router *echo.Echo, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	rr := get(t, newRouter(), "/api/v1/healthz")
	require.Equal(t, http.StatusOK, rr.Code)

	var payload apimodels.IsAliveResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&payload))
	assert.True(t, payload.IsReady())
}

func TestStats(t *testing.T) {
	rr := get(t, newRouter(), "/api/v1/stats")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON)

	var payload struct {
		Agent struct {
			Kind       string         `json:"kind"`
			ID         string         `json:"id"`
			State      string         `json:"state"`
			CurrentJob string         `json:"current_job"`
			Stats      map[string]int `json:"stats"`
		} `json:"agent"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&payload))
	assert.Equal(t, "machine", payload.Agent.Kind)
	assert.Equal(t, "machine_001", payload.Agent.ID)
	assert.Equal(t, "Executing", payload.Agent.State)
	assert.Equal(t, "job_1", payload.Agent.CurrentJob)
	assert.Equal(t, 2, payload.Agent.Stats["bids_sent"])
}

func TestVersion(t *testing.T) {
	rr := get(t, newRouter(), "/api/v1/version")
	require.Equal(t, http.StatusOK, rr.Code)

	var payload apimodels.GetVersionResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&payload))
	require.NotNil(t, payload.BuildVersionInfo)
	assert.NotEmpty(t, payload.BuildVersionInfo.GitVersion)
}

func TestMetrics(t *testing.T) {
	router := newRouter()
	if !telemetry.MetricsEnabled() {
		rr := get(t, router, "/api/v1/metrics")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	}

	telemetry.SetupMetrics()
	rr := get(t, router, "/api/v1/metrics")
	require.Equal(t, http.StatusOK, rr.Code)

	var payload apimodels.GetMetricsResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&payload))
	assert.NotNil(t, payload.Metrics)
}
