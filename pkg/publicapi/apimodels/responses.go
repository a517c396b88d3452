package apimodels

import (
	"github.com/bacalhau-project/contractnet/pkg/models"
)

type IsAliveResponse struct {
	Status string `json:"status"`
}

func (r IsAliveResponse) IsReady() bool {
	return r.Status == "OK"
}

type GetVersionResponse struct {
	BuildVersionInfo *models.BuildVersionInfo `json:"build_version_info"`
}

type GetStatsResponse struct {
	Agent models.AgentInfo `json:"agent"`
}

type GetMetricsResponse struct {
	// Metrics maps instrument names to their current value.
	Metrics map[string]int64 `json:"metrics"`
}
