package models

import (
	"time"
)

// BuildVersionInfo is the version of a contractnet binary
type BuildVersionInfo struct {
	Major      string    `json:"major,omitempty"`
	Minor      string    `json:"minor,omitempty"`
	GitVersion string    `json:"git_version"`
	GitCommit  string    `json:"git_commit"`
	BuildDate  time.Time `json:"build_date"`
	GOOS       string    `json:"goos"`
	GOARCH     string    `json:"goarch"`
}
