package version

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/bacalhau-project/contractnet/cmd/util/flags/cliflags"
	"github.com/bacalhau-project/contractnet/cmd/util/output"
	"github.com/bacalhau-project/contractnet/pkg/models"
	"github.com/bacalhau-project/contractnet/pkg/publicapi/apimodels"
	"github.com/bacalhau-project/contractnet/pkg/version"
)

const serverTimeout = 5 * time.Second

type VersionOptions struct {
	// Server is the status API of an agent to also ask for its version.
	Server     string
	OutputOpts output.OutputOptions
}

func NewVersionOptions() *VersionOptions {
	return &VersionOptions{
		OutputOpts: output.OutputOptions{Format: output.TableFormat},
	}
}

// Versions are the versions of this binary and optionally of a running agent.
type Versions struct {
	ClientVersion *models.BuildVersionInfo `json:"client_version,omitempty"`
	ServerVersion *models.BuildVersionInfo `json:"server_version,omitempty"`
}

func NewCmd() *cobra.Command {
	oV := NewVersionOptions()

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Get the client and optionally an agent's version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVersion(cmd, oV)
		},
	}
	versionCmd.Flags().StringVar(&oV.Server, "server", oV.Server,
		"The status API URL of an agent to query for its version, e.g. http://127.0.0.1:1234.")
	versionCmd.Flags().AddFlagSet(cliflags.OutputFormatFlags(&oV.OutputOpts))

	return versionCmd
}

func runVersion(cmd *cobra.Command, oV *VersionOptions) error {
	err := oV.Run(cmd.Context(), cmd)
	if err != nil {
		return fmt.Errorf("error running version: %w", err)
	}
	return nil
}

var clientVersionColumn = output.TableColumn[Versions]{
	ColumnConfig: table.ColumnConfig{Name: "client"},
	Value:        func(v Versions) string { return v.ClientVersion.GitVersion },
}

var serverVersionColumn = output.TableColumn[Versions]{
	ColumnConfig: table.ColumnConfig{Name: "server"},
	Value:        func(v Versions) string { return v.ServerVersion.GitVersion },
}

func (oV *VersionOptions) Run(ctx context.Context, cmd *cobra.Command) error {
	versions := Versions{ClientVersion: version.Get()}
	columns := []output.TableColumn[Versions]{clientVersionColumn}

	if oV.Server != "" {
		serverVersion, err := getServerVersion(ctx, oV.Server)
		if err != nil {
			// No error on fail of version check. Just print as much as we can.
			cmd.PrintErrln("failed to get server version: ", err)
		} else {
			versions.ServerVersion = serverVersion
			columns = append(columns, serverVersionColumn)
		}
	}
	return output.OutputOne(cmd, columns, oV.OutputOpts, versions)
}

func getServerVersion(ctx context.Context, server string) (*models.BuildVersionInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, serverTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server+"/api/v1/version", nil)
	if err != nil {
		return nil, err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", res.Status)
	}

	var payload apimodels.GetVersionResponse
	if err = json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.BuildVersionInfo == nil {
		return nil, fmt.Errorf("no version in response from %s", server)
	}
	return payload.BuildVersionInfo, nil
}
