package util

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bacalhau-project/contractnet/cmd/util/cols"
	"github.com/bacalhau-project/contractnet/cmd/util/output"
	"github.com/bacalhau-project/contractnet/pkg/models"
	"github.com/bacalhau-project/contractnet/pkg/node"
)

// ShutdownTimeout bounds how long a command waits for its agents to stop.
const ShutdownTimeout = 10 * time.Second

// RunNode starts n, blocks until the command's context is cancelled, stops n and prints its
// final counters.
func RunNode(cmd *cobra.Command, n *node.Node) error {
	ctx := cmd.Context()
	if err := n.Start(ctx); err != nil {
		return err
	}
	log.Ctx(ctx).Info().Msgf("%s running, press Ctrl+C to stop", n.ID)
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	if err := n.Stop(stopCtx); err != nil {
		return err
	}
	return PrintAgentStats(cmd, []models.AgentInfo{n.GetAgentInfo(stopCtx)})
}

// PrintAgentStats prints the state and counters of agents as a table.
func PrintAgentStats(cmd *cobra.Command, agents []models.AgentInfo) error {
	return output.Output(cmd, cols.AgentColumns, output.OutputOptions{Format: output.TableFormat}, agents)
}
