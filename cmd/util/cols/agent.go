package cols

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/bacalhau-project/contractnet/cmd/util/output"
	"github.com/bacalhau-project/contractnet/pkg/machine"
	"github.com/bacalhau-project/contractnet/pkg/models"
	"github.com/bacalhau-project/contractnet/pkg/supervisor"
)

var (
	AgentID = output.TableColumn[models.AgentInfo]{
		ColumnConfig: table.ColumnConfig{Name: "Agent"},
		Value:        func(a models.AgentInfo) string { return a.ID },
	}
	AgentKind = output.TableColumn[models.AgentInfo]{
		ColumnConfig: table.ColumnConfig{Name: "Kind"},
		Value:        func(a models.AgentInfo) string { return string(a.Kind) },
	}
	AgentState = output.TableColumn[models.AgentInfo]{
		ColumnConfig: table.ColumnConfig{Name: "State"},
		Value:        func(a models.AgentInfo) string { return a.State },
	}
	AgentCurrentJob = output.TableColumn[models.AgentInfo]{
		ColumnConfig: table.ColumnConfig{Name: "Current Job", WidthMax: 20, WidthMaxEnforcer: text.Trim},
		Value:        func(a models.AgentInfo) string { return a.CurrentJob },
	}
	AgentCapabilities = output.TableColumn[models.AgentInfo]{
		ColumnConfig: table.ColumnConfig{Name: "Capabilities", WidthMax: 40, WidthMaxEnforcer: text.WrapSoft},
		Value:        func(a models.AgentInfo) string { return a.Capabilities },
	}
	AgentAuctions = output.TableColumn[models.AgentInfo]{
		ColumnConfig: table.ColumnConfig{Name: "Auctions", Align: text.AlignRight},
		Value: func(a models.AgentInfo) string {
			switch stats := a.Stats.(type) {
			case supervisor.Stats:
				return fmt.Sprintf("%d/%d allocated", stats.JobsAllocated, stats.AuctionsCreated)
			case machine.Stats:
				return fmt.Sprintf("%d/%d won", stats.JobsWon, stats.BidsSent)
			default:
				return ""
			}
		},
	}
	AgentFailures = output.TableColumn[models.AgentInfo]{
		ColumnConfig: table.ColumnConfig{Name: "Failed/Lost", Align: text.AlignRight},
		Value: func(a models.AgentInfo) string {
			switch stats := a.Stats.(type) {
			case supervisor.Stats:
				return strconv.FormatUint(stats.AuctionsFailed, 10)
			case machine.Stats:
				return strconv.FormatUint(stats.BidsLost, 10)
			default:
				return ""
			}
		},
	}
	AgentCompleted = output.TableColumn[models.AgentInfo]{
		ColumnConfig: table.ColumnConfig{Name: "Completed", Align: text.AlignRight},
		Value: func(a models.AgentInfo) string {
			switch stats := a.Stats.(type) {
			case supervisor.Stats:
				return strconv.FormatUint(stats.JobsCompleted, 10)
			case machine.Stats:
				return strconv.FormatUint(stats.JobsCompleted, 10)
			default:
				return ""
			}
		},
	}
)

// AgentColumns are the columns printed for agent stats.
var AgentColumns = []output.TableColumn[models.AgentInfo]{
	AgentID,
	AgentKind,
	AgentState,
	AgentCurrentJob,
	AgentCapabilities,
	AgentAuctions,
	AgentFailures,
	AgentCompleted,
}
