//go:build unit || !integration

package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacalhau-project/contractnet/pkg/models"
)

func TestSelectWinner(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	bid := func(machineID string, proposed time.Duration, submittedAfter time.Duration) models.Bid {
		return models.Bid{
			MachineID:    machineID,
			JobID:        "job_1",
			ProposedTime: proposed,
			Timestamp:    base.Add(submittedAfter),
		}
	}

	tests := []struct {
		name     string
		bids     []models.Bid
		expected string
	}{
		{
			name:     "single bid",
			bids:     []models.Bid{bid("machine_001", 5*time.Second, 0)},
			expected: "machine_001",
		},
		{
			name: "shortest proposed time",
			bids: []models.Bid{
				bid("machine_001", 5*time.Second, 0),
				bid("machine_002", 3*time.Second, time.Second),
				bid("machine_003", 4*time.Second, 0),
			},
			expected: "machine_002",
		},
		{
			name: "tie broken by earliest timestamp",
			bids: []models.Bid{
				bid("machine_001", 4*time.Second, 2*time.Second),
				bid("machine_002", 4*time.Second, time.Second),
				bid("machine_003", 5*time.Second, 0),
			},
			expected: "machine_002",
		},
		{
			name: "full tie broken by arrival order",
			bids: []models.Bid{
				bid("machine_003", 4*time.Second, time.Second),
				bid("machine_001", 4*time.Second, time.Second),
				bid("machine_002", 4*time.Second, time.Second),
			},
			expected: "machine_003",
		},
		{
			name: "zero proposed time",
			bids: []models.Bid{
				bid("machine_001", time.Second, 0),
				bid("machine_002", 0, time.Second),
			},
			expected: "machine_002",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			winner, ok := SelectWinner(tt.bids)
			require.True(t, ok)
			assert.Equal(t, tt.expected, winner.MachineID)

			// same input, same winner
			again, _ := SelectWinner(tt.bids)
			assert.Equal(t, winner, again)
		})
	}
}

func TestSelectWinnerNoBids(t *testing.T) {
	_, ok := SelectWinner(nil)
	assert.False(t, ok)
	_, ok = SelectWinner([]models.Bid{})
	assert.False(t, ok)
}

func TestSelectWinnerFromWireBids(t *testing.T) {
	decode := func(payload string) models.Bid {
		reply, err := models.Decode[models.BidReply]([]byte(payload))
		require.NoError(t, err)
		return reply.Bid()
	}

	// sub-millisecond differences decide the auction, not the timestamp tie-break
	slower := decode(`{"type": "bid", "machine_id": "machine_slow", "job_id": "job_1", "proposed_time": 3.0004, "timestamp": 1}`)
	faster := decode(`{"type": "bid", "machine_id": "machine_fast", "job_id": "job_1", "proposed_time": 2.9996, "timestamp": 2}`)
	winner, ok := SelectWinner([]models.Bid{slower, faster})
	require.True(t, ok)
	assert.Equal(t, "machine_fast", winner.MachineID)

	// the largest accepted proposal never wraps around into a short one
	largest := decode(`{"type": "bid", "machine_id": "machine_huge", "job_id": "job_1", "proposed_time": 9e9, "timestamp": 0}`)
	winner, ok = SelectWinner([]models.Bid{largest, slower})
	require.True(t, ok)
	assert.Equal(t, "machine_slow", winner.MachineID)

	_, err := models.Decode[models.BidReply]([]byte(`{"type": "bid", "machine_id": "machine_huge", "job_id": "job_1", "proposed_time": 1e10}`))
	assert.Error(t, err)
}
