package supervisor

import (
	"github.com/bacalhau-project/contractnet/pkg/models"
)

// SelectWinner returns the bid with the shortest proposed time. Ties are broken by the
// earliest bid timestamp, then by arrival order, so the result is deterministic for a
// given bid set. It returns false if there are no bids.
func SelectWinner(bids []models.Bid) (models.Bid, bool) {
	if len(bids) == 0 {
		return models.Bid{}, false
	}
	winner := bids[0]
	for _, bid := range bids[1:] {
		if betterBid(bid, winner) {
			winner = bid
		}
	}
	return winner, true
}

// betterBid returns true if candidate strictly beats current. Equal bids keep the earlier arrival.
func betterBid(candidate, current models.Bid) bool {
	if candidate.ProposedTime != current.ProposedTime {
		return candidate.ProposedTime < current.ProposedTime
	}
	return candidate.Timestamp.Before(current.Timestamp)
}
