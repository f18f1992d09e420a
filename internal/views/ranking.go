package views

import (
	"sort"

	"auction-engine/internal/models"
	"auction-engine/internal/proxy"
)

// Ranking orders the bidders of one auction by their best visible amount
type Ranking struct {
	Ranks         map[string]int        // key: bidderID -> value: 1-based rank
	HighestBids   map[string]models.Bid // key: bidderID -> value: bid with the highest visible amount
	SortedBidders []string
}

// RankBidders ranks bidders by the highest visible amount each reached. Equal
// amounts rank whoever got there first higher. The proxy leader always ranks
// first, since a counter bid can match a challenger's amount without beating it.
// bids must be ordered by CreatedAt ascending.
func RankBidders(bids []models.Bid) Ranking {
	result := Ranking{
		Ranks:         make(map[string]int),
		HighestBids:   make(map[string]models.Bid),
		SortedBidders: make([]string, 0),
	}
	if len(bids) == 0 {
		return result
	}

	order := make([]string, 0, len(bids))
	for _, b := range bids {
		existing, seen := result.HighestBids[b.BidderID]
		if !seen {
			order = append(order, b.BidderID)
		}
		if !seen || b.Amount > existing.Amount {
			result.HighestBids[b.BidderID] = b
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		bi, bj := result.HighestBids[order[i]], result.HighestBids[order[j]]
		if bi.Amount != bj.Amount {
			return bi.Amount > bj.Amount
		}
		return bi.CreatedAt.Before(bj.CreatedAt)
	})

	if leader, ok := proxy.CurrentLeader(bids); ok && order[0] != leader.BidderID {
		for i, id := range order {
			if id == leader.BidderID {
				copy(order[1:i+1], order[:i])
				order[0] = leader.BidderID
				break
			}
		}
	}

	result.SortedBidders = order
	for i, id := range order {
		result.Ranks[id] = i + 1
	}
	return result
}
