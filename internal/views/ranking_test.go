package views

import (
	"testing"
	"time"

	"auction-engine/internal/models"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func bidAt(id, bidder string, amount, ceiling int64, offset time.Duration) models.Bid {
	return models.Bid{BidID: id, AuctionID: "a1", BidderID: bidder, Amount: amount, MaxAmount: ceiling, CreatedAt: t0.Add(offset)}
}

func TestRankBidders(t *testing.T) {
	tests := []struct {
		name       string
		bids       []models.Bid
		wantOrder  []string
		wantAmount map[string]int64
	}{
		{
			name:       "no_bids",
			bids:       nil,
			wantOrder:  []string{},
			wantAmount: map[string]int64{},
		},
		{
			name:       "single_bid",
			bids:       []models.Bid{bidAt("b1", "alice", 100, 150, 0)},
			wantOrder:  []string{"alice"},
			wantAmount: map[string]int64{"alice": 100},
		},
		{
			name: "counter_bid_ranks_leader_first",
			bids: []models.Bid{
				bidAt("b1", "alice", 100, 150, 0),
				bidAt("b2", "bob", 140, 140, time.Second),
				bidAt("b3", "alice", 150, 150, time.Second+time.Microsecond),
			},
			wantOrder:  []string{"alice", "bob"},
			wantAmount: map[string]int64{"alice": 150, "bob": 140},
		},
		{
			name: "equal_amount_leader_still_first",
			bids: []models.Bid{
				bidAt("b1", "alice", 100, 200, 0),
				bidAt("b2", "bob", 200, 200, time.Second),
				bidAt("b3", "alice", 200, 200, time.Second+time.Microsecond),
			},
			wantOrder:  []string{"alice", "bob"},
			wantAmount: map[string]int64{"alice": 200, "bob": 200},
		},
		{
			name: "equal_amounts_earlier_first",
			bids: []models.Bid{
				bidAt("b1", "alice", 100, 500, 0),
				bidAt("b2", "carol", 120, 120, time.Second),
				bidAt("b3", "alice", 130, 500, time.Second+time.Microsecond),
				bidAt("b4", "bob", 120, 120, 2*time.Second),
				bidAt("b5", "alice", 130, 500, 2*time.Second+time.Microsecond),
			},
			wantOrder:  []string{"alice", "carol", "bob"},
			wantAmount: map[string]int64{"alice": 130, "carol": 120, "bob": 120},
		},
		{
			name: "challenger_took_lead",
			bids: []models.Bid{
				bidAt("b1", "alice", 100, 150, 0),
				bidAt("b2", "carol", 160, 300, time.Second),
			},
			wantOrder:  []string{"carol", "alice"},
			wantAmount: map[string]int64{"carol": 160, "alice": 100},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := RankBidders(tc.bids)
			require.Equal(t, tc.wantOrder, got.SortedBidders)
			require.Len(t, got.HighestBids, len(tc.wantAmount))
			for bidder, amount := range tc.wantAmount {
				require.Equal(t, amount, got.HighestBids[bidder].Amount, bidder)
			}
			for i, bidder := range got.SortedBidders {
				require.Equal(t, i+1, got.Ranks[bidder])
			}
		})
	}
}

func TestRankBidders_Deterministic(t *testing.T) {
	bids := []models.Bid{
		bidAt("b1", "alice", 100, 100, 0),
		bidAt("b2", "bob", 110, 110, time.Second),
		bidAt("b3", "carol", 120, 120, 2*time.Second),
		bidAt("b4", "dave", 130, 200, 3*time.Second),
	}

	first := RankBidders(bids)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, RankBidders(bids))
	}
	require.Equal(t, []string{"dave", "carol", "bob", "alice"}, first.SortedBidders)
}
