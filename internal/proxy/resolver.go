// Package proxy resolves a new proxy bid against the current leader of an
// English auction with sealed maximums.
//
// Each bidder submits a ceiling, the most they are willing to pay. The visible
// price only moves as far as needed to keep the highest ceiling in the lead:
// one price step above the runner-up's ceiling, capped at the leader's own.
// When two ceilings are equal the earlier bidder keeps the lead.
package proxy

import (
	"math"

	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
)

// Leader is the current high bidder and their stored ceiling
type Leader struct {
	BidderID  string
	MaxAmount int64
}

// Input is the auction state the resolver reads plus the incoming bid
type Input struct {
	CurrentPrice int64
	Step         int64
	BidCount     int
	Leader       *Leader
	ChallengerID string
	Ceiling      int64
}

// Row is a bid row to persist, in write order
type Row struct {
	BidderID  string
	Amount    int64
	MaxAmount int64
}

// Outcome is the settled result of one bid
type Outcome struct {
	Tag      models.SettlementTag
	Price    int64
	LeaderID string
	Rows     []Row
}

// MinimumBid is the lowest ceiling a new bid may carry. The first bid may
// match the current price; later bids must add one step.
func MinimumBid(currentPrice, step int64, bidCount int) int64 {
	if bidCount > 0 {
		return addCapped(currentPrice, step)
	}
	return currentPrice
}

// addCapped adds two non-negative amounts, saturating at math.MaxInt64
func addCapped(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

// Resolve settles one bid. It returns *biddingerrors.BidTooLowError when the
// ceiling is below the floor, or when the leader does not raise their own ceiling.
func Resolve(in Input) (Outcome, error) {
	floor := MinimumBid(in.CurrentPrice, in.Step, in.BidCount)
	if in.Ceiling < floor {
		return Outcome{}, &biddingerrors.BidTooLowError{Floor: floor}
	}

	if in.Leader == nil {
		return Outcome{
			Tag:      models.TagFirstBid,
			Price:    floor,
			LeaderID: in.ChallengerID,
			Rows:     []Row{{BidderID: in.ChallengerID, Amount: floor, MaxAmount: in.Ceiling}},
		}, nil
	}

	leader := *in.Leader

	if in.ChallengerID == leader.BidderID {
		if in.Ceiling <= leader.MaxAmount {
			return Outcome{}, &biddingerrors.BidTooLowError{Floor: max(floor, addCapped(leader.MaxAmount, 1))}
		}
		return Outcome{
			Tag:      models.TagLeaderRaised,
			Price:    in.CurrentPrice,
			LeaderID: leader.BidderID,
			Rows:     []Row{{BidderID: leader.BidderID, Amount: in.CurrentPrice, MaxAmount: in.Ceiling}},
		}, nil
	}

	if in.Ceiling <= leader.MaxAmount {
		// equal ceilings resolve to leader.MaxAmount: the incumbent bid first
		counter := min(leader.MaxAmount, addCapped(in.Ceiling, in.Step))
		return Outcome{
			Tag:      models.TagOutbidImmediately,
			Price:    counter,
			LeaderID: leader.BidderID,
			Rows: []Row{
				{BidderID: in.ChallengerID, Amount: in.Ceiling, MaxAmount: in.Ceiling},
				{BidderID: leader.BidderID, Amount: counter, MaxAmount: leader.MaxAmount},
			},
		}, nil
	}

	price := max(floor, min(in.Ceiling, addCapped(leader.MaxAmount, in.Step)))
	return Outcome{
		Tag:      models.TagChallengerWins,
		Price:    price,
		LeaderID: in.ChallengerID,
		Rows:     []Row{{BidderID: in.ChallengerID, Amount: price, MaxAmount: in.Ceiling}},
	}, nil
}

// CurrentLeader derives the leading bidder from bid history. The bidder with the
// highest ceiling leads; among equal ceilings the one who reached it first wins.
// The returned row is the leader's most recent bid at that ceiling, whose Amount
// is the visible price.
// bids must be ordered by CreatedAt ascending.
func CurrentLeader(bids []models.Bid) (models.Bid, bool) {
	if len(bids) == 0 {
		return models.Bid{}, false
	}

	top := bids[0]
	for _, b := range bids[1:] {
		if b.MaxAmount > top.MaxAmount {
			top = b
		}
	}

	latest := top
	for _, b := range bids {
		if b.BidderID == top.BidderID && b.MaxAmount == top.MaxAmount && !b.CreatedAt.Before(latest.CreatedAt) {
			latest = b
		}
	}
	return latest, true
}
