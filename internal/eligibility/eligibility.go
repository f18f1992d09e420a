// Package eligibility decides whether a user may bid on an auction.
package eligibility

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
)

// DefaultMinPositivePercent is the lowest positive-rating share accepted from rated bidders
const DefaultMinPositivePercent = 80.0

// Input gathers everything the check reads. MinPositivePercent <= 0 selects the default.
type Input struct {
	BidderID           string
	SellerID           string
	Reputation         models.Reputation
	AllowUnrated       bool
	MinPositivePercent float64
}

// Check returns nil when the bidder may bid, ErrSelfBidForbidden when the bidder
// is the seller, or a *biddingerrors.ReputationError otherwise.
func Check(in Input) error {
	if in.BidderID == in.SellerID {
		return biddingerrors.ErrSelfBidForbidden
	}

	minimum := in.MinPositivePercent
	if minimum <= 0 {
		minimum = DefaultMinPositivePercent
	}

	if !in.Reputation.Rated() {
		if in.AllowUnrated {
			return nil
		}
		return &biddingerrors.ReputationError{Rated: false, Minimum: minimum}
	}

	percent := in.Reputation.Percent()
	if percent < minimum {
		return &biddingerrors.ReputationError{Rated: true, Percent: percent, Minimum: minimum}
	}
	return nil
}
