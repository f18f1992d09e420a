package helpers

import (
	"time"

	"auction-engine/internal/models"
)

// Request/Response DTOs
type PlaceBidRequest struct {
	MaxAmount int64 `json:"max_amount" binding:"required,gt=0,lte=999999999999999999"`
}

type PlaceBidResponse struct {
	AuctionID    string `json:"auction_id"`
	Tag          string `json:"tag"`
	CurrentPrice int64  `json:"current_price"`
	WinnerID     string `json:"winner_id"`
	BidCount     int    `json:"bid_count"`
	EndTime      string `json:"end_time"`
	Extended     bool   `json:"extended"`
}

type RejectBidResponse struct {
	AuctionID    string `json:"auction_id"`
	BidID        string `json:"bid_id"`
	CurrentPrice int64  `json:"current_price"`
	WinnerID     string `json:"winner_id,omitempty"`
	BidCount     int    `json:"bid_count"`
}

type BuyNowResponse struct {
	AuctionID  string `json:"auction_id"`
	OrderID    string `json:"order_id"`
	FinalPrice int64  `json:"final_price"`
}

// BidResponse omits max_amount unless the caller placed the bid
type BidResponse struct {
	BidID     string `json:"bid_id"`
	AuctionID string `json:"auction_id"`
	BidderID  string `json:"bidder_id"`
	Amount    int64  `json:"amount"`
	MaxAmount *int64 `json:"max_amount,omitempty"`
	CreatedAt string `json:"created_at"`
}

// NewBidResponse converts a stored bid. A zero ceiling means it was redacted.
func NewBidResponse(b models.Bid) BidResponse {
	resp := BidResponse{
		BidID:     b.BidID,
		AuctionID: b.AuctionID,
		BidderID:  b.BidderID,
		Amount:    b.Amount,
		CreatedAt: FormatTime(b.CreatedAt),
	}
	if b.MaxAmount > 0 {
		ceiling := b.MaxAmount
		resp.MaxAmount = &ceiling
	}
	return resp
}

// FormatTime renders timestamps with microsecond precision so bid order survives the wire
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000Z07:00")
}
