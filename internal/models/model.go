package models

import "time"

// AuctionStatus is the lifecycle state of an auction
type AuctionStatus string

const (
	StatusActive    AuctionStatus = "active"
	StatusSold      AuctionStatus = "sold"
	StatusEnded     AuctionStatus = "ended"
	StatusCancelled AuctionStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses
func (s AuctionStatus) Valid() bool {
	switch s {
	case StatusActive, StatusSold, StatusEnded, StatusCancelled:
		return true
	}
	return false
}

// OrderStatusPendingPayment is the state every order starts in
const OrderStatusPendingPayment = "pending_payment"

// MaxMoney is the largest amount a NUMERIC(20,2) money column holds in whole units
const MaxMoney int64 = 999_999_999_999_999_999

// User represents a participant in the auction
type User struct {
	UserID     string     `json:"user_id"`
	Username   string     `json:"username"`
	Reputation Reputation `json:"reputation"`
}

// Reputation holds the rating counters written by the review workflow
type Reputation struct {
	TotalRatings    int `json:"total_ratings"`
	PositiveRatings int `json:"positive_ratings"`
}

// Rated reports whether the user has received at least one rating
func (r Reputation) Rated() bool {
	return r.TotalRatings > 0
}

// Percent returns the share of positive ratings in [0, 100]. Unrated users yield 0.
func (r Reputation) Percent() float64 {
	if r.TotalRatings <= 0 {
		return 0
	}
	return float64(r.PositiveRatings) / float64(r.TotalRatings) * 100
}

// Auction is a listed item open to bids. Money fields are integer currency units.
type Auction struct {
	AuctionID     string        `json:"auction_id"`
	SellerID      string        `json:"seller_id"`
	CategoryID    string        `json:"category_id"`
	Title         string        `json:"title"`
	StartingPrice int64         `json:"starting_price"`
	CurrentPrice  int64         `json:"current_price"`
	PriceStep     int64         `json:"price_step"`
	BuyNowPrice   *int64        `json:"buy_now_price,omitempty"`
	Status        AuctionStatus `json:"status"`
	EndTime       time.Time     `json:"end_time"`
	WinnerID      *string       `json:"winner_id,omitempty"`
	BidCount      int           `json:"bid_count"`
	AutoExtend    bool          `json:"auto_extend"`
	AllowUnrated  bool          `json:"allow_unrated"`
	CreatedAt     time.Time     `json:"created_at"`
}

// OpenAt reports whether the auction still accepts bids at the given instant.
// An active auction whose end time has passed is treated as closed.
func (a Auction) OpenAt(now time.Time) bool {
	return a.Status == StatusActive && now.Before(a.EndTime)
}

// EffectiveStatus is the status readers should display at the given instant
func (a Auction) EffectiveStatus(now time.Time) AuctionStatus {
	if a.Status == StatusActive && !now.Before(a.EndTime) {
		return StatusEnded
	}
	return a.Status
}

// Winner returns the winner id or an empty string
func (a Auction) Winner() string {
	if a.WinnerID == nil {
		return ""
	}
	return *a.WinnerID
}

// Bid is a single bid row. Amount is the visible price while this row leads;
// MaxAmount is the bidder's hidden proxy ceiling.
type Bid struct {
	BidID     string    `json:"bid_id"`
	AuctionID string    `json:"auction_id"`
	BidderID  string    `json:"bidder_id"`
	Amount    int64     `json:"amount"`
	MaxAmount int64     `json:"max_amount"`
	CreatedAt time.Time `json:"created_at"`
}

// Order is the hand-off record for the post-sale workflow
type Order struct {
	OrderID    string    `json:"order_id"`
	AuctionID  string    `json:"auction_id"`
	BuyerID    string    `json:"buyer_id"`
	SellerID   string    `json:"seller_id"`
	FinalPrice int64     `json:"final_price"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// SettlementTag describes how a bid was resolved against the current leader
type SettlementTag string

const (
	TagFirstBid          SettlementTag = "first_bid"
	TagLeaderRaised      SettlementTag = "leader_raised_ceiling"
	TagOutbidImmediately SettlementTag = "outbid_immediately"
	TagChallengerWins    SettlementTag = "challenger_wins"
)
