package repository

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=repository

import (
	"context"
	"time"

	"auction-engine/internal/models"
)

// AuctionSort orders ListAuctions. Ties fall back to newest first, then id.
type AuctionSort string

const (
	SortNewest     AuctionSort = "newest"
	SortEndingSoon AuctionSort = "ending_soon"
	SortPriceAsc   AuctionSort = "price_asc"
	SortPriceDesc  AuctionSort = "price_desc"
)

// Valid reports whether s is a known order. Empty means newest.
func (s AuctionSort) Valid() bool {
	switch s {
	case "", SortNewest, SortEndingSoon, SortPriceAsc, SortPriceDesc:
		return true
	}
	return false
}

// AuctionFilter narrows ListAuctions. Zero values match everything.
// When Now is set, Status matches the effective status at that instant:
// an active auction whose end time has passed counts as ended.
type AuctionFilter struct {
	CategoryID string
	SellerID   string
	Status     models.AuctionStatus
	Now        time.Time
	Sort       AuctionSort
	Limit      int
	Offset     int
}

// Tx is the unit-of-work handle passed to WithinTx. LockAuction must be called
// before any write to that auction; it serializes all writers of the same row
// until the unit of work ends.
type Tx interface {
	LockAuction(ctx context.Context, auctionID string) (models.Auction, error)
	ListBids(ctx context.Context, auctionID string) ([]models.Bid, error)
	GetReputation(ctx context.Context, userID string) (models.Reputation, error)
	InsertBid(ctx context.Context, bid models.Bid) error
	DeleteBid(ctx context.Context, auctionID, bidID string) (models.Bid, error)
	UpdateAuction(ctx context.Context, auction models.Auction) error
	CreateOrder(ctx context.Context, order models.Order) (string, error)
}

// AuctionDB defines the storage port of the settlement engine
type AuctionDB interface {
	// WithinTx runs fn in one atomic unit: every write fn made is committed if
	// fn returns nil, and none is if it returns an error or panics.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetAuction(ctx context.Context, auctionID string) (models.Auction, error)
	ListAuctions(ctx context.Context, filter AuctionFilter) ([]models.Auction, error)
	GetBidsByAuction(ctx context.Context, auctionID string) ([]models.Bid, error)
	GetReputation(ctx context.Context, userID string) (models.Reputation, error)
	FavoriteCount(ctx context.Context, auctionID string) (int, error)
	IsFavorite(ctx context.Context, auctionID, userID string) (bool, error)

	// ExpireAuctions marks active auctions whose end time is not after now as ended
	ExpireAuctions(ctx context.Context, now time.Time) (int, error)
}
