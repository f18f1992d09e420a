// Package views builds the read-only projections of auctions shown to buyers:
// the listing page and the detail page. Hidden proxy ceilings never leave this
// package except to their owner.
package views

import (
	"context"
	"fmt"
	"time"

	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"auction-engine/internal/proxy"
	"auction-engine/internal/repository"
)

// SortOrder selects the listing order
type SortOrder string

const (
	SortNewest     = SortOrder(repository.SortNewest)
	SortEndingSoon = SortOrder(repository.SortEndingSoon)
	SortPriceAsc   = SortOrder(repository.SortPriceAsc)
	SortPriceDesc  = SortOrder(repository.SortPriceDesc)
)

// ListFilter narrows and orders the listing. Status is matched against the
// effective status, so an active auction past its end time lists as ended.
type ListFilter struct {
	CategoryID string
	SellerID   string
	Status     models.AuctionStatus
	Sort       SortOrder
	Limit      int
	Offset     int
}

// AuctionSummary is one row of the listing page
type AuctionSummary struct {
	AuctionID     string               `json:"auction_id"`
	Title         string               `json:"title"`
	CategoryID    string               `json:"category_id"`
	SellerID      string               `json:"seller_id"`
	CurrentPrice  int64                `json:"current_price"`
	BuyNowPrice   *int64               `json:"buy_now_price,omitempty"`
	Status        models.AuctionStatus `json:"status"`
	EndTime       time.Time            `json:"end_time"`
	BidCount      int                  `json:"bid_count"`
	FavoriteCount int                  `json:"favorite_count"`
	SellerRating  *float64             `json:"seller_rating,omitempty"`
}

// BidView is a bid as shown publicly. MaxAmount is set only for the viewer's own bids.
type BidView struct {
	BidID     string    `json:"bid_id"`
	BidderID  string    `json:"bidder_id"`
	Amount    int64     `json:"amount"`
	MaxAmount *int64    `json:"max_amount,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RankEntry is one line of the bidder ranking
type RankEntry struct {
	Rank     int    `json:"rank"`
	BidderID string `json:"bidder_id"`
	Amount   int64  `json:"amount"`
}

// AuctionDetail is the detail page of one auction
type AuctionDetail struct {
	AuctionSummary
	StartingPrice   int64       `json:"starting_price"`
	PriceStep       int64       `json:"price_step"`
	WinnerID        string      `json:"winner_id,omitempty"`
	AutoExtend      bool        `json:"auto_extend"`
	AllowUnrated    bool        `json:"allow_unrated"`
	TimeLeftSeconds int64       `json:"time_left_seconds"`
	MinNextBid      int64       `json:"min_next_bid,omitempty"`
	IsFavorite      bool        `json:"is_favorite"`
	Bids            []BidView   `json:"bids"`
	Ranking         []RankEntry `json:"ranking"`
}

// Service assembles the read views from the storage port
type Service struct {
	repo repository.AuctionDB
	now  func() time.Time
}

// NewService creates a views Service. A nil clock uses the wall clock.
func NewService(repo repository.AuctionDB, now func() time.Time) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{repo: repo, now: now}
}

// Detail returns the detail view of an auction as seen by viewerID, who may be empty
func (s *Service) Detail(ctx context.Context, auctionID, viewerID string) (AuctionDetail, error) {
	if auctionID == "" {
		return AuctionDetail{}, fmt.Errorf("views: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	a, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return AuctionDetail{}, fmt.Errorf("views: failed to get auction %s: %w", auctionID, err)
	}
	bids, err := s.repo.GetBidsByAuction(ctx, auctionID)
	if err != nil {
		return AuctionDetail{}, fmt.Errorf("views: failed to get bids for auction %s: %w", auctionID, err)
	}

	ratings := map[string]*float64{}
	summary, err := s.summarize(ctx, a, ratings)
	if err != nil {
		return AuctionDetail{}, err
	}

	now := s.now()
	d := AuctionDetail{
		AuctionSummary: summary,
		StartingPrice:  a.StartingPrice,
		PriceStep:      a.PriceStep,
		WinnerID:       a.Winner(),
		AutoExtend:     a.AutoExtend,
		AllowUnrated:   a.AllowUnrated,
		Bids:           make([]BidView, 0, len(bids)),
		Ranking:        make([]RankEntry, 0),
	}
	if a.OpenAt(now) {
		d.TimeLeftSeconds = int64(a.EndTime.Sub(now) / time.Second)
		d.MinNextBid = proxy.MinimumBid(a.CurrentPrice, a.PriceStep, a.BidCount)
	}

	if viewerID != "" {
		d.IsFavorite, err = s.repo.IsFavorite(ctx, auctionID, viewerID)
		if err != nil {
			return AuctionDetail{}, fmt.Errorf("views: failed to check favorite: %w", err)
		}
	}

	for _, b := range bids {
		v := BidView{BidID: b.BidID, BidderID: b.BidderID, Amount: b.Amount, CreatedAt: b.CreatedAt}
		if viewerID != "" && b.BidderID == viewerID {
			ceiling := b.MaxAmount
			v.MaxAmount = &ceiling
		}
		d.Bids = append(d.Bids, v)
	}

	ranking := RankBidders(bids)
	for _, id := range ranking.SortedBidders {
		d.Ranking = append(d.Ranking, RankEntry{
			Rank:     ranking.Ranks[id],
			BidderID: id,
			Amount:   ranking.HighestBids[id].Amount,
		})
	}
	return d, nil
}

// List returns the listing view
func (s *Service) List(ctx context.Context, filter ListFilter) ([]AuctionSummary, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("views: %w - unknown status %q", biddingerrors.ErrInvalidBid, filter.Status)
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, fmt.Errorf("views: %w - negative limit or offset", biddingerrors.ErrInvalidBid)
	}

	order := repository.AuctionSort(filter.Sort)
	if !order.Valid() {
		return nil, fmt.Errorf("views: %w - unknown sort order %q", biddingerrors.ErrInvalidBid, filter.Sort)
	}

	auctions, err := s.repo.ListAuctions(ctx, repository.AuctionFilter{
		CategoryID: filter.CategoryID,
		SellerID:   filter.SellerID,
		Status:     filter.Status,
		Now:        s.now(),
		Sort:       order,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("views: failed to list auctions: %w", err)
	}

	ratings := map[string]*float64{}
	out := make([]AuctionSummary, 0, len(auctions))
	for _, a := range auctions {
		summary, err := s.summarize(ctx, a, ratings)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

func (s *Service) summarize(ctx context.Context, a models.Auction, ratings map[string]*float64) (AuctionSummary, error) {
	favorites, err := s.repo.FavoriteCount(ctx, a.AuctionID)
	if err != nil {
		return AuctionSummary{}, fmt.Errorf("views: failed to count favorites: %w", err)
	}

	rating, ok := ratings[a.SellerID]
	if !ok {
		rep, err := s.repo.GetReputation(ctx, a.SellerID)
		if err != nil {
			return AuctionSummary{}, fmt.Errorf("views: failed to get seller reputation: %w", err)
		}
		if rep.Rated() {
			p := rep.Percent()
			rating = &p
		}
		ratings[a.SellerID] = rating
	}

	return AuctionSummary{
		AuctionID:     a.AuctionID,
		Title:         a.Title,
		CategoryID:    a.CategoryID,
		SellerID:      a.SellerID,
		CurrentPrice:  a.CurrentPrice,
		BuyNowPrice:   a.BuyNowPrice,
		Status:        a.EffectiveStatus(s.now()),
		EndTime:       a.EndTime,
		BidCount:      a.BidCount,
		FavoriteCount: favorites,
		SellerRating:  rating,
	}, nil
}
