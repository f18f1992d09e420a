package bidding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/eligibility"
	"auction-engine/internal/models"
	"auction-engine/internal/proxy"
	"auction-engine/internal/repository"
	"auction-engine/utils"

	"github.com/sethvargo/go-retry"
)

// Settings tune settlement. Zero fields fall back to DefaultSettings.
type Settings struct {
	// ExtendWindow is how close to the end a bid must land to push the end time back
	ExtendWindow time.Duration
	// ExtendBy is the new remaining time after an extension, counted from the bid
	ExtendBy           time.Duration
	MinPositivePercent float64
	// MaxRetries bounds re-runs of a unit of work after a transient storage failure
	MaxRetries uint64
	RetryBase  time.Duration
}

// DefaultSettings returns the production defaults
func DefaultSettings() Settings {
	return Settings{
		ExtendWindow:       5 * time.Minute,
		ExtendBy:           5 * time.Minute,
		MinPositivePercent: eligibility.DefaultMinPositivePercent,
		MaxRetries:         3,
		RetryBase:          20 * time.Millisecond,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.ExtendWindow <= 0 {
		s.ExtendWindow = d.ExtendWindow
	}
	if s.ExtendBy <= 0 {
		s.ExtendBy = d.ExtendBy
	}
	if s.MinPositivePercent <= 0 {
		s.MinPositivePercent = d.MinPositivePercent
	}
	if s.RetryBase <= 0 {
		s.RetryBase = d.RetryBase
	}
	return s
}

// Option configures a BiddingService
type Option func(*BiddingService)

// WithSettings overrides the settlement settings
func WithSettings(settings Settings) Option {
	return func(s *BiddingService) {
		s.settings = settings.withDefaults()
	}
}

// WithClock replaces the wall clock
func WithClock(now func() time.Time) Option {
	return func(s *BiddingService) {
		s.now = now
	}
}

// BiddingService settles bids, rejections and buy-now purchases against the auction row
type BiddingService struct {
	repo     repository.AuctionDB
	settings Settings
	now      func() time.Time
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(repo repository.AuctionDB, opts ...Option) *BiddingService {
	s := &BiddingService{
		repo:     repo,
		settings: DefaultSettings(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceBidResult is the settlement outcome returned to the bidder
type PlaceBidResult struct {
	Tag          models.SettlementTag `json:"tag"`
	CurrentPrice int64                `json:"current_price"`
	WinnerID     string               `json:"winner_id"`
	BidCount     int                  `json:"bid_count"`
	EndTime      time.Time            `json:"end_time"`
	Extended     bool                 `json:"extended"`
	Bids         []models.Bid         `json:"-"`
}

// RejectBidResult is the auction's visible state after a rejection
type RejectBidResult struct {
	Rejected     models.Bid `json:"-"`
	CurrentPrice int64      `json:"current_price"`
	WinnerID     string     `json:"winner_id,omitempty"`
	BidCount     int        `json:"bid_count"`
}

// BuyNowResult identifies the order handed to the post-sale workflow
type BuyNowResult struct {
	OrderID    string `json:"order_id"`
	FinalPrice int64  `json:"final_price"`
}

// PlaceBid settles a proxy bid with the given ceiling. The leader read, the
// resolution and the writes happen under the auction row lock.
func (s *BiddingService) PlaceBid(ctx context.Context, auctionID, bidderID string, ceiling int64) (PlaceBidResult, error) {
	if auctionID == "" || bidderID == "" {
		return PlaceBidResult{}, fmt.Errorf("service: %w - missing auctionID or bidderID", biddingerrors.ErrInvalidBid)
	}
	if ceiling <= 0 {
		return PlaceBidResult{}, fmt.Errorf("service: %w - non-positive bid amount", biddingerrors.ErrInvalidBid)
	}
	if ceiling > models.MaxMoney {
		return PlaceBidResult{}, fmt.Errorf("service: %w - bid amount above %d", biddingerrors.ErrInvalidBid, models.MaxMoney)
	}

	var res PlaceBidResult
	err := s.inTx(ctx, "place_bid", func(ctx context.Context, tx repository.Tx) error {
		a, err := tx.LockAuction(ctx, auctionID)
		if err != nil {
			return err
		}

		now := s.now()
		if a.Status != models.StatusActive {
			return fmt.Errorf("service: %w - auction %s is %s", biddingerrors.ErrAuctionNotActive, auctionID, a.Status)
		}
		if !now.Before(a.EndTime) {
			return fmt.Errorf("service: %w - auction %s closed at %s", biddingerrors.ErrAuctionEnded, auctionID, a.EndTime.Format(time.RFC3339))
		}
		if bidderID == a.SellerID {
			return fmt.Errorf("service: %w", biddingerrors.ErrSelfBidForbidden)
		}

		rep, err := tx.GetReputation(ctx, bidderID)
		if err != nil {
			return err
		}
		if err := eligibility.Check(eligibility.Input{
			BidderID:           bidderID,
			SellerID:           a.SellerID,
			Reputation:         rep,
			AllowUnrated:       a.AllowUnrated,
			MinPositivePercent: s.settings.MinPositivePercent,
		}); err != nil {
			return fmt.Errorf("service: %w", err)
		}

		bids, err := tx.ListBids(ctx, auctionID)
		if err != nil {
			return err
		}
		in := proxy.Input{
			CurrentPrice: a.CurrentPrice,
			Step:         a.PriceStep,
			BidCount:     a.BidCount,
			ChallengerID: bidderID,
			Ceiling:      ceiling,
		}
		if lead, ok := proxy.CurrentLeader(bids); ok {
			in.Leader = &proxy.Leader{BidderID: lead.BidderID, MaxAmount: lead.MaxAmount}
		}

		outcome, err := proxy.Resolve(in)
		if err != nil {
			return fmt.Errorf("service: %w", err)
		}

		ts := nextTimestamp(now, bids)
		written := make([]models.Bid, 0, len(outcome.Rows))
		for _, row := range outcome.Rows {
			bid := models.Bid{
				BidID:     utils.GenerateID(),
				AuctionID: auctionID,
				BidderID:  row.BidderID,
				Amount:    row.Amount,
				MaxAmount: row.MaxAmount,
				CreatedAt: ts,
			}
			if err := tx.InsertBid(ctx, bid); err != nil {
				return err
			}
			written = append(written, bid)
			ts = ts.Add(time.Microsecond)
		}

		leaderID := outcome.LeaderID
		a.CurrentPrice = outcome.Price
		a.WinnerID = &leaderID
		a.BidCount += len(written)

		extended := false
		if a.AutoExtend && a.EndTime.Sub(now) < s.settings.ExtendWindow {
			if end := now.Add(s.settings.ExtendBy); end.After(a.EndTime) {
				a.EndTime = end
				extended = true
			}
		}

		if err := tx.UpdateAuction(ctx, a); err != nil {
			return err
		}

		res = PlaceBidResult{
			Tag:          outcome.Tag,
			CurrentPrice: a.CurrentPrice,
			WinnerID:     leaderID,
			BidCount:     a.BidCount,
			EndTime:      a.EndTime,
			Extended:     extended,
			Bids:         written,
		}
		return nil
	})
	if err != nil {
		return PlaceBidResult{}, err
	}

	utils.Info("Bid settled", map[string]any{
		"auction_id":    auctionID,
		"bidder_id":     bidderID,
		"tag":           res.Tag,
		"current_price": res.CurrentPrice,
		"winner_id":     res.WinnerID,
		"bid_count":     res.BidCount,
		"extended":      res.Extended,
	})
	return res, nil
}

// RejectBid lets the seller remove one bid. The visible price and leader are
// recomputed from the remaining rows; stored ceilings are left untouched.
func (s *BiddingService) RejectBid(ctx context.Context, auctionID, bidID, sellerID string) (RejectBidResult, error) {
	if auctionID == "" || bidID == "" || sellerID == "" {
		return RejectBidResult{}, fmt.Errorf("service: %w - missing auctionID, bidID or sellerID", biddingerrors.ErrInvalidBid)
	}

	var res RejectBidResult
	err := s.inTx(ctx, "reject_bid", func(ctx context.Context, tx repository.Tx) error {
		a, err := tx.LockAuction(ctx, auctionID)
		if err != nil {
			return err
		}
		if a.SellerID != sellerID {
			return fmt.Errorf("service: %w - caller does not own auction %s", biddingerrors.ErrUnauthorized, auctionID)
		}
		if status := a.EffectiveStatus(s.now()); status != models.StatusActive {
			return fmt.Errorf("service: %w - auction %s is %s", biddingerrors.ErrAuctionNotActive, auctionID, status)
		}

		rejected, err := tx.DeleteBid(ctx, auctionID, bidID)
		if err != nil {
			return err
		}
		remaining, err := tx.ListBids(ctx, auctionID)
		if err != nil {
			return err
		}

		if lead, ok := proxy.CurrentLeader(remaining); ok {
			leaderID := lead.BidderID
			a.CurrentPrice = lead.Amount
			a.WinnerID = &leaderID
		} else {
			a.CurrentPrice = a.StartingPrice
			a.WinnerID = nil
		}
		if a.BidCount > 0 {
			a.BidCount--
		}

		if err := tx.UpdateAuction(ctx, a); err != nil {
			return err
		}

		res = RejectBidResult{
			Rejected:     rejected,
			CurrentPrice: a.CurrentPrice,
			WinnerID:     a.Winner(),
			BidCount:     a.BidCount,
		}
		return nil
	})
	if err != nil {
		return RejectBidResult{}, err
	}

	utils.Info("Bid rejected", map[string]any{
		"auction_id":    auctionID,
		"bid_id":        bidID,
		"bidder_id":     res.Rejected.BidderID,
		"current_price": res.CurrentPrice,
		"bid_count":     res.BidCount,
	})
	return res, nil
}

// BuyNow closes the auction at its buy-now price and creates the order
func (s *BiddingService) BuyNow(ctx context.Context, auctionID, buyerID string) (BuyNowResult, error) {
	if auctionID == "" || buyerID == "" {
		return BuyNowResult{}, fmt.Errorf("service: %w - missing auctionID or buyerID", biddingerrors.ErrInvalidBid)
	}

	var res BuyNowResult
	err := s.inTx(ctx, "buy_now", func(ctx context.Context, tx repository.Tx) error {
		a, err := tx.LockAuction(ctx, auctionID)
		if err != nil {
			return err
		}

		now := s.now()
		if a.Status != models.StatusActive {
			return fmt.Errorf("service: %w - auction %s is %s", biddingerrors.ErrAuctionNotActive, auctionID, a.Status)
		}
		if !now.Before(a.EndTime) {
			return fmt.Errorf("service: %w - auction %s closed at %s", biddingerrors.ErrAuctionEnded, auctionID, a.EndTime.Format(time.RFC3339))
		}
		if a.BuyNowPrice == nil {
			return fmt.Errorf("service: %w", biddingerrors.ErrNoBuyNowOption)
		}
		if buyerID == a.SellerID {
			return fmt.Errorf("service: %w", biddingerrors.ErrSelfBidForbidden)
		}

		price := *a.BuyNowPrice
		orderID, err := tx.CreateOrder(ctx, models.Order{
			AuctionID:  auctionID,
			BuyerID:    buyerID,
			SellerID:   a.SellerID,
			FinalPrice: price,
			Status:     models.OrderStatusPendingPayment,
			CreatedAt:  now,
		})
		if err != nil {
			return err
		}

		buyer := buyerID
		a.Status = models.StatusEnded
		a.CurrentPrice = price
		a.WinnerID = &buyer
		a.EndTime = now
		if err := tx.UpdateAuction(ctx, a); err != nil {
			return err
		}

		res = BuyNowResult{OrderID: orderID, FinalPrice: price}
		return nil
	})
	if err != nil {
		return BuyNowResult{}, err
	}

	utils.Info("Auction bought now", map[string]any{
		"auction_id":  auctionID,
		"buyer_id":    buyerID,
		"order_id":    res.OrderID,
		"final_price": res.FinalPrice,
	})
	return res, nil
}

// GetBids returns the bid history of an auction, oldest first. Ceilings of
// bids not placed by viewerID are zeroed.
func (s *BiddingService) GetBids(ctx context.Context, auctionID, viewerID string) ([]models.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	bids, err := s.repo.GetBidsByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}

	for i := range bids {
		if viewerID == "" || bids[i].BidderID != viewerID {
			bids[i].MaxAmount = 0
		}
	}
	return bids, nil
}

// CloseExpiredAuctions moves active auctions past their end time to ended
func (s *BiddingService) CloseExpiredAuctions(ctx context.Context) (int, error) {
	n, err := s.repo.ExpireAuctions(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("service: failed to expire auctions: %w", err)
	}
	if n > 0 {
		utils.Info("Expired auctions closed", map[string]any{"count": n})
	}
	return n, nil
}

// inTx runs fn as one unit of work, re-running it from a fresh read when the
// storage reports a transient failure. Business errors are returned as is.
func (s *BiddingService) inTx(ctx context.Context, op string, fn func(ctx context.Context, tx repository.Tx) error) error {
	backoff := retry.WithMaxRetries(s.settings.MaxRetries, retry.NewExponential(s.settings.RetryBase))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := s.repo.WithinTx(ctx, fn)
		if errors.Is(err, biddingerrors.ErrTransient) {
			utils.Warn("Transient storage failure", map[string]any{
				"operation": op,
				"attempt":   attempt,
				"error":     err.Error(),
			})
			return retry.RetryableError(err)
		}
		return err
	})
}

// nextTimestamp keeps bid rows strictly ordered within an auction even when
// the clock does not advance between commits.
func nextTimestamp(now time.Time, bids []models.Bid) time.Time {
	ts := now.Truncate(time.Microsecond)
	if n := len(bids); n > 0 && !ts.After(bids[n-1].CreatedAt) {
		ts = bids[n-1].CreatedAt.Add(time.Microsecond)
	}
	return ts
}
