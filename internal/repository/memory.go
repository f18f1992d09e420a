package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"auction-engine/utils"
)

var errNotLocked = errors.New("auction not locked in this transaction")

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB.
// Each auction has its own row lock, so units of work on different auctions
// never wait on each other.
type MemoryRepo struct {
	mu        sync.RWMutex
	auctions  map[string]models.Auction      // key: auctionID -> value: auction
	bids      map[string][]models.Bid        // key: auctionID -> value: bids in creation order
	orders    map[string]models.Order        // key: auctionID -> value: order
	users     map[string]models.User         // key: userID -> value: user
	favorites map[string]map[string]struct{} // key: auctionID -> value: set of userIDs

	locksMu sync.Mutex
	locks   map[string]chan struct{} // key: auctionID -> value: row lock
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		auctions:  make(map[string]models.Auction),
		bids:      make(map[string][]models.Bid),
		orders:    make(map[string]models.Order),
		users:     make(map[string]models.User),
		favorites: make(map[string]map[string]struct{}),
		locks:     make(map[string]chan struct{}),
	}
}

// AddAuction inserts or replaces an auction. Listing is owned by another
// workflow; this is used for seeding and tests.
func (r *MemoryRepo) AddAuction(a models.Auction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auctions[a.AuctionID] = a
}

// AddUser inserts or replaces a user with their reputation counters
func (r *MemoryRepo) AddUser(u models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.UserID] = u
}

// AddFavorite records that userID watches auctionID
func (r *MemoryRepo) AddFavorite(auctionID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.favorites[auctionID]
	if !ok {
		set = make(map[string]struct{})
		r.favorites[auctionID] = set
	}
	set[userID] = struct{}{}
}

// OrdersByAuction returns the committed order for an auction, if any
func (r *MemoryRepo) OrdersByAuction(auctionID string) []models.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if o, ok := r.orders[auctionID]; ok {
		return []models.Order{o}
	}
	return nil
}

// WithinTx runs fn against staged copies and applies them only if fn succeeds.
// Row locks taken by fn are held until the staged writes are visible.
func (r *MemoryRepo) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &memTx{
		repo:     r,
		held:     make(map[string]chan struct{}),
		auctions: make(map[string]models.Auction),
		inserted: make(map[string][]models.Bid),
		deleted:  make(map[string]map[string]struct{}),
	}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit()
}

// GetAuction returns a committed auction
func (r *MemoryRepo) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.auctions[auctionID]
	if !ok {
		return models.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return a, nil
}

// ListAuctions returns one page of auctions matching filter in the requested order
func (r *MemoryRepo) ListAuctions(ctx context.Context, filter AuctionFilter) ([]models.Auction, error) {
	if !filter.Sort.Valid() {
		return nil, fmt.Errorf("list auctions: %w - unknown sort %q", biddingerrors.ErrInvalidBid, filter.Sort)
	}

	r.mu.RLock()
	out := make([]models.Auction, 0, len(r.auctions))
	for _, a := range r.auctions {
		if filter.CategoryID != "" && a.CategoryID != filter.CategoryID {
			continue
		}
		if filter.SellerID != "" && a.SellerID != filter.SellerID {
			continue
		}
		if filter.Status != "" && statusAt(a, filter.Now) != filter.Status {
			continue
		}
		out = append(out, a)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return auctionLess(filter.Sort, out[i], out[j]) })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []models.Auction{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// GetBidsByAuction returns all committed bids for an auction, oldest first
func (r *MemoryRepo) GetBidsByAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.auctions[auctionID]; !ok {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return append([]models.Bid{}, r.bids[auctionID]...), nil
}

func statusAt(a models.Auction, now time.Time) models.AuctionStatus {
	if now.IsZero() {
		return a.Status
	}
	return a.EffectiveStatus(now)
}

// auctionLess mirrors the ORDER BY clauses of the Postgres listing
func auctionLess(order AuctionSort, a, b models.Auction) bool {
	switch order {
	case SortEndingSoon:
		if !a.EndTime.Equal(b.EndTime) {
			return a.EndTime.Before(b.EndTime)
		}
	case SortPriceAsc:
		if a.CurrentPrice != b.CurrentPrice {
			return a.CurrentPrice < b.CurrentPrice
		}
	case SortPriceDesc:
		if a.CurrentPrice != b.CurrentPrice {
			return a.CurrentPrice > b.CurrentPrice
		}
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.AuctionID < b.AuctionID
}

// GetReputation returns a user's rating counters. Unknown users are unrated.
func (r *MemoryRepo) GetReputation(ctx context.Context, userID string) (models.Reputation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.users[userID].Reputation, nil
}

// FavoriteCount returns how many users watch an auction
func (r *MemoryRepo) FavoriteCount(ctx context.Context, auctionID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.favorites[auctionID]), nil
}

// IsFavorite reports whether userID watches auctionID
func (r *MemoryRepo) IsFavorite(ctx context.Context, auctionID, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.favorites[auctionID][userID]
	return ok, nil
}

// ExpireAuctions ends every active auction past its end time, taking each row lock in turn
func (r *MemoryRepo) ExpireAuctions(ctx context.Context, now time.Time) (int, error) {
	r.mu.RLock()
	var candidates []string
	for id, a := range r.auctions {
		if a.Status == models.StatusActive && !now.Before(a.EndTime) {
			candidates = append(candidates, id)
		}
	}
	r.mu.RUnlock()

	expired := 0
	for _, id := range candidates {
		err := r.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			a, err := tx.LockAuction(ctx, id)
			if err != nil {
				return err
			}
			// an extension may have landed since the scan
			if a.Status != models.StatusActive || now.Before(a.EndTime) {
				return nil
			}
			a.Status = models.StatusEnded
			expired++
			return tx.UpdateAuction(ctx, a)
		})
		if err != nil {
			return expired, fmt.Errorf("expire auction %s: %w", id, err)
		}
	}
	return expired, nil
}

func (r *MemoryRepo) rowLock(auctionID string) chan struct{} {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	l, ok := r.locks[auctionID]
	if !ok {
		l = make(chan struct{}, 1)
		r.locks[auctionID] = l
	}
	return l
}

// memTx stages writes until commit
type memTx struct {
	repo     *MemoryRepo
	held     map[string]chan struct{}
	auctions map[string]models.Auction
	inserted map[string][]models.Bid
	deleted  map[string]map[string]struct{}
	orders   []models.Order
}

func (t *memTx) LockAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	if _, ok := t.held[auctionID]; !ok {
		if _, err := t.repo.GetAuction(ctx, auctionID); err != nil {
			return models.Auction{}, err
		}
		l := t.repo.rowLock(auctionID)
		select {
		case l <- struct{}{}:
			t.held[auctionID] = l
		case <-ctx.Done():
			return models.Auction{}, fmt.Errorf("lock auction %s: %w", auctionID, ctx.Err())
		}
	}

	if a, ok := t.auctions[auctionID]; ok {
		return a, nil
	}
	return t.repo.GetAuction(ctx, auctionID)
}

func (t *memTx) ListBids(ctx context.Context, auctionID string) ([]models.Bid, error) {
	committed, err := t.repo.GetBidsByAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	out := make([]models.Bid, 0, len(committed)+len(t.inserted[auctionID]))
	for _, b := range committed {
		if _, gone := t.deleted[auctionID][b.BidID]; !gone {
			out = append(out, b)
		}
	}
	out = append(out, t.inserted[auctionID]...)

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// GetReputation reads committed counters; transactions never stage user writes
func (t *memTx) GetReputation(ctx context.Context, userID string) (models.Reputation, error) {
	return t.repo.GetReputation(ctx, userID)
}

func (t *memTx) InsertBid(ctx context.Context, bid models.Bid) error {
	if _, ok := t.held[bid.AuctionID]; !ok {
		return fmt.Errorf("insert bid for auction %s: %w", bid.AuctionID, errNotLocked)
	}
	t.inserted[bid.AuctionID] = append(t.inserted[bid.AuctionID], bid)
	return nil
}

func (t *memTx) DeleteBid(ctx context.Context, auctionID, bidID string) (models.Bid, error) {
	if _, ok := t.held[auctionID]; !ok {
		return models.Bid{}, fmt.Errorf("delete bid for auction %s: %w", auctionID, errNotLocked)
	}

	staged := t.inserted[auctionID]
	for i, b := range staged {
		if b.BidID == bidID {
			t.inserted[auctionID] = append(staged[:i:i], staged[i+1:]...)
			return b, nil
		}
	}

	bids, err := t.ListBids(ctx, auctionID)
	if err != nil {
		return models.Bid{}, err
	}
	for _, b := range bids {
		if b.BidID == bidID {
			if t.deleted[auctionID] == nil {
				t.deleted[auctionID] = make(map[string]struct{})
			}
			t.deleted[auctionID][bidID] = struct{}{}
			return b, nil
		}
	}
	return models.Bid{}, fmt.Errorf("delete bid %s: %w", bidID, biddingerrors.ErrBidNotFound)
}

func (t *memTx) UpdateAuction(ctx context.Context, auction models.Auction) error {
	if _, ok := t.held[auction.AuctionID]; !ok {
		return fmt.Errorf("update auction %s: %w", auction.AuctionID, errNotLocked)
	}
	t.auctions[auction.AuctionID] = auction
	return nil
}

func (t *memTx) CreateOrder(ctx context.Context, order models.Order) (string, error) {
	if _, ok := t.held[order.AuctionID]; !ok {
		return "", fmt.Errorf("create order for auction %s: %w", order.AuctionID, errNotLocked)
	}

	t.repo.mu.RLock()
	_, exists := t.repo.orders[order.AuctionID]
	t.repo.mu.RUnlock()
	if exists {
		return "", fmt.Errorf("create order for auction %s: order already exists", order.AuctionID)
	}

	if order.OrderID == "" {
		order.OrderID = utils.GenerateID()
	}
	t.orders = append(t.orders, order)
	return order.OrderID, nil
}

func (t *memTx) commit() error {
	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, a := range t.auctions {
		r.auctions[id] = a
	}
	for auctionID, ids := range t.deleted {
		kept := r.bids[auctionID][:0:0]
		for _, b := range r.bids[auctionID] {
			if _, gone := ids[b.BidID]; !gone {
				kept = append(kept, b)
			}
		}
		r.bids[auctionID] = kept
	}
	for auctionID, bids := range t.inserted {
		r.bids[auctionID] = append(r.bids[auctionID], bids...)
	}
	for _, o := range t.orders {
		r.orders[o.AuctionID] = o
	}
	return nil
}

func (t *memTx) release() {
	for id, l := range t.held {
		<-l
		delete(t.held, id)
	}
}
