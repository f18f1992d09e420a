package views

import (
	"context"
	"testing"
	"time"

	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"auction-engine/internal/repository"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

func seedAuction(repo *repository.MemoryRepo, id, seller string, price int64, end time.Time, created time.Time) models.Auction {
	a := models.Auction{
		AuctionID:     id,
		SellerID:      seller,
		CategoryID:    "cameras",
		Title:         id + " title",
		StartingPrice: price,
		CurrentPrice:  price,
		PriceStep:     10,
		Status:        models.StatusActive,
		EndTime:       end,
		CreatedAt:     created,
	}
	repo.AddAuction(a)
	return a
}

// seedBids writes rows as the settlement engine would, keeping the visible state in step
func seedBids(t *testing.T, repo *repository.MemoryRepo, auctionID string, bids ...models.Bid) {
	t.Helper()
	err := repo.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		a, err := tx.LockAuction(ctx, auctionID)
		if err != nil {
			return err
		}
		for _, b := range bids {
			if err := tx.InsertBid(ctx, b); err != nil {
				return err
			}
			a.BidCount++
			if b.Amount >= a.CurrentPrice {
				winner := b.BidderID
				a.CurrentPrice = b.Amount
				a.WinnerID = &winner
			}
		}
		return tx.UpdateAuction(ctx, a)
	})
	require.NoError(t, err)
}

func newViewsFixture(t *testing.T) (*Service, *repository.MemoryRepo) {
	t.Helper()
	repo := repository.NewMemoryRepo()
	repo.AddUser(models.User{UserID: "seller", Reputation: models.Reputation{TotalRatings: 4, PositiveRatings: 3}})

	seedAuction(repo, "a1", "seller", 100, t0.Add(90*time.Second), t0.Add(-time.Hour))
	seedBids(t, repo, "a1",
		bidAt("b1", "alice", 100, 150, 0),
		bidAt("b2", "bob", 140, 140, time.Second),
		bidAt("b3", "alice", 150, 150, time.Second+time.Microsecond),
	)
	repo.AddFavorite("a1", "bob")
	repo.AddFavorite("a1", "carol")

	return NewService(repo, func() time.Time { return t0.Add(30 * time.Second) }), repo
}

func TestService_Detail(t *testing.T) {
	t.Parallel()
	service, _ := newViewsFixture(t)

	d, err := service.Detail(context.Background(), "a1", "bob")
	require.NoError(t, err)

	require.Equal(t, "a1", d.AuctionID)
	require.Equal(t, models.StatusActive, d.Status)
	require.Equal(t, int64(150), d.CurrentPrice)
	require.Equal(t, 3, d.BidCount)
	require.Equal(t, int64(60), d.TimeLeftSeconds)
	require.Equal(t, int64(160), d.MinNextBid)
	require.Equal(t, 2, d.FavoriteCount)
	require.True(t, d.IsFavorite)
	require.NotNil(t, d.SellerRating)
	require.InDelta(t, 75.0, *d.SellerRating, 0.001)

	require.Len(t, d.Bids, 3)
	require.Nil(t, d.Bids[0].MaxAmount, "other bidders' ceilings stay hidden")
	require.NotNil(t, d.Bids[1].MaxAmount)
	require.Equal(t, int64(140), *d.Bids[1].MaxAmount)
	require.Nil(t, d.Bids[2].MaxAmount)

	require.Equal(t, []RankEntry{
		{Rank: 1, BidderID: "alice", Amount: 150},
		{Rank: 2, BidderID: "bob", Amount: 140},
	}, d.Ranking)
}

func TestService_Detail_Anonymous(t *testing.T) {
	t.Parallel()
	service, _ := newViewsFixture(t)

	d, err := service.Detail(context.Background(), "a1", "")
	require.NoError(t, err)
	require.False(t, d.IsFavorite)
	for _, b := range d.Bids {
		require.Nil(t, b.MaxAmount)
	}
}

func TestService_Detail_ExpiredReadsAsEnded(t *testing.T) {
	t.Parallel()
	_, repo := newViewsFixture(t)
	late := NewService(repo, func() time.Time { return t0.Add(2 * time.Minute) })

	d, err := late.Detail(context.Background(), "a1", "")
	require.NoError(t, err)
	require.Equal(t, models.StatusEnded, d.Status)
	require.Zero(t, d.TimeLeftSeconds)
	require.Zero(t, d.MinNextBid)
	require.Equal(t, "alice", d.WinnerID)
}

func TestService_Detail_Errors(t *testing.T) {
	t.Parallel()
	service, _ := newViewsFixture(t)

	_, err := service.Detail(context.Background(), "", "bob")
	require.ErrorIs(t, err, biddingerrors.ErrInvalidBid)

	_, err = service.Detail(context.Background(), "missing", "bob")
	require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
}

func TestService_List(t *testing.T) {
	t.Parallel()

	repo := repository.NewMemoryRepo()
	repo.AddUser(models.User{UserID: "s1", Reputation: models.Reputation{TotalRatings: 2, PositiveRatings: 2}})
	seedAuction(repo, "cheap", "s1", 50, t0.Add(3*time.Hour), t0.Add(-3*time.Hour))
	seedAuction(repo, "pricey", "s1", 900, t0.Add(time.Hour), t0.Add(-2*time.Hour))
	seedAuction(repo, "mid", "s2", 300, t0.Add(2*time.Hour), t0.Add(-time.Hour))
	seedAuction(repo, "expired", "s2", 200, t0.Add(-time.Minute), t0.Add(-4*time.Hour))
	sold := seedAuction(repo, "sold", "s2", 400, t0.Add(-time.Hour), t0.Add(-5*time.Hour))
	sold.Status = models.StatusSold
	repo.AddAuction(sold)
	repo.AddFavorite("mid", "alice")

	service := NewService(repo, func() time.Time { return t0 })

	ids := func(rows []AuctionSummary) []string {
		out := []string{}
		for _, r := range rows {
			out = append(out, r.AuctionID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter ListFilter
		want   []string
	}{
		{name: "newest_default", filter: ListFilter{}, want: []string{"mid", "pricey", "cheap", "expired", "sold"}},
		{name: "active_excludes_expired", filter: ListFilter{Status: models.StatusActive}, want: []string{"mid", "pricey", "cheap"}},
		{name: "ended_includes_expired", filter: ListFilter{Status: models.StatusEnded}, want: []string{"expired"}},
		{name: "ending_soon", filter: ListFilter{Status: models.StatusActive, Sort: SortEndingSoon}, want: []string{"pricey", "mid", "cheap"}},
		{name: "price_asc", filter: ListFilter{Status: models.StatusActive, Sort: SortPriceAsc}, want: []string{"cheap", "mid", "pricey"}},
		{name: "price_desc", filter: ListFilter{Status: models.StatusActive, Sort: SortPriceDesc}, want: []string{"pricey", "mid", "cheap"}},
		{name: "by_seller", filter: ListFilter{SellerID: "s1"}, want: []string{"pricey", "cheap"}},
		{name: "paged", filter: ListFilter{Limit: 2, Offset: 1}, want: []string{"pricey", "cheap"}},
		{name: "offset_past_end", filter: ListFilter{Offset: 10}, want: []string{}},
		{name: "ended_paged", filter: ListFilter{Status: models.StatusEnded, Limit: 1}, want: []string{"expired"}},
		{name: "active_price_asc_paged", filter: ListFilter{Status: models.StatusActive, Sort: SortPriceAsc, Limit: 1, Offset: 1}, want: []string{"mid"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := service.List(context.Background(), tc.filter)
			require.NoError(t, err)
			require.Equal(t, tc.want, ids(got))
		})
	}

	t.Run("summary_fields", func(t *testing.T) {
		t.Parallel()
		got, err := service.List(context.Background(), ListFilter{})
		require.NoError(t, err)
		byID := map[string]AuctionSummary{}
		for _, r := range got {
			byID[r.AuctionID] = r
		}
		require.Equal(t, 1, byID["mid"].FavoriteCount)
		require.Nil(t, byID["mid"].SellerRating, "unrated sellers have no rating")
		require.NotNil(t, byID["cheap"].SellerRating)
		require.InDelta(t, 100.0, *byID["cheap"].SellerRating, 0.001)
		require.Equal(t, models.StatusEnded, byID["expired"].Status)
		require.Equal(t, models.StatusSold, byID["sold"].Status)
	})

	t.Run("invalid_filters", func(t *testing.T) {
		t.Parallel()
		_, err := service.List(context.Background(), ListFilter{Status: "archived"})
		require.ErrorIs(t, err, biddingerrors.ErrInvalidBid)
		_, err = service.List(context.Background(), ListFilter{Sort: "random"})
		require.ErrorIs(t, err, biddingerrors.ErrInvalidBid)
		_, err = service.List(context.Background(), ListFilter{Limit: -1})
		require.ErrorIs(t, err, biddingerrors.ErrInvalidBid)
	})
}

func TestService_List_PagesInStore(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := repository.NewMockAuctionDB(ctrl)
	service := NewService(repo, func() time.Time { return t0 })

	a := models.Auction{AuctionID: "a1", SellerID: "s1", Status: models.StatusActive, EndTime: t0.Add(time.Hour)}
	repo.EXPECT().ListAuctions(gomock.Any(), repository.AuctionFilter{
		CategoryID: "cameras",
		Status:     models.StatusActive,
		Now:        t0,
		Sort:       repository.SortEndingSoon,
		Limit:      20,
		Offset:     40,
	}).Return([]models.Auction{a}, nil)
	repo.EXPECT().FavoriteCount(gomock.Any(), "a1").Return(3, nil)
	repo.EXPECT().GetReputation(gomock.Any(), "s1").Return(models.Reputation{}, nil)

	got, err := service.List(context.Background(), ListFilter{
		CategoryID: "cameras",
		Status:     models.StatusActive,
		Sort:       SortEndingSoon,
		Limit:      20,
		Offset:     40,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 3, got[0].FavoriteCount)
}
