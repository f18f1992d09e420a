package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/config"
	"auction-engine/internal/models"
	"auction-engine/internal/repository"
	"auction-engine/internal/server"
	"auction-engine/internal/views"
	"auction-engine/utils"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		utils.Fatal("Failed to load configuration", map[string]any{"error": err.Error()})
	}
	if err := utils.SetLevel(cfg.LogLevel); err != nil {
		utils.Fatal("Failed to set log level", map[string]any{"error": err.Error()})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		utils.Fatal("Failed to open storage", map[string]any{"error": err.Error()})
	}
	defer closeRepo()

	biddingSvc := bidding.NewBiddingService(repo, bidding.WithSettings(bidding.Settings{
		ExtendWindow:       cfg.ExtendWindow,
		ExtendBy:           cfg.ExtendBy,
		MinPositivePercent: cfg.MinPositivePercent,
		MaxRetries:         cfg.MaxTxRetries,
	}))
	viewSvc := views.NewService(repo, nil)

	router := server.SetupRouter(biddingSvc, viewSvc, []byte(cfg.JWTSecret))
	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		utils.Info("Starting auction server", map[string]any{"addr": cfg.Port})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		utils.Info("Shutting down auction server", nil)
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		runSweeper(gctx, biddingSvc, cfg.SweepInterval)
		return nil
	})

	if err := g.Wait(); err != nil {
		utils.Fatal("Server stopped with error", map[string]any{"error": err.Error()})
	}
	utils.Info("Server exited", nil)
}

// openRepository returns PostgreSQL storage when a DSN is configured and a
// seeded in-memory store otherwise
func openRepository(ctx context.Context, cfg *config.Config) (repository.AuctionDB, func(), error) {
	if cfg.DatabaseDSN == "" {
		repo := repository.NewMemoryRepo()
		prepopulate(repo, []byte(cfg.JWTSecret))
		return repo, func() {}, nil
	}

	db, err := repository.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := repository.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return repository.NewPostgresRepo(db), func() { _ = db.Close() }, nil
}

// runSweeper closes auctions past their end time until ctx is cancelled
func runSweeper(ctx context.Context, svc *bidding.BiddingService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.CloseExpiredAuctions(ctx); err != nil && ctx.Err() == nil {
				utils.Warn("Expiry sweep failed", map[string]any{"error": err.Error()})
			}
		}
	}
}

// prepopulate adds demo users and auctions to the in-memory repo and logs a
// token per user for trying the API
func prepopulate(repo *repository.MemoryRepo, secret []byte) {
	users := []models.User{
		{UserID: "seller1", Username: "camera_shop", Reputation: models.Reputation{TotalRatings: 120, PositiveRatings: 118}},
		{UserID: "alice", Username: "alice", Reputation: models.Reputation{TotalRatings: 10, PositiveRatings: 9}},
		{UserID: "bob", Username: "bob", Reputation: models.Reputation{TotalRatings: 5, PositiveRatings: 5}},
		{UserID: "carol", Username: "carol"},
	}
	for _, u := range users {
		repo.AddUser(u)
		token, err := utils.GenerateToken(secret, u.UserID, 24*time.Hour)
		if err != nil {
			utils.Warn("Failed to issue demo token", map[string]any{"user_id": u.UserID, "error": err.Error()})
			continue
		}
		utils.Info("Demo user", map[string]any{"user_id": u.UserID, "token": token})
	}

	now := time.Now().UTC()
	buyNow := int64(900)
	auctions := []models.Auction{
		{AuctionID: "auction1", SellerID: "seller1", CategoryID: "cameras", Title: "Vintage rangefinder", StartingPrice: 100, PriceStep: 10, EndTime: now.Add(time.Hour), AutoExtend: true},
		{AuctionID: "auction2", SellerID: "seller1", CategoryID: "cameras", Title: "50mm prime lens", StartingPrice: 200, PriceStep: 20, BuyNowPrice: &buyNow, EndTime: now.Add(2 * time.Hour), AllowUnrated: true},
		{AuctionID: "auction3", SellerID: "alice", CategoryID: "books", Title: "First edition novel", StartingPrice: 150, PriceStep: 5, EndTime: now.Add(30 * time.Minute), AutoExtend: true, AllowUnrated: true},
	}
	for _, a := range auctions {
		a.CurrentPrice = a.StartingPrice
		a.Status = models.StatusActive
		a.CreatedAt = now
		repo.AddAuction(a)
	}
	repo.AddFavorite("auction1", "bob")
}
