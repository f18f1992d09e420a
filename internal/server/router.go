package server

import (
	"net/http"

	handler "auction-engine/services/bidding/handler"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

// SetupRouter configures all Gin routes for the application
func SetupRouter(biddingService handler.BiddingServiceInterface, auctionViews handler.AuctionViewsInterface, jwtSecret []byte) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging

	router.GET("/healthz", func(c *gin.Context) {
		utils.JSONResponse(c, http.StatusOK, gin.H{"status": "ok"}, "service is healthy")
	})

	biddingHandler := handler.NewBiddingHandler(biddingService, auctionViews)
	requireAuth := AuthMiddleware(jwtSecret, true)

	auctions := router.Group("/auctions", AuthMiddleware(jwtSecret, false))
	{
		auctions.GET("", biddingHandler.ListAuctionsHandler)
		auctions.GET("/:auction_id", biddingHandler.GetAuctionHandler)
		auctions.GET("/:auction_id/bids", biddingHandler.GetBidsHandler)

		auctions.POST("/:auction_id/bids", requireAuth, biddingHandler.PlaceBidHandler)
		auctions.DELETE("/:auction_id/bids/:bid_id", requireAuth, biddingHandler.RejectBidHandler)
		auctions.POST("/:auction_id/buy-now", requireAuth, biddingHandler.BuyNowHandler)
	}

	return router
}
