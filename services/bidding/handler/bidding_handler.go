package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"auction-engine/internal/views"
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

//go:generate mockgen -source=bidding_handler.go -destination=mock_bidding_handler.go -package=handler

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type BiddingServiceInterface interface {
	PlaceBid(ctx context.Context, auctionID, bidderID string, ceiling int64) (bidding.PlaceBidResult, error)
	RejectBid(ctx context.Context, auctionID, bidID, sellerID string) (bidding.RejectBidResult, error)
	BuyNow(ctx context.Context, auctionID, buyerID string) (bidding.BuyNowResult, error)
	GetBids(ctx context.Context, auctionID, viewerID string) ([]models.Bid, error)
}

type AuctionViewsInterface interface {
	List(ctx context.Context, filter views.ListFilter) ([]views.AuctionSummary, error)
	Detail(ctx context.Context, auctionID, viewerID string) (views.AuctionDetail, error)
}

type BiddingHandler struct {
	service BiddingServiceInterface
	views   AuctionViewsInterface
}

func NewBiddingHandler(service BiddingServiceInterface, auctionViews AuctionViewsInterface) *BiddingHandler {
	return &BiddingHandler{service: service, views: auctionViews}
}

// requireUser aborts with 401 when the request carries no identity
func requireUser(c *gin.Context, handlerName string) (string, bool) {
	userID := helpers.CurrentUser(c)
	if userID == "" {
		utils.JSONError(c, http.StatusUnauthorized, errors.New("missing user identity"), "authentication required")
		utils.Warn(handlerName+": anonymous request", map[string]any{"path": c.Request.URL.Path})
		return "", false
	}
	return userID, true
}

// PlaceBidHandler handles POST /auctions/:auction_id/bids
func (h *BiddingHandler) PlaceBidHandler(c *gin.Context) {
	bidderID, ok := requireUser(c, "PlaceBidHandler")
	if !ok {
		return
	}

	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	auctionID := c.Param("auction_id")
	res, err := h.service.PlaceBid(c.Request.Context(), auctionID, bidderID, req.MaxAmount)
	if err != nil {
		helpers.HandleServiceError(c, "PlaceBidHandler", err, map[string]any{
			"auction_id": auctionID,
			"bidder_id":  bidderID,
		})
		return
	}

	resp := helpers.PlaceBidResponse{
		AuctionID:    auctionID,
		Tag:          string(res.Tag),
		CurrentPrice: res.CurrentPrice,
		WinnerID:     res.WinnerID,
		BidCount:     res.BidCount,
		EndTime:      helpers.FormatTime(res.EndTime),
		Extended:     res.Extended,
	}

	utils.JSONResponse(c, http.StatusCreated, resp, "bid placed successfully")
	helpers.LogSuccess("PlaceBidHandler", "bid placed successfully", map[string]any{
		"auction_id":    auctionID,
		"bidder_id":     bidderID,
		"tag":           res.Tag,
		"current_price": res.CurrentPrice,
	})
}

// RejectBidHandler handles DELETE /auctions/:auction_id/bids/:bid_id
func (h *BiddingHandler) RejectBidHandler(c *gin.Context) {
	sellerID, ok := requireUser(c, "RejectBidHandler")
	if !ok {
		return
	}

	auctionID, bidID := c.Param("auction_id"), c.Param("bid_id")
	res, err := h.service.RejectBid(c.Request.Context(), auctionID, bidID, sellerID)
	if err != nil {
		helpers.HandleServiceError(c, "RejectBidHandler", err, map[string]any{
			"auction_id": auctionID,
			"bid_id":     bidID,
			"seller_id":  sellerID,
		})
		return
	}

	resp := helpers.RejectBidResponse{
		AuctionID:    auctionID,
		BidID:        bidID,
		CurrentPrice: res.CurrentPrice,
		WinnerID:     res.WinnerID,
		BidCount:     res.BidCount,
	}

	utils.JSONResponse(c, http.StatusOK, resp, "bid rejected successfully")
	helpers.LogSuccess("RejectBidHandler", "bid rejected successfully", map[string]any{
		"auction_id":    auctionID,
		"bid_id":        bidID,
		"current_price": res.CurrentPrice,
	})
}

// BuyNowHandler handles POST /auctions/:auction_id/buy-now
func (h *BiddingHandler) BuyNowHandler(c *gin.Context) {
	buyerID, ok := requireUser(c, "BuyNowHandler")
	if !ok {
		return
	}

	auctionID := c.Param("auction_id")
	res, err := h.service.BuyNow(c.Request.Context(), auctionID, buyerID)
	if err != nil {
		helpers.HandleServiceError(c, "BuyNowHandler", err, map[string]any{
			"auction_id": auctionID,
			"buyer_id":   buyerID,
		})
		return
	}

	resp := helpers.BuyNowResponse{AuctionID: auctionID, OrderID: res.OrderID, FinalPrice: res.FinalPrice}

	utils.JSONResponse(c, http.StatusCreated, resp, "auction bought successfully")
	helpers.LogSuccess("BuyNowHandler", "auction bought successfully", map[string]any{
		"auction_id":  auctionID,
		"buyer_id":    buyerID,
		"order_id":    res.OrderID,
		"final_price": res.FinalPrice,
	})
}

// GetBidsHandler handles GET /auctions/:auction_id/bids
func (h *BiddingHandler) GetBidsHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bids, err := h.service.GetBids(c.Request.Context(), auctionID, helpers.CurrentUser(c))
	if err != nil {
		helpers.HandleServiceError(c, "GetBidsHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	resp := make([]helpers.BidResponse, 0, len(bids))
	for _, b := range bids {
		resp = append(resp, helpers.NewBidResponse(b))
	}

	utils.JSONResponse(c, http.StatusOK, resp, "bids retrieved successfully")
	helpers.LogSuccess("GetBidsHandler", "bids retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"count":      len(resp),
	})
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *BiddingHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	detail, err := h.views.Detail(c.Request.Context(), auctionID, helpers.CurrentUser(c))
	if err != nil {
		helpers.HandleServiceError(c, "GetAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, detail, "auction retrieved successfully")
	helpers.LogSuccess("GetAuctionHandler", "auction retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"status":     detail.Status,
	})
}

// ListAuctionsHandler handles GET /auctions
func (h *BiddingHandler) ListAuctionsHandler(c *gin.Context) {
	filter, err := parseListFilter(c)
	if err != nil {
		helpers.HandleServiceError(c, "ListAuctionsHandler", err, nil)
		return
	}

	auctions, err := h.views.List(c.Request.Context(), filter)
	if err != nil {
		helpers.HandleServiceError(c, "ListAuctionsHandler", err, nil)
		return
	}
	if auctions == nil {
		auctions = []views.AuctionSummary{}
	}

	utils.JSONResponse(c, http.StatusOK, auctions, "auctions retrieved successfully")
	helpers.LogSuccess("ListAuctionsHandler", "auctions retrieved successfully", map[string]any{
		"count":  len(auctions),
		"status": filter.Status,
		"sort":   filter.Sort,
	})
}

func parseListFilter(c *gin.Context) (views.ListFilter, error) {
	filter := views.ListFilter{
		CategoryID: c.Query("category"),
		SellerID:   c.Query("seller"),
		Status:     models.AuctionStatus(c.Query("status")),
		Sort:       views.SortOrder(c.Query("sort")),
		Limit:      defaultPageSize,
	}

	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return filter, fmt.Errorf("%w - limit must be a positive integer", biddingerrors.ErrInvalidBid)
		}
		filter.Limit = min(n, maxPageSize)
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("%w - offset must be a non-negative integer", biddingerrors.ErrInvalidBid)
		}
		filter.Offset = n
	}
	return filter, nil
}
