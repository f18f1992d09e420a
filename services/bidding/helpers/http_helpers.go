package helpers

import (
	"errors"
	"fmt"
	"net/http"

	"auction-engine/internal/biddingerrors"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

// UserIDKey is the gin context key holding the authenticated caller
const UserIDKey = "user_id"

// CurrentUser returns the authenticated caller, or "" for anonymous requests
func CurrentUser(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, biddingerrors.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, biddingerrors.ErrBidNotFound):
		return http.StatusNotFound, "bid not found"
	case errors.Is(err, biddingerrors.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, biddingerrors.ErrAuctionNotActive):
		return http.StatusConflict, "auction is not active"
	case errors.Is(err, biddingerrors.ErrAuctionEnded):
		return http.StatusConflict, "auction has ended"
	case errors.Is(err, biddingerrors.ErrSelfBidForbidden):
		return http.StatusForbidden, "sellers cannot bid on their own auction"
	case errors.Is(err, biddingerrors.ErrInsufficientReputation):
		return http.StatusForbidden, "insufficient reputation"
	case errors.Is(err, biddingerrors.ErrBidTooLow):
		return http.StatusConflict, "bid amount too low"
	case errors.Is(err, biddingerrors.ErrNoBuyNowOption):
		return http.StatusConflict, "auction has no buy-now price"
	case errors.Is(err, biddingerrors.ErrUnauthorized):
		return http.StatusForbidden, "not allowed"
	case errors.Is(err, biddingerrors.ErrInvalidBid):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, biddingerrors.ErrTransient):
		return http.StatusServiceUnavailable, "service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// HandleServiceError writes the mapped error response. Client errors are
// logged at warn, server errors at error.
func HandleServiceError(c *gin.Context, handlerName string, err error, fields map[string]any) {
	status, message := MapErrorToHTTP(err)
	details := ErrorDetails(err)
	utils.JSONErrorDetails(c, status, fmt.Errorf("%s: %w", message, err), message, details)

	if fields == nil {
		fields = map[string]any{}
	}
	fields["handler"] = handlerName
	fields["status"] = status
	fields["error"] = err.Error()
	for k, v := range details {
		fields[k] = v
	}

	if status >= http.StatusInternalServerError {
		utils.Error(handlerName+": request failed", fields)
		return
	}
	utils.Warn(handlerName+": request rejected", fields)
}

// ErrorDetails extracts the values a client needs to retry, or nil
func ErrorDetails(err error) map[string]any {
	var tooLow *biddingerrors.BidTooLowError
	if errors.As(err, &tooLow) {
		return map[string]any{"min_bid": tooLow.Floor}
	}
	var rep *biddingerrors.ReputationError
	if errors.As(err, &rep) {
		details := map[string]any{"rated": rep.Rated, "min_positive_percent": rep.Minimum}
		if rep.Rated {
			details["positive_percent"] = rep.Percent
		}
		return details
	}
	return nil
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
