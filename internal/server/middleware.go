package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	fields := map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
	}
	if userID := helpers.CurrentUser(c); userID != "" {
		fields["user_id"] = userID
	}
	utils.Info("HTTP Request", fields)
}

// AuthMiddleware verifies the bearer token and stores its subject under
// helpers.UserIDKey. With required unset, requests without a token pass
// through anonymously, but a malformed or invalid token is still rejected.
func AuthMiddleware(secret []byte, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			if required {
				abortUnauthorized(c, errors.New("missing Authorization header"))
				return
			}
			c.Next()
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			abortUnauthorized(c, errors.New("invalid Authorization format"))
			return
		}

		userID, err := utils.ParseToken(secret, strings.TrimPrefix(header, prefix))
		if err != nil {
			abortUnauthorized(c, err)
			return
		}

		c.Set(helpers.UserIDKey, userID)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, err error) {
	utils.JSONError(c, http.StatusUnauthorized, err, "authentication required")
	c.Abort()
	utils.Warn("AuthMiddleware: rejected request", map[string]any{
		"path":  c.Request.URL.Path,
		"error": err.Error(),
	})
}
