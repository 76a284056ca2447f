// Package gin provides Gin middleware for letter admission control
package gin

import (
	"net/http"

	gongin "github.com/gin-gonic/gin"

	"github.com/mihaimyh/lettergate/pkg/lettergate"
)

// UserIDExtractor extracts the user ID from a Gin context
// Return empty string if user is not authenticated
type UserIDExtractor func(c *gongin.Context) string

// Config holds middleware configuration
type Config struct {
	// Ledger is the quota ledger instance (required)
	Ledger *lettergate.Ledger

	// GetUserID extracts user ID from context (required)
	GetUserID UserIDExtractor

	// LimitReachedStatusCode is the HTTP status code returned when the
	// daily limit is reached. Default: 429 (Too Many Requests)
	LimitReachedStatusCode int

	// OnLimitReached is called when the user is already at the daily limit.
	// If nil, uses the default JSON response.
	OnLimitReached func(c *gongin.Context, used, limit int)

	// OnUnauthorized is called when user is not authenticated
	// If nil, returns 401 Unauthorized
	OnUnauthorized func(c *gongin.Context)

	// OnError is called when an internal error occurs
	// If nil, returns 500 Internal Server Error
	OnError func(c *gongin.Context, err error)
}

// Middleware creates a Gin middleware that rejects requests from users
// already at their daily limit. The check is an uncommitted read; the
// guarded handler still owns the authoritative conditional commit.
func Middleware(cfg Config) gongin.HandlerFunc {
	// Validate required configuration at startup (fail fast)
	if cfg.Ledger == nil {
		panic("lettergate/gin: Config.Ledger is required")
	}
	if cfg.GetUserID == nil {
		panic("lettergate/gin: Config.GetUserID is required")
	}

	// Set defaults
	if cfg.LimitReachedStatusCode == 0 {
		cfg.LimitReachedStatusCode = http.StatusTooManyRequests
	}

	return func(c *gongin.Context) {
		userID := cfg.GetUserID(c)
		if userID == "" {
			if cfg.OnUnauthorized != nil {
				cfg.OnUnauthorized(c)
			} else {
				c.JSON(http.StatusUnauthorized, gongin.H{"error": "Unauthorized"})
			}
			c.Abort()
			return
		}

		used, err := cfg.Ledger.CurrentUsage(c.Request.Context(), userID)
		if err != nil {
			if cfg.OnError != nil {
				cfg.OnError(c, err)
			} else {
				c.JSON(http.StatusInternalServerError, gongin.H{"error": "Internal Server Error"})
			}
			c.Abort()
			return
		}

		limit := cfg.Ledger.DailyLimit()
		if used >= limit {
			if cfg.OnLimitReached != nil {
				cfg.OnLimitReached(c, used, limit)
			} else {
				c.JSON(cfg.LimitReachedStatusCode, gongin.H{
					"error":    lettergate.LimitReachedMessage,
					"code":     "limit_reached",
					"requests": 0,
				})
			}
			c.Abort()
			return
		}

		c.Next()
	}
}

// Convenience extractors for User ID

// FromContext returns a UserIDExtractor that gets user ID from Gin context values
//
// Example:
//
//	// In your auth middleware:
//	c.Set("UserID", userID)
//
//	// In gate middleware config:
//	GetUserID: gin.FromContext("UserID")
func FromContext(key string) UserIDExtractor {
	return func(c *gongin.Context) string {
		if val, exists := c.Get(key); exists {
			if str, ok := val.(string); ok {
				return str
			}
		}
		return ""
	}
}

// FromHeader returns a UserIDExtractor that gets user ID from a header
func FromHeader(headerName string) UserIDExtractor {
	return func(c *gongin.Context) string {
		return c.GetHeader(headerName)
	}
}

// FromParam returns a UserIDExtractor that gets user ID from a route parameter
func FromParam(paramName string) UserIDExtractor {
	return func(c *gongin.Context) string {
		return c.Param(paramName)
	}
}

// FromQuery returns a UserIDExtractor that gets user ID from a query parameter
func FromQuery(queryName string) UserIDExtractor {
	return func(c *gongin.Context) string {
		return c.Query(queryName)
	}
}
