// Package http provides HTTP middleware for letter admission control
package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mihaimyh/lettergate/pkg/lettergate"
)

// UserIDExtractor extracts the user ID from an HTTP request
// Return empty string if user is not authenticated
type UserIDExtractor func(r *http.Request) string

// Config holds gate middleware configuration
type Config struct {
	// Ledger is the quota ledger instance (required)
	Ledger *lettergate.Ledger

	// GetUserID extracts user ID from request (required)
	GetUserID UserIDExtractor

	// OnLimitReached is called when the user is already at the daily limit.
	// If nil, returns 429 with the standard limit-reached copy.
	OnLimitReached func(w http.ResponseWriter, r *http.Request, used, limit int)

	// OnUnauthorized is called when user is not authenticated
	// If nil, returns 401 Unauthorized
	OnUnauthorized func(w http.ResponseWriter, r *http.Request)

	// OnError is called when an internal error occurs
	// If nil, returns 500 Internal Server Error
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// Gate creates an HTTP middleware that rejects requests from users already
// at their daily limit. The check is an uncommitted read; the guarded
// handler still owns the authoritative conditional commit.
func Gate(config Config) func(http.Handler) http.Handler {
	if config.Ledger == nil {
		panic("lettergate/http: Config.Ledger is required")
	}
	if config.GetUserID == nil {
		panic("lettergate/http: Config.GetUserID is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := config.GetUserID(r)
			if userID == "" {
				if config.OnUnauthorized != nil {
					config.OnUnauthorized(w, r)
				} else {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
				}
				return
			}

			used, err := config.Ledger.CurrentUsage(r.Context(), userID)
			if err != nil {
				if config.OnError != nil {
					config.OnError(w, r, err)
				} else {
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
				return
			}

			limit := config.Ledger.DailyLimit()
			if used >= limit {
				if config.OnLimitReached != nil {
					config.OnLimitReached(w, r, used, limit)
				} else {
					defaultLimitReached(w)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func defaultLimitReached(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":    lettergate.LimitReachedMessage,
		"code":     "limit_reached",
		"requests": 0,
	})
}

// CORS wraps a handler with permissive cross-origin headers and answers
// preflight requests directly with an empty 200.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, X-Api-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ContextKey is a type for context keys
type ContextKey string

// UserIDKey is the context key for user ID
const UserIDKey ContextKey = "lettergate:userID"

// FromContext returns a UserIDExtractor that gets user ID from request context
func FromContext(key ContextKey) UserIDExtractor {
	return func(r *http.Request) string {
		if userID, ok := r.Context().Value(key).(string); ok {
			return userID
		}
		return ""
	}
}

// FromHeader returns a UserIDExtractor that gets user ID from a header
func FromHeader(headerName string) UserIDExtractor {
	return func(r *http.Request) string {
		return r.Header.Get(headerName)
	}
}

// FromQuery returns a UserIDExtractor that gets user ID from a query parameter
func FromQuery(queryName string) UserIDExtractor {
	return func(r *http.Request) string {
		return r.URL.Query().Get(queryName)
	}
}

// WithUserID adds user ID to request context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}
