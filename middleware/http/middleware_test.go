package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mihaimyh/lettergate/pkg/lettergate"
	"github.com/mihaimyh/lettergate/storage/memory"
)

// Test helper to create a ledger with some usage pre-committed
func setupTestLedger(t *testing.T, limit, used int) *lettergate.Ledger {
	t.Helper()

	store := memory.New()
	ledger, err := lettergate.NewLedger(store, lettergate.Config{DailyLimit: limit})
	if err != nil {
		t.Fatalf("Failed to create ledger: %v", err)
	}

	ctx := context.Background()
	window := ledger.CurrentWindow()
	for i := 0; i < used; i++ {
		_, err := store.AppendGrant(ctx, &lettergate.GrantRequest{
			UserID: "user1",
			Window: window,
			Limit:  limit,
			Message: lettergate.Message{
				Timestamp:  time.Now().UTC(),
				UserText:   "letter",
				AIResponse: "feedback",
			},
		})
		if err != nil {
			t.Fatalf("Failed to seed usage: %v", err)
		}
	}

	return ledger
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestGate_AdmitsBelowLimit(t *testing.T) {
	ledger := setupTestLedger(t, 5, 2)

	var called bool
	handler := Gate(Config{
		Ledger:    ledger,
		GetUserID: FromHeader("X-User-ID"),
	})(okHandler(&called))

	req := httptest.NewRequest(http.MethodPost, "/check", nil)
	req.Header.Set("X-User-ID", "user1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !called {
		t.Error("Expected wrapped handler to run")
	}
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestGate_RejectsAtLimit(t *testing.T) {
	ledger := setupTestLedger(t, 2, 2)

	var called bool
	handler := Gate(Config{
		Ledger:    ledger,
		GetUserID: FromHeader("X-User-ID"),
	})(okHandler(&called))

	req := httptest.NewRequest(http.MethodPost, "/check", nil)
	req.Header.Set("X-User-ID", "user1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if called {
		t.Error("Expected wrapped handler to be skipped")
	}
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", w.Code)
	}
}

func TestGate_Unauthorized(t *testing.T) {
	ledger := setupTestLedger(t, 5, 0)

	var called bool
	handler := Gate(Config{
		Ledger:    ledger,
		GetUserID: FromHeader("X-User-ID"),
	})(okHandler(&called))

	// No user header
	req := httptest.NewRequest(http.MethodPost, "/check", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if called {
		t.Error("Expected wrapped handler to be skipped")
	}
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestGate_CustomCallbacks(t *testing.T) {
	ledger := setupTestLedger(t, 1, 1)

	var gotUsed, gotLimit int
	handler := Gate(Config{
		Ledger:    ledger,
		GetUserID: FromQuery("userId"),
		OnLimitReached: func(w http.ResponseWriter, _ *http.Request, used, limit int) {
			gotUsed, gotLimit = used, limit
			w.WriteHeader(http.StatusPaymentRequired)
		},
	})(okHandler(new(bool)))

	req := httptest.NewRequest(http.MethodPost, "/check?userId=user1", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusPaymentRequired {
		t.Errorf("Expected custom status, got %d", w.Code)
	}
	if gotUsed != 1 || gotLimit != 1 {
		t.Errorf("Expected used=1 limit=1, got used=%d limit=%d", gotUsed, gotLimit)
	}
}

func TestCORS_AddsHeaders(t *testing.T) {
	var called bool
	handler := CORS(okHandler(&called))

	req := httptest.NewRequest(http.MethodPost, "/check", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !called {
		t.Error("Expected wrapped handler to run")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected permissive origin, got %q", got)
	}
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	var called bool
	handler := CORS(okHandler(&called))

	req := httptest.NewRequest(http.MethodOptions, "/check", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if called {
		t.Error("Expected preflight to skip the wrapped handler")
	}
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 preflight, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("Expected empty preflight body, got %q", w.Body.String())
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got == "" {
		t.Error("Expected preflight to carry CORS headers")
	}
}

func TestFromContext(t *testing.T) {
	extract := FromContext(UserIDKey)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := extract(req); got != "" {
		t.Errorf("Expected empty for missing value, got %q", got)
	}

	req = req.WithContext(WithUserID(req.Context(), "user1"))
	if got := extract(req); got != "user1" {
		t.Errorf("Expected user1, got %q", got)
	}
}
