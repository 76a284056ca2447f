package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/mihaimyh/lettergate/pkg/lettergate"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// Handler provides the HTTP endpoints for letter checking
type Handler struct {
	config Config
}

// Check accepts a letter submission, runs validation and admission, invokes
// the completion service and returns the feedback with the remaining
// allowance. Every failure mode maps to a dedicated status code.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := uuid.NewString()

	var req CheckRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", "invalid_request", nil)
		return
	}

	credential := req.APIKey
	if credential == "" {
		credential = h.config.GetCredential(r)
	}

	if err := h.config.Validator.Validate(req.UserID, req.Text, credential); err != nil {
		h.handleError(w, requestID, req.UserID, err)
		return
	}

	result, err := h.config.Ledger.Check(ctx, req.UserID, req.Text, h.config.Complete)
	if err != nil {
		h.handleError(w, requestID, req.UserID, err)
		return
	}

	h.config.Logger.Info("letter checked",
		lettergate.Field{Key: "requestId", Value: requestID},
		lettergate.Field{Key: "userId", Value: req.UserID},
		lettergate.Field{Key: "remaining", Value: result.Remaining})

	h.writeJSON(w, http.StatusOK, CheckResponse{
		Response: result.Response,
		Requests: result.Remaining,
	})
}

// Quota reports the caller's current standing without consuming any quota.
// The user ID is taken from the userId query parameter.
func (h *Handler) Quota(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.URL.Query().Get("userId")
	if err := h.config.Validator.Authorize(userID, h.config.GetCredential(r)); err != nil {
		h.handleError(w, uuid.NewString(), userID, err)
		return
	}

	used, err := h.config.Ledger.CurrentUsage(ctx, userID)
	if err != nil {
		h.handleError(w, uuid.NewString(), userID, err)
		return
	}

	limit := h.config.Ledger.DailyLimit()
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}

	h.writeJSON(w, http.StatusOK, QuotaResponse{
		UserID:    userID,
		Date:      h.config.Ledger.CurrentWindow().Key(),
		Used:      used,
		Limit:     limit,
		Remaining: remaining,
	})
}

// Healthz is a liveness probe
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleError maps domain errors to status codes and response bodies
func (h *Handler) handleError(w http.ResponseWriter, requestID, userID string, err error) {
	switch {
	case errors.Is(err, lettergate.ErrUnauthorized):
		h.writeError(w, http.StatusUnauthorized, "Unauthorized", "unauthorized", nil)

	case lettergate.IsValidation(err):
		h.writeError(w, http.StatusBadRequest, err.Error(), "invalid_request", nil)

	case errors.Is(err, lettergate.ErrLimitReached):
		zero := 0
		h.writeError(w, http.StatusTooManyRequests,
			lettergate.LimitReachedMessage, "limit_reached", &zero)

	case errors.Is(err, lettergate.ErrTimeout):
		h.writeError(w, http.StatusServiceUnavailable,
			lettergate.BusyMessage, "busy", nil)

	case errors.Is(err, lettergate.ErrMalformedResponse),
		errors.Is(err, lettergate.ErrUpstream):
		h.config.Logger.Error("upstream failure",
			lettergate.Field{Key: "requestId", Value: requestID},
			lettergate.Field{Key: "userId", Value: userID},
			lettergate.Field{Key: "error", Value: err.Error()})
		h.writeError(w, http.StatusBadGateway,
			"The letter check could not be completed. Please try again.",
			"upstream_error", nil)

	default:
		h.config.Logger.Error("internal failure",
			lettergate.Field{Key: "requestId", Value: requestID},
			lettergate.Field{Key: "userId", Value: userID},
			lettergate.Field{Key: "error", Value: err.Error()})
		h.writeError(w, http.StatusInternalServerError,
			"Internal server error", "internal", nil)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Response already sent, nothing more to do
		_ = err
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string, requests *int) {
	h.writeJSON(w, status, ErrorResponse{
		Error:    message,
		Code:     code,
		Requests: requests,
	})
}
