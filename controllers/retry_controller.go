package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"synapse_server/services"
)

// RetryController handles HTTP requests for manual and system-wide rematch
// triggers
type RetryController struct {
	Rematch *services.RematchService
	Store   services.Store
	Limiter *services.RateLimiter
	IsAdmin func(userID string) bool
	Logger  *zap.Logger
}

type retryBody struct {
	UserID     string `json:"userId"`
	RequestID  string `json:"requestId,omitempty"`
	SystemWide bool   `json:"systemWide,omitempty"`
	Trigger    string `json:"trigger,omitempty"`
}

// RetryMatching retries a single request (owner or admin) or sweeps all
// unmatched requests (admin, or a legitimate system trigger).
func (rc *RetryController) RetryMatching(w http.ResponseWriter, r *http.Request) {
	var body retryBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if body.UserID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	if !rc.Limiter.Allow(body.UserID) {
		http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		return
	}

	if body.RequestID != "" {
		rc.retrySingle(w, r, body)
		return
	}

	// System-wide sweeps are for admins and the enumerated system triggers
	// (new profile, profile update).
	legitimateTrigger := body.SystemWide &&
		(body.Trigger == "new_user" || body.Trigger == "profile_update")
	if !rc.IsAdmin(body.UserID) && !legitimateTrigger {
		http.Error(w, "Forbidden: Admin access required for system-wide retry", http.StatusForbidden)
		return
	}

	rc.Logger.Info("system-wide retry triggered",
		zap.String("userId", body.UserID), zap.String("trigger", body.Trigger))

	sweep, err := rc.Rematch.RetryAllUnmatched(r.Context())
	if err != nil {
		rc.Logger.Error("system-wide retry failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":    true,
		"total":      sweep.Total,
		"successful": sweep.Successful,
		"failed":     sweep.Failed,
	})
}

func (rc *RetryController) retrySingle(w http.ResponseWriter, r *http.Request, body retryBody) {
	if !rc.IsAdmin(body.UserID) {
		request, err := rc.Store.GetRequest(r.Context(), body.RequestID)
		if errors.Is(err, services.ErrNotFound) {
			http.Error(w, "Request not found", http.StatusNotFound)
			return
		}
		if err != nil {
			rc.Logger.Error("retry lookup failed", zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if request.RequesterID != body.UserID {
			http.Error(w, "Forbidden: You can only retry your own requests", http.StatusForbidden)
			return
		}
	}

	result, err := rc.Rematch.RetryForRequest(r.Context(), body.RequestID)
	if errors.Is(err, services.ErrNotFound) {
		http.Error(w, "Request not found", http.StatusNotFound)
		return
	}
	if err != nil {
		rc.Logger.Error("retry failed", zap.String("requestId", body.RequestID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
