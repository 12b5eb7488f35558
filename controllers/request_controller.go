package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"synapse_server/services"
)

// RequestController handles HTTP requests for match-request submission and
// request status repair
type RequestController struct {
	Rematch   *services.RematchService
	Lifecycle *services.MatchLifecycleService
	Store     services.Store
	Limiter   *services.RateLimiter
	IsAdmin   func(userID string) bool
	Logger    *zap.Logger
}

type submitRequestBody struct {
	UserID string `json:"userId"`
	Text   string `json:"requestText"`
}

// SubmitRequest creates a request and runs the initial match attempt.
func (rc *RequestController) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var body submitRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if body.UserID == "" || body.Text == "" {
		http.Error(w, "userId and requestText are required", http.StatusBadRequest)
		return
	}

	if !rc.Limiter.Allow(body.UserID) {
		http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		return
	}

	request, match, err := rc.Rematch.SubmitRequestAndMatch(r.Context(), body.UserID, body.Text)
	if errors.Is(err, services.ErrNotFound) {
		http.Error(w, "requester profile not found", http.StatusNotFound)
		return
	}
	if err != nil {
		rc.Logger.Error("submit request failed", zap.Error(err))
		http.Error(w, "Error creating request", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"requestId": request.ID,
		"status":    request.Status,
	}
	if match != nil {
		response["matchId"] = match.ID
		response["matchScore"] = match.Score
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(response)
}

type fixStatusBody struct {
	UserID string `json:"userId"`
}

// FixRequestStatus reconciles a request's status with its matches. Owner or
// admin only.
func (rc *RequestController) FixRequestStatus(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["id"]

	var body fixStatusBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if body.UserID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	request, err := rc.Store.GetRequest(r.Context(), requestID)
	if errors.Is(err, services.ErrNotFound) {
		http.Error(w, "Request not found", http.StatusNotFound)
		return
	}
	if err != nil {
		rc.Logger.Error("fix status lookup failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if request.RequesterID != body.UserID && !rc.IsAdmin(body.UserID) {
		http.Error(w, "Forbidden: You can only fix your own requests", http.StatusForbidden)
		return
	}

	status, fixed, err := rc.Lifecycle.ReconcileStatus(r.Context(), requestID)
	if err != nil {
		rc.Logger.Error("reconcile failed", zap.String("requestId", requestID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"fixed":  fixed,
	})
}
