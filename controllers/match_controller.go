package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"synapse_server/models"
	"synapse_server/services"
)

// MatchController handles HTTP requests for match lifecycle actions
type MatchController struct {
	Lifecycle *services.MatchLifecycleService
	Store     services.Store
	Logger    *zap.Logger
}

type respondBody struct {
	UserID string `json:"userId"`
	Action string `json:"action"`
}

// RespondToMatch applies an accept or decline from the matched user.
func (mc *MatchController) RespondToMatch(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["id"]

	var body respondBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if body.UserID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}
	if body.Action != "accept" && body.Action != "decline" {
		http.Error(w, "Action must be either \"accept\" or \"decline\"", http.StatusBadRequest)
		return
	}

	match, err := mc.Lifecycle.Respond(r.Context(), matchID, body.UserID, body.Action)
	switch {
	case errors.Is(err, services.ErrNotFound):
		http.Error(w, "Match not found", http.StatusNotFound)
		return
	case errors.Is(err, services.ErrForbidden):
		http.Error(w, "Forbidden: You can only confirm your own matches", http.StatusForbidden)
		return
	case errors.Is(err, services.ErrExpired):
		http.Error(w, "This match has expired", http.StatusGone)
		return
	case errors.Is(err, services.ErrAlreadyResolved):
		http.Error(w, "Match has already been resolved", http.StatusConflict)
		return
	case err != nil:
		mc.Logger.Error("respond to match failed",
			zap.String("matchId", matchID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	message := "Match accepted and connection emails sent"
	if match.Status == models.MatchStatusDeclined {
		message = "Match declined. Looking for other potential matches..."
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":   true,
		"newStatus": match.Status,
		"message":   message,
	})
}

// GetMatchesForUser returns the matches where the user is the matched
// candidate, with expiry resolved lazily so no stale notified match leaks
// out.
func (mc *MatchController) GetMatchesForUser(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	matches, err := mc.Store.ListMatchesForUser(r.Context(), userID)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch matches: %v", err), http.StatusInternalServerError)
		return
	}

	resolved := make([]models.Match, 0, len(matches))
	for i := range matches {
		m, err := mc.Lifecycle.ResolveExpiry(r.Context(), &matches[i])
		if err != nil {
			mc.Logger.Warn("expiry resolution failed",
				zap.String("matchId", matches[i].ID), zap.Error(err))
			m = &matches[i]
		}
		resolved = append(resolved, *m)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"matches": resolved,
	})
}
