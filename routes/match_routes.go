package routes

import (
	"github.com/gorilla/mux"

	"synapse_server/controllers"
)

// RegisterMatchRoutes sets up routes for match lifecycle operations under
// /api/matches
func RegisterMatchRoutes(r *mux.Router, controller *controllers.MatchController) {
	matchRouter := r.PathPrefix("/api/matches").Subrouter()

	matchRouter.HandleFunc("", controller.GetMatchesForUser).Methods("GET") // Handles /api/matches?userId=
	matchRouter.HandleFunc("/{id}/respond", controller.RespondToMatch).Methods("POST")
}
