package routes

import (
	"github.com/gorilla/mux"

	"synapse_server/controllers"
)

// RegisterRetryRoutes sets up the rematch trigger route under /api/retry
func RegisterRetryRoutes(r *mux.Router, controller *controllers.RetryController) {
	retryRouter := r.PathPrefix("/api/retry").Subrouter()

	retryRouter.HandleFunc("", controller.RetryMatching).Methods("POST")
}
