package routes

import (
	"github.com/gorilla/mux"

	"synapse_server/controllers"
)

// RegisterRequestRoutes sets up routes for request submission and status
// repair under /api/requests
func RegisterRequestRoutes(r *mux.Router, controller *controllers.RequestController) {
	requestRouter := r.PathPrefix("/api/requests").Subrouter()

	requestRouter.HandleFunc("", controller.SubmitRequest).Methods("POST")
	requestRouter.HandleFunc("/{id}/fix-status", controller.FixRequestStatus).Methods("POST")
}
