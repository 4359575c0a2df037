// routes/routes.go
package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sstpro/backend/handlers"
	"github.com/sstpro/backend/middleware"
)

// RegisterRoutes wires up the full HTTP surface. uploadsDir, when non-empty,
// is served under /uploads/ for the local image store.
func RegisterRoutes(h *handlers.Handler, tokens *middleware.TokenManager, uploadsDir string) http.Handler {
	r := mux.NewRouter()

	// Public routes (no authentication)
	r.HandleFunc("/api/auth/register", h.Register).Methods("POST")
	r.HandleFunc("/api/auth/login", h.Login).Methods("POST")
	r.HandleFunc("/api/auth/refresh", h.Refresh).Methods("POST")
	if uploadsDir != "" {
		r.PathPrefix("/uploads/").Handler(
			http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadsDir))),
		)
	}

	// Everything else requires a bearer token
	api := r.PathPrefix("/api").Subrouter()
	api.Use(tokens.Middleware)

	api.HandleFunc("/auth/me", h.Me).Methods("GET")

	api.HandleFunc("/companies", h.ListCompanies).Methods("GET")
	api.HandleFunc("/companies", h.CreateCompany).Methods("POST")
	api.HandleFunc("/companies/{id}", h.UpdateCompany).Methods("PUT")
	api.HandleFunc("/companies/{id}", h.DeleteCompany).Methods("DELETE")

	api.HandleFunc("/reports", h.ListReports).Methods("GET")
	api.HandleFunc("/reports", h.CreateReport).Methods("POST")
	api.HandleFunc("/reports/{id}", h.GetReport).Methods("GET")
	api.HandleFunc("/reports/{id}", h.UpdateReport).Methods("PUT")
	api.HandleFunc("/reports/{id}", h.DeleteReport).Methods("DELETE")
	api.HandleFunc("/reports/{id}/export", h.ExportReport).Methods("GET")

	api.HandleFunc("/pdf/{reportId}", h.ExportPDF).Methods("GET")

	return r
}
