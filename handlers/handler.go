// handlers/handler.go
package handlers

import (
	"encoding/json"
	"net/http"

	"gorm.io/gorm"

	"github.com/sstpro/backend/middleware"
	"github.com/sstpro/backend/pdf"
	"github.com/sstpro/backend/storage"
)

// Handler carries the dependencies every request handler needs. They are
// injected here instead of read from package globals so tests can run against
// an in-memory database and a fake image store.
type Handler struct {
	DB     *gorm.DB
	Images storage.ImageStore
	Tokens *middleware.TokenManager
	PDF    pdf.Converter
}

func New(db *gorm.DB, images storage.ImageStore, tokens *middleware.TokenManager, converter pdf.Converter) *Handler {
	return &Handler{DB: db, Images: images, Tokens: tokens, PDF: converter}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
