package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/enrollment"
)

type UsersHandler struct {
	service *enrollment.Service
}

func NewUsersHandler(service *enrollment.Service) *UsersHandler {
	return &UsersHandler{service: service}
}

type UsersResponse struct {
	Success bool                       `json:"success"`
	Count   int                        `json:"count"`
	Users   []database.IdentitySummary `json:"users"`
}

// List returns every enrolled user without embeddings.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, UsersResponse{Success: true, Count: len(users), Users: users})
}
