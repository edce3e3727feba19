package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/database"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Threshold    float64 `json:"threshold"`
	Rule         string  `json:"rule"`
	Backend      string  `json:"backend"`
	StoreReady   bool    `json:"store_ready"`
	EmbeddingURL string  `json:"embedding_url"`
	EmbeddingDim int     `json:"embedding_dim"`
}

// Get returns the public service configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ConfigResponse{
		Threshold:    h.config.Verification.Threshold,
		Rule:         "similarity > threshold",
		Backend:      database.BackendName(),
		StoreReady:   database.IsInitialized(),
		EmbeddingURL: h.config.Embedding.URL,
		EmbeddingDim: h.config.Embedding.Dim,
	})
}
