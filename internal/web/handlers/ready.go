package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Checker reports whether a dependency is usable.
type Checker func(ctx context.Context) error

// ReadyHandler checks the embedding service and the enrollment store.
type ReadyHandler struct {
	checks map[string]Checker
}

func NewReadyHandler(checks map[string]Checker) *ReadyHandler {
	return &ReadyHandler{checks: checks}
}

// Ready returns 200 when every dependency answers, 503 otherwise.
func (h *ReadyHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	result := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			log.Warn().Err(err).Str("dependency", name).Msg("Readiness check failed")
			result[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		result[name] = "ok"
	}

	respondJSON(w, status, map[string]any{
		"ready":        status == http.StatusOK,
		"dependencies": result,
	})
}
