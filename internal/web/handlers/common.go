package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-auth/internal/enrollment"
)

// MaxBodyBytes caps request bodies; images arrive base64 encoded inside JSON.
const MaxBodyBytes = 20 << 20

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

var errBodyTooLarge = errors.New("request body too large")

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// errorResponse carries both the error key and the success/message pair the UI reads.
type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Success: false, Message: message, Error: message})
}

// statusFor maps an enrollment failure to an HTTP status.
func statusFor(err error) int {
	switch enrollment.KindOf(err) {
	case enrollment.KindInvalidInput:
		return http.StatusBadRequest
	case enrollment.KindNoFace:
		return http.StatusUnprocessableEntity
	case enrollment.KindDuplicate:
		return http.StatusConflict
	case enrollment.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError sends the response for an error returned by the enrollment service.
func respondServiceError(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), enrollment.MessageOf(err))
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errBodyTooLarge
		}
		return fmt.Errorf("%s: %w", errInvalidRequestBody, err)
	}
	return nil
}

// respondDecodeError sends 413 or 400 for a failed decodeJSON.
func respondDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		respondError(w, http.StatusRequestEntityTooLarge, errBodyTooLarge.Error())
		return
	}
	respondError(w, http.StatusBadRequest, errInvalidRequestBody)
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
