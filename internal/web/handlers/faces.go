// Package handlers provides HTTP handlers for the web API.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/kozaktomas/face-auth/internal/enrollment"
	"github.com/kozaktomas/face-auth/internal/facematch"
)

// FacesHandler handles detect, register and verify.
type FacesHandler struct {
	service *enrollment.Service
}

func NewFacesHandler(service *enrollment.Service) *FacesHandler {
	return &FacesHandler{service: service}
}

type imageRequest struct {
	Image string `json:"image"`
}

type registerRequest struct {
	Username string `json:"username"`
	Image    string `json:"image"`
}

// FaceResponse is returned by detect and register.
type FaceResponse struct {
	Success      bool      `json:"success"`
	Message      string    `json:"message"`
	Username     string    `json:"username,omitempty"`
	BBox         []int     `json:"bbox"`
	BBoxRelative []float64 `json:"bbox_relative"`
	FaceCrop     string    `json:"face_crop,omitempty"`
}

// VerifyResponse is returned by verify, for accepted and rejected probes alike.
type VerifyResponse struct {
	Success      bool              `json:"success"`
	Message      string            `json:"message"`
	Username     string            `json:"username,omitempty"`
	Closest      string            `json:"closest,omitempty"`
	Similarity   float64           `json:"similarity"`
	Threshold    float64           `json:"threshold"`
	AllScores    []facematch.Score `json:"all_scores"`
	BBox         []int             `json:"bbox"`
	BBoxRelative []float64         `json:"bbox_relative"`
	FaceCrop     string            `json:"face_crop,omitempty"`
}

// readImage decodes the request and the image it carries. It writes the
// error response itself and returns false on failure.
func readImage(w http.ResponseWriter, r *http.Request, dst *imageRequest) ([]byte, bool) {
	if err := decodeJSON(w, r, dst); err != nil {
		respondDecodeError(w, err)
		return nil, false
	}
	if dst.Image == "" {
		respondError(w, http.StatusBadRequest, enrollment.MsgImageRequired)
		return nil, false
	}
	data, err := enrollment.DecodeImage(dst.Image)
	if err != nil {
		respondServiceError(w, err)
		return nil, false
	}
	return data, true
}

// Detect finds the first face in the image and returns its preview.
func (h *FacesHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	data, ok := readImage(w, r, &req)
	if !ok {
		return
	}

	face, err := h.service.Detect(r.Context(), data)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, FaceResponse{
		Success:      true,
		Message:      enrollment.MsgFaceDetected,
		BBox:         face.BBox,
		BBoxRelative: face.BBoxRelative,
		FaceCrop:     face.FaceCrop,
	})
}

// Register enrolls a new user.
func (h *FacesHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}
	if req.Username == "" || req.Image == "" {
		respondError(w, http.StatusBadRequest, enrollment.MsgUsernameAndImage)
		return
	}

	data, err := enrollment.DecodeImage(req.Image)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	log.Debug().Str("username", sanitizeForLog(req.Username)).Msg("Registration requested")

	result, err := h.service.Register(r.Context(), req.Username, data)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, FaceResponse{
		Success:      true,
		Message:      enrollment.MsgRegistered,
		Username:     result.Username,
		BBox:         result.BBox,
		BBoxRelative: result.BBoxRelative,
		FaceCrop:     result.FaceCrop,
	})
}

// Verify matches the image against every enrolled user. A probe that matches
// nobody is a normal 200 response with success false and all scores.
func (h *FacesHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	data, ok := readImage(w, r, &req)
	if !ok {
		return
	}

	result, err := h.service.Verify(r.Context(), data)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	resp := VerifyResponse{
		Success:      result.Matched,
		Similarity:   result.BestSimilarity,
		Threshold:    result.Threshold,
		AllScores:    result.AllScores,
		BBox:         result.BBox,
		BBoxRelative: result.BBoxRelative,
		FaceCrop:     result.FaceCrop,
	}
	if result.Matched {
		resp.Message = fmt.Sprintf("Welcome back, %s!", result.BestLabel)
		resp.Username = result.BestLabel
	} else {
		resp.Message = enrollment.MsgNotRecognized
		resp.Closest = result.BestLabel
	}

	respondJSON(w, http.StatusOK, resp)
}
