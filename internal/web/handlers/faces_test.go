package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/database/mock"
	"github.com/kozaktomas/face-auth/internal/embedder"
	"github.com/kozaktomas/face-auth/internal/enrollment"
)

func TestFacesHandler_Register(t *testing.T) {
	store := mock.NewMockIdentityStore()
	handler := NewFacesHandler(newTestService(store, detectorWith(1, 0, 0)))

	recorder := httptest.NewRecorder()
	handler.Register(recorder, jsonRequest(t, "/api/v1/faces/register", map[string]string{
		"username": "alice",
		"image":    testImageDataURL(t),
	}))

	assertStatusCode(t, recorder, http.StatusCreated)

	var result FaceResponse
	parseJSONResponse(t, recorder, &result)
	if !result.Success || result.Message != enrollment.MsgRegistered {
		t.Errorf("unexpected response: %+v", result)
	}
	if len(result.BBox) != 4 {
		t.Errorf("expected 4 bbox coordinates, got %v", result.BBox)
	}
	if !strings.HasPrefix(result.FaceCrop, "data:image/jpeg;base64,") {
		t.Errorf("expected JPEG data URL face crop, got %.40q", result.FaceCrop)
	}

	if count, _ := store.Count(context.Background()); count != 1 {
		t.Errorf("expected 1 stored identity, got %d", count)
	}
}

func TestFacesHandler_Register_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       map[string]string
		detector   *stubDetector
		seed       bool
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing username",
			body:       map[string]string{"image": "x"},
			detector:   detectorWith(1, 0),
			wantStatus: http.StatusBadRequest,
			wantError:  enrollment.MsgUsernameAndImage,
		},
		{
			name:       "bad data url",
			body:       map[string]string{"username": "alice", "image": "data:text/plain;base64,aGk="},
			detector:   detectorWith(1, 0),
			wantStatus: http.StatusBadRequest,
			wantError:  enrollment.MsgInvalidImage,
		},
		{
			name:       "duplicate",
			detector:   detectorWith(1, 0),
			seed:       true,
			wantStatus: http.StatusConflict,
			wantError:  enrollment.MsgUsernameExists,
		},
		{
			name:       "no face",
			detector:   &stubDetector{},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  enrollment.MsgNoFace,
		},
		{
			name:       "embedder unavailable",
			detector:   &stubDetector{err: embedder.ErrUnavailable},
			wantStatus: http.StatusServiceUnavailable,
			wantError:  enrollment.MsgServiceDown,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := mock.NewMockIdentityStore()
			if tc.seed {
				store.AddIdentity(database.EnrolledIdentity{Username: "alice", Embedding: []float32{0, 1}})
			}
			handler := NewFacesHandler(newTestService(store, tc.detector))

			body := tc.body
			if body == nil {
				body = map[string]string{"username": "alice", "image": testImageDataURL(t)}
			}

			recorder := httptest.NewRecorder()
			handler.Register(recorder, jsonRequest(t, "/api/v1/faces/register", body))

			assertStatusCode(t, recorder, tc.wantStatus)
			assertJSONError(t, recorder, tc.wantError)
		})
	}
}

func TestFacesHandler_Verify_Match(t *testing.T) {
	store := mock.NewMockIdentityStore()
	store.AddIdentity(database.EnrolledIdentity{Username: "alice", Embedding: []float32{1, 0, 0}})
	store.AddIdentity(database.EnrolledIdentity{Username: "bob", Embedding: []float32{0, 1, 0}})
	handler := NewFacesHandler(newTestService(store, detectorWith(1, 0.1, 0)))

	recorder := httptest.NewRecorder()
	handler.Verify(recorder, jsonRequest(t, "/api/v1/faces/verify", map[string]string{"image": testImageDataURL(t)}))

	assertStatusCode(t, recorder, http.StatusOK)

	var result VerifyResponse
	parseJSONResponse(t, recorder, &result)
	if !result.Success || result.Username != "alice" {
		t.Fatalf("expected alice to be recognised, got %+v", result)
	}
	if result.Message != "Welcome back, alice!" {
		t.Errorf("unexpected message %q", result.Message)
	}
	if result.Threshold != testThreshold {
		t.Errorf("expected threshold %v, got %v", testThreshold, result.Threshold)
	}
	if len(result.AllScores) != 2 || result.AllScores[0].Label != "alice" {
		t.Errorf("expected scores sorted with alice first, got %+v", result.AllScores)
	}
}

func TestFacesHandler_Verify_NotRecognized(t *testing.T) {
	store := mock.NewMockIdentityStore()
	store.AddIdentity(database.EnrolledIdentity{Username: "alice", Embedding: []float32{1, 0, 0}})
	handler := NewFacesHandler(newTestService(store, detectorWith(0, 0, 1)))

	recorder := httptest.NewRecorder()
	handler.Verify(recorder, jsonRequest(t, "/api/v1/faces/verify", map[string]string{"image": testImageDataURL(t)}))

	assertStatusCode(t, recorder, http.StatusOK)

	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	if result["success"] != false || result["message"] != enrollment.MsgNotRecognized {
		t.Errorf("unexpected response: %v", result)
	}
	if _, ok := result["username"]; ok {
		t.Error("rejected verification must not carry a username")
	}
	if result["closest"] != "alice" {
		t.Errorf("expected closest alice, got %v", result["closest"])
	}
	scores, ok := result["all_scores"].([]any)
	if !ok || len(scores) != 1 {
		t.Errorf("expected one score, got %v", result["all_scores"])
	}
}

func TestFacesHandler_Verify_EmptyStore(t *testing.T) {
	handler := NewFacesHandler(newTestService(mock.NewMockIdentityStore(), detectorWith(1, 0)))

	recorder := httptest.NewRecorder()
	handler.Verify(recorder, jsonRequest(t, "/api/v1/faces/verify", map[string]string{"image": testImageDataURL(t)}))

	assertStatusCode(t, recorder, http.StatusOK)
	if !strings.Contains(recorder.Body.String(), `"all_scores":[]`) {
		t.Errorf("expected empty score list, got %s", recorder.Body.String())
	}
}

func TestFacesHandler_Verify_Errors(t *testing.T) {
	tests := []struct {
		name       string
		detector   *stubDetector
		storeErr   error
		image      string
		wantStatus int
	}{
		{"missing image", detectorWith(1, 0), nil, "", http.StatusBadRequest},
		{"no face", &stubDetector{}, nil, "valid", http.StatusUnprocessableEntity},
		{"store failure", detectorWith(1, 0), errors.New("connection reset"), "valid", http.StatusInternalServerError},
		{"detector rejects", &stubDetector{err: embedder.ErrRejected}, nil, "valid", http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := mock.NewMockIdentityStore()
			store.AllError = tc.storeErr
			handler := NewFacesHandler(newTestService(store, tc.detector))

			image := tc.image
			if image == "valid" {
				image = testImageDataURL(t)
			}

			recorder := httptest.NewRecorder()
			handler.Verify(recorder, jsonRequest(t, "/api/v1/faces/verify", map[string]string{"image": image}))

			assertStatusCode(t, recorder, tc.wantStatus)
		})
	}
}

func TestFacesHandler_Detect(t *testing.T) {
	handler := NewFacesHandler(newTestService(mock.NewMockIdentityStore(), detectorWith(1, 0)))

	recorder := httptest.NewRecorder()
	handler.Detect(recorder, jsonRequest(t, "/api/v1/faces/detect", map[string]string{"image": testImageDataURL(t)}))

	assertStatusCode(t, recorder, http.StatusOK)

	var result FaceResponse
	parseJSONResponse(t, recorder, &result)
	if !result.Success || result.Message != enrollment.MsgFaceDetected {
		t.Errorf("unexpected response: %+v", result)
	}
	want := []int{4, 4, 36, 36}
	for i := range want {
		if i >= len(result.BBox) || result.BBox[i] != want[i] {
			t.Fatalf("expected bbox %v, got %v", want, result.BBox)
		}
	}
}

func TestFacesHandler_Detect_InvalidBody(t *testing.T) {
	handler := NewFacesHandler(newTestService(mock.NewMockIdentityStore(), detectorWith(1, 0)))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/faces/detect", strings.NewReader("not json"))
	recorder := httptest.NewRecorder()
	handler.Detect(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, errInvalidRequestBody)
}
