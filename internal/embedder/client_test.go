package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

var jpegMagic = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestDetectFaces(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/embed/face" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("expected multipart file: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		if ct := header.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("expected part content type image/jpeg, got %s", ct)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"faces_count": 2,
			"model":       "buffalo_l",
			"faces": []map[string]any{
				{"face_index": 0, "dim": 3, "embedding": []float32{0.1, 0.2, 0.3}, "bbox": []float64{10, 20, 110, 140}, "det_score": 0.98},
				{"face_index": 1, "dim": 3, "embedding": []float32{0.3, 0.2, 0.1}, "bbox": []float64{200, 20, 260, 90}, "det_score": 0.71},
			},
		})
	})

	client := NewClient(srv.URL+"/", 3, time.Second)
	faces, err := client.DetectFaces(context.Background(), jpegMagic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(faces) != 2 {
		t.Fatalf("expected 2 faces, got %d", len(faces))
	}
	if faces[0].Index != 0 || faces[0].DetScore != 0.98 {
		t.Errorf("unexpected first face %+v", faces[0])
	}
	if len(faces[1].BBox) != 4 || faces[1].BBox[0] != 200 {
		t.Errorf("unexpected bbox %v", faces[1].BBox)
	}

	first, err := First(faces)
	if err != nil || first.Index != 0 {
		t.Errorf("First() = %+v, %v", first, err)
	}
}

func TestDetectFaces_NoFaces(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"faces_count":0,"faces":[],"model":"buffalo_l"}`))
	})

	faces, err := NewClient(srv.URL, 512, time.Second).DetectFaces(context.Background(), jpegMagic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(faces) != 0 {
		t.Errorf("expected no faces, got %d", len(faces))
	}

	if _, err := First(faces); !errors.Is(err, ErrNoFace) {
		t.Errorf("expected ErrNoFace, got %v", err)
	}
}

func TestDetectFaces_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		dim     int
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, "boom", 0, ErrUnavailable},
		{"bad gateway", http.StatusBadGateway, "", 0, ErrUnavailable},
		{"bad image", http.StatusBadRequest, `{"detail":"cannot decode"}`, 0, ErrRejected},
		{"malformed json", http.StatusOK, "{not json", 0, ErrBadResponse},
		{"empty embedding", http.StatusOK, `{"faces":[{"face_index":0,"embedding":[]}]}`, 0, ErrBadResponse},
		{"wrong dimension", http.StatusOK, `{"faces":[{"face_index":0,"embedding":[1,2]}]}`, 3, ErrBadResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := NewClient(srv.URL, tt.dim, time.Second).DetectFaces(context.Background(), jpegMagic)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDetectFaces_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, 0, time.Second).DetectFaces(context.Background(), jpegMagic)
	if !IsUnavailable(err) {
		t.Errorf("expected unavailable error, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	})
	client := NewClient(srv.URL, 0, time.Second)

	if err := client.Health(context.Background()); err != nil {
		t.Errorf("expected healthy, got %v", err)
	}

	healthy.Store(false)
	if err := client.Health(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("", 0, 0)
	if c.BaseURL() != defaultURL {
		t.Errorf("expected default URL, got %s", c.BaseURL())
	}
	if c.client.Timeout != defaultTimeout {
		t.Errorf("expected default timeout, got %s", c.client.Timeout)
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"jpeg", jpegMagic, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"gif", []byte("GIF89a\x00\x00"), "image/gif"},
		{"bmp", []byte("BM\x00\x00\x00\x00\x00\x00"), "image/bmp"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBP"), "image/webp"},
		{"short", []byte{0xFF}, "application/octet-stream"},
		{"unknown", []byte("hello world"), "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectMIMEType(tt.data); got != tt.expected {
				t.Errorf("detectMIMEType() = %s, want %s", got, tt.expected)
			}
		})
	}
}
