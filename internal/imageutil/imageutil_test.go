package imageutil

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

func createTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeDataURL(t *testing.T) {
	raw := []byte("not really an image but bytes")
	b64 := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"data url", "data:image/png;base64," + b64, false},
		{"bare base64", b64, false},
		{"unpadded", strings.TrimRight(b64, "="), false},
		{"surrounding whitespace", "  " + b64 + "\n", false},
		{"empty", "", true},
		{"no comma", "data:image/png;base64", true},
		{"not base64 encoded url", "data:image/png," + b64, true},
		{"not an image", "data:text/plain;base64," + b64, true},
		{"garbage", "%%%not-base64%%%", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := DecodeDataURL(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidImage) {
					t.Errorf("expected ErrInvalidImage, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(data, raw) {
				t.Errorf("decoded %q, want %q", data, raw)
			}
		})
	}
}

func TestMaxSideFor(t *testing.T) {
	if got := MaxSideFor(LargePayload); got != SmallMaxSide {
		t.Errorf("MaxSideFor(%d) = %d, want %d", LargePayload, got, SmallMaxSide)
	}
	if got := MaxSideFor(LargePayload + 1); got != LargeMaxSide {
		t.Errorf("MaxSideFor(%d) = %d, want %d", LargePayload+1, got, LargeMaxSide)
	}
}

func TestPrepare_NoResizeNeeded(t *testing.T) {
	p, err := Prepare(createTestPNG(t, 300, 200))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if b := p.Image.Bounds(); b.Dx() != 300 || b.Dy() != 200 {
		t.Errorf("expected 300x200, got %dx%d", b.Dx(), b.Dy())
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(p.JPEG))
	if err != nil {
		t.Fatalf("output is not JPEG: %v", err)
	}
	if cfg.Width != 300 || cfg.Height != 200 {
		t.Errorf("expected encoded 300x200, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestPrepare_Downscales(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		wantW, wantH  int
	}{
		{"landscape", 1600, 800, 800, 400},
		{"portrait", 500, 1000, 400, 800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := createTestPNG(t, tt.width, tt.height)
			if MaxSideFor(len(data)) != SmallMaxSide {
				t.Skip("test image compressed larger than expected")
			}

			p, err := Prepare(data)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if b := p.Image.Bounds(); b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("expected %dx%d, got %dx%d", tt.wantW, tt.wantH, b.Dx(), b.Dy())
			}
		})
	}
}

func TestPrepare_InvalidImage(t *testing.T) {
	_, err := Prepare([]byte("definitely not an image"))
	if !errors.Is(err, ErrInvalidImage) {
		t.Errorf("expected ErrInvalidImage, got %v", err)
	}
}

// withHeaderSize rewrites the IHDR chunk of a PNG so it declares width x height
// while the pixel data stays tiny.
func withHeaderSize(t *testing.T, data []byte, width, height uint32) []byte {
	t.Helper()
	// signature(8) length(4) "IHDR"(4) width(4) height(4) ... crc at 29
	if len(data) < 33 || string(data[12:16]) != "IHDR" {
		t.Fatal("unexpected PNG layout")
	}
	out := bytes.Clone(data)
	binary.BigEndian.PutUint32(out[16:20], width)
	binary.BigEndian.PutUint32(out[20:24], height)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestPrepare_RejectsOversizedDimensions(t *testing.T) {
	data := withHeaderSize(t, createTestPNG(t, 4, 4), 20000, 20000)
	if len(data) > 1024 {
		t.Fatalf("expected a tiny payload, got %d bytes", len(data))
	}

	_, err := Prepare(data)
	if !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
	if !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("expected a pixel limit error, got %v", err)
	}
}

func TestCheckDimensions(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		wantErr       bool
	}{
		{"webcam frame", 1280, 720, false},
		{"at limit", 10000, 5000, false},
		{"one row over", 10000, 5001, true},
		{"zero width", 0, 100, true},
		{"negative height", 100, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkDimensions(tt.width, tt.height)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidImage) {
					t.Errorf("expected ErrInvalidImage, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCropPreview(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))

	preview, err := CropPreview(img, []float64{150, 20, 260, 80})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(preview, "data:image/jpeg;base64,") {
		t.Fatalf("unexpected preview prefix: %.40s", preview)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(preview, "data:image/jpeg;base64,"))
	if err != nil {
		t.Fatalf("preview is not base64: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("preview is not JPEG: %v", err)
	}
	// clamped to the right edge
	if cfg.Width != 50 || cfg.Height != 60 {
		t.Errorf("expected 50x60 crop, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestCropPreview_OutsideImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))

	if _, err := CropPreview(img, []float64{200, 200, 300, 300}); err == nil {
		t.Error("expected error for box outside the image")
	}
	if _, err := CropPreview(img, nil); err == nil {
		t.Error("expected error for missing box")
	}
}
