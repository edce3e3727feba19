// Package imageutil decodes uploaded images, scales them for face detection
// and produces face crop previews.
package imageutil

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/kozaktomas/face-auth/internal/facematch"
)

const (
	// LargePayload is the encoded size above which images keep more resolution.
	LargePayload = 500_000
	LargeMaxSide = 1200
	SmallMaxSide = 800
	JPEGQuality  = 90

	// MaxPixels caps width*height before a full decode so a small, highly
	// compressed upload cannot expand into gigabytes of pixels.
	MaxPixels = 50_000_000

	jpegDataURLPrefix = "data:image/jpeg;base64,"
)

var ErrInvalidImage = errors.New("invalid image")

// Prepared is an uploaded image after scaling. JPEG is what gets sent to the
// embedding server, so face boxes refer to Image's coordinate space.
type Prepared struct {
	Image image.Image
	JPEG  []byte
}

// DecodeDataURL accepts "data:image/...;base64,XXXX" or bare base64 and returns the raw bytes.
func DecodeDataURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}

	if strings.HasPrefix(s, "data:") {
		header, payload, ok := strings.Cut(s, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, fmt.Errorf("%w: malformed data URL", ErrInvalidImage)
		}
		if !strings.HasPrefix(header, "data:image/") {
			return nil, fmt.Errorf("%w: not an image data URL", ErrInvalidImage)
		}
		s = payload
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// browsers occasionally strip padding
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}
	return data, nil
}

// MaxSideFor returns the longest allowed side for an encoded payload of the given size.
func MaxSideFor(size int) int {
	if size > LargePayload {
		return LargeMaxSide
	}
	return SmallMaxSide
}

// Prepare decodes data, downscales it so its longest side fits MaxSideFor(len(data))
// keeping the aspect ratio, and re-encodes it as JPEG. Smaller images are never upscaled.
// Images larger than MaxPixels are rejected from their header alone.
func Prepare(data []byte) (*Prepared, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read image header: %w", ErrInvalidImage, err)
	}
	if err := checkDimensions(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image: %w", ErrInvalidImage, err)
	}

	img = fit(img, MaxSideFor(len(data)))

	encoded, err := encodeJPEG(img)
	if err != nil {
		return nil, err
	}
	return &Prepared{Image: img, JPEG: encoded}, nil
}

func checkDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d", ErrInvalidImage, width, height)
	}
	if int64(width)*int64(height) > MaxPixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidImage, width, height, MaxPixels)
	}
	return nil
}

func fit(img image.Image, maxSize int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxSize && height <= maxSize {
		return img
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = max(1, int(float64(height)*float64(maxSize)/float64(width)))
	} else {
		newHeight = maxSize
		newWidth = max(1, int(float64(width)*float64(maxSize)/float64(height)))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return resized
}

// CropPreview cuts the face box out of img and returns it as a JPEG data URL.
// The box is clamped to the image first.
func CropPreview(img image.Image, bbox []float64) (string, error) {
	r, ok := facematch.ClampBBox(bbox, img.Bounds())
	if !ok {
		return "", fmt.Errorf("face box %v outside image %v", bbox, img.Bounds())
	}

	crop := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(crop, crop.Bounds(), img, r.Min, draw.Src)

	encoded, err := encodeJPEG(crop)
	if err != nil {
		return "", err
	}
	return jpegDataURLPrefix + base64.StdEncoding.EncodeToString(encoded), nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
