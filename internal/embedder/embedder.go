// Package embedder talks to the face embedding server (InsightFace behind a
// small HTTP API) and turns an image into detected faces with embeddings.
package embedder

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable means the embedding server could not be reached or failed internally.
	ErrUnavailable = errors.New("embedding service unavailable")
	// ErrRejected means the server refused the image itself (undecodable, unsupported format).
	ErrRejected = errors.New("image rejected by embedding service")
	// ErrBadResponse means the server answered with something that is not a usable face list.
	ErrBadResponse = errors.New("invalid response from embedding service")
	ErrNoFace      = errors.New("no face detected")
)

// Face is one detected face. BBox is [x1, y1, x2, y2] in pixels of the submitted image.
type Face struct {
	Index     int
	Embedding []float32
	BBox      []float64
	DetScore  float64
}

// FaceDetector detects faces in an encoded image and returns one embedding per face.
type FaceDetector interface {
	DetectFaces(ctx context.Context, image []byte) ([]Face, error)
}

// First returns the first face in detector order. Faces are not ranked by
// size or score; the detector's order decides.
func First(faces []Face) (Face, error) {
	if len(faces) == 0 {
		return Face{}, ErrNoFace
	}
	return faces[0], nil
}
