// Package enrollment registers users by face and verifies probe images
// against everyone enrolled.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/embedder"
	"github.com/kozaktomas/face-auth/internal/facematch"
	"github.com/kozaktomas/face-auth/internal/imageutil"
	"github.com/kozaktomas/face-auth/internal/metrics"
)

// User-facing messages.
const (
	MsgFaceDetected      = "Face detected successfully"
	MsgRegistered        = "Face registered successfully"
	MsgNotRecognized     = "Face not recognized"
	MsgNoFace            = "No face detected in image"
	MsgImageRequired     = "Image required"
	MsgUsernameAndImage  = "Username and image required"
	MsgUsernameTooLong   = "Username must be at most 64 characters"
	MsgUsernameExists    = "Username already exists"
	MsgServiceDown       = "Face embedding service unavailable"
	MsgInvalidImage      = "Invalid image"
	MsgStorageError      = "Storage error"
	MsgVerificationError = "Verification failed"
)

// Face is the detected face shown back to the user.
// BBoxRelative is the same box as fractions of the prepared image size.
type Face struct {
	BBox         []int     `json:"bbox"`
	BBoxRelative []float64 `json:"bbox_relative"`
	FaceCrop     string    `json:"face_crop,omitempty"`
}

type RegisterResult struct {
	Face
	Username string
}

type VerifyResult struct {
	Face
	facematch.VerificationResult
}

// Service holds the enrollment store, the face detector and the acceptance threshold.
type Service struct {
	store     database.IdentityWriter
	detector  embedder.FaceDetector
	threshold float64

	// mu serialises the duplicate check and the insert within this process.
	mu sync.Mutex
}

func NewService(store database.IdentityWriter, detector embedder.FaceDetector, threshold float64) *Service {
	return &Service{
		store:     store,
		detector:  detector,
		threshold: threshold,
	}
}

// Threshold returns the acceptance threshold used by Verify.
func (s *Service) Threshold() float64 {
	return s.threshold
}

// DecodeImage turns a data URL or bare base64 string into image bytes.
func DecodeImage(s string) ([]byte, error) {
	data, err := imageutil.DecodeDataURL(s)
	if err != nil {
		return nil, newError(KindInvalidInput, MsgInvalidImage, err)
	}
	return data, nil
}

type probe struct {
	face      embedder.Face
	preview   Face
	embedTime time.Duration
}

// embed prepares the image, asks the detector for faces and keeps the first.
func (s *Service) embed(ctx context.Context, data []byte) (*probe, error) {
	if len(data) == 0 {
		return nil, newError(KindInvalidInput, MsgImageRequired, nil)
	}

	start := time.Now()
	prepared, err := imageutil.Prepare(data)
	if err != nil {
		return nil, newError(KindInvalidInput, MsgInvalidImage, err)
	}

	faces, err := s.detector.DetectFaces(ctx, prepared.JPEG)
	if err != nil {
		return nil, detectorError(err)
	}

	face, err := embedder.First(faces)
	if err != nil {
		return nil, newError(KindNoFace, MsgNoFace, err)
	}

	bounds := prepared.Image.Bounds()
	p := &probe{
		face: face,
		preview: Face{
			BBox:         facematch.RoundBBox(face.BBox),
			BBoxRelative: facematch.ConvertPixelBBoxToRelative(face.BBox, bounds.Dx(), bounds.Dy()),
		},
		embedTime: time.Since(start),
	}
	if crop, err := imageutil.CropPreview(prepared.Image, face.BBox); err != nil {
		log.Warn().Err(err).Msg("Could not build face preview")
	} else {
		p.preview.FaceCrop = crop
	}
	return p, nil
}

func detectorError(err error) error {
	switch {
	case errors.Is(err, embedder.ErrRejected):
		return newError(KindInvalidInput, MsgInvalidImage, err)
	case embedder.IsUnavailable(err), errors.Is(err, context.Canceled):
		return newError(KindUnavailable, MsgServiceDown, err)
	default:
		return newError(KindInternal, MsgVerificationError, err)
	}
}

// Detect finds the first face in an image and returns its box and crop.
func (s *Service) Detect(ctx context.Context, data []byte) (*Face, error) {
	defer metrics.ObserveDuration("detect", time.Now())

	p, err := s.embed(ctx, data)
	if err != nil {
		return nil, err
	}
	return &p.preview, nil
}

// Register enrolls username with the first face found in data.
// A duplicate username leaves the store unchanged.
func (s *Service) Register(ctx context.Context, username string, data []byte) (*RegisterResult, error) {
	start := time.Now()
	defer metrics.ObserveDuration("register", start)

	result, err := s.register(ctx, username, data)
	metrics.RecordRegistration(outcomeOf(err, metrics.OutcomeSuccess))
	if err != nil {
		logFailure(err, "register").Str("username", username).Msg("Registration failed")
		return nil, err
	}

	log.Info().
		Str("username", result.Username).
		Dur("total", time.Since(start)).
		Msg("Registered face")
	return result, nil
}

func (s *Service) register(ctx context.Context, username string, data []byte) (*RegisterResult, error) {
	username = facematch.NormalizeUsername(username)
	if username == "" || len(data) == 0 {
		return nil, newError(KindInvalidInput, MsgUsernameAndImage, nil)
	}
	if !facematch.ValidUsername(username) {
		return nil, newError(KindInvalidInput, MsgUsernameTooLong, nil)
	}

	exists, err := s.store.Exists(ctx, username)
	if err != nil {
		return nil, newError(KindInternal, MsgStorageError, err)
	}
	if exists {
		return nil, newError(KindDuplicate, MsgUsernameExists, nil)
	}

	p, err := s.embed(ctx, data)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("username", username).Dur("embedding", p.embedTime).Msg("Face embedding extracted")

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.store.Insert(ctx, database.EnrolledIdentity{
		Username:     username,
		Embedding:    p.face.Embedding,
		BBox:         p.face.BBox,
		RegisteredAt: time.Now().UTC(),
	})
	if errors.Is(err, database.ErrDuplicateLabel) {
		return nil, newError(KindDuplicate, MsgUsernameExists, err)
	}
	if err != nil {
		return nil, newError(KindInternal, MsgStorageError, err)
	}

	return &RegisterResult{Face: p.preview, Username: username}, nil
}

// Verify matches the first face in data against every enrolled identity.
// A probe that matches nobody is not an error: the result has Matched false.
func (s *Service) Verify(ctx context.Context, data []byte) (*VerifyResult, error) {
	start := time.Now()
	defer metrics.ObserveDuration("verify", start)

	result, err := s.verify(ctx, data)
	if err != nil {
		metrics.RecordVerification(outcomeOf(err, ""))
		logFailure(err, "verify").Msg("Verification failed")
		return nil, err
	}

	if result.Matched {
		metrics.RecordVerification(metrics.OutcomeSuccess)
		log.Info().
			Str("username", result.BestLabel).
			Float64("similarity", result.BestSimilarity).
			Dur("total", time.Since(start)).
			Msg("Verification succeeded")
	} else {
		metrics.RecordVerification(metrics.OutcomeRejected)
		log.Info().
			Str("closest", result.BestLabel).
			Float64("similarity", result.BestSimilarity).
			Float64("threshold", result.Threshold).
			Float64("gap", result.Threshold-result.BestSimilarity).
			Int("candidates", len(result.AllScores)).
			Dur("total", time.Since(start)).
			Msg("Face not recognized")
	}
	return result, nil
}

func (s *Service) verify(ctx context.Context, data []byte) (*VerifyResult, error) {
	p, err := s.embed(ctx, data)
	if err != nil {
		return nil, err
	}

	identities, err := s.store.All(ctx)
	if err != nil {
		return nil, newError(KindInternal, MsgStorageError, err)
	}
	metrics.SetEnrolledIdentities(len(identities))

	candidates := make([]facematch.Candidate, 0, len(identities))
	for _, id := range identities {
		candidates = append(candidates, facematch.Candidate{Label: id.Username, Embedding: id.Embedding})
	}

	compareStart := time.Now()
	vr, err := facematch.Verify(p.face.Embedding, candidates, s.threshold)
	if err != nil {
		return nil, newError(KindInternal, MsgVerificationError, err)
	}
	log.Debug().
		Int("candidates", len(candidates)).
		Dur("embedding", p.embedTime).
		Dur("compare", time.Since(compareStart)).
		Msg("Compared probe with enrolled users")

	return &VerifyResult{Face: p.preview, VerificationResult: vr}, nil
}

// List returns every enrolled user in registration order.
func (s *Service) List(ctx context.Context) ([]database.IdentitySummary, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, newError(KindInternal, MsgStorageError, fmt.Errorf("listing identities: %w", err))
	}
	metrics.SetEnrolledIdentities(len(users))
	return users, nil
}

func outcomeOf(err error, success string) string {
	if err == nil {
		return success
	}
	switch KindOf(err) {
	case KindInvalidInput:
		return metrics.OutcomeInvalid
	case KindNoFace:
		return metrics.OutcomeNoFace
	case KindDuplicate:
		return metrics.OutcomeDuplicate
	case KindUnavailable:
		return metrics.OutcomeUnavailable
	default:
		return metrics.OutcomeError
	}
}
