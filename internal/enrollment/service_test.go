package enrollment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/database/mock"
	"github.com/kozaktomas/face-auth/internal/embedder"
)

// fakeDetector returns the configured faces and counts calls.
type fakeDetector struct {
	faces []embedder.Face
	err   error
	calls atomic.Int32
}

func (d *fakeDetector) DetectFaces(ctx context.Context, image []byte) ([]embedder.Face, error) {
	d.calls.Add(1)
	if d.err != nil {
		return nil, d.err
	}
	return d.faces, nil
}

func faceWith(embedding ...float32) *fakeDetector {
	return &fakeDetector{faces: []embedder.Face{{
		Embedding: embedding,
		BBox:      []float64{10.4, 12.6, 50, 60},
		DetScore:  0.9,
	}}}
}

func testImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 120, 100))
	for y := range 100 {
		for x := range 120 {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRegister(t *testing.T) {
	store := mock.NewMockIdentityStore()
	svc := NewService(store, faceWith(1, 0, 0), 0.25)

	result, err := svc.Register(context.Background(), "  alice ", testImage(t))
	require.NoError(t, err)

	assert.Equal(t, "alice", result.Username)
	assert.Equal(t, []int{10, 13, 50, 60}, result.BBox)
	assert.True(t, strings.HasPrefix(result.FaceCrop, "data:image/jpeg;base64,"))

	users, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)
	assert.False(t, users[0].RegisteredAt.IsZero())
}

func TestRegister_DuplicateLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	store := mock.NewMockIdentityStore()
	store.AddIdentity(database.EnrolledIdentity{Username: "alice", Embedding: []float32{0, 1, 0}})
	detector := faceWith(1, 0, 0)
	svc := NewService(store, detector, 0.25)

	_, err := svc.Register(ctx, "alice", testImage(t))
	require.Error(t, err)
	assert.Equal(t, KindDuplicate, KindOf(err))
	assert.Equal(t, MsgUsernameExists, MessageOf(err))
	assert.Zero(t, detector.calls.Load(), "duplicate must be rejected before embedding")

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, []float32{0, 1, 0}, all[0].Embedding)
}

func TestRegister_Errors(t *testing.T) {
	tests := []struct {
		name     string
		username string
		image    func(t *testing.T) []byte
		detector *fakeDetector
		wantKind Kind
		wantMsg  string
	}{
		{
			name:     "empty username",
			username: "   ",
			image:    testImage,
			detector: faceWith(1, 0),
			wantKind: KindInvalidInput,
			wantMsg:  MsgUsernameAndImage,
		},
		{
			name:     "missing image",
			username: "alice",
			image:    func(t *testing.T) []byte { return nil },
			detector: faceWith(1, 0),
			wantKind: KindInvalidInput,
			wantMsg:  MsgUsernameAndImage,
		},
		{
			name:     "username too long",
			username: strings.Repeat("a", 65),
			image:    testImage,
			detector: faceWith(1, 0),
			wantKind: KindInvalidInput,
			wantMsg:  MsgUsernameTooLong,
		},
		{
			name:     "undecodable image",
			username: "alice",
			image:    func(t *testing.T) []byte { return []byte("not an image") },
			detector: faceWith(1, 0),
			wantKind: KindInvalidInput,
			wantMsg:  MsgInvalidImage,
		},
		{
			name:     "no face",
			username: "alice",
			image:    testImage,
			detector: &fakeDetector{},
			wantKind: KindNoFace,
			wantMsg:  MsgNoFace,
		},
		{
			name:     "embedder down",
			username: "alice",
			image:    testImage,
			detector: &fakeDetector{err: fmt.Errorf("dial: %w", embedder.ErrUnavailable)},
			wantKind: KindUnavailable,
			wantMsg:  MsgServiceDown,
		},
		{
			name:     "embedder rejects image",
			username: "alice",
			image:    testImage,
			detector: &fakeDetector{err: embedder.ErrRejected},
			wantKind: KindInvalidInput,
			wantMsg:  MsgInvalidImage,
		},
		{
			name:     "bad embedder response",
			username: "alice",
			image:    testImage,
			detector: &fakeDetector{err: embedder.ErrBadResponse},
			wantKind: KindInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mock.NewMockIdentityStore()
			svc := NewService(store, tt.detector, 0.25)

			_, err := svc.Register(context.Background(), tt.username, tt.image(t))
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, KindOf(err))
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, MessageOf(err))
			}

			count, _ := store.Count(context.Background())
			assert.Zero(t, count)
		})
	}
}

func TestRegister_ConcurrentSameUsername(t *testing.T) {
	store := mock.NewMockIdentityStore()
	svc := NewService(store, faceWith(1, 0), 0.25)
	img := testImage(t)

	var wg sync.WaitGroup
	var successes atomic.Int32
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Register(context.Background(), "alice", img); err == nil {
				successes.Add(1)
			} else if KindOf(err) != KindDuplicate {
				t.Errorf("unexpected error kind %v: %v", KindOf(err), err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	count, _ := store.Count(context.Background())
	assert.Equal(t, 1, count)
}

func TestRegisterThenVerify(t *testing.T) {
	ctx := context.Background()
	store := mock.NewMockIdentityStore()
	store.AddIdentity(database.EnrolledIdentity{Username: "bob", Embedding: []float32{-0.4, 0.9, 0.1, 0.2}})
	svc := NewService(store, faceWith(0.31, -0.52, 0.77, 0.18), 0.25)
	img := testImage(t)

	_, err := svc.Register(ctx, "alice", img)
	require.NoError(t, err)

	result, err := svc.Verify(ctx, img)
	require.NoError(t, err)

	assert.True(t, result.Matched)
	assert.Equal(t, "alice", result.BestLabel)
	assert.InDelta(t, 1.0, result.BestSimilarity, 1e-6)
	require.Len(t, result.AllScores, 2)
	assert.Equal(t, "alice", result.AllScores[0].Label)
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	store := mock.NewMockIdentityStore()
	store.AddIdentity(database.EnrolledIdentity{Username: "alice", Embedding: []float32{1, 0, 0}})
	store.AddIdentity(database.EnrolledIdentity{Username: "bob", Embedding: []float32{0, 1, 0}})

	t.Run("match", func(t *testing.T) {
		svc := NewService(store, faceWith(0.9, 0.1, 0), 0.25)
		result, err := svc.Verify(ctx, testImage(t))
		require.NoError(t, err)

		assert.True(t, result.Matched)
		assert.Equal(t, "alice", result.BestLabel)
		assert.InDelta(t, 0.9939, result.BestSimilarity, 1e-3)
		require.Len(t, result.AllScores, 2)
		assert.Equal(t, "alice", result.AllScores[0].Label)
		assert.NotEmpty(t, result.FaceCrop)
	})

	t.Run("not recognized reports closest", func(t *testing.T) {
		svc := NewService(store, faceWith(0.1, 0.2, 1), 0.25)
		result, err := svc.Verify(ctx, testImage(t))
		require.NoError(t, err)

		assert.False(t, result.Matched)
		assert.Equal(t, "bob", result.BestLabel)
		assert.Equal(t, 0.25, result.Threshold)
		assert.Len(t, result.AllScores, 2)
	})

	t.Run("similarity equal to threshold is rejected", func(t *testing.T) {
		svc := NewService(store, faceWith(1, 0, 0), 1.0)
		result, err := svc.Verify(ctx, testImage(t))
		require.NoError(t, err)
		assert.False(t, result.Matched)
	})
}

func TestVerify_EmptyStore(t *testing.T) {
	svc := NewService(mock.NewMockIdentityStore(), faceWith(1, 0), 0.25)

	result, err := svc.Verify(context.Background(), testImage(t))
	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Empty(t, result.BestLabel)
	assert.NotNil(t, result.AllScores)
	assert.Empty(t, result.AllScores)
}

func TestVerify_NoFaceSkipsStore(t *testing.T) {
	store := mock.NewMockIdentityStore()
	store.AllError = errors.New("store must not be read")
	svc := NewService(store, &fakeDetector{}, 0.25)

	_, err := svc.Verify(context.Background(), testImage(t))
	require.Error(t, err)
	assert.Equal(t, KindNoFace, KindOf(err))
}

func TestVerify_DimensionMismatchIsInternal(t *testing.T) {
	store := mock.NewMockIdentityStore()
	store.AddIdentity(database.EnrolledIdentity{Username: "alice", Embedding: []float32{1, 0}})
	svc := NewService(store, faceWith(1, 0, 0), 0.25)

	_, err := svc.Verify(context.Background(), testImage(t))
	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Contains(t, err.Error(), "alice")
}

func TestVerify_StoreError(t *testing.T) {
	store := mock.NewMockIdentityStore()
	store.AllError = errors.New("connection refused")
	svc := NewService(store, faceWith(1, 0), 0.25)

	_, err := svc.Verify(context.Background(), testImage(t))
	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, MsgStorageError, MessageOf(err))
}

func TestDetect(t *testing.T) {
	svc := NewService(mock.NewMockIdentityStore(), faceWith(1, 0), 0.25)

	face, err := svc.Detect(context.Background(), testImage(t))
	require.NoError(t, err)
	assert.Equal(t, []int{10, 13, 50, 60}, face.BBox)
	assert.True(t, strings.HasPrefix(face.FaceCrop, "data:image/jpeg;base64,"))
}

func TestDecodeImage(t *testing.T) {
	_, err := DecodeImage("data:text/plain;base64,aGVsbG8=")
	require.Error(t, err)
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, "Internal error", MessageOf(errors.New("boom")))
}
