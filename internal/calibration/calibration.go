// Package calibration estimates a verification threshold from labelled face
// embeddings by sampling genuine and impostor pairs and sweeping candidate
// thresholds over their similarities.
package calibration

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-auth/internal/facematch"
)

var (
	ErrNoPositiveIdentities = errors.New("no identity has at least two embeddings")
	ErrTooFewIdentities     = errors.New("fewer than two identities have embeddings")
	ErrInvalidParams        = errors.New("invalid calibration parameters")
	ErrNoThresholds         = errors.New("no candidate thresholds")
)

// Rule documents the two comparison operators in play. Calibration counts a
// pair at exactly the threshold as accepted, live verification rejects it.
const Rule = "calibration: similarity >= t; verification: similarity > t"

// Corpus maps an identity label to its embeddings.
type Corpus map[string][]facematch.Embedding

// Size returns the number of identities and the total number of embeddings.
func (c Corpus) Size() (persons, images int) {
	for _, embs := range c {
		if len(embs) > 0 {
			persons++
		}
		images += len(embs)
	}
	return persons, images
}

type Params struct {
	Thresholds []float64 `json:"thresholds"`
	NumPairs   int       `json:"num_pairs"`
	Seed       int64     `json:"seed"`
}

func (p Params) Validate() error {
	if p.NumPairs <= 0 {
		return fmt.Errorf("%w: pairs must be positive, got %d", ErrInvalidParams, p.NumPairs)
	}
	if len(p.Thresholds) == 0 {
		return ErrNoThresholds
	}
	for _, t := range p.Thresholds {
		if math.IsNaN(t) || t < -1 || t > 1 {
			return fmt.Errorf("%w: threshold %v outside [-1, 1]", ErrInvalidParams, t)
		}
	}
	return nil
}

// NewRand returns the deterministic generator used for a given seed.
func NewRand(seed int64) *rand.Rand {
	s := uint64(seed)
	return rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
}

// Calibrate runs the full procedure: sample pairs, score them, sweep every
// candidate threshold and pick the most accurate one.
func Calibrate(corpus Corpus, params Params) (*Report, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	positives, negatives, err := SamplePairs(corpus, params.NumPairs, NewRand(params.Seed))
	if err != nil {
		return nil, err
	}

	posSims, err := Similarities(positives)
	if err != nil {
		return nil, fmt.Errorf("scoring positive pairs: %w", err)
	}
	negSims, err := Similarities(negatives)
	if err != nil {
		return nil, fmt.Errorf("scoring negative pairs: %w", err)
	}

	results := Sweep(params.Thresholds, posSims, negSims)
	best, err := SelectBest(results)
	if err != nil {
		return nil, err
	}

	persons, images := corpus.Size()
	report := &Report{
		RunID:                uuid.NewString(),
		CreatedAt:            time.Now().UTC(),
		Params:               params,
		Persons:              persons,
		Images:               images,
		PositivePairs:        len(posSims),
		NegativePairs:        len(negSims),
		PositiveSimilarities: posSims,
		NegativeSimilarities: negSims,
		PositiveStats:        Summarize(posSims),
		NegativeStats:        Summarize(negSims),
		Results:              results,
		BestThreshold:        best.Threshold,
		BestAccuracy:         best.Accuracy,
		Rule:                 Rule,
	}
	report.BoundaryPairs = report.CountAt(best.Threshold)

	return report, nil
}
