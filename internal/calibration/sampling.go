package calibration

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/kozaktomas/face-auth/internal/facematch"
)

// Pair is two embeddings and whether they belong to the same identity.
type Pair struct {
	A, B      facematch.Embedding
	Same      bool
	IdentityA string
	IdentityB string
}

// SamplePairs draws numPairs genuine and numPairs impostor pairs.
//
// A genuine pair picks an identity with at least two embeddings (uniformly,
// with replacement across draws) and two distinct embeddings of it. An
// impostor pair picks two distinct identities and one embedding of each.
// Labels are visited in sorted order so the generator alone fixes the sample.
func SamplePairs(corpus Corpus, numPairs int, rng *rand.Rand) (positives, negatives []Pair, err error) {
	if numPairs <= 0 {
		return nil, nil, fmt.Errorf("%w: pairs must be positive, got %d", ErrInvalidParams, numPairs)
	}

	labels := make([]string, 0, len(corpus))
	for label := range corpus {
		labels = append(labels, label)
	}
	slices.Sort(labels)

	var multi, single []string
	for _, label := range labels {
		n := len(corpus[label])
		if n >= 2 {
			multi = append(multi, label)
		}
		if n >= 1 {
			single = append(single, label)
		}
	}

	if len(multi) == 0 {
		return nil, nil, ErrNoPositiveIdentities
	}
	if len(single) < 2 {
		return nil, nil, ErrTooFewIdentities
	}

	positives = make([]Pair, 0, numPairs)
	for range numPairs {
		label := multi[rng.IntN(len(multi))]
		embs := corpus[label]
		i, j := distinctPair(rng, len(embs))
		positives = append(positives, Pair{
			A: embs[i], B: embs[j],
			Same:      true,
			IdentityA: label, IdentityB: label,
		})
	}

	negatives = make([]Pair, 0, numPairs)
	for range numPairs {
		a, b := distinctPair(rng, len(single))
		la, lb := single[a], single[b]
		ea, eb := corpus[la], corpus[lb]
		negatives = append(negatives, Pair{
			A:         ea[rng.IntN(len(ea))],
			B:         eb[rng.IntN(len(eb))],
			IdentityA: la, IdentityB: lb,
		})
	}

	return positives, negatives, nil
}

// distinctPair draws two different indices in [0, n). n must be at least 2.
func distinctPair(rng *rand.Rand, n int) (int, int) {
	i := rng.IntN(n)
	j := rng.IntN(n - 1)
	if j >= i {
		j++
	}
	return i, j
}

// Similarities scores every pair with cosine similarity.
func Similarities(pairs []Pair) ([]float64, error) {
	sims := make([]float64, 0, len(pairs))
	for _, p := range pairs {
		sim, err := facematch.CosineSimilarity(p.A, p.B)
		if err != nil {
			return nil, fmt.Errorf("pair %s/%s: %w", p.IdentityA, p.IdentityB, err)
		}
		sims = append(sims, sim)
	}
	return sims, nil
}
