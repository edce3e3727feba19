package facematch

import (
	"fmt"
	"sort"
)

// MatchesAt reports whether a similarity is accepted at threshold.
// Acceptance is strict: a similarity equal to the threshold is rejected.
func MatchesAt(similarity, threshold float64) bool {
	return similarity > threshold
}

// Verify scores probe against every candidate and reports the best one.
//
// The best candidate is tracked independently of the threshold, so a rejected
// probe still reports who it was closest to. Ties keep the first candidate.
// A similarity error aborts the whole call; it is never treated as "no match".
func Verify(probe Embedding, candidates []Candidate, threshold float64) (VerificationResult, error) {
	result := VerificationResult{
		Threshold: threshold,
		AllScores: make([]Score, 0, len(candidates)),
	}

	for i, c := range candidates {
		sim, err := CosineSimilarity(probe, c.Embedding)
		if err != nil {
			return VerificationResult{}, fmt.Errorf("scoring %q: %w", c.Label, err)
		}
		result.AllScores = append(result.AllScores, Score{Label: c.Label, Similarity: sim})

		if i == 0 || sim > result.BestSimilarity {
			result.BestSimilarity = sim
			result.BestLabel = c.Label
		}
	}

	result.Matched = len(candidates) > 0 && MatchesAt(result.BestSimilarity, threshold)

	sort.SliceStable(result.AllScores, func(i, j int) bool {
		return result.AllScores[i].Similarity > result.AllScores[j].Similarity
	})

	return result, nil
}
