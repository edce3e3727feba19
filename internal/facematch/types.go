// Package facematch compares face embeddings and decides whether a probe
// belongs to one of a set of enrolled identities.
package facematch

// Embedding is a fixed-length face descriptor produced by the embedding provider.
type Embedding []float32

// Candidate is one enrolled identity offered to Verify.
type Candidate struct {
	Label     string
	Embedding Embedding
}

// Score is the similarity between a probe and one candidate.
type Score struct {
	Label      string  `json:"username"`
	Similarity float64 `json:"similarity"`
}

// VerificationResult is the outcome of matching one probe against every candidate.
// BestLabel is empty when there were no candidates.
type VerificationResult struct {
	Matched        bool
	BestLabel      string
	BestSimilarity float64
	Threshold      float64
	AllScores      []Score
}
