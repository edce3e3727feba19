package calibration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/montanaflynn/stats"
)

// Summary describes a similarity distribution. Std is the population standard deviation.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
}

// Summarize computes summary statistics; an empty sample yields a zero Summary.
func Summarize(samples []float64) Summary {
	if len(samples) == 0 {
		return Summary{}
	}
	data := stats.Float64Data(samples)

	// stats only fails on empty input, which is handled above
	mean, _ := stats.Mean(data)
	std, _ := stats.StandardDeviationPopulation(data)
	lo, _ := stats.Min(data)
	hi, _ := stats.Max(data)
	median, _ := stats.Median(data)

	return Summary{
		Count:  len(samples),
		Mean:   mean,
		Std:    std,
		Min:    lo,
		Max:    hi,
		Median: median,
	}
}

// Report is the persisted outcome of one calibration run.
// The raw similarities are kept so other thresholds can be evaluated exactly later.
type Report struct {
	RunID     string    `json:"run_id"`
	Dataset   string    `json:"dataset"`
	CreatedAt time.Time `json:"created_at"`
	Params    Params    `json:"params"`

	Persons       int `json:"num_persons"`
	Images        int `json:"num_images"`
	FailedImages  int `json:"failed_images"`
	PositivePairs int `json:"num_positive_pairs"`
	NegativePairs int `json:"num_negative_pairs"`

	PositiveSimilarities []float64 `json:"positive_similarities"`
	NegativeSimilarities []float64 `json:"negative_similarities"`
	PositiveStats        Summary   `json:"positive_stats"`
	NegativeStats        Summary   `json:"negative_stats"`

	Results       []ThresholdEvaluation `json:"threshold_results"`
	BestThreshold float64               `json:"best_threshold"`
	BestAccuracy  float64               `json:"best_accuracy"`
	Rule          string                `json:"rule"`
	BoundaryPairs int                   `json:"boundary_pairs"`
}

// EvaluateAt recomputes the confusion matrix at each threshold from the stored samples.
func (r *Report) EvaluateAt(thresholds []float64) []ThresholdEvaluation {
	return Sweep(thresholds, r.PositiveSimilarities, r.NegativeSimilarities)
}

// CountAt returns how many sampled similarities equal t exactly. Those are the
// pairs calibration and verification classify differently.
func (r *Report) CountAt(t float64) int {
	n := 0
	for _, s := range r.PositiveSimilarities {
		if s == t {
			n++
		}
	}
	for _, s := range r.NegativeSimilarities {
		if s == t {
			n++
		}
	}
	return n
}

// Separation is the gap between the mean genuine and mean impostor similarity.
func (r *Report) Separation() float64 {
	return r.PositiveStats.Mean - r.NegativeStats.Mean
}

// SaveReports writes reports as an indented JSON array.
func SaveReports(path string, reports []Report) error {
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding reports: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// LoadReports reads a file written by SaveReports. A single report object is also accepted.
func LoadReports(path string) ([]Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var single Report
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
		return []Report{single}, nil
	}

	var reports []Report
	if err := json.Unmarshal(data, &reports); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return reports, nil
}
