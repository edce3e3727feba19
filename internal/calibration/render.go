package calibration

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

const ruler = "================================================================================"

// WriteSummary prints each report's corpus, distributions and threshold sweep,
// followed by a cross-dataset recommendation when there is more than one report.
func WriteSummary(w io.Writer, reports []Report) error {
	for i := range reports {
		r := &reports[i]

		fmt.Fprintf(w, "%s\nDATASET: %s\n%s\n", ruler, strings.ToUpper(r.Dataset), ruler)
		fmt.Fprintf(w, "Persons: %d  Images: %d  Failed: %d  Seed: %d\n", r.Persons, r.Images, r.FailedImages, r.Params.Seed)
		fmt.Fprintf(w, "Pairs: %d positive + %d negative\n\n", r.PositivePairs, r.NegativePairs)

		fmt.Fprintf(w, "Same person:      mean %.4f  std %.4f  range [%.4f, %.4f]\n",
			r.PositiveStats.Mean, r.PositiveStats.Std, r.PositiveStats.Min, r.PositiveStats.Max)
		fmt.Fprintf(w, "Different person: mean %.4f  std %.4f  range [%.4f, %.4f]\n",
			r.NegativeStats.Mean, r.NegativeStats.Std, r.NegativeStats.Min, r.NegativeStats.Max)
		fmt.Fprintf(w, "Separation:       %.4f\n\n", r.Separation())

		if err := writeTable(w, r.Results, r.BestThreshold); err != nil {
			return err
		}

		fmt.Fprintf(w, "\nBest threshold: %.2f (accuracy %.2f%%)\n", r.BestThreshold, r.BestAccuracy*100)
		if r.BoundaryPairs > 0 {
			fmt.Fprintf(w, "Warning: %d sampled pair(s) sit exactly on the best threshold (%s)\n", r.BoundaryPairs, r.Rule)
		}
		fmt.Fprintln(w)
	}

	if len(reports) > 1 {
		var sum float64
		for i := range reports {
			sum += reports[i].BestThreshold
		}
		fmt.Fprintf(w, "Average best threshold across %d datasets: %.2f\n", len(reports), sum/float64(len(reports)))
	}
	return nil
}

// WriteComparison recomputes every report at the given thresholds and prints
// one table per dataset, marking the most accurate row.
func WriteComparison(w io.Writer, reports []Report, thresholds []float64) error {
	if len(thresholds) == 0 {
		return ErrNoThresholds
	}

	for i := range reports {
		r := &reports[i]
		evals := r.EvaluateAt(thresholds)
		best, err := SelectBest(evals)
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "%s\nDATASET: %s\n%s\n", ruler, strings.ToUpper(r.Dataset), ruler)
		fmt.Fprintf(w, "Pairs: %d positive + %d negative\n\n", r.PositivePairs, r.NegativePairs)
		if err := writeTable(w, evals, best.Threshold); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	return nil
}

func writeTable(w io.Writer, evals []ThresholdEvaluation, best float64) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "THRESHOLD\tACCURACY\tPRECISION\tRECALL\tF1\tTP\tFN\tFP\tTN\t")
	fmt.Fprintln(tw, "---------\t--------\t---------\t------\t--\t--\t--\t--\t--\t")

	marked := false
	for _, e := range evals {
		mark := ""
		if !marked && e.Threshold == best {
			mark = "<- best"
			marked = true
		}
		fmt.Fprintf(tw, "%.2f\t%.2f%%\t%.2f%%\t%.2f%%\t%.2f%%\t%d\t%d\t%d\t%d\t%s\n",
			e.Threshold, e.Accuracy*100, e.Precision*100, e.Recall*100, e.F1*100,
			e.TP, e.FN, e.FP, e.TN, mark)
	}
	return tw.Flush()
}
