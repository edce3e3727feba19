package calibration

// ThresholdEvaluation is the confusion matrix and derived rates at one threshold.
type ThresholdEvaluation struct {
	Threshold float64 `json:"threshold"`
	TP        int     `json:"tp"`
	FN        int     `json:"fn"`
	FP        int     `json:"fp"`
	TN        int     `json:"tn"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1_score"`
}

// Evaluate counts a pair as accepted when its similarity is >= threshold.
// Precision and recall are 1 when their denominator is zero; F1 is 0 when
// precision + recall is zero.
func Evaluate(threshold float64, positives, negatives []float64) ThresholdEvaluation {
	e := ThresholdEvaluation{Threshold: threshold}

	for _, s := range positives {
		if s >= threshold {
			e.TP++
		}
	}
	e.FN = len(positives) - e.TP

	for _, s := range negatives {
		if s < threshold {
			e.TN++
		}
	}
	e.FP = len(negatives) - e.TN

	if total := len(positives) + len(negatives); total > 0 {
		e.Accuracy = float64(e.TP+e.TN) / float64(total)
	}

	e.Precision = ratioOrOne(e.TP, e.TP+e.FP)
	e.Recall = ratioOrOne(e.TP, e.TP+e.FN)
	if sum := e.Precision + e.Recall; sum > 0 {
		e.F1 = 2 * e.Precision * e.Recall / sum
	}

	return e
}

func ratioOrOne(num, den int) float64 {
	if den == 0 {
		return 1
	}
	return float64(num) / float64(den)
}

// Sweep evaluates each threshold in the order given.
func Sweep(thresholds, positives, negatives []float64) []ThresholdEvaluation {
	out := make([]ThresholdEvaluation, 0, len(thresholds))
	for _, t := range thresholds {
		out = append(out, Evaluate(t, positives, negatives))
	}
	return out
}

// SelectBest returns the evaluation with the highest accuracy. The earliest
// entry wins a tie, so an ascending sweep prefers the lowest threshold.
func SelectBest(evals []ThresholdEvaluation) (ThresholdEvaluation, error) {
	if len(evals) == 0 {
		return ThresholdEvaluation{}, ErrNoThresholds
	}
	best := evals[0]
	for _, e := range evals[1:] {
		if e.Accuracy > best.Accuracy {
			best = e
		}
	}
	return best, nil
}
