// Package scoring computes token-level confusion counts and the derived
// precision, recall and F1 of a tagging run.
//
// A row whose labels differ while the expected label is an entity counts
// as a false negative. Metrics with a zero denominator are NaN, meaning
// undefined; they are never reported as zero.
package scoring

import (
	"math"
)

// DefaultNegative is the label of tokens outside any entity.
const DefaultNegative = "O"

// ConfusionCounters holds the four token-level counts of one run.
type ConfusionCounters struct {
	TruePositive  int `json:"true_positive"`
	FalsePositive int `json:"false_positive"`
	TrueNegative  int `json:"true_negative"`
	FalseNegative int `json:"false_negative"`
}

// Outcome classifies a single (expected, predicted) pair.
type Outcome uint8

// Outcome constants.
const (
	TruePositive Outcome = iota
	TrueNegative
	FalsePositive
	FalseNegative
)

func (o Outcome) String() string {
	switch o {
	case TruePositive:
		return "TP"
	case TrueNegative:
		return "TN"
	case FalsePositive:
		return "FP"
	default:
		return "FN"
	}
}

// Classify returns the outcome of one token given the negative label.
func Classify(expected, predicted, negative string) Outcome {
	switch {
	case predicted == expected && expected != negative:
		return TruePositive
	case predicted == expected:
		return TrueNegative
	case expected == negative:
		return FalsePositive
	default:
		return FalseNegative
	}
}

// Add returns c with the outcome counted.
func (c ConfusionCounters) Add(o Outcome) ConfusionCounters {
	switch o {
	case TruePositive:
		c.TruePositive++
	case TrueNegative:
		c.TrueNegative++
	case FalsePositive:
		c.FalsePositive++
	case FalseNegative:
		c.FalseNegative++
	}
	return c
}

// Merge returns the sum of two counters.
func (c ConfusionCounters) Merge(o ConfusionCounters) ConfusionCounters {
	return ConfusionCounters{
		TruePositive:  c.TruePositive + o.TruePositive,
		FalsePositive: c.FalsePositive + o.FalsePositive,
		TrueNegative:  c.TrueNegative + o.TrueNegative,
		FalseNegative: c.FalseNegative + o.FalseNegative,
	}
}

// Total is the number of rows counted.
func (c ConfusionCounters) Total() int {
	return c.TruePositive + c.FalsePositive + c.TrueNegative + c.FalseNegative
}

// Precision is TP/(TP+FP), NaN when nothing was predicted positive.
func (c ConfusionCounters) Precision() float64 {
	return ratio(c.TruePositive, c.TruePositive+c.FalsePositive)
}

// Recall is TP/(TP+FN), NaN when nothing was expected positive.
func (c ConfusionCounters) Recall() float64 {
	return ratio(c.TruePositive, c.TruePositive+c.FalseNegative)
}

// F1 is 2TP/(2TP+FP+FN).
func (c ConfusionCounters) F1() float64 {
	return ratio(2*c.TruePositive, 2*c.TruePositive+c.FalsePositive+c.FalseNegative)
}

// Accuracy is (TP+TN)/total.
func (c ConfusionCounters) Accuracy() float64 {
	return ratio(c.TruePositive+c.TrueNegative, c.Total())
}

func ratio(num, den int) float64 {
	if den == 0 {
		return math.NaN()
	}
	return float64(num) / float64(den)
}
