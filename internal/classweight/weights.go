// Package classweight derives per-class loss weights from label frequencies
// and schedules which weight vector is active across training epochs.
package classweight

import (
	"errors"
	"fmt"
	"math"

	"imbalance-forge/internal/dataset"
)

// Rule selects the class-weighting strategy for a training run.
type Rule int

const (
	// RuleNone applies no class weighting.
	RuleNone Rule = iota
	// RuleReweight applies effective-number weights for the whole run.
	RuleReweight
	// RuleDRW trains unweighted until the switch epoch, then reweighted.
	RuleDRW
)

// ParseRule maps a config string to a Rule.
func ParseRule(s string) (Rule, error) {
	switch s {
	case "none":
		return RuleNone, nil
	case "reweight":
		return RuleReweight, nil
	case "drw":
		return RuleDRW, nil
	}
	return 0, fmt.Errorf("classweight: unsupported rule %q (want none, reweight or drw)", s)
}

func (r Rule) String() string {
	switch r {
	case RuleNone:
		return "none"
	case RuleReweight:
		return "reweight"
	case RuleDRW:
		return "drw"
	}
	return fmt.Sprintf("Rule(%d)", int(r))
}

// CountFrequencies tallies labels over one full pass of src. The source is
// rewound on return so callers can replay it.
func CountFrequencies(src dataset.Source, numClasses int) ([]int, error) {
	if numClasses <= 0 {
		return nil, errors.New("classweight: numClasses must be > 0")
	}
	src.Reset()
	defer src.Reset()
	freq := make([]int, numClasses)
	for {
		sample, ok := src.Next()
		if !ok {
			break
		}
		if sample.Label < 0 || sample.Label >= numClasses {
			return nil, fmt.Errorf("classweight: label %d outside [0, %d)", sample.Label, numClasses)
		}
		freq[sample.Label]++
	}
	return freq, nil
}

// EffectiveNumberWeights derives per-class weights from frequencies using the
// effective-number transform w_c = (1-beta) / (1-beta^n_c), normalized so the
// weights sum to the class count. Every class must have at least one sample;
// a zero frequency would divide by zero.
func EffectiveNumberWeights(freq []int, beta float64) ([]float64, error) {
	if len(freq) == 0 {
		return nil, errors.New("classweight: empty class frequency")
	}
	if beta < 0 || beta >= 1 {
		return nil, fmt.Errorf("classweight: beta must be in [0, 1) (got %g)", beta)
	}
	weights := make([]float64, len(freq))
	sum := 0.0
	for c, n := range freq {
		if n < 0 {
			return nil, fmt.Errorf("classweight: class %d has negative frequency %d", c, n)
		}
		if n == 0 {
			return nil, fmt.Errorf("classweight: class %d has zero frequency, cannot reweight", c)
		}
		w := (1 - beta) / (1 - math.Pow(beta, float64(n)))
		weights[c] = w
		sum += w
	}
	scale := float64(len(freq)) / sum
	for c := range weights {
		weights[c] *= scale
	}
	return weights, nil
}
