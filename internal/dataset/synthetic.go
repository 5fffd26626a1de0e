package dataset

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gorgonia.org/tensor"
)

// SyntheticOptions configures the imbalanced synthetic dataset. CenterSeed
// fixes the class cluster centers so train and held-out splits built with
// different Seeds share the same geometry; it defaults to Seed.
type SyntheticOptions struct {
	ClassCounts []int
	FeatureSize int
	Noise       float64
	Seed        int64
	CenterSeed  int64
}

// NewSynthetic generates one gaussian cluster per class with the requested
// per-class sample counts, shuffled into a restartable source.
func NewSynthetic(opts SyntheticOptions) (*SliceSource, error) {
	if len(opts.ClassCounts) == 0 {
		return nil, errors.New("dataset: no class counts provided")
	}
	if opts.FeatureSize <= 0 {
		return nil, errors.New("dataset: feature size must be > 0")
	}
	if opts.Noise <= 0 {
		opts.Noise = 0.3
	}
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	if opts.CenterSeed == 0 {
		opts.CenterSeed = opts.Seed
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	centerRng := rand.New(rand.NewSource(opts.CenterSeed))

	centers := make([][]float64, len(opts.ClassCounts))
	for c := range centers {
		center := make([]float64, opts.FeatureSize)
		for j := range center {
			center[j] = centerRng.NormFloat64()
		}
		centers[c] = center
	}

	var samples []Sample
	for c, count := range opts.ClassCounts {
		if count < 0 {
			return nil, fmt.Errorf("dataset: class %d has negative count %d", c, count)
		}
		for i := 0; i < count; i++ {
			backing := make([]float32, opts.FeatureSize)
			for j := range backing {
				backing[j] = float32(centers[c][j] + rng.NormFloat64()*opts.Noise)
			}
			t := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(opts.FeatureSize), tensor.WithBacking(backing))
			samples = append(samples, Sample{Input: t, Label: c})
		}
	}
	rng.Shuffle(len(samples), func(i, j int) {
		samples[i], samples[j] = samples[j], samples[i]
	})
	return NewSliceSource(samples), nil
}

// ImbalancedCounts spreads total samples over numClasses with an exponential
// profile so the largest class holds roughly ratio times the smallest.
func ImbalancedCounts(total, numClasses int, ratio float64) ([]int, error) {
	if total <= 0 || numClasses <= 0 {
		return nil, errors.New("dataset: total and numClasses must be > 0")
	}
	if ratio < 1 {
		return nil, fmt.Errorf("dataset: imbalance ratio must be >= 1 (got %g)", ratio)
	}
	raw := make([]float64, numClasses)
	sum := 0.0
	for c := range raw {
		exp := 0.0
		if numClasses > 1 {
			exp = float64(c) / float64(numClasses-1)
		}
		raw[c] = math.Pow(ratio, -exp)
		sum += raw[c]
	}
	counts := make([]int, numClasses)
	for c := range counts {
		counts[c] = int(math.Round(raw[c] / sum * float64(total)))
		if counts[c] < 1 {
			counts[c] = 1
		}
	}
	return counts, nil
}
