package model

import "gonum.org/v1/gonum/mat"

// Model is the classifier contract consumed by the trainer.
type Model interface {
	// Forward returns one row of logits per input row.
	Forward(inputs *mat.Dense) *mat.Dense
	// Step applies one gradient step on the batch. scale holds a per-sample
	// factor applied to the softmax cross-entropy gradient, typically the
	// focal modulation times the active class weight.
	Step(inputs *mat.Dense, labels []int, scale []float64, lr, weightDecay float64) error
}
