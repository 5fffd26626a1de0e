package model

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"

	"imbalance-forge/internal/loss"
)

func TestLinearForward(t *testing.T) {
	m := NewLinear(2, 3, 1)
	m.Weights().SetRow(0, []float64{1, 0, -1})
	m.Weights().SetRow(1, []float64{0.5, 0.5, 0.5})
	m.Bias()[0] = 0.1
	m.Bias()[1] = -0.2

	inputs := mat.NewDense(1, 3, []float64{2, 4, 6})
	logits := m.Forward(inputs)
	rows, cols := logits.Dims()
	if rows != 1 || cols != 2 {
		t.Fatalf("logits are %dx%d, want 1x2", rows, cols)
	}
	if got := logits.At(0, 0); math.Abs(got-(-3.9)) > 1e-12 {
		t.Fatalf("logit 0 = %v, want -3.9", got)
	}
	if got := logits.At(0, 1); math.Abs(got-5.8) > 1e-12 {
		t.Fatalf("logit 1 = %v, want 5.8", got)
	}
}

func TestLinearStepValidation(t *testing.T) {
	m := NewLinear(2, 3, 1)
	inputs := mat.NewDense(1, 3, []float64{1, 2, 3})
	if err := m.Step(inputs, []int{0, 1}, []float64{1}, 0.1, 0); err == nil {
		t.Fatal("expected error for label/scale count mismatch")
	}
	if err := m.Step(inputs, []int{5}, []float64{1}, 0.1, 0); err == nil {
		t.Fatal("expected error for out-of-range label")
	}
	if err := m.Step(mat.NewDense(1, 2, []float64{1, 2}), []int{0}, []float64{1}, 0.1, 0); err == nil {
		t.Fatal("expected error for input width mismatch")
	}
}

func TestLinearStepReducesLoss(t *testing.T) {
	m := NewLinear(2, 2, 3)
	inputs := mat.NewDense(4, 2, []float64{
		1, 0,
		0.9, 0.1,
		0, 1,
		0.1, 0.9,
	})
	labels := []int{0, 0, 1, 1}
	scale := []float64{1, 1, 1, 1}

	ce, err := loss.NewFocal(0, nil, loss.Mean)
	if err != nil {
		t.Fatalf("NewFocal: %v", err)
	}
	before, err := ce.Loss(m.Forward(inputs), labels)
	if err != nil {
		t.Fatalf("Loss: %v", err)
	}
	for i := 0; i < 100; i++ {
		if err := m.Step(inputs, labels, scale, 0.5, 0); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	after, err := ce.Loss(m.Forward(inputs), labels)
	if err != nil {
		t.Fatalf("Loss: %v", err)
	}
	if !(after < before) {
		t.Fatalf("loss did not decrease: before=%v after=%v", before, after)
	}
}

func TestLinearGradientMatchesFiniteDifference(t *testing.T) {
	const (
		classes = 2
		width   = 3
	)
	inputs := mat.NewDense(1, width, []float64{0.5, -0.2, 0.8})
	labels := []int{1}
	ce, err := loss.NewFocal(0, nil, loss.Mean)
	if err != nil {
		t.Fatalf("NewFocal: %v", err)
	}

	m := NewLinear(classes, width, 11)
	base := append([]float64(nil), m.Weights().RawMatrix().Data...)

	objective := func(w []float64) float64 {
		scratch := NewLinear(classes, width, 11)
		copy(scratch.Weights().RawMatrix().Data, w)
		v, err := ce.Loss(scratch.Forward(inputs), labels)
		if err != nil {
			t.Fatalf("Loss: %v", err)
		}
		return v
	}
	numeric := fd.Gradient(nil, objective, base, nil)

	probs := softmaxRow(m.Forward(inputs).RawRowView(0))
	probs[labels[0]] -= 1
	in := inputs.RawRowView(0)
	for c := 0; c < classes; c++ {
		for j := 0; j < width; j++ {
			analytic := probs[c] * in[j]
			if math.Abs(analytic-numeric[c*width+j]) > 1e-6 {
				t.Fatalf("gradient mismatch at (%d,%d): analytic=%v numeric=%v", c, j, analytic, numeric[c*width+j])
			}
		}
	}
}
