package loss

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func ceRow(row []float64, label int) float64 {
	maxv := row[0]
	for _, v := range row[1:] {
		if v > maxv {
			maxv = v
		}
	}
	sum := 0.0
	for _, v := range row {
		sum += math.Exp(v - maxv)
	}
	return math.Log(sum) - (row[label] - maxv)
}

func TestFocalGammaZeroMatchesCrossEntropy(t *testing.T) {
	logits := mat.NewDense(2, 3, []float64{2.0, -1.0, 0.5, 0.1, 0.2, 3.0})
	labels := []int{0, 2}

	for _, reduction := range []Reduction{Mean, Sum, None} {
		f, err := NewFocal(0, nil, reduction)
		if err != nil {
			t.Fatalf("NewFocal: %v", err)
		}
		got, err := f.Forward(logits, labels)
		if err != nil {
			t.Fatalf("Forward: %v", err)
		}
		per := []float64{ceRow(logits.RawRowView(0), 0), ceRow(logits.RawRowView(1), 2)}
		want := Reduce(per, reduction)
		if len(got) != len(want) {
			t.Fatalf("reduction %s: got %d values, want %d", reduction, len(got), len(want))
		}
		for i := range got {
			if math.Abs(got[i]-want[i]) > 1e-12 {
				t.Fatalf("reduction %s: got[%d]=%v want %v", reduction, i, got[i], want[i])
			}
		}
	}
}

func TestFocalGammaZeroWeighted(t *testing.T) {
	logits := mat.NewDense(2, 2, []float64{1.0, 0.0, -0.5, 0.5})
	labels := []int{0, 1}
	weight := []float64{0.5, 1.5}

	f, err := NewFocal(0, weight, Mean)
	if err != nil {
		t.Fatalf("NewFocal: %v", err)
	}
	per, err := f.PerSample(logits, labels)
	if err != nil {
		t.Fatalf("PerSample: %v", err)
	}
	for i, label := range labels {
		want := weight[label] * ceRow(logits.RawRowView(i), label)
		if math.Abs(per[i]-want) > 1e-12 {
			t.Fatalf("per[%d]=%v want %v", i, per[i], want)
		}
	}
}

func TestFocalGammaSuppressesLoss(t *testing.T) {
	logits := mat.NewDense(2, 2, []float64{4.0, 0.0, 0.2, 0.0})
	labels := []int{0, 0}

	plain, err := NewFocal(0, nil, Mean)
	if err != nil {
		t.Fatalf("NewFocal: %v", err)
	}
	focused, err := NewFocal(2, nil, Mean)
	if err != nil {
		t.Fatalf("NewFocal: %v", err)
	}
	perPlain, err := plain.PerSample(logits, labels)
	if err != nil {
		t.Fatalf("PerSample: %v", err)
	}
	perFocused, err := focused.PerSample(logits, labels)
	if err != nil {
		t.Fatalf("PerSample: %v", err)
	}
	for i := range perPlain {
		if !(perFocused[i] < perPlain[i]) {
			t.Fatalf("sample %d: gamma=2 loss %v not below gamma=0 loss %v", i, perFocused[i], perPlain[i])
		}
		if math.IsNaN(perFocused[i]) || math.IsInf(perFocused[i], 0) {
			t.Fatalf("sample %d: non-finite loss %v", i, perFocused[i])
		}
	}
	// The confident sample (large margin) is suppressed far more.
	easyRatio := perFocused[0] / perPlain[0]
	hardRatio := perFocused[1] / perPlain[1]
	if !(easyRatio < hardRatio) {
		t.Fatalf("easy sample ratio %v not below hard sample ratio %v", easyRatio, hardRatio)
	}
}

func TestReduce(t *testing.T) {
	per := []float64{1.0, 3.0}
	if got := Reduce(per, Mean); len(got) != 1 || got[0] != 2.0 {
		t.Fatalf("mean: got %v", got)
	}
	if got := Reduce(per, Sum); len(got) != 1 || got[0] != 4.0 {
		t.Fatalf("sum: got %v", got)
	}
	got := Reduce(per, None)
	if len(got) != 2 || got[0] != 1.0 || got[1] != 3.0 {
		t.Fatalf("none: got %v", got)
	}
}

func TestFocalLabelOutOfRange(t *testing.T) {
	logits := mat.NewDense(1, 3, []float64{0.1, 0.2, 0.3})
	f, err := NewFocal(1, nil, Mean)
	if err != nil {
		t.Fatalf("NewFocal: %v", err)
	}
	if _, err := f.PerSample(logits, []int{3}); err == nil {
		t.Fatal("expected error for label 3 with 3 classes")
	}
	if _, err := f.PerSample(logits, []int{-1}); err == nil {
		t.Fatal("expected error for negative label")
	}
}

func TestFocalValidation(t *testing.T) {
	if _, err := NewFocal(-0.1, nil, Mean); err == nil {
		t.Fatal("expected error for negative gamma")
	}
	if _, err := NewFocal(1, []float64{1, -2}, Mean); err == nil {
		t.Fatal("expected error for negative weight")
	}
	if _, err := ParseReduction("bogus"); err == nil {
		t.Fatal("expected error for unknown reduction")
	}

	logits := mat.NewDense(1, 2, []float64{0.1, 0.2})
	f, err := NewFocal(1, []float64{1, 1, 1}, Mean)
	if err != nil {
		t.Fatalf("NewFocal: %v", err)
	}
	if _, err := f.PerSample(logits, []int{0}); err == nil {
		t.Fatal("expected error for weight length mismatch")
	}

	none, err := NewFocal(1, nil, None)
	if err != nil {
		t.Fatalf("NewFocal: %v", err)
	}
	if _, err := none.Loss(logits, []int{0}); err == nil {
		t.Fatal("expected error for scalar loss under none reduction")
	}
}
