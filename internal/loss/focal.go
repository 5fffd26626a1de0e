package loss

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Reduction selects how per-sample losses collapse.
type Reduction int

const (
	// Mean averages per-sample losses into a scalar.
	Mean Reduction = iota
	// Sum totals per-sample losses into a scalar.
	Sum
	// None keeps the per-sample losses unreduced.
	None
)

// ParseReduction maps a config string to a Reduction. The empty string
// defaults to Mean.
func ParseReduction(s string) (Reduction, error) {
	switch s {
	case "", "mean":
		return Mean, nil
	case "sum":
		return Sum, nil
	case "none":
		return None, nil
	}
	return 0, fmt.Errorf("loss: unknown reduction %q (want mean, sum or none)", s)
}

func (r Reduction) String() string {
	switch r {
	case Mean:
		return "mean"
	case Sum:
		return "sum"
	case None:
		return "none"
	}
	return fmt.Sprintf("Reduction(%d)", int(r))
}

// Focal computes focal loss over a batch of logits: per-sample weighted
// cross-entropy scaled by (1-p)^gamma, where p is the model's confidence on
// the true class. A Focal value is immutable once constructed; WithWeight
// derives a new value when the active class weights change.
type Focal struct {
	gamma     float64
	weight    []float64
	reduction Reduction
}

// NewFocal constructs a focal loss unit. weight may be nil for unweighted
// loss; otherwise it must hold one non-negative entry per class.
func NewFocal(gamma float64, weight []float64, reduction Reduction) (Focal, error) {
	if gamma < 0 {
		return Focal{}, fmt.Errorf("loss: gamma must be >= 0 (got %g)", gamma)
	}
	if reduction != Mean && reduction != Sum && reduction != None {
		return Focal{}, fmt.Errorf("loss: invalid reduction %d", int(reduction))
	}
	f := Focal{gamma: gamma, reduction: reduction}
	if weight != nil {
		f.weight = append([]float64(nil), weight...)
		for c, w := range f.weight {
			if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
				return Focal{}, fmt.Errorf("loss: weight for class %d is %g, must be finite and >= 0", c, w)
			}
		}
	}
	return f, nil
}

// WithWeight returns a copy of f using w as the active class weights.
// A nil w means unweighted.
func (f Focal) WithWeight(w []float64) Focal {
	out := f
	if w == nil {
		out.weight = nil
		return out
	}
	out.weight = append([]float64(nil), w...)
	return out
}

// Gamma reports the focusing exponent.
func (f Focal) Gamma() float64 { return f.gamma }

// terms computes, per sample, the raw cross-entropy and the modulation
// factor weight[label] * (1-p)^gamma. The per-sample focal loss is their
// product.
func (f Focal) terms(logits *mat.Dense, labels []int) (ce, mod []float64, err error) {
	rows, cols := logits.Dims()
	if len(labels) != rows {
		return nil, nil, fmt.Errorf("loss: %d labels for %d logit rows", len(labels), rows)
	}
	if f.weight != nil && len(f.weight) != cols {
		return nil, nil, fmt.Errorf("loss: weight vector has %d entries for %d classes", len(f.weight), cols)
	}
	ce = make([]float64, rows)
	mod = make([]float64, rows)
	for i, label := range labels {
		if label < 0 || label >= cols {
			return nil, nil, fmt.Errorf("loss: label %d outside [0, %d)", label, cols)
		}
		row := logits.RawRowView(i)
		maxv := row[0]
		for _, v := range row[1:] {
			if v > maxv {
				maxv = v
			}
		}
		sumExp := 0.0
		for _, v := range row {
			sumExp += math.Exp(v - maxv)
		}
		raw := math.Log(sumExp) - (row[label] - maxv)
		w := 1.0
		if f.weight != nil {
			w = f.weight[label]
		}
		p := math.Exp(-w * raw)
		ce[i] = raw
		mod[i] = w * math.Pow(1-p, f.gamma)
	}
	return ce, mod, nil
}

// Terms computes the per-sample focal losses alongside the modulation
// factors weight[label] * (1-p)^gamma in a single pass. Optimizers scale the
// cross-entropy gradient by the modulation factor.
func (f Focal) Terms(logits *mat.Dense, labels []int) (per, mod []float64, err error) {
	ce, mod, err := f.terms(logits, labels)
	if err != nil {
		return nil, nil, err
	}
	per = make([]float64, len(ce))
	for i := range per {
		per[i] = mod[i] * ce[i]
	}
	return per, mod, nil
}

// PerSample returns the unreduced focal loss, one entry per logit row.
func (f Focal) PerSample(logits *mat.Dense, labels []int) ([]float64, error) {
	per, _, err := f.Terms(logits, labels)
	return per, err
}

// Forward computes the focal loss under the configured reduction. The result
// has a single element for Mean and Sum, and one element per sample for None.
func (f Focal) Forward(logits *mat.Dense, labels []int) ([]float64, error) {
	per, err := f.PerSample(logits, labels)
	if err != nil {
		return nil, err
	}
	return Reduce(per, f.reduction), nil
}

// Loss is the scalar form of Forward for Mean and Sum reductions.
func (f Focal) Loss(logits *mat.Dense, labels []int) (float64, error) {
	if f.reduction == None {
		return 0, fmt.Errorf("loss: reduction %s yields per-sample losses, call PerSample", f.reduction)
	}
	out, err := f.Forward(logits, labels)
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// Reduce collapses per-sample losses according to r. Mean and Sum produce a
// single element; None returns per unchanged.
func Reduce(per []float64, r Reduction) []float64 {
	switch r {
	case Mean:
		if len(per) == 0 {
			return []float64{0}
		}
		total := 0.0
		for _, v := range per {
			total += v
		}
		return []float64{total / float64(len(per))}
	case Sum:
		total := 0.0
		for _, v := range per {
			total += v
		}
		return []float64{total}
	default:
		return per
	}
}
