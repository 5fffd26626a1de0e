package model

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Linear is a softmax linear classifier: logits = x Wᵀ + b.
type Linear struct {
	numClasses int
	inputSize  int
	weights    *mat.Dense
	bias       []float64
}

// NewLinear constructs the classifier with small random initialization.
func NewLinear(numClasses, inputSize int, seed int64) *Linear {
	if numClasses <= 0 {
		numClasses = 10
	}
	if inputSize <= 0 {
		inputSize = 64
	}
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, numClasses*inputSize)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * 0.01
	}
	return &Linear{
		numClasses: numClasses,
		inputSize:  inputSize,
		weights:    mat.NewDense(numClasses, inputSize, data),
		bias:       make([]float64, numClasses),
	}
}

// Forward returns one row of logits per input row.
func (m *Linear) Forward(inputs *mat.Dense) *mat.Dense {
	rows, _ := inputs.Dims()
	logits := mat.NewDense(rows, m.numClasses, nil)
	logits.Mul(inputs, m.weights.T())
	for i := 0; i < rows; i++ {
		row := logits.RawRowView(i)
		for c, b := range m.bias {
			row[c] += b
		}
	}
	return logits
}

// Step applies one SGD step. Each sample's softmax cross-entropy gradient is
// scaled by scale[i] and averaged over the batch; weight decay is applied to
// the weights, not the bias.
func (m *Linear) Step(inputs *mat.Dense, labels []int, scale []float64, lr, weightDecay float64) error {
	rows, cols := inputs.Dims()
	if cols != m.inputSize {
		return fmt.Errorf("model: input width %d, want %d", cols, m.inputSize)
	}
	if len(labels) != rows || len(scale) != rows {
		return fmt.Errorf("model: %d labels and %d scales for %d rows", len(labels), len(scale), rows)
	}
	logits := m.Forward(inputs)
	for i := 0; i < rows; i++ {
		label := labels[i]
		if label < 0 || label >= m.numClasses {
			return fmt.Errorf("model: label %d outside [0, %d)", label, m.numClasses)
		}
		probs := softmaxRow(logits.RawRowView(i))
		probs[label] -= 1
		in := inputs.RawRowView(i)
		step := scale[i] * lr / float64(rows)
		for c := 0; c < m.numClasses; c++ {
			g := probs[c] * step
			m.bias[c] -= g
			wrow := m.weights.RawRowView(c)
			for j, x := range in {
				wrow[j] -= g * x
			}
		}
	}
	if weightDecay > 0 {
		decay := lr * weightDecay
		raw := m.weights.RawMatrix().Data
		for i := range raw {
			raw[i] -= decay * raw[i]
		}
	}
	return nil
}

// Weights exposes the weight matrix, one row per class.
func (m *Linear) Weights() *mat.Dense { return m.weights }

// Bias exposes the per-class bias vector.
func (m *Linear) Bias() []float64 { return m.bias }

func softmaxRow(row []float64) []float64 {
	maxv := row[0]
	for _, v := range row[1:] {
		if v > maxv {
			maxv = v
		}
	}
	sum := 0.0
	out := make([]float64, len(row))
	for i, v := range row {
		e := math.Exp(v - maxv)
		out[i] = e
		sum += e
	}
	inv := 1.0 / sum
	for i := range out {
		out[i] *= inv
	}
	return out
}
