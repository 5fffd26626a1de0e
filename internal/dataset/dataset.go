package dataset

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

// Sample pairs one input tensor with its integer class label.
type Sample struct {
	Input tensor.Tensor
	Label int
}

// Source is a finite sequence of labeled samples that can be replayed from
// the start. A full pass terminates; Reset rewinds to the first sample.
type Source interface {
	Next() (Sample, bool)
	Reset()
}

// SliceSource serves samples from an in-memory slice.
type SliceSource struct {
	samples []Sample
	pos     int
}

// NewSliceSource wraps samples in a restartable source.
func NewSliceSource(samples []Sample) *SliceSource {
	return &SliceSource{samples: samples}
}

// Next returns the next sample, or ok=false once the sequence is exhausted.
func (s *SliceSource) Next() (Sample, bool) {
	if s.pos >= len(s.samples) {
		return Sample{}, false
	}
	sample := s.samples[s.pos]
	s.pos++
	return sample, true
}

// Reset rewinds the source to its first sample.
func (s *SliceSource) Reset() {
	s.pos = 0
}

// Len reports the number of samples served per pass.
func (s *SliceSource) Len() int {
	return len(s.samples)
}

// Batch is a collated minibatch: one matrix row per sample.
type Batch struct {
	Inputs *mat.Dense
	Labels []int
}

// Features flattens a sample tensor into a float64 row.
func Features(t tensor.Tensor) ([]float64, error) {
	if t == nil {
		return nil, errors.New("dataset: nil input tensor")
	}
	switch data := t.Data().(type) {
	case []float32:
		row := make([]float64, len(data))
		for i, v := range data {
			row[i] = float64(v)
		}
		return row, nil
	case []float64:
		row := make([]float64, len(data))
		copy(row, data)
		return row, nil
	default:
		return nil, fmt.Errorf("dataset: unsupported tensor dtype %v", t.Dtype())
	}
}

// Batches replays src from the start and collates it into minibatches of at
// most batchSize rows. The final batch may be short.
func Batches(src Source, batchSize int) ([]Batch, error) {
	if batchSize <= 0 {
		return nil, errors.New("dataset: batch size must be > 0")
	}
	src.Reset()

	var (
		batches []Batch
		rows    [][]float64
		labels  []int
		width   = -1
	)
	flush := func() {
		if len(rows) == 0 {
			return
		}
		flat := make([]float64, 0, len(rows)*width)
		for _, row := range rows {
			flat = append(flat, row...)
		}
		batches = append(batches, Batch{
			Inputs: mat.NewDense(len(rows), width, flat),
			Labels: labels,
		})
		rows = nil
		labels = nil
	}

	for {
		sample, ok := src.Next()
		if !ok {
			break
		}
		row, err := Features(sample.Input)
		if err != nil {
			return nil, err
		}
		if width == -1 {
			width = len(row)
		} else if len(row) != width {
			return nil, fmt.Errorf("dataset: inconsistent feature width %d, want %d", len(row), width)
		}
		rows = append(rows, row)
		labels = append(labels, sample.Label)
		if len(rows) == batchSize {
			flush()
		}
	}
	flush()
	return batches, nil
}
