package metrics

import (
	"log"
	"time"
)

// LogOptions carries the display and aggregation flags attached to a scalar.
type LogOptions struct {
	ProgBar bool
	OnEpoch bool
	OnStep  bool
}

// Sink receives named scalar values from the training loop.
type Sink interface {
	Log(name string, value float64, opts LogOptions)
}

// LogSink writes scalars as key=value lines through the standard logger.
type LogSink struct {
	Prefix string
}

// Log emits one key=value line. Only step- and epoch-level scalars are
// written; flags exist so richer sinks can aggregate differently.
func (s LogSink) Log(name string, value float64, opts LogOptions) {
	log.Printf("%s%s=%.4f", s.Prefix, name, value)
}

// Epoch accumulates loss and accuracy across the steps of one epoch.
type Epoch struct {
	samples int
	correct int
	loss    float64
	steps   int
	compute time.Duration
}

// Record adds one step's results to the accumulator.
func (e *Epoch) Record(batchSize, correct int, loss float64, compute time.Duration) {
	e.samples += batchSize
	e.correct += correct
	e.loss += loss
	e.steps++
	e.compute += compute
}

// Snapshot returns aggregated metrics and resets the accumulator.
func (e *Epoch) Snapshot() Snapshot {
	snap := Snapshot{Steps: e.steps}
	if e.steps > 0 {
		snap.AvgLoss = e.loss / float64(e.steps)
	}
	if e.samples > 0 {
		snap.Accuracy = float64(e.correct) / float64(e.samples)
	}
	if e.compute > 0 {
		snap.SamplesPerSec = float64(e.samples) / e.compute.Seconds()
	}

	e.samples = 0
	e.correct = 0
	e.loss = 0
	e.steps = 0
	e.compute = 0
	return snap
}

// Snapshot represents loggable per-epoch metrics.
type Snapshot struct {
	AvgLoss       float64
	Accuracy      float64
	SamplesPerSec float64
	Steps         int
}
