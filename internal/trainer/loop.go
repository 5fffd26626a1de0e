package trainer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gonum.org/v1/gonum/mat"

	"imbalance-forge/internal/classweight"
	"imbalance-forge/internal/dataset"
	"imbalance-forge/internal/loss"
	"imbalance-forge/internal/metrics"
	"imbalance-forge/internal/model"
)

// RunConfig captures the knobs required by the training loop.
type RunConfig struct {
	Model       model.Model
	Schedule    *classweight.Schedule
	Gamma       float64
	Epochs      int
	BatchSize   int
	LR          float64
	WeightDecay float64
	LogEvery    int
	Metrics     []string
	Sink        metrics.Sink
}

// Trainer drives the epoch loop with the focal loss unit active on every
// step. The weight schedule is advanced at epoch start only, so all batches
// of an epoch see the same weight vector.
type Trainer struct {
	cfg          RunConfig
	base         loss.Focal
	focal        loss.Focal
	wantAccuracy bool

	trainStats metrics.Epoch
	evalStats  metrics.Epoch
}

// New validates cfg and builds the trainer with its base loss unit.
func New(cfg RunConfig) (*Trainer, error) {
	if cfg.Model == nil {
		return nil, errors.New("trainer: model is required")
	}
	if cfg.Schedule == nil {
		return nil, errors.New("trainer: weight schedule is required")
	}
	if cfg.Epochs <= 0 {
		return nil, errors.New("trainer: epochs must be > 0")
	}
	if cfg.BatchSize <= 0 {
		return nil, errors.New("trainer: batch size must be > 0")
	}
	if cfg.LR <= 0 {
		cfg.LR = 1e-3
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = 50
	}
	if cfg.Sink == nil {
		cfg.Sink = metrics.LogSink{}
	}
	if len(cfg.Metrics) == 0 {
		cfg.Metrics = []string{"accuracy"}
	}
	wantAccuracy := false
	for _, name := range cfg.Metrics {
		if name != "accuracy" {
			return nil, fmt.Errorf("trainer: unsupported metric %q", name)
		}
		wantAccuracy = true
	}

	base, err := loss.NewFocal(cfg.Gamma, nil, loss.Mean)
	if err != nil {
		return nil, err
	}
	t := &Trainer{cfg: cfg, base: base, wantAccuracy: wantAccuracy}
	t.focal = base.WithWeight(cfg.Schedule.Active())
	return t, nil
}

// OnEpochStart advances the weight schedule and installs the active vector
// into the loss unit before the first batch of the epoch runs.
func (t *Trainer) OnEpochStart(epoch int) {
	t.cfg.Schedule.OnEpochStart(epoch)
	t.focal = t.base.WithWeight(t.cfg.Schedule.Active())
}

// TrainingStep runs one optimization step on the batch and returns its mean
// focal loss.
func (t *Trainer) TrainingStep(batch dataset.Batch, idx int) (float64, error) {
	start := time.Now()
	logits := t.cfg.Model.Forward(batch.Inputs)
	per, mod, err := t.focal.Terms(logits, batch.Labels)
	if err != nil {
		return 0, err
	}
	if err := t.cfg.Model.Step(batch.Inputs, batch.Labels, mod, t.cfg.LR, t.cfg.WeightDecay); err != nil {
		return 0, err
	}
	meanLoss := loss.Reduce(per, loss.Mean)[0]
	correct := countCorrect(logits, batch.Labels)
	t.trainStats.Record(len(batch.Labels), correct, meanLoss, time.Since(start))

	if (idx+1)%t.cfg.LogEvery == 0 {
		opts := metrics.LogOptions{ProgBar: true, OnStep: true}
		t.cfg.Sink.Log("train_loss", meanLoss, opts)
		if t.wantAccuracy {
			t.cfg.Sink.Log("train_accuracy", float64(correct)/float64(len(batch.Labels)), opts)
		}
	}
	return meanLoss, nil
}

// ValidationStep computes the loss on the batch without touching the model.
func (t *Trainer) ValidationStep(batch dataset.Batch, idx int) (float64, error) {
	return t.evalStep(batch)
}

// TestStep computes the loss on the batch without touching the model.
func (t *Trainer) TestStep(batch dataset.Batch, idx int) (float64, error) {
	return t.evalStep(batch)
}

func (t *Trainer) evalStep(batch dataset.Batch) (float64, error) {
	start := time.Now()
	logits := t.cfg.Model.Forward(batch.Inputs)
	meanLoss, err := t.focal.Loss(logits, batch.Labels)
	if err != nil {
		return 0, err
	}
	correct := countCorrect(logits, batch.Labels)
	t.evalStats.Record(len(batch.Labels), correct, meanLoss, time.Since(start))
	return meanLoss, nil
}

// Run executes the training workload: per epoch, an epoch-start weight swap,
// all training batches, then a validation pass; a final test pass after the
// last epoch. val and test may be nil.
func (t *Trainer) Run(ctx context.Context, train, val, test dataset.Source) error {
	if train == nil {
		return errors.New("trainer: train source is required")
	}
	trainBatches, err := dataset.Batches(train, t.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(trainBatches) == 0 {
		return errors.New("trainer: train source is empty")
	}
	var valBatches, testBatches []dataset.Batch
	if val != nil {
		if valBatches, err = dataset.Batches(val, t.cfg.BatchSize); err != nil {
			return err
		}
	}
	if test != nil {
		if testBatches, err = dataset.Batches(test, t.cfg.BatchSize); err != nil {
			return err
		}
	}

	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		t.OnEpochStart(epoch)
		for idx, batch := range trainBatches {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := t.TrainingStep(batch, idx); err != nil {
				return err
			}
		}
		snap := t.trainStats.Snapshot()
		line := fmt.Sprintf("epoch=%d rule=%s train_loss=%.4f train_acc=%.3f samples_per_sec=%.1f",
			epoch, t.cfg.Schedule.Rule(), snap.AvgLoss, snap.Accuracy, snap.SamplesPerSec)

		if len(valBatches) > 0 {
			for idx, batch := range valBatches {
				if err := ctx.Err(); err != nil {
					return err
				}
				if _, err := t.ValidationStep(batch, idx); err != nil {
					return err
				}
			}
			vsnap := t.evalStats.Snapshot()
			opts := metrics.LogOptions{OnEpoch: true}
			t.cfg.Sink.Log("val_loss", vsnap.AvgLoss, opts)
			if t.wantAccuracy {
				t.cfg.Sink.Log("val_accuracy", vsnap.Accuracy, opts)
			}
			line += fmt.Sprintf(" val_loss=%.4f val_acc=%.3f", vsnap.AvgLoss, vsnap.Accuracy)
		}
		log.Print(line)
	}

	if len(testBatches) > 0 {
		for idx, batch := range testBatches {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := t.TestStep(batch, idx); err != nil {
				return err
			}
		}
		tsnap := t.evalStats.Snapshot()
		opts := metrics.LogOptions{OnEpoch: true}
		t.cfg.Sink.Log("test_loss", tsnap.AvgLoss, opts)
		if t.wantAccuracy {
			t.cfg.Sink.Log("test_accuracy", tsnap.Accuracy, opts)
		}
		log.Printf("test_loss=%.4f test_acc=%.3f", tsnap.AvgLoss, tsnap.Accuracy)
	}
	return nil
}

func countCorrect(logits *mat.Dense, labels []int) int {
	correct := 0
	for i, label := range labels {
		row := logits.RawRowView(i)
		best := 0
		for c, v := range row {
			if v > row[best] {
				best = c
			}
		}
		if best == label {
			correct++
		}
	}
	return correct
}
