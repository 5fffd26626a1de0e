package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"imbalance-forge/internal/classweight"
	"imbalance-forge/internal/config"
	"imbalance-forge/internal/dataset"
	"imbalance-forge/internal/model"
	"imbalance-forge/internal/trainer"
)

func main() {
	cfgPath := flag.String("config", "configs/demo.yaml", "Path to YAML config")
	dataSet := flag.String("dataset", "", "Dataset kind (synthetic or cifar10)")
	dataPath := flag.String("data-path", "", "Path to the CIFAR-10 binary batch")
	rule := flag.String("rule", "", "Class weighting rule (none, reweight, drw)")
	gamma := flag.Float64("gamma", -1, "Focal loss gamma (0 is valid; negative keeps the config value)")
	drwEpochs := flag.Int("drw-epochs", 0, "Epoch at which drw switches to reweighting")
	epochs := flag.Int("epochs", 0, "Number of training epochs")
	batchSize := flag.Int("batch-size", 0, "Batch size")
	lr := flag.Float64("lr", 0, "Learning rate")
	seed := flag.Int64("seed", 0, "PRNG seed")
	logEvery := flag.Int("log-every", 0, "Log every N steps")

	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	cfg.ApplyOverrides(config.Overrides{
		Dataset:   *dataSet,
		DataPath:  *dataPath,
		Rule:      *rule,
		Gamma:     *gamma,
		DRWEpochs: *drwEpochs,
		Epochs:    *epochs,
		BatchSize: *batchSize,
		LR:        *lr,
		Seed:      *seed,
		LogEvery:  *logEvery,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	train, val, test, inputSize, numClasses, err := buildSources(cfg)
	if err != nil {
		log.Fatalf("failed to build dataset: %v", err)
	}

	freq, err := classweight.CountFrequencies(train, numClasses)
	if err != nil {
		log.Fatalf("failed to count class frequencies: %v", err)
	}
	log.Printf("dataset=%s classes=%d class_frequency=%v", cfg.Dataset, numClasses, freq)

	parsedRule, err := classweight.ParseRule(cfg.Rule)
	if err != nil {
		log.Fatalf("invalid rule: %v", err)
	}
	schedule, err := classweight.NewSchedule(parsedRule, freq, cfg.BetaReweight, cfg.DRWEpochs)
	if err != nil {
		log.Fatalf("failed to build weight schedule: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t, err := trainer.New(trainer.RunConfig{
		Model:       model.NewLinear(numClasses, inputSize, cfg.Seed),
		Schedule:    schedule,
		Gamma:       cfg.Gamma,
		Epochs:      cfg.Epochs,
		BatchSize:   cfg.BatchSize,
		LR:          cfg.LR,
		WeightDecay: cfg.WeightDecay,
		LogEvery:    cfg.LogEvery,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		log.Fatalf("failed to build trainer: %v", err)
	}

	if err := t.Run(ctx, train, val, test); err != nil {
		log.Fatalf("training failed: %v", err)
	}
}

func buildSources(cfg *config.Config) (train, val, test dataset.Source, inputSize, numClasses int, err error) {
	switch cfg.Dataset {
	case "cifar10":
		src, err := dataset.LoadCIFAR10(cfg.DataPath)
		if err != nil {
			return nil, nil, nil, 0, 0, err
		}
		// Input width is fixed by the record format; num_classes == 10 is
		// enforced by config validation.
		return src, nil, nil, 3 * 32 * 32, cfg.NumClasses, nil
	default:
		counts, err := dataset.ImbalancedCounts(cfg.TrainSamples, cfg.NumClasses, cfg.ImbalanceRatio)
		if err != nil {
			return nil, nil, nil, 0, 0, err
		}
		train, err := dataset.NewSynthetic(dataset.SyntheticOptions{
			ClassCounts: counts,
			FeatureSize: cfg.FeatureSize,
			Seed:        cfg.Seed,
			CenterSeed:  cfg.Seed,
		})
		if err != nil {
			return nil, nil, nil, 0, 0, err
		}
		// Held-out splits share the class profile but not the noise draws.
		evalCounts := make([]int, len(counts))
		for c := range counts {
			evalCounts[c] = counts[c]/5 + 1
		}
		val, err := dataset.NewSynthetic(dataset.SyntheticOptions{
			ClassCounts: evalCounts,
			FeatureSize: cfg.FeatureSize,
			Seed:        cfg.Seed + 1,
			CenterSeed:  cfg.Seed,
		})
		if err != nil {
			return nil, nil, nil, 0, 0, err
		}
		test, err := dataset.NewSynthetic(dataset.SyntheticOptions{
			ClassCounts: evalCounts,
			FeatureSize: cfg.FeatureSize,
			Seed:        cfg.Seed + 2,
			CenterSeed:  cfg.Seed,
		})
		if err != nil {
			return nil, nil, nil, 0, 0, err
		}
		return train, val, test, cfg.FeatureSize, cfg.NumClasses, nil
	}
}
