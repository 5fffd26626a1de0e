package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Config captures the runtime knobs for a training run. FeatureSize,
// TrainSamples and ImbalanceRatio shape the synthetic dataset only; the
// cifar10 dataset fixes its own input width and class count.
type Config struct {
	Dataset        string   `yaml:"dataset"`
	DataPath       string   `yaml:"data_path"`
	NumClasses     int      `yaml:"num_classes"`
	FeatureSize    int      `yaml:"feature_size"`
	TrainSamples   int      `yaml:"train_samples"`
	ImbalanceRatio float64  `yaml:"imbalance_ratio"`
	Gamma          float64  `yaml:"gamma"`
	Rule           string   `yaml:"rule"`
	BetaReweight   float64  `yaml:"beta_reweight"`
	DRWEpochs      int      `yaml:"drw_epochs"`
	Epochs         int      `yaml:"epochs"`
	BatchSize      int      `yaml:"batch_size"`
	LR             float64  `yaml:"lr"`
	WeightDecay    float64  `yaml:"weight_decay"`
	Seed           int64    `yaml:"seed"`
	LogEvery       int      `yaml:"log_every"`
	Metrics        []string `yaml:"metrics"`
}

// Default returns the config used when a key is absent from the file.
func Default() *Config {
	return &Config{
		Dataset:        "synthetic",
		NumClasses:     10,
		FeatureSize:    64,
		TrainSamples:   2000,
		ImbalanceRatio: 10,
		Gamma:          0.5,
		Rule:           "reweight",
		BetaReweight:   0.9999,
		DRWEpochs:      160,
		Epochs:         10,
		BatchSize:      64,
		LR:             1e-3,
		Seed:           42,
		LogEvery:       50,
		Metrics:        []string{"accuracy"},
	}
}

// Overrides captures CLI supplied values. Gamma uses a negative sentinel for
// "not supplied" because 0 is a valid focusing exponent; every other field
// treats its zero value as unset.
type Overrides struct {
	Dataset   string
	DataPath  string
	Rule      string
	Gamma     float64
	DRWEpochs int
	Epochs    int
	BatchSize int
	LR        float64
	Seed      int64
	LogEvery  int
}

// Load reads and validates a Config from YAML.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := parseYAML(f)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Dataset != "" {
		c.Dataset = o.Dataset
	}
	if o.DataPath != "" {
		c.DataPath = o.DataPath
	}
	if o.Rule != "" {
		c.Rule = o.Rule
	}
	if o.Gamma >= 0 {
		c.Gamma = o.Gamma
	}
	if o.DRWEpochs > 0 {
		c.DRWEpochs = o.DRWEpochs
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.LR > 0 {
		c.LR = o.LR
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.LogEvery > 0 {
		c.LogEvery = o.LogEvery
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	switch c.Dataset {
	case "synthetic":
		if c.TrainSamples <= 0 {
			return fmt.Errorf("train_samples must be > 0 (got %d)", c.TrainSamples)
		}
		if c.FeatureSize <= 0 {
			return fmt.Errorf("feature_size must be > 0 (got %d)", c.FeatureSize)
		}
		if c.ImbalanceRatio < 1 {
			return fmt.Errorf("imbalance_ratio must be >= 1 (got %g)", c.ImbalanceRatio)
		}
	case "cifar10":
		if c.DataPath == "" {
			return errors.New("data_path is required for the cifar10 dataset")
		}
		if c.NumClasses != 10 {
			return fmt.Errorf("num_classes must be 10 for the cifar10 dataset (got %d)", c.NumClasses)
		}
	default:
		return fmt.Errorf("unknown dataset %q (want synthetic or cifar10)", c.Dataset)
	}
	switch c.Rule {
	case "none", "reweight", "drw":
	default:
		return fmt.Errorf("unsupported rule %q (want none, reweight or drw)", c.Rule)
	}
	if c.NumClasses <= 0 {
		return fmt.Errorf("num_classes must be > 0 (got %d)", c.NumClasses)
	}
	if c.Gamma < 0 {
		return fmt.Errorf("gamma must be >= 0 (got %g)", c.Gamma)
	}
	if c.BetaReweight < 0 || c.BetaReweight >= 1 {
		return fmt.Errorf("beta_reweight must be in [0, 1) (got %g)", c.BetaReweight)
	}
	if c.DRWEpochs < 0 {
		return fmt.Errorf("drw_epochs must be >= 0 (got %d)", c.DRWEpochs)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.LR <= 0 {
		return fmt.Errorf("lr must be > 0 (got %g)", c.LR)
	}
	if c.WeightDecay < 0 {
		return fmt.Errorf("weight_decay must be >= 0 (got %g)", c.WeightDecay)
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 50
	}
	return nil
}

func parseYAML(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: missing ':'", lineNo)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, "\"'")
		var err error
		switch key {
		case "dataset":
			cfg.Dataset = value
		case "data_path":
			cfg.DataPath = value
		case "rule":
			cfg.Rule = value
		case "num_classes":
			cfg.NumClasses, err = atoi(lineNo, key, value)
		case "feature_size":
			cfg.FeatureSize, err = atoi(lineNo, key, value)
		case "train_samples":
			cfg.TrainSamples, err = atoi(lineNo, key, value)
		case "imbalance_ratio":
			cfg.ImbalanceRatio, err = atof(lineNo, key, value)
		case "gamma":
			cfg.Gamma, err = atof(lineNo, key, value)
		case "beta_reweight":
			cfg.BetaReweight, err = atof(lineNo, key, value)
		case "drw_epochs":
			cfg.DRWEpochs, err = atoi(lineNo, key, value)
		case "epochs":
			cfg.Epochs, err = atoi(lineNo, key, value)
		case "batch_size":
			cfg.BatchSize, err = atoi(lineNo, key, value)
		case "lr":
			cfg.LR, err = atof(lineNo, key, value)
		case "weight_decay":
			cfg.WeightDecay, err = atof(lineNo, key, value)
		case "seed":
			cfg.Seed, err = strconv.ParseInt(value, 10, 64)
			if err != nil {
				err = fmt.Errorf("line %d: seed: %w", lineNo, err)
			}
		case "log_every":
			cfg.LogEvery, err = atoi(lineNo, key, value)
		case "metrics":
			cfg.Metrics = nil
			for _, name := range strings.Split(value, ",") {
				name = strings.TrimSpace(name)
				if name != "" {
					cfg.Metrics = append(cfg.Metrics, name)
				}
			}
		default:
			return nil, fmt.Errorf("line %d: unknown key %s", lineNo, key)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func atoi(lineNo int, key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("line %d: %s: %w", lineNo, key, err)
	}
	return v, nil
}

func atof(lineNo int, key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: %s: %w", lineNo, key, err)
	}
	return v, nil
}
