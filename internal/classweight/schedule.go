package classweight

import "fmt"

// Schedule owns the weight vectors for a training run. Both vectors are
// computed once at construction; OnEpochStart flips which one is active, so
// an epoch never mixes vectors mid-flight.
type Schedule struct {
	rule       Rule
	drwEpochs  int
	uniform    []float64
	reweighted []float64
	active     []float64
}

// NewSchedule precomputes the weight vectors for rule. freq is required for
// RuleReweight and RuleDRW and ignored for RuleNone. drwEpochs is the epoch
// index at which RuleDRW switches to the reweighted vector.
func NewSchedule(rule Rule, freq []int, beta float64, drwEpochs int) (*Schedule, error) {
	switch rule {
	case RuleNone:
		return &Schedule{rule: rule}, nil
	case RuleReweight:
		w, err := EffectiveNumberWeights(freq, beta)
		if err != nil {
			return nil, err
		}
		return &Schedule{rule: rule, reweighted: w, active: w}, nil
	case RuleDRW:
		if drwEpochs < 0 {
			return nil, fmt.Errorf("classweight: drw epochs must be >= 0 (got %d)", drwEpochs)
		}
		w, err := EffectiveNumberWeights(freq, beta)
		if err != nil {
			return nil, err
		}
		uniform := make([]float64, len(freq))
		for c := range uniform {
			uniform[c] = 1
		}
		s := &Schedule{rule: rule, drwEpochs: drwEpochs, uniform: uniform, reweighted: w, active: uniform}
		if drwEpochs == 0 {
			s.active = s.reweighted
		}
		return s, nil
	}
	return nil, fmt.Errorf("classweight: unsupported rule %d", int(rule))
}

// OnEpochStart selects the weight vector in effect for the given epoch.
// The trainer calls it before the first batch of every epoch; it is
// idempotent and never reverts to the uniform phase.
func (s *Schedule) OnEpochStart(epoch int) {
	if s.rule == RuleDRW && epoch >= s.drwEpochs {
		s.active = s.reweighted
	}
}

// Active returns the weight vector currently in effect. It is nil for
// RuleNone, meaning no weighting. Callers must not mutate it.
func (s *Schedule) Active() []float64 {
	return s.active
}

// Rule reports the strategy the schedule was built with.
func (s *Schedule) Rule() Rule {
	return s.rule
}
