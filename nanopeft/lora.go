package nanopeft

import "fmt"

// LoraConfig holds the low-rank adapter hyperparameters
type LoraConfig struct {
	Rank          int
	Alpha         int
	Dropout       float64
	Bias          string
	TaskType      string
	ModulesToSave []string
}

// LoraOption is a functional option for LoraConfig
type LoraOption func(*LoraConfig)

// NewLoraConfig creates a new LoraConfig with default values
func NewLoraConfig(opts ...LoraOption) *LoraConfig {
	lc := &LoraConfig{
		Rank:     16,
		Alpha:    32,
		Dropout:  0.1,
		Bias:     "none",
		TaskType: "CAUSAL_LM",
	}

	for _, opt := range opts {
		opt(lc)
	}

	if err := lc.validate(); err != nil {
		panic(err)
	}

	return lc
}

// validate checks if the adapter configuration is valid
func (lc *LoraConfig) validate() error {
	if lc.Rank < 1 {
		return fmt.Errorf("lora rank must be >= 1")
	}
	if lc.Alpha < 1 {
		return fmt.Errorf("lora alpha must be >= 1")
	}
	if lc.Dropout < 0 || lc.Dropout >= 1 {
		return fmt.Errorf("lora dropout must be in [0, 1)")
	}
	return nil
}

// Scaling returns the adapter scaling factor alpha/rank applied to the
// low-rank product when merging into base weights
func (lc *LoraConfig) Scaling() float64 {
	return float64(lc.Alpha) / float64(lc.Rank)
}

// WithRank sets the adapter rank
func WithRank(r int) LoraOption {
	return func(lc *LoraConfig) {
		lc.Rank = r
	}
}

// WithAlpha sets the adapter alpha
func WithAlpha(a int) LoraOption {
	return func(lc *LoraConfig) {
		lc.Alpha = a
	}
}

// WithDropout sets the adapter dropout probability
func WithDropout(p float64) LoraOption {
	return func(lc *LoraConfig) {
		lc.Dropout = p
	}
}

// WithModulesToSave marks non-adapter modules whose full weights are
// trained and serialized alongside the adapter
func WithModulesToSave(modules ...string) LoraOption {
	return func(lc *LoraConfig) {
		lc.ModulesToSave = modules
	}
}
