package nanopeft

import (
	"fmt"
	"os"
)

// Config holds the configuration for a fine-tuning validation run
type Config struct {
	ModelDir                string
	OutputDir               string
	NumTrainEpochs          int
	PerDeviceTrainBatchSize int
	GradientAccumulation    int
	LearningRate            float64
	SaveSteps               int
	LoggingSteps            int
	EvalEveryEpoch          bool
	ShuffleSeed             int64
	TrainFraction           float64
}

// ConfigOption is a functional option for Config
type ConfigOption func(*Config)

// NewConfig creates a new Config with default values
func NewConfig(modelDir string, opts ...ConfigOption) *Config {
	c := &Config{
		ModelDir:                modelDir,
		OutputDir:               "./validation_output",
		NumTrainEpochs:          10,
		PerDeviceTrainBatchSize: 4,
		GradientAccumulation:    4,
		LearningRate:            1e-4,
		SaveSteps:               2,
		LoggingSteps:            3,
		EvalEveryEpoch:          true,
		ShuffleSeed:             42,
		TrainFraction:           0.8,
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.validate(); err != nil {
		panic(err)
	}

	return c
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	if _, err := os.Stat(c.ModelDir); os.IsNotExist(err) {
		return fmt.Errorf("model directory does not exist: %s", c.ModelDir)
	}

	if c.NumTrainEpochs < 1 {
		return fmt.Errorf("num_train_epochs must be >= 1")
	}

	if c.PerDeviceTrainBatchSize < 1 {
		return fmt.Errorf("per_device_train_batch_size must be >= 1")
	}

	if c.GradientAccumulation < 1 {
		return fmt.Errorf("gradient_accumulation must be >= 1")
	}

	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be > 0")
	}

	if c.TrainFraction <= 0 || c.TrainFraction >= 1 {
		return fmt.Errorf("train_fraction must be in (0, 1)")
	}

	return nil
}

// WithOutputDir sets the directory receiving checkpoints and the final adapter
func WithOutputDir(dir string) ConfigOption {
	return func(c *Config) {
		c.OutputDir = dir
	}
}

// WithNumTrainEpochs sets the number of training epochs
func WithNumTrainEpochs(n int) ConfigOption {
	return func(c *Config) {
		c.NumTrainEpochs = n
	}
}

// WithTrainBatchSize sets the per-device training batch size
func WithTrainBatchSize(n int) ConfigOption {
	return func(c *Config) {
		c.PerDeviceTrainBatchSize = n
	}
}

// WithGradientAccumulation sets the number of gradient accumulation steps
func WithGradientAccumulation(n int) ConfigOption {
	return func(c *Config) {
		c.GradientAccumulation = n
	}
}

// WithLearningRate sets the optimizer learning rate
func WithLearningRate(lr float64) ConfigOption {
	return func(c *Config) {
		c.LearningRate = lr
	}
}

// WithSaveSteps sets the checkpoint interval in optimizer steps
func WithSaveSteps(n int) ConfigOption {
	return func(c *Config) {
		c.SaveSteps = n
	}
}

// WithLoggingSteps sets the logging interval in optimizer steps
func WithLoggingSteps(n int) ConfigOption {
	return func(c *Config) {
		c.LoggingSteps = n
	}
}

// WithEvalEveryEpoch sets whether evaluation loss is computed after each epoch
func WithEvalEveryEpoch(b bool) ConfigOption {
	return func(c *Config) {
		c.EvalEveryEpoch = b
	}
}

// WithShuffleSeed sets the deterministic dataset shuffle seed
func WithShuffleSeed(seed int64) ConfigOption {
	return func(c *Config) {
		c.ShuffleSeed = seed
	}
}

// WithTrainFraction sets the train/eval split fraction
func WithTrainFraction(f float64) ConfigOption {
	return func(c *Config) {
		c.TrainFraction = f
	}
}
