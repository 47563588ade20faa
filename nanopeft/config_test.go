package nanopeft

import (
	"testing"
)

func TestConfigDefaults(t *testing.T) {
	config := NewConfig(t.TempDir())

	if config.NumTrainEpochs != 10 {
		t.Errorf("Expected 10 epochs, got %d", config.NumTrainEpochs)
	}
	if config.PerDeviceTrainBatchSize != 4 {
		t.Errorf("Expected batch size 4, got %d", config.PerDeviceTrainBatchSize)
	}
	if config.GradientAccumulation != 4 {
		t.Errorf("Expected gradient accumulation 4, got %d", config.GradientAccumulation)
	}
	if config.LearningRate != 1e-4 {
		t.Errorf("Expected learning rate 1e-4, got %g", config.LearningRate)
	}
	if config.SaveSteps != 2 {
		t.Errorf("Expected save steps 2, got %d", config.SaveSteps)
	}
	if config.LoggingSteps != 3 {
		t.Errorf("Expected logging steps 3, got %d", config.LoggingSteps)
	}
	if !config.EvalEveryEpoch {
		t.Errorf("Expected per-epoch evaluation on by default")
	}
	if config.ShuffleSeed != 42 {
		t.Errorf("Expected shuffle seed 42, got %d", config.ShuffleSeed)
	}
	if config.TrainFraction != 0.8 {
		t.Errorf("Expected train fraction 0.8, got %g", config.TrainFraction)
	}
	if config.OutputDir != "./validation_output" {
		t.Errorf("Expected default output dir, got %s", config.OutputDir)
	}
}

func TestConfigOptions(t *testing.T) {
	config := NewConfig(t.TempDir(),
		WithOutputDir("./quick_test_output"),
		WithNumTrainEpochs(3),
		WithTrainBatchSize(2),
		WithLoggingSteps(1),
		WithSaveSteps(1),
		WithEvalEveryEpoch(false),
	)

	if config.NumTrainEpochs != 3 {
		t.Errorf("Expected 3 epochs, got %d", config.NumTrainEpochs)
	}
	if config.PerDeviceTrainBatchSize != 2 {
		t.Errorf("Expected batch size 2, got %d", config.PerDeviceTrainBatchSize)
	}
	if config.OutputDir != "./quick_test_output" {
		t.Errorf("Expected quick test output dir, got %s", config.OutputDir)
	}
	if config.EvalEveryEpoch {
		t.Errorf("Expected per-epoch evaluation disabled")
	}
}

func TestConfigInvalidPanics(t *testing.T) {
	tests := []struct {
		name string
		opts []ConfigOption
	}{
		{"zero epochs", []ConfigOption{WithNumTrainEpochs(0)}},
		{"zero batch", []ConfigOption{WithTrainBatchSize(0)}},
		{"negative lr", []ConfigOption{WithLearningRate(-1)}},
		{"bad fraction", []ConfigOption{WithTrainFraction(1.5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("Expected panic for %s", tt.name)
				}
			}()
			NewConfig(t.TempDir(), tt.opts...)
		})
	}
}

func TestConfigMissingModelDirPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("Expected panic for missing model directory")
		}
	}()
	NewConfig("/nonexistent/model/dir")
}

func TestLoraConfigDefaults(t *testing.T) {
	lora := NewLoraConfig()

	if lora.Rank != 16 {
		t.Errorf("Expected rank 16, got %d", lora.Rank)
	}
	if lora.Alpha != 32 {
		t.Errorf("Expected alpha 32, got %d", lora.Alpha)
	}
	if lora.Dropout != 0.1 {
		t.Errorf("Expected dropout 0.1, got %g", lora.Dropout)
	}
	if lora.Bias != "none" {
		t.Errorf("Expected bias none, got %s", lora.Bias)
	}
	if lora.TaskType != "CAUSAL_LM" {
		t.Errorf("Expected task type CAUSAL_LM, got %s", lora.TaskType)
	}
	if lora.Scaling() != 2 {
		t.Errorf("Expected scaling 2, got %g", lora.Scaling())
	}
}

func TestLoraConfigModulesToSave(t *testing.T) {
	lora := NewLoraConfig(WithModulesToSave("lm_head", "embed_token"))

	if len(lora.ModulesToSave) != 2 {
		t.Fatalf("Expected 2 modules to save, got %d", len(lora.ModulesToSave))
	}
	if lora.ModulesToSave[0] != "lm_head" || lora.ModulesToSave[1] != "embed_token" {
		t.Errorf("Unexpected modules to save: %v", lora.ModulesToSave)
	}
}
