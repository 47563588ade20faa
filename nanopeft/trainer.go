package nanopeft

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/schollz/progressbar/v3"
)

// FormatFunc renders a record into the string the trainer optimizes on
type FormatFunc func(FAQRecord) string

// StepInfo describes one completed optimizer step
type StepInfo struct {
	Step       int
	TotalSteps int
	Loss       float64
}

// TrainReport summarizes a completed training run
type TrainReport struct {
	Steps          int
	FinalTrainLoss float64
	EvalLosses     []float64
}

// TrainingBackend is the external supervised fine-tuning capability.
// Implementations:
// - in-process LoRA training on an autograd graph
// - HTTP calls to a remote PEFT fine-tuning service
type TrainingBackend interface {
	// Train runs blocking iterative optimization over the partitions,
	// invoking onStep after every optimizer step
	Train(train, eval *Dataset, format FormatFunc, onStep func(StepInfo)) (*TrainReport, error)

	// SaveAdapter serializes the current adapter weights to a directory
	SaveAdapter(dir string) error
}

// Trainer orchestrates supervised fine-tuning: it owns checkpointing,
// step logging, and progress display around a TrainingBackend.
type Trainer struct {
	config  *Config
	backend TrainingBackend
	format  FormatFunc
	printer *Printer
}

// NewTrainer creates a new trainer
func NewTrainer(config *Config, backend TrainingBackend, format FormatFunc, printer *Printer) *Trainer {
	return &Trainer{
		config:  config,
		backend: backend,
		format:  format,
		printer: printer,
	}
}

// Train runs the configured number of epochs. Checkpoints are written
// every SaveSteps optimizer steps; step losses are printed every
// LoggingSteps. The known argument incompatibility is surfaced with its
// remediation hint; every failure is fatal to the caller.
func (t *Trainer) Train(trainSet, evalSet *Dataset) (*TrainReport, error) {
	if err := os.MkdirAll(t.config.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := t.writeManifest(trainSet, evalSet); err != nil {
		return nil, err
	}

	stepsPerEpoch := (trainSet.Len() + t.config.PerDeviceTrainBatchSize - 1) / t.config.PerDeviceTrainBatchSize
	totalSteps := stepsPerEpoch * t.config.NumTrainEpochs

	bar := progressbar.NewOptions(totalSteps,
		progressbar.OptionSetDescription("Training"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	onStep := func(info StepInfo) {
		bar.Add(1)
		bar.Describe(fmt.Sprintf("Training [loss: %.4f]", info.Loss))

		if t.config.LoggingSteps > 0 && info.Step%t.config.LoggingSteps == 0 {
			t.printer.Printf("\nstep %d/%d | loss %.4f\n", info.Step, info.TotalSteps, info.Loss)
		}

		if t.config.SaveSteps > 0 && info.Step%t.config.SaveSteps == 0 && info.Step < info.TotalSteps {
			dir := filepath.Join(t.config.OutputDir, fmt.Sprintf("checkpoint-%d", info.Step))
			if err := t.backend.SaveAdapter(dir); err != nil {
				t.printer.Printf("\ncheckpoint at step %d failed: %v\n", info.Step, err)
			}
		}
	}

	report, err := t.backend.Train(trainSet, evalSet, t.format, onStep)
	bar.Finish()
	if err != nil {
		if IsArgMismatch(err) {
			t.printer.Println("")
			t.printer.Println("Detected a known incompatibility between the training capability and the adapter configuration.")
			t.printer.Println(ArgMismatchHint)
			return nil, fmt.Errorf("training failed: %w", err)
		}
		return nil, fmt.Errorf("training failed: %w", err)
	}

	return report, nil
}

// writeManifest records the run hyperparameters and a fingerprint of the
// formatted training corpus next to the checkpoints, so a saved adapter
// can be matched back to the exact data it was trained on
func (t *Trainer) writeManifest(trainSet, evalSet *Dataset) error {
	manifest := struct {
		NumTrainEpochs       int     `json:"num_train_epochs"`
		TrainBatchSize       int     `json:"per_device_train_batch_size"`
		GradientAccumulation int     `json:"gradient_accumulation_steps"`
		LearningRate         float64 `json:"learning_rate"`
		TrainExamples        int     `json:"train_examples"`
		EvalExamples         int     `json:"eval_examples"`
		CorpusFingerprint    string  `json:"corpus_fingerprint"`
	}{
		NumTrainEpochs:       t.config.NumTrainEpochs,
		TrainBatchSize:       t.config.PerDeviceTrainBatchSize,
		GradientAccumulation: t.config.GradientAccumulation,
		LearningRate:         t.config.LearningRate,
		TrainExamples:        trainSet.Len(),
		EvalExamples:         evalSet.Len(),
		CorpusFingerprint:    fmt.Sprintf("%016x", t.corpusFingerprint(trainSet)),
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run manifest: %w", err)
	}
	path := filepath.Join(t.config.OutputDir, "run_manifest.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run manifest: %w", err)
	}
	return nil
}

// corpusFingerprint hashes the formatted training examples in order
func (t *Trainer) corpusFingerprint(ds *Dataset) uint64 {
	d := xxhash.New()
	for _, record := range ds.Records {
		d.WriteString(t.format(record))
		d.Write([]byte{0})
	}
	return d.Sum64()
}

// SaveModel serializes the trained adapter into a named directory under
// the output directory and returns its path
func (t *Trainer) SaveModel(name string) (string, error) {
	dir := filepath.Join(t.config.OutputDir, name)
	if err := t.backend.SaveAdapter(dir); err != nil {
		return "", fmt.Errorf("failed to save model: %w", err)
	}
	return dir, nil
}
