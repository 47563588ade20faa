package model

import (
	"fmt"
	"os"
	"path/filepath"

	"nano-peft-go/model/tensor"
)

// NativeRunner computes next-token logits with the pure Go tensor model.
// It is the backend that can absorb a trained adapter, so the fine-tuned
// side of the comparison always runs through it.
type NativeRunner struct {
	model *tensor.Model
}

// NewNativeRunner loads a causal LM from a model directory
func NewNativeRunner(modelDir string) (*NativeRunner, error) {
	m, err := tensor.LoadModel(modelDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	return &NativeRunner{model: m}, nil
}

// NewNativeRunnerWithAdapter loads a base model and merges a trained
// adapter directory into it
func NewNativeRunnerWithAdapter(modelDir, adapterDir string) (*NativeRunner, error) {
	runner, err := NewNativeRunner(modelDir)
	if err != nil {
		return nil, err
	}
	if err := runner.ApplyAdapter(adapterDir); err != nil {
		return nil, err
	}
	return runner, nil
}

// ApplyAdapter merges the adapter at dir into the loaded weights
func (r *NativeRunner) ApplyAdapter(dir string) error {
	if _, err := os.Stat(filepath.Join(dir, "adapter_config.json")); err != nil {
		return fmt.Errorf("no adapter found in %s: %w", dir, err)
	}
	adapter, err := tensor.LoadAdapter(dir)
	if err != nil {
		return fmt.Errorf("failed to load adapter: %w", err)
	}
	if err := adapter.Merge(r.model); err != nil {
		return fmt.Errorf("failed to merge adapter: %w", err)
	}
	return nil
}

// Model exposes the underlying tensor model
func (r *NativeRunner) Model() *tensor.Model {
	return r.model
}

// NumParameters returns the model's parameter count
func (r *NativeRunner) NumParameters() int {
	return r.model.NumParameters()
}

// Logits runs a forward pass and returns next-token logits
func (r *NativeRunner) Logits(tokenIDs []int) ([]float32, error) {
	if len(tokenIDs) == 0 {
		return nil, fmt.Errorf("empty token sequence")
	}
	if len(tokenIDs) > r.model.Config.MaxSeqLen && r.model.Config.MaxSeqLen > 0 {
		// Keep the tail; the oldest context falls off.
		tokenIDs = tokenIDs[len(tokenIDs)-r.model.Config.MaxSeqLen:]
	}
	return r.model.Logits(tokenIDs), nil
}

// Close cleans up resources
func (r *NativeRunner) Close() error {
	r.model = nil
	return nil
}
