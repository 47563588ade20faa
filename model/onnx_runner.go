package model

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXRunner computes next-token logits through an ONNX Runtime session
// over an exported causal LM graph
type ONNXRunner struct {
	session *ort.DynamicAdvancedSession
	options *ort.SessionOptions
}

// NewONNXRunner opens a session over model.onnx. The runtime environment
// is initialized once per process.
func NewONNXRunner(modelPath string) (*ONNXRunner, error) {
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	if err := options.SetIntraOpNumThreads(4); err != nil {
		options.Destroy()
		return nil, fmt.Errorf("failed to set threads: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{"input_ids"},
		[]string{"logits"},
		options,
	)
	if err != nil {
		options.Destroy()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &ONNXRunner{session: session, options: options}, nil
}

// Logits runs the graph over the full token sequence and returns the
// logits of the last position
func (r *ONNXRunner) Logits(tokenIDs []int) ([]float32, error) {
	if len(tokenIDs) == 0 {
		return nil, fmt.Errorf("empty token sequence")
	}

	inputData := make([]int64, len(tokenIDs))
	for i, id := range tokenIDs {
		inputData[i] = int64(id)
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(tokenIDs))), inputData)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := r.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	logitsTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected logits tensor type")
	}

	shape := logitsTensor.GetShape()
	vocabSize := int(shape[len(shape)-1])
	data := logitsTensor.GetData()
	if len(data) < vocabSize {
		return nil, fmt.Errorf("logits output shorter than vocab size")
	}

	last := make([]float32, vocabSize)
	copy(last, data[len(data)-vocabSize:])
	return last, nil
}

// Close releases the session and its options
func (r *ONNXRunner) Close() error {
	if r.session != nil {
		r.session.Destroy()
		r.session = nil
	}
	if r.options != nil {
		r.options.Destroy()
		r.options = nil
	}
	return nil
}
