package tensor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoRAPair holds the low-rank factors for one adapted projection.
// A is [rank, in], B is [out, rank]; the weight delta is B·A.
type LoRAPair struct {
	A *Tensor
	B *Tensor
}

// Delta computes the scaled weight delta scale·(B·A) as an [in, out]
// matrix, matching the row-major x@W layout of the model weights
func (p *LoRAPair) Delta(scale float32) *Tensor {
	delta := MatMul(p.B, p.A) // [out, in]
	out := Transpose(delta)   // [in, out]
	for i := range out.Data {
		out.Data[i] *= scale
	}
	return out
}

// AdapterConfig is the serialized adapter hyperparameter record
type AdapterConfig struct {
	Rank          int      `json:"r"`
	Alpha         int      `json:"lora_alpha"`
	Dropout       float64  `json:"lora_dropout"`
	Bias          string   `json:"bias"`
	TaskType      string   `json:"task_type"`
	TargetModules []string `json:"target_modules"`
	ModulesToSave []string `json:"modules_to_save,omitempty"`
}

// Adapter is a trained low-rank adapter plus any fully trained
// modules-to-save, keyed by the module names they attach to
type Adapter struct {
	Config  AdapterConfig
	Pairs   map[string]*LoRAPair
	Modules map[string]*Tensor
}

// Scaling returns the merge scaling factor alpha/rank
func (a *Adapter) Scaling() float32 {
	return float32(a.Config.Alpha) / float32(a.Config.Rank)
}

// Merge folds the adapter into the model in place: for every adapted
// projection W' = W + (alpha/rank)·B·A, and every module-to-save replaces
// its base weight outright
func (a *Adapter) Merge(m *Model) error {
	scale := a.Scaling()

	for name, pair := range a.Pairs {
		w, err := m.projectionWeight(name)
		if err != nil {
			return err
		}
		delta := pair.Delta(scale)
		if delta.Size() != w.Size() {
			return fmt.Errorf("adapter %s: delta shape %v does not match weight shape %v", name, delta.Shape, w.Shape)
		}
		AddScaled(w, delta, 1)
	}

	for name, weight := range a.Modules {
		switch name {
		case "lm_head":
			m.LMHead = Transpose(weight)
		case "embed_token", "wte":
			m.TokenEmbedding = weight.Clone()
		default:
			return fmt.Errorf("unknown module to save: %s", name)
		}
	}

	return nil
}

// projectionWeight resolves an adapter target name like "h.3.attn.q" to
// the base weight tensor it adapts
func (m *Model) projectionWeight(name string) (*Tensor, error) {
	var layer int
	var proj string
	if _, err := fmt.Sscanf(name, "h.%d.attn.%s", &layer, &proj); err != nil {
		return nil, fmt.Errorf("unrecognized adapter target: %s", name)
	}
	if layer < 0 || layer >= len(m.Blocks) {
		return nil, fmt.Errorf("adapter target %s: layer out of range", name)
	}

	attn := m.Blocks[layer].Attn
	switch proj {
	case "q":
		return attn.QWeight, nil
	case "k":
		return attn.KWeight, nil
	case "v":
		return attn.VWeight, nil
	case "o":
		return attn.OWeight, nil
	default:
		return nil, fmt.Errorf("adapter target %s: unknown projection", name)
	}
}

// Save writes the adapter as adapter_model.safetensors plus
// adapter_config.json in the given directory
func (a *Adapter) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create adapter directory: %w", err)
	}

	tensors := make(map[string]*Tensor, 2*len(a.Pairs)+len(a.Modules))
	for name, pair := range a.Pairs {
		tensors[name+".lora_A"] = pair.A
		tensors[name+".lora_B"] = pair.B
	}
	for name, weight := range a.Modules {
		tensors[name+".weight"] = weight
	}

	if err := SaveTensors(filepath.Join(dir, "adapter_model.safetensors"), tensors); err != nil {
		return err
	}

	configBytes, err := json.MarshalIndent(a.Config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode adapter config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "adapter_config.json"), configBytes, 0o644); err != nil {
		return fmt.Errorf("failed to write adapter config: %w", err)
	}

	return nil
}

// LoadAdapter reads an adapter directory written by Save
func LoadAdapter(dir string) (*Adapter, error) {
	configBytes, err := os.ReadFile(filepath.Join(dir, "adapter_config.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read adapter config: %w", err)
	}

	adapter := &Adapter{
		Pairs:   make(map[string]*LoRAPair),
		Modules: make(map[string]*Tensor),
	}
	if err := json.Unmarshal(configBytes, &adapter.Config); err != nil {
		return nil, fmt.Errorf("failed to parse adapter config: %w", err)
	}
	if adapter.Config.Rank < 1 {
		return nil, fmt.Errorf("invalid adapter config: rank %d", adapter.Config.Rank)
	}

	tensors, err := LoadTensors(filepath.Join(dir, "adapter_model.safetensors"))
	if err != nil {
		return nil, err
	}

	for name, t := range tensors {
		switch {
		case strings.HasSuffix(name, ".lora_A"):
			target := strings.TrimSuffix(name, ".lora_A")
			pair := adapter.pair(target)
			pair.A = t
		case strings.HasSuffix(name, ".lora_B"):
			target := strings.TrimSuffix(name, ".lora_B")
			pair := adapter.pair(target)
			pair.B = t
		case strings.HasSuffix(name, ".weight"):
			adapter.Modules[strings.TrimSuffix(name, ".weight")] = t
		default:
			return nil, fmt.Errorf("unrecognized adapter tensor: %s", name)
		}
	}

	for target, pair := range adapter.Pairs {
		if pair.A == nil || pair.B == nil {
			return nil, fmt.Errorf("adapter target %s is missing a factor", target)
		}
	}

	return adapter, nil
}

func (a *Adapter) pair(target string) *LoRAPair {
	if p, ok := a.Pairs[target]; ok {
		return p
	}
	p := &LoRAPair{}
	a.Pairs[target] = p
	return p
}
