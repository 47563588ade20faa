package tensor

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// tensorInfo describes one tensor entry in a safetensors header
type tensorInfo struct {
	Dtype  string   `json:"dtype"`
	Shape  []int    `json:"shape"`
	Offset [2]int64 `json:"data_offsets"`
}

// weightMapping names the checkpoint tensors for one model family.
// Layer keys are joined as layerPrefix (with the layer index formatted
// in) plus the projection suffix.
type weightMapping struct {
	tokenEmbedding string
	posEmbedding   string // empty for RoPE models
	layerPrefix    string // contains a %d for the layer index
	attnQ          string
	attnK          string // empty when QKV is stored combined
	attnV          string
	attnO          string
	ffnUp          string
	ffnGate        string // empty for GELU models
	ffnDown        string
	attnNorm       string
	ffnNorm        string
	finalNorm      string
	qkvCombined    bool
	transposed     bool // weights stored [out, in] and need transposing
}

// gpt2Mapping covers GPT-2 style checkpoints: combined QKV, learned
// positions, weights already stored [in, out]
func gpt2Mapping() *weightMapping {
	return &weightMapping{
		tokenEmbedding: "wte.weight",
		posEmbedding:   "wpe.weight",
		layerPrefix:    "h.%d",
		attnQ:          ".attn.c_attn.weight",
		attnO:          ".attn.c_proj.weight",
		ffnUp:          ".mlp.c_fc.weight",
		ffnDown:        ".mlp.c_proj.weight",
		attnNorm:       ".ln_1.weight",
		ffnNorm:        ".ln_2.weight",
		finalNorm:      "ln_f.weight",
		qkvCombined:    true,
	}
}

// llamaMapping covers Llama, Mistral, and Qwen2 checkpoints: separate
// q/k/v/o projections in PyTorch [out, in] layout, RMSNorm, SwiGLU
func llamaMapping() *weightMapping {
	return &weightMapping{
		tokenEmbedding: "model.embed_tokens.weight",
		layerPrefix:    "model.layers.%d",
		attnQ:          ".self_attn.q_proj.weight",
		attnK:          ".self_attn.k_proj.weight",
		attnV:          ".self_attn.v_proj.weight",
		attnO:          ".self_attn.o_proj.weight",
		ffnUp:          ".mlp.up_proj.weight",
		ffnGate:        ".mlp.gate_proj.weight",
		ffnDown:        ".mlp.down_proj.weight",
		attnNorm:       ".input_layernorm.weight",
		ffnNorm:        ".post_attention_layernorm.weight",
		finalNorm:      "model.norm.weight",
		transposed:     true,
	}
}

// LoadModel loads a causal LM from a model directory containing
// config.json and model.safetensors. GPT-2 and Llama-family (Llama,
// Mistral, Qwen2) checkpoint layouts are supported.
func LoadModel(dir string) (*Model, error) {
	config, err := loadModelConfig(filepath.Join(dir, "config.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to load model config: %w", err)
	}

	weights, err := LoadTensors(filepath.Join(dir, "model.safetensors"))
	if err != nil {
		return nil, fmt.Errorf("failed to load weights: %w", err)
	}

	mapping := gpt2Mapping()
	if config.LlamaFamily() {
		mapping = llamaMapping()
	}

	model := NewModel(config)

	named := func(name string) (*Tensor, error) {
		if t, ok := weights[name]; ok {
			return t, nil
		}
		if t, ok := weights["transformer."+name]; ok {
			return t, nil
		}
		return nil, fmt.Errorf("tensor not found: %s", name)
	}
	optional := func(name string) *Tensor {
		t, _ := named(name)
		return t
	}
	// oriented loads a projection in x@W orientation, transposing
	// PyTorch [out, in] storage.
	oriented := func(name string) (*Tensor, error) {
		t, err := named(name)
		if err != nil {
			return nil, err
		}
		if mapping.transposed {
			t = Transpose(t)
		}
		return t, nil
	}

	if model.TokenEmbedding, err = named(mapping.tokenEmbedding); err != nil {
		return nil, err
	}
	if mapping.posEmbedding != "" {
		if model.PosEmbedding, err = named(mapping.posEmbedding); err != nil {
			return nil, err
		}
	}

	for i := 0; i < config.NumLayers; i++ {
		prefix := fmt.Sprintf(mapping.layerPrefix, i)
		block := model.Blocks[i]
		attn := block.Attn

		if mapping.qkvCombined {
			qkvW, err := named(prefix + mapping.attnQ)
			if err != nil {
				return nil, err
			}
			qkvB := optional(prefix + biasKey(mapping.attnQ))
			if err := splitQKV(attn, qkvW, qkvB); err != nil {
				return nil, fmt.Errorf("layer %d: %w", i, err)
			}
		} else {
			if attn.QWeight, err = oriented(prefix + mapping.attnQ); err != nil {
				return nil, err
			}
			if attn.KWeight, err = oriented(prefix + mapping.attnK); err != nil {
				return nil, err
			}
			if attn.VWeight, err = oriented(prefix + mapping.attnV); err != nil {
				return nil, err
			}
			attn.QBias = optional(prefix + biasKey(mapping.attnQ))
			attn.KBias = optional(prefix + biasKey(mapping.attnK))
			attn.VBias = optional(prefix + biasKey(mapping.attnV))
		}

		if attn.OWeight, err = oriented(prefix + mapping.attnO); err != nil {
			return nil, err
		}
		attn.OBias = optional(prefix + biasKey(mapping.attnO))

		if block.FFN.W1, err = oriented(prefix + mapping.ffnUp); err != nil {
			return nil, err
		}
		block.FFN.B1 = optional(prefix + biasKey(mapping.ffnUp))
		if mapping.ffnGate != "" {
			if block.FFN.WGate, err = oriented(prefix + mapping.ffnGate); err != nil {
				return nil, err
			}
		}
		if block.FFN.W2, err = oriented(prefix + mapping.ffnDown); err != nil {
			return nil, err
		}
		block.FFN.B2 = optional(prefix + biasKey(mapping.ffnDown))

		if block.LN1.Weight, err = named(prefix + mapping.attnNorm); err != nil {
			return nil, err
		}
		block.LN1.Bias = optional(prefix + biasKey(mapping.attnNorm))
		if block.LN2.Weight, err = named(prefix + mapping.ffnNorm); err != nil {
			return nil, err
		}
		block.LN2.Bias = optional(prefix + biasKey(mapping.ffnNorm))
	}

	model.LNFinal = &LayerNormLayer{Eps: config.normEps()}
	if model.LNFinal.Weight, err = named(mapping.finalNorm); err != nil {
		return nil, err
	}
	model.LNFinal.Bias = optional(biasKey(mapping.finalNorm))

	// LM head is tied to the token embedding unless stored separately.
	if head, err := named("lm_head.weight"); err == nil && !config.TiedEmbedding {
		model.LMHead = Transpose(head)
	} else {
		model.LMHead = Transpose(model.TokenEmbedding)
	}

	return model, nil
}

// biasKey rewrites a ".weight" tensor key to its bias counterpart
func biasKey(weightKey string) string {
	return strings.TrimSuffix(weightKey, ".weight") + ".bias"
}

// loadModelConfig parses the architecture out of config.json, accepting
// both the GPT-2 key names and the newer HF key names
func loadModelConfig(path string) (*ModelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	intField := func(keys ...string) int {
		for _, k := range keys {
			if v, ok := raw[k].(float64); ok {
				return int(v)
			}
		}
		return 0
	}

	config := &ModelConfig{
		VocabSize:  intField("vocab_size"),
		Hidden:     intField("n_embd", "hidden_size"),
		NumLayers:  intField("n_layer", "num_hidden_layers"),
		NumHeads:   intField("n_head", "num_attention_heads"),
		NumKVHeads: intField("num_key_value_heads"),
		FFNDim:     intField("n_inner", "intermediate_size"),
		MaxSeqLen:  intField("n_positions", "max_position_embeddings"),
		EOSTokenID: intField("eos_token_id"),
	}
	if v, ok := raw["model_type"].(string); ok {
		config.ModelType = v
	}
	if v, ok := raw["rope_theta"].(float64); ok {
		config.RopeTheta = v
	}
	if v, ok := raw["layer_norm_epsilon"].(float64); ok {
		config.NormEps = float32(v)
	}
	if v, ok := raw["rms_norm_eps"].(float64); ok {
		config.NormEps = float32(v)
	}
	if v, ok := raw["tie_word_embeddings"].(bool); ok {
		config.TiedEmbedding = v
	}

	if config.VocabSize < 1 || config.Hidden < 1 || config.NumLayers < 1 || config.NumHeads < 1 {
		return nil, fmt.Errorf("invalid model config in %s", path)
	}
	if config.Hidden%config.NumHeads != 0 {
		return nil, fmt.Errorf("hidden size %d not divisible by %d heads", config.Hidden, config.NumHeads)
	}
	if config.NumKVHeads > 0 && config.NumHeads%config.NumKVHeads != 0 {
		return nil, fmt.Errorf("%d heads not divisible by %d KV heads", config.NumHeads, config.NumKVHeads)
	}
	if config.FFNDim == 0 {
		config.FFNDim = 4 * config.Hidden
	}

	return config, nil
}

// splitQKV splits a combined [hidden, 3*hidden] projection into separate
// query, key, and value weights
func splitQKV(attn *Attention, w, b *Tensor) error {
	if len(w.Shape) != 2 || w.Shape[1] != 3*w.Shape[0] {
		return fmt.Errorf("unexpected qkv shape %v", w.Shape)
	}

	hidden := w.Shape[0]
	attn.QWeight = NewTensor(hidden, hidden)
	attn.KWeight = NewTensor(hidden, hidden)
	attn.VWeight = NewTensor(hidden, hidden)

	// Row-major [hidden, 3*hidden]: each row holds q|k|v segments.
	for i := 0; i < hidden; i++ {
		row := w.Data[i*3*hidden : (i+1)*3*hidden]
		copy(attn.QWeight.Data[i*hidden:], row[:hidden])
		copy(attn.KWeight.Data[i*hidden:], row[hidden:2*hidden])
		copy(attn.VWeight.Data[i*hidden:], row[2*hidden:])
	}

	if b != nil && len(b.Data) == 3*hidden {
		attn.QBias = &Tensor{Data: b.Data[:hidden], Shape: []int{hidden}}
		attn.KBias = &Tensor{Data: b.Data[hidden : 2*hidden], Shape: []int{hidden}}
		attn.VBias = &Tensor{Data: b.Data[2*hidden:], Shape: []int{hidden}}
	}

	return nil
}

// LoadTensors reads every tensor from a safetensors file
func LoadTensors(path string) (map[string]*Tensor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("truncated safetensors file: %s", path)
	}

	headerSize := binary.LittleEndian.Uint64(data[:8])
	if uint64(len(data)) < 8+headerSize {
		return nil, fmt.Errorf("truncated safetensors header: %s", path)
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerSize], &header); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	tensorData := data[8+headerSize:]
	tensors := make(map[string]*Tensor, len(header))

	for name, raw := range header {
		if name == "__metadata__" {
			continue
		}

		var info tensorInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return nil, fmt.Errorf("bad header entry %q: %w", name, err)
		}

		t, err := decodeTensor(tensorData, info)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", name, err)
		}
		tensors[name] = t
	}

	return tensors, nil
}

// decodeTensor materializes one tensor as float32
func decodeTensor(data []byte, info tensorInfo) (*Tensor, error) {
	numElements := 1
	for _, dim := range info.Shape {
		numElements *= dim
	}

	start, end := info.Offset[0], info.Offset[1]
	if start < 0 || end < start || end > int64(len(data)) {
		return nil, fmt.Errorf("data offsets [%d, %d] out of range for %d data bytes", start, end, len(data))
	}

	raw := data[start:end]
	out := make([]float32, numElements)

	switch info.Dtype {
	case "F32":
		if len(raw) != numElements*4 {
			return nil, fmt.Errorf("size mismatch for F32 tensor")
		}
		for i := 0; i < numElements; i++ {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case "F16":
		if len(raw) != numElements*2 {
			return nil, fmt.Errorf("size mismatch for F16 tensor")
		}
		for i := 0; i < numElements; i++ {
			out[i] = float32FromFloat16(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	default:
		return nil, fmt.Errorf("unsupported dtype: %s", info.Dtype)
	}

	return &Tensor{Data: out, Shape: info.Shape}, nil
}

// SaveTensors writes tensors to a safetensors file as F32, with entries
// laid out in name order
func SaveTensors(path string, tensors map[string]*Tensor) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]tensorInfo, len(tensors))
	offset := int64(0)
	for _, name := range names {
		t := tensors[name]
		size := int64(t.Size() * 4)
		header[name] = tensorInfo{
			Dtype:  "F32",
			Shape:  t.Shape,
			Offset: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}

	var b bytes.Buffer
	b.Grow(8 + len(headerBytes) + int(offset))

	sizeBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(sizeBuf, uint64(len(headerBytes)))
	b.Write(sizeBuf)
	b.Write(headerBytes)

	buf := make([]byte, 4)
	for _, name := range names {
		for _, v := range tensors[name].Data {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			b.Write(buf)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// float32FromFloat16 converts an IEEE 754 half-precision value
func float32FromFloat16(bits uint16) float32 {
	sign := uint32(bits>>15) & 1
	exp := uint32(bits>>10) & 0x1F
	frac := uint32(bits) & 0x3FF

	switch {
	case exp == 0 && frac == 0:
		return math.Float32frombits(sign << 31)
	case exp == 0:
		// Subnormal: renormalize.
		e := uint32(127 - 14)
		for frac&0x400 == 0 {
			frac <<= 1
			e--
		}
		frac &= 0x3FF
		return math.Float32frombits(sign<<31 | e<<23 | frac<<13)
	case exp == 0x1F:
		return math.Float32frombits(sign<<31 | 0xFF<<23 | frac<<13)
	default:
		return math.Float32frombits(sign<<31 | (exp+127-15)<<23 | frac<<13)
	}
}
