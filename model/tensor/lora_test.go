package tensor

import (
	"math/rand"
	"testing"
)

func TestLoRAPairDelta(t *testing.T) {
	// A: [1, 2], B: [2, 1] with rank 1
	pair := &LoRAPair{
		A: &Tensor{Data: []float32{1, 2}, Shape: []int{1, 2}},
		B: &Tensor{Data: []float32{3, 4}, Shape: []int{2, 1}},
	}

	delta := pair.Delta(2)

	// B·A = [[3,6],[4,8]], transposed and scaled by 2
	if delta.Shape[0] != 2 || delta.Shape[1] != 2 {
		t.Fatalf("Expected [2,2] delta, got %v", delta.Shape)
	}
	expected := []float32{6, 8, 12, 16}
	for i, v := range expected {
		if delta.Data[i] != v {
			t.Errorf("Delta element %d: expected %g, got %g", i, v, delta.Data[i])
		}
	}
}

func TestAdapterScaling(t *testing.T) {
	a := &Adapter{Config: AdapterConfig{Rank: 16, Alpha: 32}}
	if a.Scaling() != 2 {
		t.Errorf("Expected scaling 2, got %g", a.Scaling())
	}
}

func TestAdapterMerge(t *testing.T) {
	dir := t.TempDir()
	writeTestModel(t, dir)
	m, err := LoadModel(dir)
	if err != nil {
		t.Fatal(err)
	}

	baseQ := m.Blocks[0].Attn.QWeight.Clone()
	baseV := m.Blocks[0].Attn.VWeight.Clone()

	rng := rand.New(rand.NewSource(3))
	rank := 2
	hidden := m.Config.Hidden
	adapter := &Adapter{
		Config: AdapterConfig{Rank: rank, Alpha: 4},
		Pairs: map[string]*LoRAPair{
			"h.0.attn.q": {
				A: randTensor(rng, 0.1, rank, hidden),
				B: randTensor(rng, 0.1, hidden, rank),
			},
		},
	}

	if err := adapter.Merge(m); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	// W' = W + (alpha/rank)·(B·A)ᵀ
	delta := adapter.Pairs["h.0.attn.q"].Delta(adapter.Scaling())
	for i := range baseQ.Data {
		expected := baseQ.Data[i] + delta.Data[i]
		if m.Blocks[0].Attn.QWeight.Data[i] != expected {
			t.Fatalf("Merged Q weight element %d: expected %g, got %g", i, expected, m.Blocks[0].Attn.QWeight.Data[i])
		}
	}

	// untargeted projections stay untouched
	for i := range baseV.Data {
		if m.Blocks[0].Attn.VWeight.Data[i] != baseV.Data[i] {
			t.Fatalf("Untargeted V weight changed at element %d", i)
		}
	}
}

func TestAdapterMergeZeroBIsIdentity(t *testing.T) {
	dir := t.TempDir()
	writeTestModel(t, dir)
	m, err := LoadModel(dir)
	if err != nil {
		t.Fatal(err)
	}

	before := m.Logits([]int{1, 2})

	rng := rand.New(rand.NewSource(5))
	hidden := m.Config.Hidden
	adapter := &Adapter{
		Config: AdapterConfig{Rank: 2, Alpha: 4},
		Pairs: map[string]*LoRAPair{
			"h.0.attn.q": {
				A: randTensor(rng, 0.1, 2, hidden),
				B: NewTensor(hidden, 2),
			},
		},
	}

	if err := adapter.Merge(m); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	after := m.Logits([]int{1, 2})
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("Zero-B adapter changed logit %d: %g vs %g", i, before[i], after[i])
		}
	}
}

func TestAdapterMergeModulesToSave(t *testing.T) {
	dir := t.TempDir()
	config := writeTestModel(t, dir)
	m, err := LoadModel(dir)
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewSource(9))
	newHead := randTensor(rng, 0.1, config.VocabSize, config.Hidden)
	newEmbed := randTensor(rng, 0.1, config.VocabSize, config.Hidden)

	adapter := &Adapter{
		Config: AdapterConfig{Rank: 1, Alpha: 1},
		Pairs:  map[string]*LoRAPair{},
		Modules: map[string]*Tensor{
			"lm_head":     newHead,
			"embed_token": newEmbed,
		},
	}

	if err := adapter.Merge(m); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	// lm_head arrives [vocab, hidden] and is stored transposed
	if m.LMHead.Shape[0] != config.Hidden || m.LMHead.Shape[1] != config.VocabSize {
		t.Fatalf("Unexpected LM head shape %v", m.LMHead.Shape)
	}
	if m.LMHead.Data[0] != newHead.Data[0] {
		t.Errorf("LM head not replaced")
	}
	if m.TokenEmbedding.Data[0] != newEmbed.Data[0] {
		t.Errorf("Token embedding not replaced")
	}
}

func TestAdapterMergeUnknownTarget(t *testing.T) {
	dir := t.TempDir()
	writeTestModel(t, dir)
	m, err := LoadModel(dir)
	if err != nil {
		t.Fatal(err)
	}

	adapter := &Adapter{
		Config: AdapterConfig{Rank: 1, Alpha: 1},
		Pairs: map[string]*LoRAPair{
			"h.0.attn.x": {
				A: NewTensor(1, m.Config.Hidden),
				B: NewTensor(m.Config.Hidden, 1),
			},
		},
	}

	if err := adapter.Merge(m); err == nil {
		t.Errorf("Expected error for unknown projection target")
	}
}

func TestAdapterSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	rng := rand.New(rand.NewSource(11))
	original := &Adapter{
		Config: AdapterConfig{
			Rank:          16,
			Alpha:         32,
			Dropout:       0.1,
			Bias:          "none",
			TaskType:      "CAUSAL_LM",
			TargetModules: []string{"h.0.attn.q", "h.0.attn.v"},
			ModulesToSave: []string{"lm_head"},
		},
		Pairs: map[string]*LoRAPair{
			"h.0.attn.q": {A: randTensor(rng, 1, 16, 4), B: randTensor(rng, 1, 4, 16)},
			"h.0.attn.v": {A: randTensor(rng, 1, 16, 4), B: randTensor(rng, 1, 4, 16)},
		},
		Modules: map[string]*Tensor{
			"lm_head": randTensor(rng, 1, 8, 4),
		},
	}

	if err := original.Save(dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadAdapter(dir)
	if err != nil {
		t.Fatalf("LoadAdapter failed: %v", err)
	}

	if loaded.Config.Rank != 16 || loaded.Config.Alpha != 32 {
		t.Errorf("Adapter config not preserved: %+v", loaded.Config)
	}
	if len(loaded.Pairs) != 2 {
		t.Fatalf("Expected 2 pairs, got %d", len(loaded.Pairs))
	}
	for target, pair := range original.Pairs {
		got, ok := loaded.Pairs[target]
		if !ok {
			t.Fatalf("Pair %s missing after round trip", target)
		}
		for i := range pair.A.Data {
			if got.A.Data[i] != pair.A.Data[i] {
				t.Fatalf("Pair %s A element %d differs", target, i)
			}
		}
		for i := range pair.B.Data {
			if got.B.Data[i] != pair.B.Data[i] {
				t.Fatalf("Pair %s B element %d differs", target, i)
			}
		}
	}
	if _, ok := loaded.Modules["lm_head"]; !ok {
		t.Errorf("Module to save missing after round trip")
	}
}

func TestLoadAdapterMissingFactor(t *testing.T) {
	dir := t.TempDir()

	adapter := &Adapter{
		Config: AdapterConfig{Rank: 2, Alpha: 4},
		Pairs: map[string]*LoRAPair{
			"h.0.attn.q": {A: NewTensor(2, 4), B: NewTensor(4, 2)},
		},
	}
	if err := adapter.Save(dir); err != nil {
		t.Fatal(err)
	}

	// rewrite the weights file with only the A factor present
	if err := SaveTensors(dir+"/adapter_model.safetensors", map[string]*Tensor{
		"h.0.attn.q.lora_A": NewTensor(2, 4),
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadAdapter(dir); err == nil {
		t.Errorf("Expected error for missing LoRA factor")
	}
}
