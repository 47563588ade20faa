package tensor

import "math"

// ModelConfig holds the causal LM architecture parameters
type ModelConfig struct {
	ModelType     string  `json:"model_type,omitempty"`
	VocabSize     int     `json:"vocab_size"`
	Hidden        int     `json:"n_embd"`
	NumLayers     int     `json:"n_layer"`
	NumHeads      int     `json:"n_head"`
	NumKVHeads    int     `json:"num_key_value_heads,omitempty"`
	FFNDim        int     `json:"n_inner"`
	MaxSeqLen     int     `json:"n_positions"`
	EOSTokenID    int     `json:"eos_token_id"`
	RopeTheta     float64 `json:"rope_theta,omitempty"`
	NormEps       float32 `json:"rms_norm_eps,omitempty"`
	TiedEmbedding bool    `json:"tie_word_embeddings,omitempty"`
}

// LlamaFamily reports whether the checkpoint follows the Llama naming
// and architecture scheme: RoPE, RMSNorm, SwiGLU, grouped KV heads.
// Qwen2 and Mistral checkpoints use the same layout.
func (c *ModelConfig) LlamaFamily() bool {
	switch c.ModelType {
	case "llama", "mistral", "qwen2", "qwen3":
		return true
	}
	return false
}

// kvHeads returns the key/value head count, defaulting to full
// multi-head attention when the config does not set one
func (c *ModelConfig) kvHeads() int {
	if c.NumKVHeads > 0 {
		return c.NumKVHeads
	}
	return c.NumHeads
}

// normEps returns the normalization epsilon with the usual default
func (c *ModelConfig) normEps() float32 {
	if c.NormEps > 0 {
		return c.NormEps
	}
	return 1e-5
}

// Attention is causal self-attention over a [seq, hidden] input. With
// NumKVHeads < NumHeads the key/value projections are grouped: each KV
// head serves NumHeads/NumKVHeads query heads.
type Attention struct {
	NumHeads   int
	NumKVHeads int
	HeadDim    int
	Hidden     int
	Rope       *RoPECache // nil for learned-position models

	QWeight *Tensor // [hidden, hidden]
	KWeight *Tensor // [hidden, kv_heads*head_dim]
	VWeight *Tensor // [hidden, kv_heads*head_dim]
	OWeight *Tensor // [hidden, hidden]

	QBias *Tensor // [hidden]
	KBias *Tensor
	VBias *Tensor
	OBias *Tensor
}

// Forward computes causal self-attention for x: [seq, hidden]
func (a *Attention) Forward(x *Tensor) *Tensor {
	seqLen := x.Shape[0]
	kvDim := a.NumKVHeads * a.HeadDim
	group := a.NumHeads / a.NumKVHeads

	q := project(x, a.QWeight, a.QBias)
	k := project(x, a.KWeight, a.KBias)
	v := project(x, a.VWeight, a.VBias)

	if a.Rope != nil {
		for i := 0; i < seqLen; i++ {
			a.Rope.Rotate(q.Data[i*a.Hidden:(i+1)*a.Hidden], a.NumHeads, i)
			a.Rope.Rotate(k.Data[i*kvDim:(i+1)*kvDim], a.NumKVHeads, i)
		}
	}

	out := NewTensor(seqLen, a.Hidden)
	scale := float32(1.0 / math.Sqrt(float64(a.HeadDim)))

	for h := 0; h < a.NumHeads; h++ {
		hs := h * a.HeadDim
		ks := (h / group) * a.HeadDim

		for i := 0; i < seqLen; i++ {
			// Causal: position i attends to positions 0..i only.
			scores := make([]float32, i+1)
			for j := 0; j <= i; j++ {
				sum := float32(0)
				for d := 0; d < a.HeadDim; d++ {
					sum += q.Data[i*a.Hidden+hs+d] * k.Data[j*kvDim+ks+d]
				}
				scores[j] = sum * scale
			}

			softmaxInPlace(scores)

			for d := 0; d < a.HeadDim; d++ {
				sum := float32(0)
				for j := 0; j <= i; j++ {
					sum += scores[j] * v.Data[j*kvDim+ks+d]
				}
				out.Data[i*a.Hidden+hs+d] = sum
			}
		}
	}

	return project(out, a.OWeight, a.OBias)
}

// FeedForward is the MLP block: GELU with biases for GPT-2 models, or
// SwiGLU when a gate projection is present
type FeedForward struct {
	W1     *Tensor // up projection [hidden, ffn_dim]
	B1     *Tensor // [ffn_dim]
	W2     *Tensor // down projection [ffn_dim, hidden]
	B2     *Tensor // [hidden]
	WGate  *Tensor // SwiGLU gate [hidden, ffn_dim], nil for GELU models
	Hidden int
	FFNDim int
}

// Forward applies the MLP to x: [seq, hidden]
func (ffn *FeedForward) Forward(x *Tensor) *Tensor {
	if ffn.WGate != nil {
		// SwiGLU: silu(x@gate) * (x@up), then down projection.
		gate := SiLU(MatMul(x, ffn.WGate))
		up := MatMul(x, ffn.W1)
		return MatMul(Mul(gate, up), ffn.W2)
	}

	h := MatMul(x, ffn.W1)
	addBiasRows(h, ffn.B1)
	h = GELU(h)
	out := MatMul(h, ffn.W2)
	addBiasRows(out, ffn.B2)
	return out
}

// LayerNormLayer wraps layer normalization with learned parameters. A
// nil Bias means RMS normalization.
type LayerNormLayer struct {
	Weight *Tensor
	Bias   *Tensor
	Eps    float32
}

// Forward applies the normalization
func (ln *LayerNormLayer) Forward(x *Tensor) *Tensor {
	return LayerNorm(x, ln.Weight, ln.Bias, ln.Eps)
}

// Block is a single pre-norm transformer layer
type Block struct {
	Attn *Attention
	FFN  *FeedForward
	LN1  *LayerNormLayer
	LN2  *LayerNormLayer
}

// Forward applies attention and MLP with residual connections
func (b *Block) Forward(x *Tensor) *Tensor {
	x = Add(x, b.Attn.Forward(b.LN1.Forward(x)))
	x = Add(x, b.FFN.Forward(b.LN2.Forward(x)))
	return x
}

// Model is a causal language model held fully in memory
type Model struct {
	Config *ModelConfig

	TokenEmbedding *Tensor // [vocab, hidden]
	PosEmbedding   *Tensor // [max_seq, hidden]; nil for RoPE models
	Blocks         []*Block
	LNFinal        *LayerNormLayer
	LMHead         *Tensor // [hidden, vocab]
}

// NewModel creates an empty model with the given architecture
func NewModel(config *ModelConfig) *Model {
	m := &Model{
		Config: config,
		Blocks: make([]*Block, config.NumLayers),
	}

	headDim := config.Hidden / config.NumHeads
	eps := config.normEps()

	var rope *RoPECache
	if config.LlamaFamily() {
		maxSeq := config.MaxSeqLen
		if maxSeq == 0 {
			maxSeq = 2048
		}
		theta := config.RopeTheta
		if theta == 0 {
			theta = 10000
		}
		rope = NewRoPECache(headDim, maxSeq, theta)
	}

	for i := 0; i < config.NumLayers; i++ {
		m.Blocks[i] = &Block{
			Attn: &Attention{
				NumHeads:   config.NumHeads,
				NumKVHeads: config.kvHeads(),
				HeadDim:    headDim,
				Hidden:     config.Hidden,
				Rope:       rope,
			},
			FFN: &FeedForward{
				Hidden: config.Hidden,
				FFNDim: config.FFNDim,
			},
			LN1: &LayerNormLayer{Eps: eps},
			LN2: &LayerNormLayer{Eps: eps},
		}
	}

	return m
}

// Logits runs a full forward pass and returns next-token logits for the
// last position
func (m *Model) Logits(tokenIDs []int) []float32 {
	x := m.embed(tokenIDs)

	for _, block := range m.Blocks {
		x = block.Forward(x)
	}

	x = m.LNFinal.Forward(x)

	seqLen := len(tokenIDs)
	last := &Tensor{
		Data:  x.Data[(seqLen-1)*m.Config.Hidden : seqLen*m.Config.Hidden],
		Shape: []int{1, m.Config.Hidden},
	}
	logits := MatMul(last, m.LMHead)
	return logits.Data
}

// NumParameters returns the total parameter count
func (m *Model) NumParameters() int {
	count := m.TokenEmbedding.Size() + m.LMHead.Size()
	if m.PosEmbedding != nil {
		count += m.PosEmbedding.Size()
	}
	for _, b := range m.Blocks {
		count += b.Attn.QWeight.Size() + b.Attn.KWeight.Size() + b.Attn.VWeight.Size() + b.Attn.OWeight.Size()
		count += b.FFN.W1.Size() + b.FFN.W2.Size()
		if b.FFN.WGate != nil {
			count += b.FFN.WGate.Size()
		}
		count += b.LN1.Weight.Size() + b.LN2.Weight.Size()
	}
	return count
}

// embed builds the [seq, hidden] input: token embeddings plus learned
// position embeddings when the model has them
func (m *Model) embed(tokenIDs []int) *Tensor {
	seqLen := len(tokenIDs)
	hidden := m.Config.Hidden

	x := NewTensor(seqLen, hidden)
	for i, id := range tokenIDs {
		for j := 0; j < hidden; j++ {
			x.Data[i*hidden+j] = m.TokenEmbedding.Data[id*hidden+j]
			if m.PosEmbedding != nil {
				x.Data[i*hidden+j] += m.PosEmbedding.Data[i*hidden+j]
			}
		}
	}
	return x
}

// project computes x @ w (+ bias) for x: [seq, hidden]
func project(x, w, bias *Tensor) *Tensor {
	out := MatMul(x, w)
	if bias != nil {
		addBiasRows(out, bias)
	}
	return out
}

// addBiasRows adds bias to every row of a [rows, cols] tensor in place
func addBiasRows(t *Tensor, bias *Tensor) {
	if bias == nil {
		return
	}
	rows := t.Shape[0]
	cols := t.Shape[1]
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			t.Data[i*cols+j] += bias.Data[j]
		}
	}
}

// softmaxInPlace normalizes a score row in place
func softmaxInPlace(scores []float32) {
	maxVal := scores[0]
	for _, s := range scores {
		if s > maxVal {
			maxVal = s
		}
	}
	sum := float32(0)
	for i, s := range scores {
		scores[i] = float32(math.Exp(float64(s - maxVal)))
		sum += scores[i]
	}
	for i := range scores {
		scores[i] /= sum
	}
}
