package train

import (
	"fmt"
	"math"
	"math/rand"

	"nano-peft-go/model/tensor"
	"nano-peft-go/nanopeft"
)

// Adam hyperparameters, fixed for every run
const (
	adamBeta1 = 0.9
	adamBeta2 = 0.999
	adamEps   = 1e-8
)

// loraPair holds the trainable low-rank factors for one projection
type loraPair struct {
	A [][]*Value // [rank][in]
	B [][]*Value // [out][rank]
}

// layerWeights is the frozen Value view of one transformer layer. Bias
// and gate slices are nil when the checkpoint has none; a nil norm bias
// selects RMS normalization, matching the tensor model.
type layerWeights struct {
	wq, wk, wv, wo [][]*Value // [out][in]
	bq, bk, bv, bo []*Value
	w1, w2, wg     [][]*Value
	b1, b2         []*Value
	ln1W, ln1B     []*Value
	ln2W, ln2B     []*Value
}

// SFTBackend runs supervised fine-tuning in process: the base model is
// frozen into an autodiff graph, low-rank factors on the attention query
// and value projections (plus any modules-to-save) are the only
// trainable parameters.
type SFTBackend struct {
	tokenizer nanopeft.Tokenizer
	config    *nanopeft.Config
	lora      *nanopeft.LoraConfig

	modelConfig *tensor.ModelConfig
	wte         [][]*Value // [vocab][hidden]
	wpe         [][]*Value // nil for RoPE models
	lmHead      [][]*Value // [vocab][hidden]
	layers      []*layerWeights
	lnfW, lnfB  []*Value

	numKVHeads int
	headDim    int
	normEps    float64
	ropeCos    []float64 // [pos * head_dim/2 + i]
	ropeSin    []float64

	adapters map[string]*loraPair
	modules  map[string][][]*Value
	params   []*Value

	rng  *rand.Rand
	mOpt []float64
	vOpt []float64
	step int
}

// NewSFTBackend builds the training graph over a loaded base model
func NewSFTBackend(m *tensor.Model, tokenizer nanopeft.Tokenizer, config *nanopeft.Config, lora *nanopeft.LoraConfig) (*SFTBackend, error) {
	b := &SFTBackend{
		tokenizer:   tokenizer,
		config:      config,
		lora:        lora,
		modelConfig: m.Config,
		adapters:    make(map[string]*loraPair),
		modules:     make(map[string][][]*Value),
		rng:         rand.New(rand.NewSource(config.ShuffleSeed)),
	}

	b.numKVHeads = m.Config.NumKVHeads
	if b.numKVHeads == 0 {
		b.numKVHeads = m.Config.NumHeads
	}
	b.headDim = m.Config.Hidden / m.Config.NumHeads
	b.normEps = 1e-5
	if m.Config.NormEps > 0 {
		b.normEps = float64(m.Config.NormEps)
	}
	if m.Config.LlamaFamily() {
		b.buildRopeTables(m.Config)
	}

	b.freeze(m)

	kvDim := b.numKVHeads * b.headDim
	for i := range b.layers {
		b.adapters[fmt.Sprintf("h.%d.attn.q", i)] = b.newPair(m.Config.Hidden, m.Config.Hidden)
		b.adapters[fmt.Sprintf("h.%d.attn.v", i)] = b.newPair(kvDim, m.Config.Hidden)
	}

	for _, name := range lora.ModulesToSave {
		switch name {
		case "lm_head":
			b.modules[name] = b.lmHead
			b.collect(b.lmHead)
		case "embed_token":
			b.modules[name] = b.wte
			b.collect(b.wte)
		default:
			return nil, &nanopeft.ArgMismatchError{Argument: "modules_to_save=" + name}
		}
	}

	b.mOpt = make([]float64, len(b.params))
	b.vOpt = make([]float64, len(b.params))

	return b, nil
}

// buildRopeTables precomputes one cos/sin pair per position and
// dimension pair
func (b *SFTBackend) buildRopeTables(cfg *tensor.ModelConfig) {
	maxSeq := cfg.MaxSeqLen
	if maxSeq == 0 {
		maxSeq = 2048
	}
	theta := cfg.RopeTheta
	if theta == 0 {
		theta = 10000
	}

	half := b.headDim / 2
	b.ropeCos = make([]float64, maxSeq*half)
	b.ropeSin = make([]float64, maxSeq*half)
	for pos := 0; pos < maxSeq; pos++ {
		for i := 0; i < half; i++ {
			freq := 1.0 / math.Pow(theta, float64(2*i)/float64(b.headDim))
			angle := float64(pos) * freq
			b.ropeCos[pos*half+i] = math.Cos(angle)
			b.ropeSin[pos*half+i] = math.Sin(angle)
		}
	}
}

// freeze wraps the base weights into constant graph nodes
func (b *SFTBackend) freeze(m *tensor.Model) {
	b.wte = rowsFromTensor(m.TokenEmbedding)
	if m.PosEmbedding != nil {
		b.wpe = rowsFromTensor(m.PosEmbedding)
	}
	b.lmHead = rowsFromTensor(tensor.Transpose(m.LMHead))

	b.layers = make([]*layerWeights, len(m.Blocks))
	for i, block := range m.Blocks {
		lw := &layerWeights{
			wq: rowsFromTensor(tensor.Transpose(block.Attn.QWeight)),
			wk: rowsFromTensor(tensor.Transpose(block.Attn.KWeight)),
			wv: rowsFromTensor(tensor.Transpose(block.Attn.VWeight)),
			wo: rowsFromTensor(tensor.Transpose(block.Attn.OWeight)),
			bq: vecFromTensor(block.Attn.QBias),
			bk: vecFromTensor(block.Attn.KBias),
			bv: vecFromTensor(block.Attn.VBias),
			bo: vecFromTensor(block.Attn.OBias),
			w1: rowsFromTensor(tensor.Transpose(block.FFN.W1)),
			w2: rowsFromTensor(tensor.Transpose(block.FFN.W2)),
			b1: vecFromTensor(block.FFN.B1),
			b2: vecFromTensor(block.FFN.B2),

			ln1W: vecFromTensor(block.LN1.Weight),
			ln1B: vecFromTensor(block.LN1.Bias),
			ln2W: vecFromTensor(block.LN2.Weight),
			ln2B: vecFromTensor(block.LN2.Bias),
		}
		if block.FFN.WGate != nil {
			lw.wg = rowsFromTensor(tensor.Transpose(block.FFN.WGate))
		}
		b.layers[i] = lw
	}

	b.lnfW = vecFromTensor(m.LNFinal.Weight)
	b.lnfB = vecFromTensor(m.LNFinal.Bias)
}

// newPair initializes trainable factors: A with small noise, B at zero
// so the adapter starts as an identity delta
func (b *SFTBackend) newPair(out, in int) *loraPair {
	pair := &loraPair{
		A: make([][]*Value, b.lora.Rank),
		B: make([][]*Value, out),
	}
	for i := range pair.A {
		row := make([]*Value, in)
		for j := range row {
			row[j] = V(b.rng.NormFloat64() * 0.02)
		}
		pair.A[i] = row
	}
	for i := range pair.B {
		row := make([]*Value, b.lora.Rank)
		for j := range row {
			row[j] = V(0)
		}
		pair.B[i] = row
	}
	b.collect(pair.A)
	b.collect(pair.B)
	return pair
}

func (b *SFTBackend) collect(mat [][]*Value) {
	for _, row := range mat {
		b.params = append(b.params, row...)
	}
}

// loraLinear computes W·x + bias + (alpha/rank)·B·(A·drop(x))
func (b *SFTBackend) loraLinear(x []*Value, w [][]*Value, bias []*Value, pair *loraPair, training bool) []*Value {
	out := addBias(matVec(x, w), bias)

	ax := x
	if training && b.lora.Dropout > 0 {
		keep := 1 / (1 - b.lora.Dropout)
		ax = make([]*Value, len(x))
		for i, v := range x {
			if b.rng.Float64() < b.lora.Dropout {
				ax[i] = V(0)
			} else {
				ax[i] = Mul(v, V(keep))
			}
		}
	}

	low := matVec(ax, pair.A)
	delta := matVec(low, pair.B)
	scale := V(b.lora.Scaling())
	for i := range out {
		out[i] = Add(out[i], Mul(scale, delta[i]))
	}
	return out
}

// norm applies layer normalization, or RMS normalization when the
// checkpoint stores no bias
func (b *SFTBackend) norm(x, weight, bias []*Value) []*Value {
	if bias == nil {
		return rmsNormVec(x, weight, b.normEps)
	}
	return layerNormVec(x, weight, bias, b.normEps)
}

// ropeVec rotates the concatenated head vectors of v for one position
func (b *SFTBackend) ropeVec(v []*Value, heads, pos int) []*Value {
	half := b.headDim / 2
	out := make([]*Value, len(v))
	for h := 0; h < heads; h++ {
		base := h * b.headDim
		for i := 0; i < half; i++ {
			cos := V(b.ropeCos[pos*half+i])
			sin := V(b.ropeSin[pos*half+i])
			x0 := v[base+2*i]
			x1 := v[base+2*i+1]
			out[base+2*i] = Sub(Mul(x0, cos), Mul(x1, sin))
			out[base+2*i+1] = Add(Mul(x0, sin), Mul(x1, cos))
		}
	}
	return out
}

// forward computes next-token logits for one position, extending the
// per-layer key/value lists in place
func (b *SFTBackend) forward(tokenID, posID int, keys, values [][][]*Value, training bool) []*Value {
	cfg := b.modelConfig
	group := cfg.NumHeads / b.numKVHeads

	x := b.wte[tokenID]
	if b.wpe != nil {
		x = addVec(x, b.wpe[posID])
	}

	for li, layer := range b.layers {
		residual := x
		x = b.norm(x, layer.ln1W, layer.ln1B)

		q := b.loraLinear(x, layer.wq, layer.bq, b.adapters[fmt.Sprintf("h.%d.attn.q", li)], training)
		k := addBias(matVec(x, layer.wk), layer.bk)
		v := b.loraLinear(x, layer.wv, layer.bv, b.adapters[fmt.Sprintf("h.%d.attn.v", li)], training)

		if b.ropeCos != nil {
			q = b.ropeVec(q, cfg.NumHeads, posID)
			k = b.ropeVec(k, b.numKVHeads, posID)
		}

		keys[li] = append(keys[li], k)
		values[li] = append(values[li], v)

		attnOut := make([]*Value, 0, cfg.Hidden)
		for h := 0; h < cfg.NumHeads; h++ {
			hs := h * b.headDim
			ks := (h / group) * b.headDim
			qh := q[hs : hs+b.headDim]

			scores := make([]*Value, len(keys[li]))
			for t := range keys[li] {
				kh := keys[li][t][ks : ks+b.headDim]
				s := V(0)
				for d := 0; d < b.headDim; d++ {
					s = Add(s, Mul(qh[d], kh[d]))
				}
				scores[t] = Div(s, V(math.Sqrt(float64(b.headDim))))
			}
			weights := softmaxVec(scores)

			head := make([]*Value, b.headDim)
			for d := 0; d < b.headDim; d++ {
				s := V(0)
				for t := range values[li] {
					s = Add(s, Mul(weights[t], values[li][t][ks+d]))
				}
				head[d] = s
			}
			attnOut = append(attnOut, head...)
		}

		x = addBias(matVec(attnOut, layer.wo), layer.bo)
		x = addVec(x, residual)

		residual = x
		x = b.norm(x, layer.ln2W, layer.ln2B)
		if layer.wg != nil {
			// SwiGLU: silu(gate) * up, then down projection.
			gate := siluVec(matVec(x, layer.wg))
			up := matVec(x, layer.w1)
			x = matVec(mulVec(gate, up), layer.w2)
		} else {
			x = addBias(matVec(x, layer.w1), layer.b1)
			x = geluVec(x)
			x = addBias(matVec(x, layer.w2), layer.b2)
		}
		x = addVec(x, residual)
	}

	x = b.norm(x, b.lnfW, b.lnfB)
	return matVec(x, b.lmHead)
}

// exampleLoss computes the mean next-token cross-entropy of one encoded
// training string
func (b *SFTBackend) exampleLoss(tokens []int, training bool) *Value {
	n := len(tokens) - 1
	if max := b.modelConfig.MaxSeqLen; max > 0 && n > max {
		n = max
	}

	keys := make([][][]*Value, len(b.layers))
	values := make([][][]*Value, len(b.layers))

	loss := V(0)
	for pos := 0; pos < n; pos++ {
		logits := b.forward(tokens[pos], pos, keys, values, training)
		probs := softmaxVec(logits)
		loss = Add(loss, Neg(Log(probs[tokens[pos+1]])))
	}
	return Mul(V(1/float64(n)), loss)
}

// Train runs the configured epochs of LoRA fine-tuning
func (b *SFTBackend) Train(trainSet, evalSet *nanopeft.Dataset, format nanopeft.FormatFunc, onStep func(nanopeft.StepInfo)) (*nanopeft.TrainReport, error) {
	encoded, err := b.encodeAll(trainSet, format)
	if err != nil {
		return nil, err
	}
	evalEncoded, err := b.encodeAll(evalSet, format)
	if err != nil {
		return nil, err
	}

	batchSize := b.config.PerDeviceTrainBatchSize
	stepsPerEpoch := (len(encoded) + batchSize - 1) / batchSize
	totalSteps := stepsPerEpoch * b.config.NumTrainEpochs

	report := &nanopeft.TrainReport{}
	pendingBatches := 0

	for epoch := 0; epoch < b.config.NumTrainEpochs; epoch++ {
		for start := 0; start < len(encoded); start += batchSize {
			end := start + batchSize
			if end > len(encoded) {
				end = len(encoded)
			}
			batch := encoded[start:end]

			loss := V(0)
			for _, tokens := range batch {
				loss = Add(loss, b.exampleLoss(tokens, true))
			}
			loss = Mul(V(1/float64(len(batch))), loss)

			Backward(loss)
			pendingBatches++

			if pendingBatches == b.config.GradientAccumulation || end == len(encoded) {
				b.adamStep()
				pendingBatches = 0
			}

			report.Steps++
			report.FinalTrainLoss = loss.Data
			if onStep != nil {
				onStep(nanopeft.StepInfo{Step: report.Steps, TotalSteps: totalSteps, Loss: loss.Data})
			}
		}

		if b.config.EvalEveryEpoch && len(evalEncoded) > 0 {
			report.EvalLosses = append(report.EvalLosses, b.evalLoss(evalEncoded))
		}
	}

	return report, nil
}

// encodeAll renders and tokenizes every record of a partition
func (b *SFTBackend) encodeAll(ds *nanopeft.Dataset, format nanopeft.FormatFunc) ([][]int, error) {
	out := make([][]int, 0, ds.Len())
	for _, record := range ds.Records {
		tokens, err := b.tokenizer.Encode(format(record))
		if err != nil {
			return nil, fmt.Errorf("failed to encode training example: %w", err)
		}
		if last := b.tokenizer.EOSTokenID(); len(tokens) == 0 || tokens[len(tokens)-1] != last {
			tokens = append(tokens, last)
		}
		if len(tokens) < 2 {
			return nil, fmt.Errorf("training example too short after tokenization")
		}
		out = append(out, tokens)
	}
	return out, nil
}

// evalLoss computes the mean loss over the evaluation partition without
// touching gradients
func (b *SFTBackend) evalLoss(encoded [][]int) float64 {
	total := 0.0
	for _, tokens := range encoded {
		total += b.exampleLoss(tokens, false).Data
	}
	return total / float64(len(encoded))
}

// adamStep applies one Adam update to the trainable parameters and
// zeroes their gradients
func (b *SFTBackend) adamStep() {
	b.step++
	lr := b.config.LearningRate
	for i, p := range b.params {
		b.mOpt[i] = adamBeta1*b.mOpt[i] + (1-adamBeta1)*p.Grad
		b.vOpt[i] = adamBeta2*b.vOpt[i] + (1-adamBeta2)*p.Grad*p.Grad
		mHat := b.mOpt[i] / (1 - math.Pow(adamBeta1, float64(b.step)))
		vHat := b.vOpt[i] / (1 - math.Pow(adamBeta2, float64(b.step)))
		p.Data -= lr * mHat / (math.Sqrt(vHat) + adamEps)
		p.Grad = 0
	}
}

// SaveAdapter serializes the trained factors and modules-to-save
func (b *SFTBackend) SaveAdapter(dir string) error {
	targets := make([]string, 0, len(b.adapters))
	adapter := &tensor.Adapter{
		Config: tensor.AdapterConfig{
			Rank:          b.lora.Rank,
			Alpha:         b.lora.Alpha,
			Dropout:       b.lora.Dropout,
			Bias:          b.lora.Bias,
			TaskType:      b.lora.TaskType,
			ModulesToSave: b.lora.ModulesToSave,
		},
		Pairs:   make(map[string]*tensor.LoRAPair, len(b.adapters)),
		Modules: make(map[string]*tensor.Tensor, len(b.modules)),
	}

	for name, pair := range b.adapters {
		targets = append(targets, name)
		adapter.Pairs[name] = &tensor.LoRAPair{
			A: tensorFromRows(pair.A),
			B: tensorFromRows(pair.B),
		}
	}
	adapter.Config.TargetModules = targets

	for name, mat := range b.modules {
		adapter.Modules[name] = tensorFromRows(mat)
	}

	return adapter.Save(dir)
}

// rowsFromTensor views a 2D tensor as constant graph rows
func rowsFromTensor(t *tensor.Tensor) [][]*Value {
	rows, cols := t.Shape[0], t.Shape[1]
	out := make([][]*Value, rows)
	for i := 0; i < rows; i++ {
		row := make([]*Value, cols)
		for j := 0; j < cols; j++ {
			row[j] = V(float64(t.Data[i*cols+j]))
		}
		out[i] = row
	}
	return out
}

// vecFromTensor views a bias tensor as constant graph nodes; a nil
// tensor stays nil so downstream code can skip the add entirely
func vecFromTensor(t *tensor.Tensor) []*Value {
	if t == nil {
		return nil
	}
	out := make([]*Value, len(t.Data))
	for i, x := range t.Data {
		out[i] = V(float64(x))
	}
	return out
}

// addBias adds a bias vector when one exists
func addBias(x, bias []*Value) []*Value {
	if bias == nil {
		return x
	}
	return addVec(x, bias)
}

// tensorFromRows copies a Value matrix into a float32 tensor
func tensorFromRows(mat [][]*Value) *tensor.Tensor {
	rows, cols := len(mat), len(mat[0])
	t := tensor.NewTensor(rows, cols)
	for i, row := range mat {
		for j, v := range row {
			t.Data[i*cols+j] = float32(v.Data)
		}
	}
	return t
}
