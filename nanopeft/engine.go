package nanopeft

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/schollz/progressbar/v3"
)

// Output represents the outcome of a single generation request
type Output struct {
	Text     string
	TokenIDs []int
}

// Engine drives blocking, single-sequence text generation over a model
// runner and tokenizer pair
type Engine struct {
	runner    ModelRunner
	tokenizer Tokenizer
}

// NewEngine creates a new generation engine
func NewEngine(runner ModelRunner, tokenizer Tokenizer) *Engine {
	return &Engine{
		runner:    runner,
		tokenizer: tokenizer,
	}
}

// Close cleans up resources
func (e *Engine) Close() error {
	return e.runner.Close()
}

// Generate produces a completion for the prompt. The returned text is the
// decoded prompt plus completion, matching what a round-trip through the
// tokenizer yields.
func (e *Engine) Generate(prompt string, params *GenerationParams) (*Output, error) {
	tokenIDs, err := e.tokenizer.Encode(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to encode prompt: %w", err)
	}
	if len(tokenIDs) == 0 {
		return nil, fmt.Errorf("prompt encoded to zero tokens")
	}

	eos := e.tokenizer.EOSTokenID()

	for i := 0; i < params.MaxNewTokens; i++ {
		logits, err := e.runner.Logits(tokenIDs)
		if err != nil {
			return nil, fmt.Errorf("model inference failed: %w", err)
		}

		next := sampleToken(logits, params)
		if next == eos {
			// EOS doubles as the padding filler; generation stops here.
			break
		}
		tokenIDs = append(tokenIDs, next)
	}

	text, err := e.tokenizer.Decode(tokenIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tokens: %w", err)
	}

	return &Output{Text: text, TokenIDs: tokenIDs}, nil
}

// GenerateAll generates completions for each prompt in order
func (e *Engine) GenerateAll(prompts []string, params *GenerationParams, showProgress bool) ([]*Output, error) {
	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.NewOptions(len(prompts),
			progressbar.OptionSetDescription("Generating"),
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
	}

	outputs := make([]*Output, len(prompts))
	for i, prompt := range prompts {
		out, err := e.Generate(prompt, params)
		if err != nil {
			return nil, err
		}
		outputs[i] = out
		if showProgress {
			bar.Add(1)
		}
	}

	if showProgress {
		bar.Finish()
	}

	return outputs, nil
}

// sampleToken picks the next token from logits, either greedily or by
// temperature sampling
func sampleToken(logits []float32, params *GenerationParams) int {
	if !params.DoSample {
		best := 0
		for i, l := range logits {
			if l > logits[best] {
				best = i
			}
		}
		return best
	}

	scaled := make([]float32, len(logits))
	copy(scaled, logits)
	if params.Temperature != 1.0 {
		for i := range scaled {
			scaled[i] /= float32(params.Temperature)
		}
	}

	maxLogit := scaled[0]
	for _, l := range scaled {
		if l > maxLogit {
			maxLogit = l
		}
	}

	var sumExp float32
	probs := make([]float32, len(scaled))
	for i, l := range scaled {
		probs[i] = float32(math.Exp(float64(l - maxLogit)))
		sumExp += probs[i]
	}
	for i := range probs {
		probs[i] /= sumExp
	}

	r := rand.Float32()
	var cum float32
	for i, p := range probs {
		cum += p
		if r <= cum {
			return i
		}
	}
	return len(probs) - 1
}
