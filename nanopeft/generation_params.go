package nanopeft

import "fmt"

// GenerationParams holds the decoding parameters for response generation
type GenerationParams struct {
	Temperature  float64
	MaxNewTokens int
	DoSample     bool
	PadToEOS     bool
}

// GenerationOption is a functional option for GenerationParams
type GenerationOption func(*GenerationParams)

// NewGenerationParams creates a new GenerationParams with default values
func NewGenerationParams(opts ...GenerationOption) *GenerationParams {
	gp := &GenerationParams{
		Temperature:  0.1,
		MaxNewTokens: 200,
		DoSample:     true,
		PadToEOS:     true,
	}

	for _, opt := range opts {
		opt(gp)
	}

	if err := gp.validate(); err != nil {
		panic(err)
	}

	return gp
}

// validate checks if the generation parameters are valid
func (gp *GenerationParams) validate() error {
	if gp.DoSample && gp.Temperature <= 1e-10 {
		return fmt.Errorf("sampling requires temperature > 0")
	}
	if gp.MaxNewTokens < 1 {
		return fmt.Errorf("max_new_tokens must be >= 1")
	}
	return nil
}

// WithTemperature sets the sampling temperature
func WithTemperature(t float64) GenerationOption {
	return func(gp *GenerationParams) {
		gp.Temperature = t
	}
}

// WithMaxNewTokens sets the maximum number of generated tokens
func WithMaxNewTokens(n int) GenerationOption {
	return func(gp *GenerationParams) {
		gp.MaxNewTokens = n
	}
}

// WithDoSample sets whether tokens are sampled or picked greedily
func WithDoSample(b bool) GenerationOption {
	return func(gp *GenerationParams) {
		gp.DoSample = b
	}
}
