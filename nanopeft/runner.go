package nanopeft

// ModelRunner is an interface for computing next-token logits.
// Implementations delegate to external inference capabilities:
// - ONNX Runtime sessions
// - pure Go tensor forward passes over safetensors weights
// - HTTP calls to inference servers
type ModelRunner interface {
	// Logits returns the next-token logits for the given token sequence
	Logits(tokenIDs []int) ([]float32, error)

	// Close cleans up resources
	Close() error
}

// Tokenizer is an interface for converting between text and token IDs
type Tokenizer interface {
	// Encode converts text to token IDs
	Encode(text string) ([]int, error)

	// Decode converts token IDs to text
	Decode(tokenIDs []int) (string, error)

	// EOSTokenID returns the EOS token ID
	EOSTokenID() int

	// EOSToken returns the textual end-of-sequence marker appended to
	// formatted training examples
	EOSToken() string
}

// MockModelRunner is a deterministic runner used in tests
type MockModelRunner struct {
	vocab int
	eos   int
	step  int
}

// NewMockModelRunner creates a new mock model runner
func NewMockModelRunner(vocab, eos int) *MockModelRunner {
	return &MockModelRunner{vocab: vocab, eos: eos}
}

// Logits returns logits that favor a token derived from the sequence
// length, emitting EOS after a handful of steps
func (m *MockModelRunner) Logits(tokenIDs []int) ([]float32, error) {
	logits := make([]float32, m.vocab)
	m.step++
	next := len(tokenIDs) % m.vocab
	if m.step%8 == 0 {
		next = m.eos
	}
	logits[next] = 100
	return logits, nil
}

// Close cleans up resources
func (m *MockModelRunner) Close() error {
	return nil
}

// MockTokenizer is a rune-level tokenizer used in tests
type MockTokenizer struct {
	eosTokenID int
}

// NewMockTokenizer creates a new mock tokenizer
func NewMockTokenizer(eosTokenID int) *MockTokenizer {
	return &MockTokenizer{eosTokenID: eosTokenID}
}

// Encode maps each rune to a token ID
func (t *MockTokenizer) Encode(text string) ([]int, error) {
	tokens := make([]int, 0, len(text))
	for _, r := range text {
		tokens = append(tokens, int(r))
	}
	return tokens, nil
}

// Decode maps token IDs back to runes, stopping at EOS
func (t *MockTokenizer) Decode(tokenIDs []int) (string, error) {
	out := make([]rune, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		if id == t.eosTokenID {
			break
		}
		out = append(out, rune(id))
	}
	return string(out), nil
}

// EOSTokenID returns the EOS token ID
func (t *MockTokenizer) EOSTokenID() int {
	return t.eosTokenID
}

// EOSToken returns the textual EOS marker
func (t *MockTokenizer) EOSToken() string {
	return "<|endoftext|>"
}
