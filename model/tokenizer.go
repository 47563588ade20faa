package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/daulet/tokenizers"
)

// HFTokenizer wraps a HuggingFace tokenizer.json via native bindings.
// Repeated encodes of identical text (the knowledge-base prompt accounts
// for most of every test prompt) are served from a hash-keyed cache.
type HFTokenizer struct {
	tk       *tokenizers.Tokenizer
	eosID    int
	eosToken string
	cache    map[uint64][]int
}

// NewHFTokenizer loads tokenizer.json and the special-token metadata
// from a model directory
func NewHFTokenizer(dir string) (*HFTokenizer, error) {
	tk, err := tokenizers.FromFile(filepath.Join(dir, "tokenizer.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}

	special, err := loadSpecialTokens(dir)
	if err != nil {
		tk.Close()
		return nil, err
	}

	return &HFTokenizer{
		tk:       tk,
		eosID:    special.eosID,
		eosToken: special.eosToken,
		cache:    make(map[uint64][]int),
	}, nil
}

// Encode converts text to token IDs
func (t *HFTokenizer) Encode(text string) ([]int, error) {
	key := xxhash.Sum64String(text)
	if cached, ok := t.cache[key]; ok {
		out := make([]int, len(cached))
		copy(out, cached)
		return out, nil
	}

	ids, _ := t.tk.Encode(text, false)
	tokens := make([]int, len(ids))
	for i, id := range ids {
		tokens[i] = int(id)
	}

	t.cache[key] = tokens
	out := make([]int, len(tokens))
	copy(out, tokens)
	return out, nil
}

// Decode converts token IDs back to text, skipping special tokens
func (t *HFTokenizer) Decode(tokenIDs []int) (string, error) {
	ids := make([]uint32, len(tokenIDs))
	for i, id := range tokenIDs {
		if id < 0 {
			return "", fmt.Errorf("negative token id %d", id)
		}
		ids[i] = uint32(id)
	}
	return t.tk.Decode(ids, true), nil
}

// EOSTokenID returns the EOS token ID
func (t *HFTokenizer) EOSTokenID() int {
	return t.eosID
}

// EOSToken returns the textual EOS marker
func (t *HFTokenizer) EOSToken() string {
	return t.eosToken
}

// Close releases the native tokenizer
func (t *HFTokenizer) Close() error {
	t.tk.Close()
	return nil
}

// specialTokens carries the EOS metadata a model directory declares
type specialTokens struct {
	eosID    int
	eosToken string
}

// loadSpecialTokens reads EOS info from tokenizer_config.json and
// config.json, preferring the tokenizer config for the token text and
// the model config for the ID
func loadSpecialTokens(dir string) (specialTokens, error) {
	special := specialTokens{eosID: -1, eosToken: "<|endoftext|>"}

	if data, err := os.ReadFile(filepath.Join(dir, "tokenizer_config.json")); err == nil {
		var tc struct {
			EOSToken interface{} `json:"eos_token"`
		}
		if err := json.Unmarshal(data, &tc); err == nil {
			if token := tokenContent(tc.EOSToken); token != "" {
				special.eosToken = token
			}
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		return special, fmt.Errorf("failed to read model config: %w", err)
	}
	var mc struct {
		EOSTokenID *int `json:"eos_token_id"`
	}
	if err := json.Unmarshal(data, &mc); err != nil {
		return special, fmt.Errorf("failed to parse model config: %w", err)
	}
	if mc.EOSTokenID == nil {
		return special, fmt.Errorf("model config declares no eos_token_id")
	}
	special.eosID = *mc.EOSTokenID

	return special, nil
}

// tokenContent extracts a token string that may be stored either as a
// bare string or as an object with a content field
func tokenContent(val interface{}) string {
	switch v := val.(type) {
	case string:
		return v
	case map[string]interface{}:
		if content, ok := v["content"].(string); ok {
			return content
		}
	}
	return ""
}
