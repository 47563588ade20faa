package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// JSONTokenizer is a pure Go fallback that reads the vocabulary straight
// out of tokenizer.json and tokenizes at word level. It exists so the
// toolkit still runs where the native tokenizer bindings are not built;
// fidelity to the real BPE segmentation is not a goal.
type JSONTokenizer struct {
	vocab    map[string]int
	invVocab map[int]string
	eosID    int
	eosToken string
}

// NewJSONTokenizer loads a tokenizer vocabulary from a model directory
func NewJSONTokenizer(dir string) (*JSONTokenizer, error) {
	data, err := os.ReadFile(filepath.Join(dir, "tokenizer.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read tokenizer.json: %w", err)
	}

	var tj struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
		AddedTokens []struct {
			ID      int    `json:"id"`
			Content string `json:"content"`
		} `json:"added_tokens"`
	}
	if err := json.Unmarshal(data, &tj); err != nil {
		return nil, fmt.Errorf("failed to parse tokenizer.json: %w", err)
	}

	t := &JSONTokenizer{
		vocab:    make(map[string]int, len(tj.Model.Vocab)),
		invVocab: make(map[int]string, len(tj.Model.Vocab)),
	}
	for token, id := range tj.Model.Vocab {
		t.vocab[token] = id
		t.invVocab[id] = token
	}
	for _, added := range tj.AddedTokens {
		t.vocab[added.Content] = added.ID
		t.invVocab[added.ID] = added.Content
	}

	special, err := loadSpecialTokens(dir)
	if err != nil {
		return nil, err
	}
	t.eosID = special.eosID
	t.eosToken = special.eosToken

	return t, nil
}

// Encode converts text to token IDs, falling back to per-character
// lookup for words outside the vocabulary
func (t *JSONTokenizer) Encode(text string) ([]int, error) {
	var tokens []int
	for _, piece := range splitPieces(text) {
		if id, ok := t.vocab[piece]; ok {
			tokens = append(tokens, id)
			continue
		}
		if id, ok := t.vocab[strings.ToLower(piece)]; ok {
			tokens = append(tokens, id)
			continue
		}
		for _, ch := range piece {
			if id, ok := t.vocab[string(ch)]; ok {
				tokens = append(tokens, id)
			} else {
				tokens = append(tokens, 0)
			}
		}
	}
	return tokens, nil
}

// Decode converts token IDs back to text, stopping at EOS
func (t *JSONTokenizer) Decode(tokenIDs []int) (string, error) {
	var b strings.Builder
	for _, id := range tokenIDs {
		if id == t.eosID {
			break
		}
		if token, ok := t.invVocab[id]; ok {
			b.WriteString(token)
		}
	}
	return b.String(), nil
}

// EOSTokenID returns the EOS token ID
func (t *JSONTokenizer) EOSTokenID() int {
	return t.eosID
}

// EOSToken returns the textual EOS marker
func (t *JSONTokenizer) EOSToken() string {
	return t.eosToken
}

// splitPieces breaks text into words, whitespace, and punctuation pieces
func splitPieces(text string) []string {
	var pieces []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			pieces = append(pieces, current.String())
			current.Reset()
		}
	}

	for _, ch := range text {
		switch {
		case ch == ' ' || ch == '\n' || ch == '\t':
			flush()
			pieces = append(pieces, string(ch))
		case strings.ContainsRune(".,!?:;-'\"", ch):
			flush()
			pieces = append(pieces, string(ch))
		default:
			current.WriteRune(ch)
		}
	}
	flush()

	return pieces
}
