package nanopeft

import (
	"strings"
	"testing"
)

func TestBuildPromptEmbedsKnowledgeBase(t *testing.T) {
	prompt := BuildPrompt("How do returns work?")

	if !strings.Contains(prompt, KnowledgeBase) {
		t.Errorf("Prompt does not embed the knowledge base verbatim")
	}
	if !strings.Contains(prompt, "How do returns work?") {
		t.Errorf("Prompt does not contain the question")
	}
	if !strings.HasSuffix(strings.TrimSpace(prompt), ResponseMarker) {
		t.Errorf("Prompt does not end with the response marker")
	}
}

func TestBuildPromptQuestionAfterKnowledgeBase(t *testing.T) {
	prompt := BuildPrompt("unique-question-text")

	kbIdx := strings.Index(prompt, "FIRST10")
	qIdx := strings.Index(prompt, "unique-question-text")
	if kbIdx < 0 || qIdx < 0 {
		t.Fatalf("Prompt missing expected sections")
	}
	if qIdx < kbIdx {
		t.Errorf("Question appears before the knowledge base")
	}
}

func TestBuildQuickPrompt(t *testing.T) {
	prompt := BuildQuickPrompt("What payment methods do you accept?")

	expected := "Instruction: What payment methods do you accept?\nResponse: "
	if prompt != expected {
		t.Errorf("Expected %q, got %q", expected, prompt)
	}
}

func TestFormatExample(t *testing.T) {
	record := FAQRecord{Instruction: "Q", Response: "A"}
	got := FormatExample(record, "<|endoftext|>")

	expected := "Instruction: Q\nResponse: A<|endoftext|>"
	if got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

func TestExtractResponse(t *testing.T) {
	tests := []struct {
		name     string
		decoded  string
		expected string
	}{
		{"single marker", "prompt text Response: the answer", "the answer"},
		{"last marker wins", "Response: first Response:  second  ", "second"},
		{"no marker", "  plain text  ", "plain text"},
		{"empty after marker", "prompt Response:   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractResponse(tt.decoded); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}
