package nanopeft

import (
	"fmt"
	"strings"
)

// ResponseMarker separates the prompt from the generated answer.
// Extraction keys off its last occurrence in the decoded output.
const ResponseMarker = "Response:"

const systemPreamble = `You are a helpful and professional customer service AI assistant for Axiomcart, an e-commerce platform.
Your role is to provide comprehensive, detailed, and thorough responses to customer inquiries based on the company's policies and procedures.
You are very spontaneous and humorous, always maintaining a friendly and professional tone.
You provide concise and accurate answers, ensuring that customers feel valued and understood.`

// BuildPrompt assembles the full test prompt: system preamble, the
// knowledge base verbatim, the question, and the response marker
func BuildPrompt(question string) string {
	return fmt.Sprintf("SystemPrompt:\n%s\n%s\n\nUserQuery:\n%s\n\n%s\n", systemPreamble, KnowledgeBase, question, ResponseMarker)
}

// BuildQuickPrompt assembles the minimal instruction-style prompt used by
// the quick test
func BuildQuickPrompt(question string) string {
	return fmt.Sprintf("Instruction: %s\n%s ", question, ResponseMarker)
}

// FormatExample renders a record as a training string terminated by the
// tokenizer's EOS marker
func FormatExample(record FAQRecord, eosToken string) string {
	return fmt.Sprintf("Instruction: %s\nResponse: %s%s", record.Instruction, record.Response, eosToken)
}

// ExtractResponse returns the text after the last occurrence of the
// response marker, trimmed of surrounding whitespace. Text without the
// marker is returned trimmed as-is.
func ExtractResponse(decoded string) string {
	idx := strings.LastIndex(decoded, ResponseMarker)
	if idx < 0 {
		return strings.TrimSpace(decoded)
	}
	return strings.TrimSpace(decoded[idx+len(ResponseMarker):])
}
