package nanopeft

import (
	"fmt"
	"strings"
)

// PromptFunc builds the full generation prompt for a question
type PromptFunc func(question string) string

// ResponseTester asks a model a fixed list of questions and prints the
// extracted answers for human inspection. Nothing is checked against
// expected output.
type ResponseTester struct {
	engine  *Engine
	params  *GenerationParams
	prompt  PromptFunc
	printer *Printer
}

// NewResponseTester creates a new response tester
func NewResponseTester(engine *Engine, params *GenerationParams, prompt PromptFunc, printer *Printer) *ResponseTester {
	return &ResponseTester{
		engine:  engine,
		params:  params,
		prompt:  prompt,
		printer: printer,
	}
}

// Run generates and prints an answer for every question. Generation is
// the slow part, so it runs as one batch behind a progress bar before
// any answers are printed.
func (rt *ResponseTester) Run(questions []string, label string) error {
	rt.printer.Printf("🧪 TESTING %s\n", strings.ToUpper(label))
	rt.printer.Rule("=", 80)

	prompts := make([]string, len(questions))
	for i, question := range questions {
		prompts[i] = rt.prompt(question)
	}

	outputs, err := rt.engine.GenerateAll(prompts, rt.params, len(prompts) > 1)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	for i, out := range outputs {
		rt.printer.Printf("❓ Question %d: %s\n", i+1, questions[i])
		rt.printer.Printf("💬 Response: %s\n", ExtractResponse(out.Text))
		rt.printer.Rule("-", 80)
	}

	return nil
}
