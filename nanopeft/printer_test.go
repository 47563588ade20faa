package nanopeft

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrinterPassThrough(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	p.Println("🚀 launch")

	if buf.String() != "🚀 launch\n" {
		t.Errorf("Expected emoji preserved, got %q", buf.String())
	}
}

func TestPrinterASCIIOnlyStrips(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true)

	p.Println("🚀 Rocket emoji test")

	if buf.String() != " Rocket emoji test\n" {
		t.Errorf("Expected stripped output, got %q", buf.String())
	}
}

func TestPrinterASCIIOnlyKeepsASCII(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true)

	p.Printf("step %d/%d\n", 3, 40)

	if buf.String() != "step 3/40\n" {
		t.Errorf("ASCII text must pass unchanged, got %q", buf.String())
	}
}

func TestPrinterRule(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	p.Rule("=", 10)

	if buf.String() != strings.Repeat("=", 10)+"\n" {
		t.Errorf("Expected rule of 10, got %q", buf.String())
	}
}

func TestStripNonASCII(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"plain ascii", "plain ascii"},
		{"🎉 party 🎉", " party "},
		{"voilà", "voil"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := StripNonASCII(tt.in); got != tt.expected {
			t.Errorf("StripNonASCII(%q) = %q, expected %q", tt.in, got, tt.expected)
		}
	}
}

// failWriter fails on non-ASCII payloads the way a narrow console would
type failWriter struct {
	buf      bytes.Buffer
	attempts int
}

func (w *failWriter) Write(p []byte) (int, error) {
	w.attempts++
	for _, b := range p {
		if b >= 128 {
			return 0, &encodingError{}
		}
	}
	return w.buf.Write(p)
}

type encodingError struct{}

func (e *encodingError) Error() string { return "encoding failed" }

func TestPrinterRetriesOnWriteError(t *testing.T) {
	w := &failWriter{}
	p := NewPrinter(w, false)

	p.Println("✅ done")

	if w.buf.String() != " done\n" {
		t.Errorf("Expected stripped retry output, got %q", w.buf.String())
	}
	if w.attempts != 2 {
		t.Errorf("Expected one failed write and one retry, got %d attempts", w.attempts)
	}
}
