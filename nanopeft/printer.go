package nanopeft

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Printer writes human-readable progress text with a fallback for sinks
// that cannot encode characters outside the ASCII range. This is the only
// local error recovery in the toolkit; everything else is fatal.
type Printer struct {
	w         io.Writer
	asciiOnly bool
}

// NewPrinter creates a printer over the given sink. asciiOnly forces the
// strip-and-retry path for every write.
func NewPrinter(w io.Writer, asciiOnly bool) *Printer {
	return &Printer{w: w, asciiOnly: asciiOnly}
}

// NewConsolePrinter creates a printer over stdout, detecting from the
// environment whether the console only accepts ASCII
func NewConsolePrinter() *Printer {
	return NewPrinter(os.Stdout, consoleIsASCIIOnly())
}

// consoleIsASCIIOnly reports whether the console locale rules out
// non-ASCII output
func consoleIsASCIIOnly() bool {
	if runtime.GOOS == "windows" {
		return true
	}
	locale := os.Getenv("LC_ALL")
	if locale == "" {
		locale = os.Getenv("LANG")
	}
	if locale == "" {
		return false
	}
	upper := strings.ToUpper(locale)
	return !strings.Contains(upper, "UTF-8") && !strings.Contains(upper, "UTF8")
}

// Println prints the text followed by a newline, stripping non-ASCII
// characters when the sink cannot encode them
func (p *Printer) Println(text string) {
	line := text + "\n"
	if p.asciiOnly {
		io.WriteString(p.w, StripNonASCII(line))
		return
	}
	if _, err := io.WriteString(p.w, line); err != nil {
		io.WriteString(p.w, StripNonASCII(line))
	}
}

// Printf formats and prints with the same encoding fallback as Println
func (p *Printer) Printf(format string, args ...interface{}) {
	p.print(fmt.Sprintf(format, args...))
}

func (p *Printer) print(text string) {
	if p.asciiOnly {
		io.WriteString(p.w, StripNonASCII(text))
		return
	}
	if _, err := io.WriteString(p.w, text); err != nil {
		io.WriteString(p.w, StripNonASCII(text))
	}
}

// Rule prints a horizontal rule of the given width
func (p *Printer) Rule(ch string, width int) {
	p.Println(strings.Repeat(ch, width))
}

// StripNonASCII drops every character outside the 0-127 range
func StripNonASCII(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
