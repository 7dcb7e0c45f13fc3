package codegen

import "strings"

// Printer receives emitted source. The generator never opens files; the
// driver decides where the text goes.
type Printer interface {
	Write(text string)
	Newline()
}

// TextPrinter is a Printer that buffers text and indents each line by the
// current block depth. Text written with embedded newlines, such as a
// rendered closure, is indented as a continuation of the current line.
type TextPrinter struct {
	buf     strings.Builder
	depth   int
	midLine bool
}

// Write appends text to the current line.
func (p *TextPrinter) Write(text string) {
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			p.Newline()
		}
		if line == "" {
			continue
		}
		if !p.midLine {
			p.buf.WriteString(strings.Repeat("\t", p.depth))
			p.midLine = true
		}
		p.buf.WriteString(line)
	}
}

// Newline ends the current line.
func (p *TextPrinter) Newline() {
	p.buf.WriteByte('\n')
	p.midLine = false
}

// Line writes text followed by a newline.
func (p *TextPrinter) Line(text string) {
	p.Write(text)
	p.Newline()
}

// Indent increases the indentation of following lines.
func (p *TextPrinter) Indent() { p.depth++ }

// Dedent decreases the indentation of following lines.
func (p *TextPrinter) Dedent() {
	if p.depth > 0 {
		p.depth--
	}
}

// String returns everything written so far.
func (p *TextPrinter) String() string {
	return p.buf.String()
}
