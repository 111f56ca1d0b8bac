package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Printer writes the startup banner and labelled info lines. Lines end in
// CRLF like the status block.
type Printer struct {
	w  io.Writer
	st styles
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, st: newStyles(lipgloss.NewRenderer(w))}
}

func (p *Printer) Header(title string) {
	rule := strings.Repeat("=", width)
	pad := (width - len(title)) / 2
	if pad < 0 {
		pad = 0
	}
	fmt.Fprint(p.w, eol+p.st.banner.Render(rule)+eol)
	fmt.Fprint(p.w, p.st.banner.Render(strings.Repeat(" ", pad)+title)+eol)
	fmt.Fprint(p.w, p.st.banner.Render(rule)+eol)
}

func (p *Printer) Section(title string) {
	fmt.Fprint(p.w, eol+p.st.flag.Render("▶ "+title)+eol)
}

func (p *Printer) Info(label string, value any) {
	fmt.Fprintf(p.w, "  %s %s%s", p.st.label.Render(label+":"), p.st.value.Render(fmt.Sprint(value)), eol)
}

func (p *Printer) Warning(msg string) {
	fmt.Fprint(p.w, "  "+p.st.warning.Render("⚠ "+msg)+eol)
}
