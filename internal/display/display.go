// Package display renders the fixed-position robot status readout.
package display

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/e3deploy/internal/dynamo"
	"github.com/san-kum/e3deploy/internal/mode"
	"github.com/san-kum/e3deploy/internal/viewer"
)

// DefaultFilterAlpha smooths the measured velocity before display.
const DefaultFilterAlpha = 0.3

// Lines is the number of rows rewritten on every refresh.
const Lines = 4

const (
	clearLine = "\r\x1b[2K"
	eol       = "\r\n"
	width     = 70
)

type Status struct {
	Mode           mode.Mode
	Tracking       bool
	ShowForces     bool
	ShowContacts   bool
	CameraControl  bool
	ResetRequested bool
	Camera         viewer.Camera
	Disturbance    float64
}

type styles struct {
	banner  lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	flag    lipgloss.Style
	info    lipgloss.Style
	warning lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		banner:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ffff")),
		label:   r.NewStyle().Foreground(lipgloss.Color("#888899")),
		value:   r.NewStyle().Foreground(lipgloss.Color("#00ccff")),
		flag:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff88")),
		info:    r.NewStyle().Italic(true).Foreground(lipgloss.Color("#ffaa00")),
		warning: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff4444")),
	}
}

// Terminal writes the header once and then redraws the same block of
// lines in place. Line endings are CRLF so output stays aligned while the
// keyboard source holds the terminal in raw mode.
type Terminal struct {
	w        io.Writer
	alpha    float64
	filtered dynamo.Vec3
	primed   bool
	started  bool
	message  string
	st       styles
}

func NewTerminal(w io.Writer, alpha float64) *Terminal {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultFilterAlpha
	}
	return &Terminal{
		w:     w,
		alpha: alpha,
		st:    newStyles(lipgloss.NewRenderer(w)),
	}
}

// Notify queues a message shown on the next refresh only.
func (t *Terminal) Notify(msg string) { t.message = msg }

// Filtered returns the low-pass filtered actual velocity.
func (t *Terminal) Filtered() dynamo.Vec3 { return t.filtered }

// ResetFilter makes the next sample seed the filter.
func (t *Terminal) ResetFilter() { t.primed = false }

func (t *Terminal) filter(actual dynamo.Vec3) dynamo.Vec3 {
	if !t.primed {
		t.filtered = actual
		t.primed = true
		return t.filtered
	}
	t.filtered = actual.Scale(t.alpha).Add(t.filtered.Scale(1 - t.alpha))
	return t.filtered
}

func (t *Terminal) header() string {
	rule := strings.Repeat("=", width)
	title := strings.Repeat(" ", 15) + "Robot Status Display"
	var b strings.Builder
	b.WriteString(eol)
	b.WriteString(rule + eol)
	b.WriteString(t.st.banner.Render(title) + eol)
	b.WriteString(rule + eol)
	for i := 0; i < Lines; i++ {
		b.WriteString(eol)
	}
	return b.String()
}

// Render refreshes the status block. actual is the measured base velocity
// {vx, vy, wz}; the error shown is filtered actual minus command.
func (t *Terminal) Render(cmd dynamo.Command, actual dynamo.Vec3, s Status) error {
	var b strings.Builder
	if !t.started {
		b.WriteString(t.header())
		t.started = true
	}
	act := t.filter(actual)
	errv := act.Sub(cmd.Vec())

	fmt.Fprintf(&b, "\x1b[%dA", Lines)

	b.WriteString(clearLine)
	fmt.Fprintf(&b, "  %s Cmd=%s  Act=%s  Err=%s",
		t.st.label.Render("Velocity:"),
		t.st.value.Render(triple(cmd.Vec())),
		t.st.value.Render(triple(act)),
		t.st.value.Render(triple(errv)))
	b.WriteString(eol)

	b.WriteString(clearLine)
	b.WriteString("  " + t.statusLine(s))
	b.WriteString(eol)

	b.WriteString(clearLine)
	b.WriteString("  " + t.cameraLine(s))
	b.WriteString(eol)

	b.WriteString(clearLine)
	if t.message != "" {
		b.WriteString("  " + t.st.label.Render("Info:") + " " + t.st.info.Render(t.message))
		t.message = ""
	}
	b.WriteString(eol)

	_, err := io.WriteString(t.w, b.String())
	return err
}

func (t *Terminal) statusLine(s Status) string {
	parts := []string{fmt.Sprintf("Mode:%s(%d)", s.Mode, int(s.Mode))}
	if s.Tracking {
		parts = append(parts, t.st.flag.Render("Y:Track"))
	}
	if s.ShowForces {
		parts = append(parts, t.st.flag.Render("X:Force"))
	}
	if s.ShowContacts {
		parts = append(parts, t.st.flag.Render("A:Contact"))
	}
	if s.CameraControl {
		parts = append(parts, t.st.flag.Render("R:Camera"))
	}
	if s.ResetRequested {
		parts = append(parts, t.st.warning.Render("B:Reset"))
	}
	return strings.Join(parts, " | ")
}

func (t *Terminal) cameraLine(s Status) string {
	line := fmt.Sprintf("Camera: Angle=%6.1f° Elev=%6.1f° Dist=%5.2fm",
		degrees(s.Camera.Angle), degrees(s.Camera.Elevation), s.Camera.Distance)
	if s.Disturbance > 1e-6 {
		line += " | " + t.st.warning.Render(fmt.Sprintf("Disturbance: %6.2fN", s.Disturbance))
	}
	return line
}

func triple(v dynamo.Vec3) string {
	return fmt.Sprintf("[%6.3f, %6.3f, %6.3f]", v[0], v[1], v[2])
}

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
