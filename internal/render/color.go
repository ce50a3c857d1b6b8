package render

import (
	"fmt"
	"os"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mattn/go-isatty"

	"github.com/xeruf/mostr/internal/nostrevent"
)

// DetectColor reports whether out is a terminal that should receive ANSI
// color codes.
func DetectColor(out *os.File) bool {
	return isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())
}

// palette maps task state and progress to ANSI 24-bit color escapes,
// computed with go-colorful so the progress gradient is perceptually even
// (blended in Luv space) rather than a naive RGB lerp. enabled false makes
// every method a no-op passthrough, for piped/non-terminal output.
type palette struct {
	enabled bool
}

func newPalette(enabled bool) *palette {
	return &palette{enabled: enabled}
}

var (
	progressLow  = colorful.Color{R: 0.8, G: 0.2, B: 0.2}
	progressHigh = colorful.Color{R: 0.2, G: 0.75, B: 0.3}
)

func (p *palette) progress(pct int) string {
	text := fmt.Sprintf("%d%%", pct)
	if !p.enabled {
		return text
	}
	t := float64(pct) / 100
	c := progressLow.BlendLuv(progressHigh, t)
	return ansify(c, text)
}

func (p *palette) state(kind nostrevent.Kind, label string) string {
	if !p.enabled {
		return label
	}
	var c colorful.Color
	switch kind {
	case nostrevent.KindDone:
		c = colorful.Color{R: 0.2, G: 0.75, B: 0.3}
	case nostrevent.KindClosed:
		c = colorful.Color{R: 0.5, G: 0.5, B: 0.5}
	case nostrevent.KindPending:
		c = colorful.Color{R: 0.85, G: 0.65, B: 0.15}
	default: // Open
		c = colorful.Color{R: 0.3, G: 0.55, B: 0.9}
	}
	return ansify(c, label)
}

func (p *palette) errorText(text string) string {
	if !p.enabled {
		return text
	}
	return ansify(colorful.Color{R: 0.85, G: 0.2, B: 0.2}, text)
}

func ansify(c colorful.Color, text string) string {
	r, g, b := c.RGB255()
	return fmt.Sprintf("\x1b[38;2;%d;%d;%dm%s\x1b[0m", r, g, b, text)
}
