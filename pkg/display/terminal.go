package display

import (
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/fatih/color"
)

var palette = map[Color]*color.Color{
	Red:     color.New(color.FgRed, color.Bold),
	Green:   color.New(color.FgGreen, color.Bold),
	Blue:    color.New(color.FgBlue),
	Cyan:    color.New(color.FgCyan),
	Magenta: color.New(color.FgMagenta, color.Bold),
	White:   color.New(color.FgWhite),
}

// Columns between the two x positions the screens use.
const splitX = 80

// Render writes f to w as text. Cells sharing a row are laid out in two
// columns, mirroring the left/right halves of the panel.
func Render(w io.Writer, f Frame) error {
	var b strings.Builder
	for i := 0; i < len(f.Cells); {
		y := f.Cells[i].Y
		col := 0
		for ; i < len(f.Cells) && f.Cells[i].Y == y; i++ {
			c := f.Cells[i]
			if c.X >= splitX && col < 16 {
				b.WriteString(strings.Repeat(" ", 16-col))
				col = 16
			}
			p, ok := palette[c.Color]
			if !ok {
				p = palette[White]
			}
			b.WriteString(p.Sprint(c.Text))
			col += len(c.Text)
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

var _ Sink = (*Terminal)(nil)

// Terminal is a Sink that renders changed frames to a writer.
type Terminal struct {
	mu   sync.Mutex
	w    io.Writer
	last Frame
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) Show(f Frame) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if reflect.DeepEqual(t.last, f) {
		return
	}
	t.last = f
	_, _ = io.WriteString(t.w, "\x1b[2J\x1b[H")
	_ = Render(t.w, f)
}
