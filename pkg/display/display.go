// Package display models the grinder's TFT as a set of positioned text
// cells. Screens are drawn by filling the canvas and printing cells; a
// Flush hands the finished frame to the attached sinks.
package display

import (
	"sort"
	"sync"
)

type Color string

const (
	Red     Color = "red"
	Green   Color = "green"
	Blue    Color = "blue"
	Cyan    Color = "cyan"
	Magenta Color = "magenta"
	White   Color = "white"
)

// Point is a pixel position on the 128x128 panel.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Cell struct {
	Point
	Color Color  `json:"color"`
	Text  string `json:"text"`
}

// Frame is the full content of the panel, ordered top-to-bottom then
// left-to-right.
type Frame struct {
	Cells []Cell `json:"cells"`
}

// Text returns the text at p, or "" if the cell is empty.
func (f Frame) Text(p Point) string {
	for _, c := range f.Cells {
		if c.Point == p {
			return c.Text
		}
	}
	return ""
}

// Sink receives every flushed frame.
type Sink interface {
	Show(Frame)
}

// Canvas is safe for concurrent use. Drawing normally happens on the
// control loop while Snapshot is called from API handlers.
type Canvas struct {
	mu    sync.RWMutex
	cells map[Point]Cell
	last  Frame
	sinks []Sink
	fills int
}

func NewCanvas(sinks ...Sink) *Canvas {
	return &Canvas{cells: make(map[Point]Cell), sinks: sinks}
}

// Fill clears the whole panel.
func (c *Canvas) Fill() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cells = make(map[Point]Cell)
	c.fills++
}

// Print draws text at p, replacing whatever was there.
func (c *Canvas) Print(p Point, color Color, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cells[p] = Cell{Point: p, Color: color, Text: text}
}

// Erase clears the cell at p.
func (c *Canvas) Erase(p Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cells, p)
}

// Flush publishes the current content to the sinks.
func (c *Canvas) Flush() {
	c.mu.Lock()
	f := c.frameLocked()
	c.last = f
	sinks := c.sinks
	c.mu.Unlock()

	for _, s := range sinks {
		s.Show(f)
	}
}

// Snapshot returns the last flushed frame.
func (c *Canvas) Snapshot() Frame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// Fills returns how many times the panel has been cleared.
func (c *Canvas) Fills() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fills
}

func (c *Canvas) frameLocked() Frame {
	cells := make([]Cell, 0, len(c.cells))
	for _, cell := range c.cells {
		cells = append(cells, cell)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Y != cells[j].Y {
			return cells[i].Y < cells[j].Y
		}
		return cells[i].X < cells[j].X
	})
	return Frame{Cells: cells}
}
