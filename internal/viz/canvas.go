package viz

import (
	"math"
	"strings"
)

// Braille cells hold 2x4 dots, bit layout:
// 1 4
// 2 5
// 3 6
// 7 8
var pixelMap = [4][2]rune{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const brailleBlank = 0x2800

// Canvas is a Braille pixel canvas of Width x Height cells, giving
// (2*Width) x (4*Height) dots.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, Grid: make([][]rune, h)}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Set lights the dot at (x, y), y growing downwards. Out of range dots are
// ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 || x >= 2*c.Width || y >= 4*c.Height {
		return
	}
	c.Grid[y/4][x/2] |= pixelMap[y%4][x%2]
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = brailleBlank
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx, dy := absInt(x1-x0), absInt(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx - dy
	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// Viewport maps data coordinates onto canvas dots.
type Viewport struct {
	MinX, MaxX, MinY, MaxY float64
}

// Fit returns the smallest viewport containing every (xs[i], ys[i]).
func Fit(xs, ys []float64) Viewport {
	v := Viewport{math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)}
	for i := range xs {
		v.MinX, v.MaxX = math.Min(v.MinX, xs[i]), math.Max(v.MaxX, xs[i])
		v.MinY, v.MaxY = math.Min(v.MinY, ys[i]), math.Max(v.MaxY, ys[i])
	}
	if v.MaxX <= v.MinX {
		v.MinX, v.MaxX = v.MinX-0.5, v.MinX+0.5
	}
	if v.MaxY <= v.MinY {
		v.MinY, v.MaxY = v.MinY-0.5, v.MinY+0.5
	}
	return v
}

func (c *Canvas) project(v Viewport, x, y float64) (int, int) {
	px := int(math.Round((x - v.MinX) / (v.MaxX - v.MinX) * float64(2*c.Width-1)))
	py := int(math.Round((v.MaxY - y) / (v.MaxY - v.MinY) * float64(4*c.Height-1)))
	return px, py
}

// Polyline draws the connected curve through the points.
func (c *Canvas) Polyline(v Viewport, xs, ys []float64) {
	if len(xs) == 0 {
		return
	}
	px, py := c.project(v, xs[0], ys[0])
	c.Set(px, py)
	for i := 1; i < len(xs); i++ {
		qx, qy := c.project(v, xs[i], ys[i])
		c.DrawLine(px, py, qx, qy)
		px, py = qx, qy
	}
}

// Mark draws a small cross centred on a data point.
func (c *Canvas) Mark(v Viewport, x, y float64) {
	px, py := c.project(v, x, y)
	for d := -1; d <= 1; d++ {
		c.Set(px+d, py)
		c.Set(px, py+d)
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
