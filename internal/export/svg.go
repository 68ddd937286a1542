// Package export renders stored trajectories to vector graphics.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/san-kum/odesim/internal/viz"
)

// ErrNoPoints is returned when there is nothing to draw.
var ErrNoPoints = errors.New("export: need at least two points")

const background = "#0a0a0a"

// Braille dot masks in the same layout viz.Canvas uses.
var dotMask = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// CanvasSVG writes every lit dot of the canvas as an SVG circle. Each dot
// occupies a scale x scale square.
func CanvasSVG(w io.Writer, canvas *viz.Canvas, scale float64, color string) error {
	if canvas == nil {
		return ErrNoPoints
	}
	width := float64(canvas.Width) * scale * 2
	height := float64(canvas.Height) * scale * 4

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="%s"/>
<g fill="%s">
`, width, height, width, height, background, color)

	r := scale * 0.4
	for row := range canvas.Grid {
		for col, cell := range canvas.Grid[row] {
			if cell <= 0x2800 {
				continue
			}
			bits := cell - 0x2800
			for dy := range 4 {
				for dx := range 2 {
					if bits&dotMask[dy][dx] == 0 {
						continue
					}
					cx := (float64(col*2+dx) + 0.5) * scale
					cy := (float64(row*4+dy) + 0.5) * scale
					fmt.Fprintf(bw, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n", cx, cy, r)
				}
			}
		}
	}
	bw.WriteString("</g>\n</svg>\n")
	return bw.Flush()
}

// PathSVG writes the curve through (xs[i], ys[i]) as a single SVG path,
// fitted to width x height with a 10% margin.
func PathSVG(w io.Writer, xs, ys []float64, width, height int, color string) error {
	n := min(len(xs), len(ys))
	if n < 2 {
		return ErrNoPoints
	}
	v := viz.Fit(xs[:n], ys[:n])
	padX, padY := 0.1*(v.MaxX-v.MinX), 0.1*(v.MaxY-v.MinY)
	v.MinX, v.MaxX = v.MinX-padX, v.MaxX+padX
	v.MinY, v.MaxY = v.MinY-padY, v.MaxY+padY

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="`,
		width, height, width, height, background, color)

	for i := range n {
		x := (xs[i] - v.MinX) / (v.MaxX - v.MinX) * float64(width)
		y := (v.MaxY - ys[i]) / (v.MaxY - v.MinY) * float64(height)
		op := " L"
		if i == 0 {
			op = "M"
		}
		fmt.Fprintf(bw, "%s%.1f,%.1f", op, x, y)
	}
	bw.WriteString("\"/>\n</svg>\n")
	return bw.Flush()
}
