package analysis

import (
	"math"
	"strings"
)

// Point is one projected sample.
type Point struct {
	X, Y float64
}

type bounds struct {
	minX, maxX, minY, maxY float64
}

func boundsOf(points []Point, pad float64) bounds {
	b := bounds{
		minX: math.Inf(1), maxX: math.Inf(-1),
		minY: math.Inf(1), maxY: math.Inf(-1),
	}
	for _, p := range points {
		b.minX = math.Min(b.minX, p.X)
		b.maxX = math.Max(b.maxX, p.X)
		b.minY = math.Min(b.minY, p.Y)
		b.maxY = math.Max(b.maxY, p.Y)
	}
	rangeX, rangeY := b.maxX-b.minX, b.maxY-b.minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	b.minX -= rangeX * pad
	b.maxX += rangeX * pad
	b.minY -= rangeY * pad
	b.maxY += rangeY * pad
	return b
}

func (b bounds) cell(p Point, width, height int) (row, col int) {
	col = int((p.X - b.minX) / (b.maxX - b.minX) * float64(width-1))
	row = height - 1 - int((p.Y-b.minY)/(b.maxY-b.minY)*float64(height-1))
	return row, col
}

// plotPoints renders points on a width x height character canvas, drawing
// the coordinate axes when they cross the visible area.
func plotPoints(points []Point, width, height int, mark rune, axes bool) string {
	if len(points) == 0 || width <= 1 || height <= 1 {
		return ""
	}
	b := boundsOf(points, 0.1)

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}
	for _, p := range points {
		row, col := b.cell(p, width, height)
		if row >= 0 && row < height && col >= 0 && col < width {
			canvas[row][col] = mark
		}
	}

	if axes {
		if b.minX <= 0 && b.maxX >= 0 {
			_, col := b.cell(Point{}, width, height)
			for row := range canvas {
				if canvas[row][col] == ' ' {
					canvas[row][col] = '│'
				}
			}
		}
		if b.minY <= 0 && b.maxY >= 0 {
			row, _ := b.cell(Point{}, width, height)
			for col := range canvas[row] {
				if canvas[row][col] == ' ' {
					canvas[row][col] = '─'
				}
			}
		}
	}

	var sb strings.Builder
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}
