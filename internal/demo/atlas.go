// Package demo builds the sample scene the hosts render: a procedural atlas
// of animated sprites and a frame source moving a number of them around.
package demo

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"
)

// AtlasLayout describes a grid of equally sized cells. Each column holds one
// animation, its rows are the frames top to bottom.
type AtlasLayout struct {
	Columns    int
	Rows       int
	CellWidth  int
	CellHeight int
}

func (l AtlasLayout) Size() (width, height int) {
	return l.Columns * l.CellWidth, l.Rows * l.CellHeight
}

// Cell returns the texture offset and size of a cell in normalized units.
func (l AtlasLayout) Cell(column, row int) (u, v, du, dv float32) {
	du, dv = 1/float32(l.Columns), 1/float32(l.Rows)
	return float32(column) * du, float32(row) * dv, du, dv
}

// GenerateAtlas draws a spinning gear per column, one rotation step per
// row. Alpha is either 0 or 255 so identity pixels carry whole ids.
func GenerateAtlas(l AtlasLayout) *image.NRGBA {
	w, h := l.Size()
	atlas := image.NewNRGBA(image.Rect(0, 0, w, h))
	for col := 0; col < l.Columns; col++ {
		fill := image.NewUniform(columnColor(col, l.Columns))
		for row := 0; row < l.Rows; row++ {
			cell := image.Rect(col*l.CellWidth, row*l.CellHeight, (col+1)*l.CellWidth, (row+1)*l.CellHeight)
			angle := 2 * math.Pi * float64(row) / float64(l.Rows)
			drawGear(atlas, cell, fill, angle, 5+col%4)
		}
	}
	binarizeAlpha(atlas)
	return atlas
}

func drawGear(dst draw.Image, cell image.Rectangle, src image.Image, angle float64, teeth int) {
	z := vector.NewRasterizer(cell.Dx(), cell.Dy())
	z.DrawOp = draw.Over
	cx, cy := float64(cell.Dx())/2, float64(cell.Dy())/2
	outer := math.Min(cx, cy) * 0.95
	inner := outer * 0.72
	steps := teeth * 4
	for i := 0; i <= steps; i++ {
		r := inner
		if i%4 == 1 || i%4 == 2 {
			r = outer
		}
		a := angle + 2*math.Pi*float64(i)/float64(steps)
		x, y := float32(cx+r*math.Cos(a)), float32(cy+r*math.Sin(a))
		if i == 0 {
			z.MoveTo(x, y)
		} else {
			z.LineTo(x, y)
		}
	}
	z.ClosePath()
	z.Draw(dst, cell, src, image.Point{})
}

// columnColor spreads the columns over the hue circle.
func columnColor(col, columns int) color.NRGBA {
	hue := float64(col) / float64(max(columns, 1))
	r, g, b := hsv(hue, 0.65, 0.95)
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

func hsv(h, s, v float64) (uint8, uint8, uint8) {
	i := math.Floor(h * 6)
	f := h*6 - i
	p, q, t := v*(1-s), v*(1-f*s), v*(1-(1-f)*s)
	var r, g, b float64
	switch int(i) % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return uint8(r*255 + 0.5), uint8(g*255 + 0.5), uint8(b*255 + 0.5)
}

func binarizeAlpha(img *image.NRGBA) {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] >= 128 {
			img.Pix[i] = 255
		} else {
			img.Pix[i-3], img.Pix[i-2], img.Pix[i-1], img.Pix[i] = 0, 0, 0, 0
		}
	}
}
