// Package chart renders detection matrices as oblique 3D bar charts.
package chart

import (
	"image/color"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var (
	baseColor     = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	intervalColor = color.RGBA{R: 0x00, G: 0xce, B: 0xaa, A: 0xff}
	floorColor    = color.Gray{Y: 0x99}
)

// obliqueX and obliqueY are the screen offsets of one unit along the depth
// axis, in data units of m and probability respectively.
const (
	obliqueX = 0.35
	obliqueY = 0.12
)

// bar is a stacked column at grid position (m, d) with a base segment
// [0, lower] and a highlighted segment [lower, upper].
type bar struct {
	m, d         int
	lower, upper float64
}

// bars3D is a plot.Plotter drawing stacked bars in oblique projection
type bars3D struct {
	bars   []bar
	n      int
	width  float64
	depth  float64
	dStyle draw.TextStyle
	dTitle string
}

type point3 struct {
	x, dd, z float64
}

func project(p point3) (float64, float64) {
	return p.x + p.dd*obliqueX, p.z + p.dd*obliqueY
}

// DataRange implements plot.DataRanger
func (b *bars3D) DataRange() (xmin, xmax, ymin, ymax float64) {
	maxDepth := float64(b.n-1) + b.depth
	return 1 - 0.3, float64(b.n) + b.width + maxDepth*obliqueX + 0.6, 0, 1 + maxDepth*obliqueY + 0.02
}

// Plot implements plot.Plotter
func (b *bars3D) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	toVG := func(p point3) vg.Point {
		x, y := project(p)
		return vg.Point{X: trX(x), Y: trY(y)}
	}

	b.drawFloor(c, toVG)

	// back rows first so nearer rows paint over them
	for d := b.n; d >= 1; d-- {
		for _, br := range b.bars {
			if br.d != d {
				continue
			}
			b.drawBox(c, toVG, br, 0, br.lower, baseColor)
			b.drawBox(c, toVG, br, br.lower, br.upper, intervalColor)
		}
	}

	b.drawDepthAxis(c, toVG)
}

func (b *bars3D) drawFloor(c draw.Canvas, toVG func(point3) vg.Point) {
	x0, x1 := 1-0.2, float64(b.n)+b.width+0.2
	back := float64(b.n-1) + b.depth
	sty := draw.LineStyle{Color: floorColor, Width: vg.Points(0.5)}
	c.StrokeLines(sty, []vg.Point{
		toVG(point3{x0, back, 0}),
		toVG(point3{x0, 0, 0}),
		toVG(point3{x1, 0, 0}),
		toVG(point3{x1, back, 0}),
		toVG(point3{x0, back, 0}),
	})
	for d := 1; d <= b.n; d++ {
		dd := float64(d-1) + b.depth/2
		c.StrokeLines(sty, []vg.Point{toVG(point3{x0, dd, 0}), toVG(point3{x1, dd, 0})})
	}
}

func (b *bars3D) drawBox(c draw.Canvas, toVG func(point3) vg.Point, br bar, z0, z1 float64, clr color.RGBA) {
	if z1 <= z0 {
		return
	}
	x0 := float64(br.m)
	x1 := x0 + b.width
	d0 := float64(br.d - 1)
	d1 := d0 + b.depth

	front := []vg.Point{
		toVG(point3{x0, d0, z0}), toVG(point3{x1, d0, z0}),
		toVG(point3{x1, d0, z1}), toVG(point3{x0, d0, z1}),
	}
	side := []vg.Point{
		toVG(point3{x1, d0, z0}), toVG(point3{x1, d1, z0}),
		toVG(point3{x1, d1, z1}), toVG(point3{x1, d0, z1}),
	}
	top := []vg.Point{
		toVG(point3{x0, d0, z1}), toVG(point3{x1, d0, z1}),
		toVG(point3{x1, d1, z1}), toVG(point3{x0, d1, z1}),
	}

	edge := draw.LineStyle{Color: shade(clr, 0.5), Width: vg.Points(0.3)}
	for _, face := range []struct {
		pts    []vg.Point
		factor float64
	}{
		{front, 0.85},
		{side, 0.65},
		{top, 1.15},
	} {
		c.FillPolygon(shade(clr, face.factor), face.pts)
		c.StrokeLines(edge, append(face.pts, face.pts[0]))
	}
}

func (b *bars3D) drawDepthAxis(c draw.Canvas, toVG func(point3) vg.Point) {
	x := float64(b.n) + b.width + 0.3
	sty := b.dStyle
	sty.XAlign = draw.XLeft
	sty.YAlign = draw.YCenter
	for d := 1; d <= b.n; d++ {
		dd := float64(d-1) + b.depth/2
		c.FillText(sty, toVG(point3{x, dd, 0}), strconv.Itoa(d))
	}

	title := b.dStyle
	title.XAlign = draw.XCenter
	title.YAlign = draw.YTop
	mid := (float64(b.n-1) + b.depth) / 2
	pt := toVG(point3{x + 0.2, mid, 0})
	pt.Y -= title.Height(b.dTitle)
	c.FillText(title, pt, b.dTitle)
}

// shade scales a colour's brightness, clamping each channel
func shade(c color.RGBA, factor float64) color.RGBA {
	scale := func(v uint8) uint8 {
		f := float64(v) * factor
		if f > 255 {
			f = 255
		}
		return uint8(f)
	}
	return color.RGBA{R: scale(c.R), G: scale(c.G), B: scale(c.B), A: c.A}
}
