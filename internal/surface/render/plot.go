// Package render draws fields and distributions, as PNG images through
// gonum/plot and as interactive HTML pages through go-echarts.
package render

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/surface.report/internal/surface/field"
)

// paletteSize is the number of colours in heatmap palettes.
const paletteSize = 256

// Size is the extent of a rendered PNG.
type Size struct {
	Width, Height vg.Length
}

// DefaultSize is used when a zero Size is passed.
var DefaultSize = Size{Width: 6 * vg.Inch, Height: 5 * vg.Inch}

func (s Size) orDefault() Size {
	if s.Width <= 0 || s.Height <= 0 {
		return DefaultSize
	}
	return s
}

// fieldGrid adapts a field to plotter.GridXYZ. Cells are centred on pixel
// centres in physical coordinates.
type fieldGrid struct {
	f *field.Field
}

func (g fieldGrid) Dims() (c, r int) { return g.f.XRes(), g.f.YRes() }
func (g fieldGrid) Z(c, r int) float64 { return g.f.Get(c, r) }
func (g fieldGrid) X(c int) float64 {
	return g.f.XOffset() + (float64(c)+0.5)*g.f.DX()
}
func (g fieldGrid) Y(r int) float64 {
	return g.f.YOffset() + (float64(r)+0.5)*g.f.DY()
}

// finiteRange returns the range of the finite values of data. ok is false
// when there are none.
func finiteRange(data []float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo, hi = min(lo, v), max(hi, v)
	}
	return lo, hi, lo <= hi
}

// HeatmapPlot builds a heatmap of f with row 0 at the top, like an image.
func HeatmapPlot(f *field.Field, title string) (*plot.Plot, error) {
	lo, hi, ok := finiteRange(f.Data())
	if !ok {
		return nil, fmt.Errorf("field has no finite values")
	}
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	cmap := moreland.ExtendedBlackBody()
	cmap.SetMin(0)
	cmap.SetMax(1)

	hm := plotter.NewHeatMap(fieldGrid{f}, cmap.Palette(paletteSize))
	hm.Min, hm.Max = lo, hi
	hm.NaN = color.Transparent
	hm.Rasterized = true

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = axisLabel("x", f.XYUnit)
	p.Y.Label.Text = axisLabel("y", f.XYUnit)
	p.Y.Scale = plot.InvertedScale{Normalizer: p.Y.Scale}
	p.Add(hm)
	return p, nil
}

func axisLabel(name, unit string) string {
	if unit == "" {
		return name
	}
	return fmt.Sprintf("%s [%s]", name, unit)
}

// LinePlot builds a line plot of one or more lines sharing an abscissa.
// Names label the lines in the legend; it may be shorter than lines.
func LinePlot(title string, names []string, lines ...*field.Line) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.Add(plotter.NewGrid())

	palette := moreland.SmoothBlueRed()
	palette.SetMin(0)
	palette.SetMax(1)
	colors := palette.Palette(max(len(lines), 2)).Colors()

	for k, l := range lines {
		if l.Empty() {
			continue
		}
		pts := make(plotter.XYs, l.Res())
		for i, v := range l.Data {
			pts[i] = plotter.XY{X: l.X(i), Y: v}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("failed to create line %d: %w", k, err)
		}
		line.Width = vg.Points(1)
		line.Color = colors[k]
		p.Add(line)
		if k < len(names) {
			p.Legend.Add(names[k], line)
		}
		if k == 0 {
			p.X.Label.Text = l.XUnit
			p.Y.Label.Text = l.YUnit
		}
	}
	return p, nil
}

// WritePNG encodes p as a PNG to w.
func WritePNG(w io.Writer, p *plot.Plot, size Size) error {
	size = size.orDefault()
	wt, err := p.WriterTo(size.Width, size.Height, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}

// SavePNG writes p to a PNG file.
func SavePNG(path string, p *plot.Plot, size Size) error {
	size = size.orDefault()
	if err := p.Save(size.Width, size.Height, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
