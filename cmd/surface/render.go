package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-echarts/go-echarts/v2/components"
	"gonum.org/v1/plot"

	"github.com/banshee-data/surface.report/internal/surface/field"
	"github.com/banshee-data/surface.report/internal/surface/render"
	"github.com/banshee-data/surface.report/internal/surface/serialize"
)

func runRender(e *env, args []string) error {
	fs := newFlagSet("render", "[flags] <in.surf> <out.png|out.html>")
	kind := fs.String("kind", "heatmap", "heatmap, dist, cdist, slope, acf, hhcf, psdf or minkowski")
	points := fs.Int("points", e.opts.DistPoints, "distribution samples (0 picks from the pixel count)")
	window := fs.String("window", "hann", "PSDF windowing: none, hann, hamming or blackman")
	functional := fs.String("functional", "volume", "Minkowski functional: volume, boundary, black, white or connectivity")
	angle := fs.Float64("angle", 0, "slope direction in degrees")
	th := addThresholdFlags(fs)
	if err := parseArgs(fs, args, 2); err != nil {
		return err
	}
	in, out := fs.Arg(0), fs.Arg(1)
	f, err := serialize.ReadFile(in)
	if err != nil {
		return err
	}
	sel, err := th.selection(f)
	if err != nil {
		return err
	}
	html := strings.EqualFold(filepath.Ext(out), ".html")
	title := fmt.Sprintf("%s of %s", *kind, filepath.Base(in))

	if *kind == "heatmap" {
		if html {
			ch, err := render.HeatmapChart(f, title, e.cfgCharts())
			if err != nil {
				return err
			}
			return writePage(out, e, ch)
		}
		p, err := render.HeatmapPlot(f, title)
		if err != nil {
			return err
		}
		return render.SavePNG(out, p, render.Size{})
	}

	var line *field.Line
	switch *kind {
	case "dist", "cdist":
		line = f.ValueDist(nil, sel, *kind == "cdist", false, *points, 0, 0)
	case "slope":
		line = f.SlopeDist(nil, sel, *angle*math.Pi/180, *points)
	case "minkowski":
		mf, err := field.ParseMinkowskiFunctional(*functional)
		if err != nil {
			return err
		}
		line = f.Minkowski(nil, sel, mf, *points, 0, 0)
	case "acf":
		line, _ = f.RowACF(nil, sel, true, e.opts)
	case "hhcf":
		line, _ = f.RowHHCF(nil, sel, true, e.opts)
	case "psdf":
		w, err := field.ParseWindowing(*window)
		if err != nil {
			return err
		}
		line = f.RowPSDF(nil, sel, w, true)
	default:
		return fmt.Errorf("unknown render kind %q", *kind)
	}
	if line.Empty() {
		return fmt.Errorf("%s: no data in the selection", *kind)
	}
	if html {
		return writePage(out, e, render.DistChart(line, title, e.cfgCharts()))
	}
	var p *plot.Plot
	if p, err = render.LinePlot(title, []string{*kind}, line); err != nil {
		return err
	}
	return render.SavePNG(out, p, render.Size{})
}

func (e *env) cfgCharts() render.ChartOptions {
	return render.ChartOptions{MaxPoints: e.cfg.GetChartMaxPoints()}
}

func writePage(path string, e *env, chs ...components.Charter) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render.WritePage(out, e.cfgCharts(), chs...); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
