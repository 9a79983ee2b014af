package render

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/surface.report/internal/surface/field"
)

// viridis is the visual map gradient of HTML heatmaps.
var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// ChartOptions configures HTML charts.
type ChartOptions struct {
	// AssetsHost overrides where the echarts scripts are loaded from.
	AssetsHost string
	// MaxPoints caps the number of heatmap cells; larger fields are
	// decimated by a constant stride. Zero means 40000.
	MaxPoints int
}

func (o ChartOptions) init(title string) opts.Initialization {
	init := opts.Initialization{PageTitle: title, Width: "900px", Height: "800px"}
	if o.AssetsHost != "" {
		init.AssetsHost = o.AssetsHost
	}
	return init
}

// heatmapStride returns the smallest stride keeping xres·yres/stride² under
// maxPoints.
func heatmapStride(xres, yres, maxPoints int) int {
	if maxPoints <= 0 {
		maxPoints = 40000
	}
	stride := 1
	for (xres/stride)*(yres/stride) > maxPoints {
		stride++
	}
	return stride
}

// HeatmapChart builds an echarts scatter heatmap of f in physical
// coordinates, coloured by value.
func HeatmapChart(f *field.Field, title string, o ChartOptions) (*charts.Scatter, error) {
	lo, hi, ok := finiteRange(f.Data())
	if !ok {
		return nil, fmt.Errorf("field has no finite values")
	}
	stride := heatmapStride(f.XRes(), f.YRes(), o.MaxPoints)
	grid := fieldGrid{f}

	data := make([]opts.ScatterData, 0, (f.XRes()/stride+1)*(f.YRes()/stride+1))
	for i := 0; i < f.YRes(); i += stride {
		for j := 0; j < f.XRes(); j += stride {
			data = append(data, opts.ScatterData{Value: []interface{}{grid.X(j), grid.Y(i), f.Get(j, i)}})
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(o.init(title)),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("%dx%d stride=%d", f.XRes(), f.YRes(), stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: axisLabel("x", f.XYUnit), NameLocation: "middle", NameGap: 25,
			Min: f.XOffset(), Max: f.XOffset() + f.XReal()}),
		charts.WithYAxisOpts(opts.YAxis{Name: axisLabel("y", f.XYUnit), NameLocation: "middle", NameGap: 30,
			Min: f.YOffset(), Max: f.YOffset() + f.YReal()}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("z", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	return scatter, nil
}

// DistChart builds a bar chart of a distribution line.
func DistChart(l *field.Line, title string, o ChartOptions) *charts.Bar {
	x := make([]string, l.Res())
	y := make([]opts.BarData, l.Res())
	for i, v := range l.Data {
		x[i] = strconv.FormatFloat(l.X(i), 'g', 4, 64)
		y[i] = opts.BarData{Value: v}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(o.init(title)),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("points=%d", l.Res())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: l.XUnit}),
		charts.WithYAxisOpts(opts.YAxis{Name: l.YUnit}),
	)
	bar.SetXAxis(x).AddSeries("dist", y)
	return bar
}

// WritePage renders the charts onto one HTML page.
func WritePage(w io.Writer, o ChartOptions, chs ...components.Charter) error {
	page := components.NewPage()
	if o.AssetsHost != "" {
		page.SetAssetsHost(o.AssetsHost)
	}
	page.AddCharts(chs...)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render page: %w", err)
	}
	return nil
}
