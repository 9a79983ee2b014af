package main

import (
	"flag"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/surface.report/internal/surface/congruence"
	"github.com/banshee-data/surface.report/internal/surface/field"
	"github.com/banshee-data/surface.report/internal/surface/mask"
	"github.com/banshee-data/surface.report/internal/surface/serialize"
)

func splitList(s string) []string {
	var out []string
	for _, p := range strings.FieldsFunc(s, func(r rune) bool { return r == '+' || r == ',' }) {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// parsePart parses "col,row,width,height". An empty string means the whole
// field and yields nil.
func parsePart(s string) (*field.Part, error) {
	if s == "" {
		return nil, nil
	}
	items := strings.Split(s, ",")
	if len(items) != 4 {
		return nil, fmt.Errorf("part %q is not col,row,width,height", s)
	}
	var v [4]int
	for i, item := range items {
		n, err := strconv.Atoi(strings.TrimSpace(item))
		if err != nil {
			return nil, fmt.Errorf("part %q: %w", s, err)
		}
		v[i] = n
	}
	return &field.Part{Col: v[0], Row: v[1], Width: v[2], Height: v[3]}, nil
}

// checkPart validates a command line part against f; the engine treats a
// part reaching outside the field as a programming error.
func checkPart(f *field.Field, p *field.Part) error {
	if p == nil {
		return nil
	}
	if p.Col < 0 || p.Row < 0 || p.Width <= 0 || p.Height <= 0 ||
		p.Col+p.Width > f.XRes() || p.Row+p.Height > f.YRes() {
		return fmt.Errorf("part %v is not inside the %dx%d field", *p, f.XRes(), f.YRes())
	}
	return nil
}

// thresholdFlags select pixels by value.
type thresholdFlags struct {
	above, below *float64
	masking      *string
}

func addThresholdFlags(fs *flag.FlagSet) thresholdFlags {
	return thresholdFlags{
		above:   fs.Float64("above", math.Inf(-1), "mask pixels with values above this"),
		below:   fs.Float64("below", math.Inf(1), "mask pixels with values below this"),
		masking: fs.String("masking", "ignore", "ignore, include or exclude the masked pixels"),
	}
}

// selection builds the mask selection described by the flags.
func (t thresholdFlags) selection(f *field.Field) (field.Selection, error) {
	masking, err := field.ParseMasking(*t.masking)
	if err != nil {
		return field.Selection{}, err
	}
	if masking == field.MaskIgnore {
		return field.NoMask(), nil
	}
	m := mask.New(f.XRes(), f.YRes())
	for k, v := range f.Data() {
		m.Data()[k] = v > *t.above && v < *t.below
	}
	m.Invalidate()
	return field.Select(m, masking), nil
}

func runInfo(e *env, args []string) error {
	fs := newFlagSet("info", "[flags] <in.surf>")
	th := addThresholdFlags(fs)
	interp := fs.String("interp", "gwyddion2", "area and volume interpolation: gwyddion2, triangular, bilinear or biquadratic")
	if err := parseArgs(fs, args, 1); err != nil {
		return err
	}
	method, err := field.ParseVolumeMethod(*interp)
	if err != nil {
		return err
	}
	f, err := serialize.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	sel, err := th.selection(f)
	if err != nil {
		return err
	}

	fmt.Fprintf(e.out, "resolution: %d x %d\n", f.XRes(), f.YRes())
	fmt.Fprintf(e.out, "size:       %g x %g %s\n", f.XReal(), f.YReal(), f.XYUnit)
	fmt.Fprintf(e.out, "offset:     %g, %g\n", f.XOffset(), f.YOffset())
	fmt.Fprintf(e.out, "value unit: %s\n", f.ZUnit)
	st, ok := f.Statistics(nil, sel)
	if !ok {
		fmt.Fprintln(e.out, "no pixels selected")
		return nil
	}
	fmt.Fprintf(e.out, "pixels:     %d (masking %s)\n", st.N, sel.Masking)
	fmt.Fprintf(e.out, "min/max:    %g / %g\n", st.Min, st.Max)
	fmt.Fprintf(e.out, "mean:       %g\n", st.Mean)
	fmt.Fprintf(e.out, "median:     %g\n", st.Median)
	fmt.Fprintf(e.out, "Ra:         %g\n", st.Ra)
	fmt.Fprintf(e.out, "rms:        %g\n", st.RMS)
	fmt.Fprintf(e.out, "skew:       %g\n", st.Skew)
	fmt.Fprintf(e.out, "kurtosis:   %g\n", st.Kurtosis)
	fmt.Fprintf(e.out, "area:       %g (%s)\n", f.SurfaceArea(nil, sel, method), method)
	fmt.Fprintf(e.out, "volume:     %g\n", f.Volume(nil, sel, method))
	if a, bx, by, ok := f.FitPlane(nil, sel); ok {
		fmt.Fprintf(e.out, "plane:      %g + %g x + %g y\n", a, bx, by)
	}
	return nil
}

// polyPowers lists the terms of a polynomial of total degree up to degree.
func polyPowers(degree int) (xpowers, ypowers []int) {
	for d := 0; d <= degree; d++ {
		for i := 0; i <= d; i++ {
			xpowers = append(xpowers, d-i)
			ypowers = append(ypowers, i)
		}
	}
	return xpowers, ypowers
}

func runLevel(e *env, args []string) error {
	fs := newFlagSet("level", "[flags] <in.surf> <out.surf>")
	method := fs.String("method", "plane", "plane, facet, poly, rows or align")
	degree := fs.Int("degree", 2, "total polynomial degree for -method poly")
	terms := fs.Int("terms", 2, "polynomial terms per row for -method rows")
	shift := fs.String("shift", "median", "row shift estimator for -method align: mean, median, mean-diff or median-diff")
	th := addThresholdFlags(fs)
	if err := parseArgs(fs, args, 2); err != nil {
		return err
	}
	f, err := serialize.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	sel, err := th.selection(f)
	if err != nil {
		return err
	}

	switch *method {
	case "plane":
		a, bx, by, ok := f.FitPlane(nil, sel)
		if !ok {
			return fmt.Errorf("cannot fit a plane to the selection")
		}
		f.SubtractPlane(a, bx, by)
		fmt.Fprintf(e.out, "removed plane %g + %g x + %g y\n", a, bx, by)
	case "facet":
		bx, by, ok := f.Inclination(nil, sel, e.opts.InclinationBins)
		if !ok {
			return fmt.Errorf("too few facets to estimate the inclination")
		}
		f.SubtractPlane(0, bx, by)
		fmt.Fprintf(e.out, "removed inclination %g x + %g y\n", bx, by)
	case "poly":
		if *degree < 0 {
			return fmt.Errorf("invalid degree %d", *degree)
		}
		xp, yp := polyPowers(*degree)
		coeffs, ok := f.FitPoly(nil, sel, xp, yp)
		if !ok {
			return fmt.Errorf("cannot fit a degree %d polynomial to the selection", *degree)
		}
		f.SubtractPoly(xp, yp, coeffs)
		fmt.Fprintf(e.out, "removed degree %d polynomial (%d terms)\n", *degree, len(coeffs))
	case "rows":
		if *terms < 0 {
			return fmt.Errorf("invalid term count %d", *terms)
		}
		f.LevelRows(*terms)
		fmt.Fprintf(e.out, "levelled rows with %d terms\n", *terms)
	case "align":
		m, err := field.ParseRowShiftMethod(*shift)
		if err != nil {
			return err
		}
		offsets := f.AlignRows(sel, m, e.opts.RowShiftMinFreedom)
		fmt.Fprintf(e.out, "aligned %d rows, last row shifted by %g\n", len(offsets), offsets[len(offsets)-1])
	default:
		return fmt.Errorf("unknown level method %q", *method)
	}
	return serialize.WriteFile(fs.Arg(1), f)
}

// kernelField builds a named square convolution kernel with physical pixel
// size matching f.
func kernelField(f *field.Field, name string, size int, sigma float64) (*field.Field, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid kernel size %d", size)
	}
	k := field.New(size, size, f.DX()*float64(size), f.DY()*float64(size))
	c := float64(size-1) / 2
	switch name {
	case "mean":
		k.Fill(nil, field.NoMask(), 1/float64(size*size))
	case "gauss":
		if sigma <= 0 {
			sigma = float64(size) / 4
		}
		var sum float64
		for i := 0; i < size; i++ {
			for j := 0; j < size; j++ {
				r2 := (float64(j)-c)*(float64(j)-c) + (float64(i)-c)*(float64(i)-c)
				v := math.Exp(-r2 / (2 * sigma * sigma))
				k.Set(j, i, v)
				sum += v
			}
		}
		k.Multiply(nil, field.NoMask(), 1/sum)
	case "laplacian":
		if size != 3 {
			return nil, fmt.Errorf("the laplacian kernel is 3x3")
		}
		for k2, v := range []float64{0, 1, 0, 1, -4, 1, 0, 1, 0} {
			k.Data()[k2] = v
		}
		k.Invalidate()
	default:
		return nil, fmt.Errorf("unknown kernel %q", name)
	}
	return k, nil
}

func runConvolve(e *env, args []string) error {
	fs := newFlagSet("convolve", "[flags] <in.surf> <out.surf>")
	kernel := fs.String("kernel", "gauss", "mean, gauss or laplacian")
	size := fs.Int("size", 5, "kernel size in pixels")
	sigma := fs.Float64("sigma", 0, "gaussian width in pixels (0 for size/4)")
	rows := fs.Bool("rows", false, "convolve rows only, with the middle row of the kernel")
	exterior := fs.String("exterior", "mirror", "undefined, fixed, border, mirror or periodic")
	fill := fs.Float64("fill", 0, "exterior value for -exterior fixed")
	method := fs.String("method", e.opts.Method.String(), "auto, direct or fft")
	partFlag := fs.String("part", "", "col,row,width,height to process (default whole field)")
	if err := parseArgs(fs, args, 2); err != nil {
		return err
	}
	f, err := serialize.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	ext, err := field.ParseExterior(*exterior)
	if err != nil {
		return err
	}
	m, err := field.ParseMethod(*method)
	if err != nil {
		return err
	}
	part, err := parsePart(*partFlag)
	if err != nil {
		return err
	}
	if err := checkPart(f, part); err != nil {
		return err
	}
	k, err := kernelField(f, *kernel, *size, *sigma)
	if err != nil {
		return err
	}

	opts := e.opts.WithMethod(m)
	if *rows {
		mid := (*size - 1) / 2
		row := append([]float64(nil), k.Data()[mid*(*size):(mid+1)*(*size)]...)
		f.RowConvolve(part, f, row, ext, *fill, opts)
	} else {
		f.Convolve(part, f, k, ext, *fill, opts)
	}
	return serialize.WriteFile(fs.Arg(1), f)
}

func runCorrelate(e *env, args []string) error {
	fs := newFlagSet("correlate", "[flags] <in.surf> <score.surf>")
	kernelPart := fs.String("kernel", "", "col,row,width,height of the region to look for (required)")
	kernelFile := fs.String("kernel-file", "", "take the kernel from this field instead, starting at -kernel's corner")
	level := fs.Bool("level", true, "remove the local mean before scoring")
	normalize := fs.Bool("normalize", true, "divide scores by the local rms")
	exterior := fs.String("exterior", "border", "undefined, fixed, border, mirror or periodic")
	method := fs.String("method", e.opts.Method.String(), "auto, direct or fft")
	if err := parseArgs(fs, args, 2); err != nil {
		return err
	}
	f, err := serialize.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	part, err := parsePart(*kernelPart)
	if err != nil {
		return err
	}
	if part == nil {
		return fmt.Errorf("-kernel is required")
	}
	src := f
	if *kernelFile != "" {
		if src, err = serialize.ReadFile(*kernelFile); err != nil {
			return err
		}
	}
	if err := checkPart(src, part); err != nil {
		return err
	}
	ext, err := field.ParseExterior(*exterior)
	if err != nil {
		return err
	}
	m, err := field.ParseMethod(*method)
	if err != nil {
		return err
	}

	kernel := src.NewPart(part, false)
	// Standardize the kernel so that an exact match scores 1.
	kernel.Add(nil, field.NoMask(), -kernel.Mean(nil, field.NoMask()))
	if rms := kernel.RMS(nil, field.NoMask()); rms > 0 {
		kernel.Multiply(nil, field.NoMask(), 1/rms)
	}
	var flags field.CorrelationFlags
	if *level {
		flags |= field.CorrelationLevel
	}
	if *normalize {
		flags |= field.CorrelationNormalize
	}

	score := f.NewAlike()
	score.ZUnit = ""
	f.Correlate(nil, score, kernel, nil, flags, ext, 0, e.opts.WithMethod(m))

	best, bestCol, bestRow := math.Inf(-1), 0, 0
	for k, v := range score.Data() {
		if v > best {
			best, bestCol, bestRow = v, k%score.XRes(), k/score.XRes()
		}
	}
	fmt.Fprintf(e.out, "best match at (%d, %d), score %.4f\n",
		bestCol-(part.Width-1)/2, bestRow-(part.Height-1)/2, best)
	return serialize.WriteFile(fs.Arg(1), score)
}

func runInpaint(e *env, args []string) error {
	fs := newFlagSet("inpaint", "[flags] <in.surf> <out.surf>")
	lo := fs.Float64("min", math.Inf(-1), "values below this are invalid")
	hi := fs.Float64("max", math.Inf(1), "values above this are invalid")
	if err := parseArgs(fs, args, 2); err != nil {
		return err
	}
	f, err := serialize.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}

	m := mask.New(f.XRes(), f.YRes())
	for k, v := range f.Data() {
		m.Data()[k] = math.IsNaN(v) || v < *lo || v > *hi
	}
	m.Invalidate()
	n := m.Count(nil, true)
	if n == 0 {
		fmt.Fprintln(e.out, "nothing to inpaint")
		return serialize.WriteFile(fs.Arg(1), f)
	}
	if n == len(m.Data()) {
		return fmt.Errorf("every pixel is invalid")
	}
	sweeps := f.LaplaceSolve(m, field.AllGrains, e.opts)
	fmt.Fprintf(e.out, "inpainted %d pixels in %d grains, %d sweeps\n", n, m.GrainCount(), sweeps)
	return serialize.WriteFile(fs.Arg(1), f)
}

func runTransform(e *env, args []string) error {
	names := make([]string, congruence.Count)
	for t := congruence.Identity; t < congruence.Count; t++ {
		names[t] = t.String()
	}
	fs := newFlagSet("transform", "[flags] <in.surf> <out.surf>")
	name := fs.String("t", "rotate-clockwise", strings.Join(names, ", "))
	partFlag := fs.String("part", "", "col,row,width,height to extract first (default whole field)")
	if err := parseArgs(fs, args, 2); err != nil {
		return err
	}
	t, err := congruence.Parse(*name)
	if err != nil {
		return err
	}
	f, err := serialize.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	part, err := parsePart(*partFlag)
	if err != nil {
		return err
	}
	if err := checkPart(f, part); err != nil {
		return err
	}
	g := f.NewCongruent(part, t)
	fmt.Fprintf(e.out, "%s: %dx%d -> %dx%d\n", t, f.XRes(), f.YRes(), g.XRes(), g.YRes())
	return serialize.WriteFile(fs.Arg(1), g)
}
