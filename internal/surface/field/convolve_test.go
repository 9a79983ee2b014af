package field

import (
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/surface.report/internal/surface/mask"
	"github.com/banshee-data/surface.report/internal/testutil"
)

var definedExteriors = []Exterior{ExteriorFixed, ExteriorBorder, ExteriorMirror, ExteriorPeriodic}

func TestNiceFFTSize(t *testing.T) {
	for n, want := range map[int]int{0: 1, 1: 1, 7: 8, 11: 12, 13: 15, 31: 32, 49: 50, 97: 100} {
		if got := niceFFTSize(n); got != want {
			t.Errorf("niceFFTSize(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestAutoMethodHeuristic(t *testing.T) {
	opts := DefaultOptions()
	tests := []struct {
		width, kres int
		want        bool
	}{
		{12, 12, true},
		{13, 4, true},
		{13, 5, false},
		{1000, 17, true},
		{1000, 18, false},
	}
	for _, tt := range tests {
		if got := opts.rowDirect(tt.width, tt.kres); got != tt.want {
			t.Errorf("rowDirect(%d, %d) = %v, want %v", tt.width, tt.kres, got, tt.want)
		}
	}
	if !opts.planeDirect(5, 5) || opts.planeDirect(2, 13) {
		t.Error("planeDirect threshold is not 25 kernel pixels")
	}
	if !opts.WithMethod(MethodDirect).planeDirect(50, 50) || opts.WithMethod(MethodFFT).rowDirect(3, 1) {
		t.Error("forced method ignored")
	}
}

// maxAbs returns the largest magnitude in v.
func maxAbs(v []float64) float64 {
	var m float64
	for _, x := range v {
		m = math.Max(m, math.Abs(x))
	}
	return m
}

// Direct and FFT paths must agree for every kernel length up to the row
// length and beyond it.
func TestRowConvolveDirectMatchesFFT(t *testing.T) {
	rng := testutil.NewRand()
	for _, res := range []int{8, 13, 31} {
		f := randomField(rng, res, 5)
		for kres := 1; kres <= res+2; kres++ {
			kernel := testutil.RandomData(rng, kres)
			for _, ext := range definedExteriors {
				name := fmt.Sprintf("res=%d kres=%d %v", res, kres, ext)
				direct, fft := f.NewAlike(), f.NewAlike()
				f.RowConvolve(nil, direct, kernel, ext, 0.25, DefaultOptions().WithMethod(MethodDirect))
				f.RowConvolve(nil, fft, kernel, ext, 0.25, DefaultOptions().WithMethod(MethodFFT))
				testutil.AssertSliceClose(t, name, fft.Data(), direct.Data(), 1e-13)
			}
		}
	}
}

func TestRowConvolveShift(t *testing.T) {
	f := FromData(5, 1, 5, 1, []float64{1, 2, 3, 4, 5})
	g := f.NewAlike()
	// Kernel [0 0 1] is centered on its middle pixel and pulls from the left.
	f.RowConvolve(nil, g, []float64{0, 0, 1}, ExteriorBorder, 0, DefaultOptions())
	if diff := cmp.Diff([]float64{1, 1, 2, 3, 4}, g.Data()); diff != "" {
		t.Errorf("shift kernel mismatch:\n%s", diff)
	}
	// Even kernels reach one sample further to the right.
	f.RowConvolve(nil, g, []float64{1, 0}, ExteriorFixed, 10, DefaultOptions())
	if diff := cmp.Diff([]float64{2, 3, 4, 5, 10}, g.Data()); diff != "" {
		t.Errorf("even kernel mismatch:\n%s", diff)
	}
}

func TestConvolveDirectMatchesFFT(t *testing.T) {
	rng := testutil.NewRand()
	for _, size := range [][2]int{{12, 9}, {7, 10}} {
		xres, yres := size[0], size[1]
		f := randomField(rng, xres, yres)
		for kx := 1; kx <= xres; kx++ {
			for ky := 1; ky <= yres; ky++ {
				kernel := FromData(kx, ky, float64(kx), float64(ky), testutil.RandomData(rng, kx*ky))
				for _, ext := range definedExteriors {
					name := fmt.Sprintf("%dx%d kernel %dx%d %v", xres, yres, kx, ky, ext)
					direct, fft := f.NewAlike(), f.NewAlike()
					f.Convolve(nil, direct, kernel, ext, -0.5, DefaultOptions().WithMethod(MethodDirect))
					f.Convolve(nil, fft, kernel, ext, -0.5, DefaultOptions().WithMethod(MethodFFT))
					testutil.AssertSliceClose(t, name, fft.Data(), direct.Data(), 1e-13)
				}
			}
		}
	}
}

func TestConvolvePartAndInPlace(t *testing.T) {
	rng := testutil.NewRand()
	f := randomField(rng, 15, 12)
	kernel := FromData(3, 3, 3, 3, testutil.RandomData(rng, 9))
	part := &Part{Col: 3, Row: 2, Width: 7, Height: 8}

	small := New(7, 8, 1, 1)
	f.Convolve(part, small, kernel, ExteriorMirror, 0, DefaultOptions())

	full := f.Clone()
	f.Convolve(part, full, kernel, ExteriorMirror, 0, DefaultOptions())
	testutil.AssertSliceClose(t, "full-size target", full.NewPart(part, false).Data(), small.Data(), 0)
	if full.Get(0, 0) != f.Get(0, 0) || full.Get(14, 11) != f.Get(14, 11) {
		t.Error("pixels outside the part were modified")
	}

	inplace := f.Clone()
	inplace.Convolve(part, inplace, kernel, ExteriorMirror, 0, DefaultOptions())
	testutil.AssertSliceClose(t, "in place", inplace.Data(), full.Data(), 0)
}

func TestConvolveUndefinedExteriorUsesZero(t *testing.T) {
	f := FromData(3, 1, 3, 1, []float64{1, 2, 3})
	g := f.NewAlike()
	f.RowConvolve(nil, g, []float64{1, 1, 1}, ExteriorUndefined, 7, DefaultOptions())
	if diff := cmp.Diff([]float64{3, 6, 5}, g.Data()); diff != "" {
		t.Errorf("undefined exterior mismatch:\n%s", diff)
	}
}

// standardized returns part of f with the mean removed and scaled to unit
// rms.
func standardized(f *Field, part *Part) *Field {
	k := f.NewPart(part, false)
	mean := k.Mean(nil, NoMask())
	rms := k.RMS(nil, NoMask())
	for i, v := range k.Data() {
		k.Data()[i] = (v - mean) / rms
	}
	k.DataChanged(nil)
	return k
}

func TestCorrelateFindsKernel(t *testing.T) {
	rng := testutil.NewRand()
	f := randomField(rng, 23, 19)
	for _, size := range [][2]int{{5, 4}, {7, 6}, {2, 3}} {
		kx, ky := size[0], size[1]
		col, row := 9, 6
		kernel := standardized(f, &Part{Col: col, Row: row, Width: kx, Height: ky})
		for _, m := range []Method{MethodDirect, MethodFFT} {
			score := f.NewAlike()
			f.Correlate(nil, score, kernel, nil, CorrelationLevel|CorrelationNormalize, ExteriorBorder, 0, DefaultOptions().WithMethod(m))
			sc, sr := col+(kx-1)/2, row+(ky-1)/2
			testutil.AssertClose(t, fmt.Sprintf("%dx%d %v match score", kx, ky, m), score.Get(sc, sr), 1, 1e-10)
			if best := score.Max(); best > 1+1e-10 {
				t.Errorf("%dx%d %v: max score %v exceeds 1", kx, ky, m, best)
			}
		}
	}
}

func TestCorrelateDirectMatchesFFT(t *testing.T) {
	rng := testutil.NewRand()
	f := randomField(rng, 17, 14)
	kernel := FromData(6, 5, 6, 5, testutil.RandomData(rng, 30))
	kmask := mask.FromData(6, 5, testutil.RandomBools(rng, 30, 0.6))
	for _, flags := range []CorrelationFlags{0, CorrelationLevel, CorrelationNormalize, CorrelationLevel | CorrelationNormalize} {
		for _, ext := range definedExteriors {
			direct, fft := f.NewAlike(), f.NewAlike()
			f.Correlate(nil, direct, kernel, kmask, flags, ext, 0, DefaultOptions().WithMethod(MethodDirect))
			f.Correlate(nil, fft, kernel, kmask, flags, ext, 0, DefaultOptions().WithMethod(MethodFFT))
			testutil.AssertSliceClose(t, fmt.Sprintf("flags=%d %v", flags, ext), fft.Data(), direct.Data(), 1e-10)
		}
	}
}

func TestCorrelateEmptyKernelMask(t *testing.T) {
	f := randomField(testutil.NewRand(), 6, 6)
	score := f.NewAlike()
	score.Fill(nil, NoMask(), 3)
	f.Correlate(nil, score, New(3, 3, 1, 1), mask.New(3, 3), CorrelationNormalize, ExteriorMirror, 0, DefaultOptions())
	if maxAbs(score.Data()) != 0 {
		t.Error("empty kernel mask did not zero the scores")
	}
}

// shiftedPeriodic returns g with g(c, r) = f(c-dx, r-dy), wrapping around.
func shiftedPeriodic(f *Field, dx, dy int) *Field {
	g := f.NewAlike()
	for r := 0; r < f.YRes(); r++ {
		for c := 0; c < f.XRes(); c++ {
			g.Data()[r*f.XRes()+c] = f.ValueAt(c-dx, r-dy, ExteriorPeriodic, 0)
		}
	}
	return g
}

func TestCrossCorrelateRecoversShift(t *testing.T) {
	rng := testutil.NewRand()
	ref := randomField(rng, 24, 20)
	window := mask.New(5, 5)
	window.Fill(nil, true)
	for _, shift := range [][2]int{{0, 0}, {2, -3}, {-5, 5}, {4, 1}} {
		f := shiftedPeriodic(ref, shift[0], shift[1])
		score, xoff, yoff := f.NewAlike(), f.NewAlike(), f.NewAlike()
		f.CrossCorrelate(ref, nil, score, xoff, yoff, window, 5, 5,
			CorrelationLevel|CorrelationNormalize, ExteriorPeriodic, 0, DefaultOptions())
		for k := range score.Data() {
			if xoff.Data()[k] != float64(shift[0]) || yoff.Data()[k] != float64(shift[1]) {
				t.Fatalf("shift %v: pixel %d found (%v,%v)", shift, k, xoff.Data()[k], yoff.Data()[k])
			}
			if score.Data()[k] < 0.999 {
				t.Fatalf("shift %v: pixel %d score %v", shift, k, score.Data()[k])
			}
		}
	}
}

func TestCrossCorrelateElliptical(t *testing.T) {
	rng := testutil.NewRand()
	ref := randomField(rng, 16, 16)
	f := shiftedPeriodic(ref, 3, 3)
	window := mask.New(3, 3)
	window.Fill(nil, true)
	score, xoff, yoff := f.NewAlike(), f.NewAlike(), f.NewAlike()
	f.CrossCorrelate(ref, nil, score, xoff, yoff, window, 3, 3,
		CorrelationLevel|CorrelationNormalize|CorrelationElliptical, ExteriorPeriodic, 0, DefaultOptions())
	// (3,3) lies outside the inscribed ellipse and must not be found.
	for k := range xoff.Data() {
		ex, ey := xoff.Data()[k]/3.5, yoff.Data()[k]/3.5
		if ex*ex+ey*ey > 1 {
			t.Fatalf("pixel %d: shift (%v,%v) outside the ellipse", k, xoff.Data()[k], yoff.Data()[k])
		}
	}
}

// diamondWindow returns a size×size window of the pixels within the
// inscribed diamond.
func diamondWindow(size int) *mask.Field {
	w := mask.New(size, size)
	c := (size - 1) / 2
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			w.Set(j, i, abs(j-c)+abs(i-c) <= c)
		}
	}
	return w
}

func TestCrossCorrelateDirectMatchesFFT(t *testing.T) {
	rng := testutil.NewRand()
	ref := randomField(rng, 20, 16)
	f := shiftedPeriodic(ref, 1, -2)
	for i, v := range f.Data() {
		f.Data()[i] = v + 0.1*rng.Float64()
	}
	f.DataChanged(nil)
	window := diamondWindow(5)
	// The part touches the left edge, where the shifted windows reach into
	// the exterior but always keep one pixel of the field.
	part := &Part{Col: 0, Row: 4, Width: 9, Height: 7}
	flagSets := []CorrelationFlags{0, CorrelationLevel, CorrelationNormalize, CorrelationLevel | CorrelationNormalize}
	for _, flags := range flagSets {
		for _, ext := range definedExteriors {
			name := fmt.Sprintf("flags=%d %v", flags, ext)
			var scores, xoffs, yoffs [2]*Field
			for k, m := range []Method{MethodDirect, MethodFFT} {
				scores[k], xoffs[k], yoffs[k] = New(9, 7, 9, 7), New(9, 7, 9, 7), New(9, 7, 9, 7)
				f.CrossCorrelate(ref, part, scores[k], xoffs[k], yoffs[k], window, 2, 2,
					flags, ext, 0.25, DefaultOptions().WithMethod(m))
			}
			testutil.AssertSliceClose(t, name+" score", scores[1].Data(), scores[0].Data(), 1e-10)
			if diff := cmp.Diff(xoffs[0].Data(), xoffs[1].Data()); diff != "" {
				t.Errorf("%s: x offsets differ:\n%s", name, diff)
			}
			if diff := cmp.Diff(yoffs[0].Data(), yoffs[1].Data()); diff != "" {
				t.Errorf("%s: y offsets differ:\n%s", name, diff)
			}
		}
	}
}

func TestCrossCorrelateNormalizeWithoutLevel(t *testing.T) {
	rng := testutil.NewRand()
	ref := randomField(rng, 12, 10)
	f := ref.Clone()
	for i, v := range f.Data() {
		f.Data()[i] = 3*v + 5
		ref.Data()[i] = v + 5.0/3
	}
	f.DataChanged(nil)
	ref.DataChanged(nil)
	window := mask.New(3, 3)
	window.Fill(nil, true)
	// Without leveling the rms is taken about zero, so proportional
	// neighbourhoods score exactly 1 whatever their mean.
	for _, m := range []Method{MethodDirect, MethodFFT} {
		score, xoff, yoff := f.NewAlike(), f.NewAlike(), f.NewAlike()
		f.CrossCorrelate(ref, nil, score, xoff, yoff, window, 0, 0,
			CorrelationNormalize, ExteriorBorder, 0, DefaultOptions().WithMethod(m))
		for k, v := range score.Data() {
			testutil.AssertClose(t, fmt.Sprintf("%v score %d", m, k), v, 1, 1e-12)
		}
	}
}
