package field

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/surface.report/internal/surface/mask"
	"github.com/banshee-data/surface.report/internal/testutil"
)

// tiltedField returns z = c + vx·X + vy·Y + step·⌊col/period⌋ in physical
// coordinates X, Y.
func tiltedField(xres, yres int, xreal, yreal, c, vx, vy, step float64, period int) *Field {
	f := New(xres, yres, xreal, yreal)
	dx, dy := f.DX(), f.DY()
	for i := 0; i < yres; i++ {
		for j := 0; j < xres; j++ {
			f.Data()[i*xres+j] = c + vx*float64(j)*dx + vy*float64(i)*dy + step*float64(j/period)
		}
	}
	return f
}

func TestFitPlane(t *testing.T) {
	const vx, vy = 0.8, -0.3
	f := tiltedField(20, 15, 4, 3, 1.5, vx, vy, 0, 1)
	a, bx, by, ok := f.FitPlane(nil, NoMask())
	require.True(t, ok)
	// x and y span [-1, 1] over the pixel centres.
	testutil.AssertClose(t, "bx", bx, 0.5*vx*f.DX()*19, 1e-12)
	testutil.AssertClose(t, "by", by, 0.5*vy*f.DY()*14, 1e-12)
	testutil.AssertClose(t, "a", a, f.Avg(), 1e-12)

	// Any part and mask of a plane give the same plane.
	m := randomMask(testutil.NewRand(), 20, 15, 0.5)
	a2, bx2, by2, ok := f.FitPlane(&Part{Col: 4, Row: 2, Width: 9, Height: 10}, Include(m))
	require.True(t, ok)
	testutil.AssertSliceClose(t, "masked fit", []float64{a2, bx2, by2}, []float64{a, bx, by}, 1e-12)

	f.SubtractPlane(a, bx, by)
	assert.Less(t, maxAbs(f.Data()), 1e-12)
}

func TestFitPolyRecoversPolynomial(t *testing.T) {
	xp := []int{0, 1, 0, 2, 1, 0}
	yp := []int{0, 0, 1, 0, 1, 2}
	want := []float64{0.5, -1, 2, 0.25, 3, -0.75}
	f := New(11, 9, 1, 1)
	f.SubtractPoly(xp, yp, want)
	f.Multiply(nil, NoMask(), -1)
	got, ok := f.FitPoly(nil, NoMask(), xp, yp)
	require.True(t, ok)
	testutil.AssertSliceClose(t, "coefficients", got, want, 1e-12)
}

func TestFitPolyDegenerate(t *testing.T) {
	f := randomField(testutil.NewRand(), 6, 6)
	sparse := mask.New(6, 6)
	sparse.Set(1, 1, true)
	sparse.Set(4, 2, true)
	a, bx, by, ok := f.FitPlane(nil, Include(sparse))
	assert.False(t, ok)
	assert.Equal(t, []float64{0, 0, 0}, []float64{a, bx, by})

	expectPanic(t, "part smaller than terms", func() {
		f.FitPoly(&Part{Col: 0, Row: 0, Width: 1, Height: 2}, NoMask(), planeXPowers, planeYPowers)
	})
	expectPanic(t, "mismatched powers", func() { f.FitPoly(nil, NoMask(), []int{0, 1}, []int{0}) })
}

// steppedPlane returns bx·x + by·y plus terraces of the given width and
// height running at angle phi, in coordinates spanning [-1, 1] over the
// pixel centres.
func steppedPlane(xres, yres int, bx, by, phi, width, height float64) *Field {
	f := New(xres, yres, float64(xres), float64(yres))
	c, s := math.Cos(phi), math.Sin(phi)
	for i := 0; i < yres; i++ {
		y := normCoord(i, yres)
		for j := 0; j < xres; j++ {
			x := normCoord(j, xres)
			f.Data()[i*xres+j] = bx*x + by*y + height*math.Floor((x*c-y*s)/width)
		}
	}
	return f
}

func TestInclinationIgnoresSteps(t *testing.T) {
	const nbins = 20
	rng := testutil.NewRand()
	for iter := 0; iter < 30; iter++ {
		xres, yres := 100+rng.Intn(72), 100+rng.Intn(72)
		bx, by := 2*rng.Float64()-1, 2*rng.Float64()-1
		phi := math.Pi * rng.Float64()
		width, height := 0.25+1.25*rng.Float64(), 4*rng.Float64()-2
		f := steppedPlane(xres, yres, bx, by, phi, width, height)
		m := randomMask(rng, xres, yres, 0.5)

		for _, sel := range []Selection{NoMask(), Exclude(m), Include(m)} {
			name := fmt.Sprintf("iter %d %dx%d %v", iter, xres, yres, sel.Masking)
			gx, gy, ok := f.Inclination(nil, sel, nbins)
			require.True(t, ok, name)
			assert.InDelta(t, bx, gx, 0.02*math.Abs(bx), name+" bx")
			assert.InDelta(t, by, gy, 0.02*math.Abs(by), name+" by")
		}

		gx, gy, _ := f.Inclination(nil, NoMask(), nbins)
		f.SubtractPlane(0, gx, gy)
		for _, sel := range []Selection{NoMask(), Exclude(m), Include(m)} {
			name := fmt.Sprintf("iter %d leveled %v", iter, sel.Masking)
			rx, ry, ok := f.Inclination(nil, sel, nbins)
			require.True(t, ok, name)
			assert.LessOrEqual(t, math.Abs(rx), 0.02, name+" bx")
			assert.LessOrEqual(t, math.Abs(ry), 0.02, name+" by")
		}
	}
}

func TestInclinationAgainstPlaneFit(t *testing.T) {
	const vx, vy = 0.2, -0.1
	f := tiltedField(50, 50, 50, 50, 0, vx, vy, 3, 7)
	bx, _, ok := f.Inclination(nil, NoMask(), DefaultOptions().InclinationBins)
	require.True(t, ok)
	wantX := 0.5 * vx * 49
	assert.InDelta(t, wantX, bx, 0.02*math.Abs(wantX))

	// A least-squares plane is pulled by the terraces.
	_, fx, _, _ := f.FitPlane(nil, NoMask())
	assert.Greater(t, math.Abs(fx-wantX), 0.5)

	_, _, ok = f.Inclination(&Part{Width: 2, Height: 2}, NoMask(), 8)
	assert.False(t, ok, "single facet")
}

func TestLevelRows(t *testing.T) {
	rng := testutil.NewRand()
	for nterms := 0; nterms <= 4; nterms++ {
		f := randomField(rng, 17, 6)
		orig := f.Clone()
		f.LevelRows(nterms)
		if nterms == 0 {
			assert.Equal(t, orig.Data(), f.Data())
			continue
		}
		for i := 0; i < f.YRes(); i++ {
			for k := 0; k < nterms; k++ {
				var moment float64
				for j := 0; j < f.XRes(); j++ {
					moment += f.Get(j, i) * math.Pow(normCoord(j, f.XRes()), float64(k))
				}
				testutil.AssertClose(t, "row moment", moment, 0, 1e-12)
			}
		}
	}
	// More terms than pixels per row flattens every row.
	g := randomField(rng, 3, 4)
	g.LevelRows(5)
	assert.Less(t, maxAbs(g.Data()), 1e-12)
}

// quadricField returns z = A(X-x0)² + B(Y-y0)² + C around pixel (col, row),
// with X and Y physical and zero at its centre.
func quadricField(res int, dx, a, b, c, x0, y0 float64, col, row int) *Field {
	f := New(res, res, float64(res)*dx, float64(res)*dx)
	for i := 0; i < res; i++ {
		for j := 0; j < res; j++ {
			x := float64(j-col)*dx - x0
			y := float64(i-row)*dx - y0
			f.Data()[i*res+j] = a*x*x + b*y*y + c
		}
	}
	return f
}

func TestCurvatureSaddle(t *testing.T) {
	f := quadricField(21, 0.1, 1, -0.5, 0.3, 0.05, -0.07, 10, 10)
	c, ok := f.Curvature(NoMask(), 10, 10, 3, 3, true)
	require.True(t, ok)
	assert.Equal(t, 2, c.NDims)
	testutil.AssertClose(t, "k1", c.K1, -1, 1e-9)
	testutil.AssertClose(t, "k2", c.K2, 2, 1e-9)
	testutil.AssertClose(t, "xc", c.Xc, 0.05, 1e-9)
	testutil.AssertClose(t, "yc", c.Yc, -0.07, 1e-9)
	testutil.AssertClose(t, "zc", c.Zc, 0.3, 1e-9)
	// K1 bends along y, K2 along x.
	assert.Less(t, math.Abs(math.Cos(c.Phi1)), 1e-9)
	assert.Less(t, math.Abs(math.Sin(c.Phi2)), 1e-9)

	f.SetOffsets(1, -2)
	abs, ok := f.Curvature(NoMask(), 10, 10, 3, 3, false)
	require.True(t, ok)
	testutil.AssertClose(t, "absolute xc", abs.Xc, 1+10.5*0.1+0.05, 1e-9)
	testutil.AssertClose(t, "absolute yc", abs.Yc, -2+10.5*0.1-0.07, 1e-9)
}

func TestCurvatureCylinder(t *testing.T) {
	f := quadricField(15, 0.2, 0.75, 0, -1, 0.3, 0, 7, 7)
	c, ok := f.Curvature(NoMask(), 7, 7, 2, 4, true)
	require.True(t, ok)
	assert.Equal(t, 1, c.NDims)
	testutil.AssertClose(t, "k1", c.K1, 0, 1e-9)
	testutil.AssertClose(t, "k2", c.K2, 1.5, 1e-9)
	testutil.AssertClose(t, "xc", c.Xc, 0.3, 1e-9)
	testutil.AssertClose(t, "yc", c.Yc, 0, 1e-9)
	testutil.AssertClose(t, "zc", c.Zc, -1, 1e-9)
}

func TestCurvaturePlane(t *testing.T) {
	f := tiltedField(9, 9, 9, 9, 1, 0.3, 0.2, 0, 1)
	c, ok := f.Curvature(NoMask(), 4, 4, 2, 2, true)
	require.True(t, ok)
	assert.Equal(t, 0, c.NDims)
	assert.Equal(t, 0.0, c.K1)
	assert.Equal(t, 0.0, c.K2)
	testutil.AssertClose(t, "zc", c.Zc, f.Get(4, 4), 1e-12)
	assert.Equal(t, math.Pi/2, c.Phi2)
}

func TestCurvatureRejects(t *testing.T) {
	f := randomField(testutil.NewRand(), 9, 9)
	_, ok := f.Curvature(NoMask(), 4, 4, 0, 3, true)
	assert.False(t, ok)

	few := mask.New(9, 9)
	few.Fill(&Part{Col: 3, Row: 3, Width: 5, Height: 1}, true)
	c, ok := f.Curvature(Include(few), 4, 4, 2, 2, true)
	assert.False(t, ok)
	assert.Equal(t, Curvature{}, c)
}

func TestRowShiftsRemoveOffsets(t *testing.T) {
	rng := testutil.NewRand()
	const xres, yres = 23, 17
	pattern := testutil.RandomData(rng, xres)
	offsets := testutil.RandomData(rng, yres)
	shifted := New(xres, yres, 1, 1)
	for i := 0; i < yres; i++ {
		for j := 0; j < xres; j++ {
			shifted.Data()[i*xres+j] = pattern[j] + 5*offsets[i]
		}
	}
	orig := shifted.RMS(nil, NoMask())
	m := randomMask(rng, xres, yres, 0.7)

	tests := []struct {
		method RowShiftMethod
		sel    Selection
	}{
		{RowShiftMean, NoMask()},
		{RowShiftMedian, NoMask()},
		{RowShiftMeanDiff, NoMask()},
		{RowShiftMedianDiff, NoMask()},
		{RowShiftMeanDiff, Include(m)},
		{RowShiftMedianDiff, Exclude(m)},
	}
	for _, tt := range tests {
		f := shifted.Clone()
		found := f.AlignRows(tt.sel, tt.method, 1)
		testutil.AssertClose(t, tt.method.String()+" first", found[0], 0, 0)
		// Every row now equals the first one.
		residual := f.NewAlike()
		for i := 0; i < yres; i++ {
			for j := 0; j < xres; j++ {
				residual.Data()[i*xres+j] = f.Get(j, i) - f.Get(j, 0)
			}
		}
		if r := math.Sqrt(residual.MeanSquare(nil, NoMask())); r > 1e-11*orig {
			t.Errorf("%v %v: residual rms %g", tt.method, tt.sel.Masking, r)
		}
		parsed, err := ParseRowShiftMethod(tt.method.String())
		require.NoError(t, err)
		assert.Equal(t, tt.method, parsed)
	}
}

func TestRowShiftsMinFreedom(t *testing.T) {
	f := FromData(3, 3, 3, 3, []float64{0, 0, 0, 5, 5, 5, 1, 1, 1})
	m := mask.FromData(3, 3, []bool{true, true, true, true, false, false, true, true, true})
	shifts := f.FindRowShifts(Include(m), RowShiftMean, 2)
	// Row 1 has a single pixel, so row 2 is compared with row 0.
	assert.Equal(t, []float64{0, 0, 1}, shifts)
	assert.Equal(t, []float64{0, 0, 1}, AccumulateShifts([]float64{0, 0, 1}))
	assert.Equal(t, []float64{0, 2, 5}, AccumulateShifts([]float64{0, 2, 3}))
}
