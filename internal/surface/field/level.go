package field

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// normCoord maps pixel index k of n to [-1, 1]; a single pixel maps to 0.
func normCoord(k, n int) float64 {
	if n == 1 {
		return 0
	}
	return 2*float64(k)/float64(n-1) - 1
}

// powerTable returns v^0 … v^maxp.
func powerTable(v float64, maxp int) []float64 {
	t := make([]float64, maxp+1)
	t[0] = 1
	for k := 1; k <= maxp; k++ {
		t[k] = t[k-1] * v
	}
	return t
}

func checkPowers(xpowers, ypowers []int) (maxx, maxy int) {
	if len(xpowers) != len(ypowers) || len(xpowers) == 0 {
		panic(fmt.Sprintf("field: %d x powers and %d y powers", len(xpowers), len(ypowers)))
	}
	for k := range xpowers {
		if xpowers[k] < 0 || ypowers[k] < 0 {
			panic("field: negative polynomial power")
		}
		maxx = max(maxx, xpowers[k])
		maxy = max(maxy, ypowers[k])
	}
	return maxx, maxy
}

// leastSquares solves the overdetermined system a·x = b. It returns false
// when the system is too ill-conditioned to solve.
func leastSquares(a *mat.Dense, b []float64) ([]float64, bool) {
	rows, cols := a.Dims()
	if rows < cols {
		return nil, false
	}
	var qr mat.QR
	qr.Factorize(a)
	var x mat.Dense
	if err := qr.SolveTo(&x, false, mat.NewDense(rows, 1, b)); err != nil {
		diagf("least squares %dx%d: %v", rows, cols, err)
		return nil, false
	}
	return mat.Col(nil, 0, &x), true
}

// FitPoly fits z = Σ c_k·x^xpowers[k]·y^ypowers[k] to the selected pixels by
// least squares. x and y run from -1 to 1 across the whole field, whatever
// the part. It returns false, with zero coefficients, when there are fewer
// selected pixels than terms or the system is singular. A part with fewer
// pixels than terms is a contract violation.
func (f *Field) FitPoly(part *Part, sel Selection, xpowers, ypowers []int) ([]float64, bool) {
	maxx, maxy := checkPowers(xpowers, ypowers)
	nterms := len(xpowers)
	coeffs := make([]float64, nterms)
	p, s, ok := f.checkMask(part, sel)
	if !ok {
		return coeffs, false
	}
	if p.Width*p.Height < nterms {
		panic(fmt.Sprintf("field: part %v too small for %d terms", p, nterms))
	}
	xp := make([][]float64, p.Width)
	for j := range xp {
		xp[j] = powerTable(normCoord(p.Col+j, f.xres), maxx)
	}
	var rows, b []float64
	for i := 0; i < p.Height; i++ {
		yp := powerTable(normCoord(p.Row+i, f.yres), maxy)
		for j := 0; j < p.Width; j++ {
			if !s.in(j, i) {
				continue
			}
			for k := range xpowers {
				rows = append(rows, xp[j][xpowers[k]]*yp[ypowers[k]])
			}
			b = append(b, f.data[(p.Row+i)*f.xres+p.Col+j])
		}
	}
	if len(b) < nterms {
		return coeffs, false
	}
	x, ok := leastSquares(mat.NewDense(len(b), nterms, rows), b)
	if !ok {
		return coeffs, false
	}
	return x, true
}

// SubtractPoly subtracts the polynomial with the given coefficients, in the
// coordinates of FitPoly, from the whole field.
func (f *Field) SubtractPoly(xpowers, ypowers []int, coeffs []float64) {
	maxx, maxy := checkPowers(xpowers, ypowers)
	if len(coeffs) != len(xpowers) {
		panic(fmt.Sprintf("field: %d coefficients for %d terms", len(coeffs), len(xpowers)))
	}
	xp := make([][]float64, f.xres)
	for j := range xp {
		xp[j] = powerTable(normCoord(j, f.xres), maxx)
	}
	for i := 0; i < f.yres; i++ {
		yp := powerTable(normCoord(i, f.yres), maxy)
		row := f.data[i*f.xres : (i+1)*f.xres]
		for j := range row {
			var v float64
			for k, c := range coeffs {
				v += c * xp[j][xpowers[k]] * yp[ypowers[k]]
			}
			row[j] -= v
		}
	}
	f.changed(nil)
}

var (
	planeXPowers = []int{0, 1, 0}
	planeYPowers = []int{0, 0, 1}
)

// FitPlane fits z = a + bx·x + by·y in the coordinates of FitPoly.
func (f *Field) FitPlane(part *Part, sel Selection) (a, bx, by float64, ok bool) {
	c, ok := f.FitPoly(part, sel, planeXPowers, planeYPowers)
	return c[0], c[1], c[2], ok
}

// SubtractPlane subtracts a + bx·x + by·y from the whole field.
func (f *Field) SubtractPlane(a, bx, by float64) {
	f.SubtractPoly(planeXPowers, planeYPowers, []float64{a, bx, by})
}

// Inclination estimates the dominant plane slope as the mode of the 2-D
// histogram of facet slopes, which makes it insensitive to steps and other
// sparse features. The histogram spans the 5th to 95th percentile of each
// slope component in nbins bins; facets in the mode bin and its neighbours
// are averaged. bx and by are in the coordinates of FitPoly. It returns
// false when fewer than four facets are available.
func (f *Field) Inclination(part *Part, sel Selection, nbins int) (bx, by float64, ok bool) {
	if nbins < 1 {
		panic(fmt.Sprintf("field: invalid bin count %d", nbins))
	}
	p, s, ok := f.checkMask(part, sel)
	if !ok {
		return 0, 0, false
	}
	gx, gy := f.facetSlopes(p, &s)
	if len(gx) < 4 {
		return 0, 0, false
	}
	xlo, xhi := quantileRange(gx)
	ylo, yhi := quantileRange(gy)
	bin := func(v, lo, hi float64) int {
		if v < lo || v > hi {
			return -1
		}
		return min(int((v-lo)/(hi-lo)*float64(nbins)), nbins-1)
	}
	hist := make([]int, nbins*nbins)
	bi := make([]int, len(gx))
	bj := make([]int, len(gx))
	for k := range gx {
		bj[k], bi[k] = bin(gx[k], xlo, xhi), bin(gy[k], ylo, yhi)
		if bj[k] >= 0 && bi[k] >= 0 {
			hist[bi[k]*nbins+bj[k]]++
		}
	}
	mode := 0
	for k, c := range hist {
		if c > hist[mode] {
			mode = k
		}
	}
	mi, mj := mode/nbins, mode%nbins
	var sx, sy float64
	n := 0
	for k := range gx {
		if bi[k] < 0 || bj[k] < 0 || abs(bi[k]-mi) > 1 || abs(bj[k]-mj) > 1 {
			continue
		}
		sx += gx[k]
		sy += gy[k]
		n++
	}
	vx, vy := sx/float64(n), sy/float64(n)
	diagf("inclination from %d of %d facets", n, len(gx))
	return 0.5 * vx * f.DX() * float64(f.xres-1), 0.5 * vy * f.DY() * float64(f.yres-1), true
}

func abs(k int) int {
	if k < 0 {
		return -k
	}
	return k
}

// quantileRange returns the 5th and 95th percentile of values, widened when
// they coincide.
func quantileRange(values []float64) (float64, float64) {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	lo := stat.Quantile(0.05, stat.Empirical, sorted, nil)
	hi := stat.Quantile(0.95, stat.Empirical, sorted, nil)
	return sanitizeRange(lo, hi)
}

// LevelRows subtracts from each row its least-squares polynomial with nterms
// terms: 0 leaves the field alone, 1 removes the mean, 2 the linear trend
// and so on. Rows shorter than nterms are fitted with as many terms as
// they have pixels.
func (f *Field) LevelRows(nterms int) {
	if nterms < 0 {
		panic(fmt.Sprintf("field: invalid term count %d", nterms))
	}
	nterms = min(nterms, f.xres)
	if nterms == 0 {
		return
	}
	basis := make([]float64, 0, f.xres*nterms)
	for j := 0; j < f.xres; j++ {
		basis = append(basis, powerTable(normCoord(j, f.xres), nterms-1)...)
	}
	a := mat.NewDense(f.xres, nterms, basis)
	var qr mat.QR
	qr.Factorize(a)
	var x mat.Dense
	for i := 0; i < f.yres; i++ {
		row := f.data[i*f.xres : (i+1)*f.xres]
		if err := qr.SolveTo(&x, false, mat.NewDense(f.xres, 1, append([]float64(nil), row...))); err != nil {
			opsf("row %d not levelled: %v", i, err)
			continue
		}
		for j := range row {
			row[j] -= mat.Dot(a.RowView(j), x.ColView(0))
		}
	}
	f.changed(nil)
}
