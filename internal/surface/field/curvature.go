package field

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Curvature describes a local quadratic fit. K1 ≤ K2 are the principal
// curvatures, Phi1 and Phi2 the directions of their axes in (-π/2, π/2].
// (Xc, Yc, Zc) is the centre: the extremum or saddle point for NDims 2, the
// point of the extremal line nearest to the pixel for NDims 1 and the pixel
// itself for NDims 0 (a plane).
type Curvature struct {
	K1, K2     float64
	Phi1, Phi2 float64
	Xc, Yc, Zc float64
	NDims      int
}

// degenerateCurvature is the relative size below which an eigenvalue of the
// Hessian counts as zero.
const degenerateCurvature = 1e-9

// Curvature fits z = a + bx·x + by·y + cxx·x² + cxy·xy + cyy·y² to the
// selected pixels within ax columns and ay rows of (col, row) and extracts
// the principal curvatures. Coordinates are physical. With relative the
// centre is given relative to the pixel centre, otherwise in field
// coordinates including offsets. sel masks refer to the whole field. It
// returns false, with a zero result, when ax or ay is below 1 or fewer than
// six pixels are available.
func (f *Field) Curvature(sel Selection, col, row, ax, ay int, relative bool) (Curvature, bool) {
	f.checkPixel(col, row)
	p, s, _ := f.checkMask(nil, sel)
	if ax < 1 || ay < 1 {
		return Curvature{}, false
	}
	dx, dy := f.DX(), f.DY()
	var rows, b []float64
	for i := max(row-ay, 0); i <= min(row+ay, f.yres-1); i++ {
		for j := max(col-ax, 0); j <= min(col+ax, f.xres-1); j++ {
			if !s.in(j-p.Col, i-p.Row) {
				continue
			}
			x, y := float64(j-col)*dx, float64(i-row)*dy
			rows = append(rows, 1, x, y, x*x, x*y, y*y)
			b = append(b, f.data[i*f.xres+j])
		}
	}
	if len(b) < 6 {
		return Curvature{}, false
	}
	c, ok := leastSquares(mat.NewDense(len(b), 6, rows), b)
	if !ok {
		return Curvature{}, false
	}
	zlo, zhi := extremes(b)
	extent := math.Max(float64(ax)*dx, float64(ay)*dy)
	res := quadraticCurvature(c, (zhi-zlo)/(extent*extent))
	if !relative {
		res.Xc += f.xoff + (float64(col)+0.5)*dx
		res.Yc += f.yoff + (float64(row)+0.5)*dy
	}
	return res, true
}

// quadraticCurvature analyses z = c0 + c1·x + c2·y + c3·x² + c4·xy + c5·y².
// Curvatures negligible compared to ref count as zero.
func quadraticCurvature(c []float64, ref float64) Curvature {
	if len(c) != 6 {
		panic(fmt.Sprintf("field: %d quadratic coefficients", len(c)))
	}
	h := mat.NewSymDense(2, []float64{2 * c[3], c[4], c[4], 2 * c[5]})
	var eig mat.EigenSym
	if !eig.Factorize(h, true) {
		return Curvature{Zc: c[0], Phi2: math.Pi / 2}
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	res := Curvature{K1: vals[0], K2: vals[1]}
	res.Phi1 = axisAngle(vecs.At(0, 0), vecs.At(1, 0))
	res.Phi2 = axisAngle(vecs.At(0, 1), vecs.At(1, 1))

	scale := math.Max(math.Max(math.Abs(vals[0]), math.Abs(vals[1])), ref)
	grad := [2]float64{c[1], c[2]}
	tiny := func(v float64) bool { return math.Abs(v) <= degenerateCurvature*scale }
	switch {
	case scale == 0 || (tiny(vals[0]) && tiny(vals[1])):
		res = Curvature{Phi1: 0, Phi2: math.Pi / 2}
	case tiny(vals[0]) || tiny(vals[1]):
		// Cylinder-like: move along the curved axis only.
		k := 1
		if tiny(vals[1]) {
			k = 0
		}
		vx, vy := vecs.At(0, k), vecs.At(1, k)
		t := -(grad[0]*vx + grad[1]*vy) / vals[k]
		res.Xc, res.Yc = t*vx, t*vy
		res.NDims = 1
	default:
		// H·(x, y) = -∇.
		det := h.At(0, 0)*h.At(1, 1) - h.At(0, 1)*h.At(1, 0)
		res.Xc = (-grad[0]*h.At(1, 1) + grad[1]*h.At(0, 1)) / det
		res.Yc = (-grad[1]*h.At(0, 0) + grad[0]*h.At(1, 0)) / det
		res.NDims = 2
	}
	x, y := res.Xc, res.Yc
	res.Zc = c[0] + c[1]*x + c[2]*y + c[3]*x*x + c[4]*x*y + c[5]*y*y
	return res
}

// axisAngle returns the direction of the axis (vx, vy) in (-π/2, π/2].
func axisAngle(vx, vy float64) float64 {
	phi := math.Atan2(vy, vx)
	if phi > math.Pi/2 {
		phi -= math.Pi
	} else if phi <= -math.Pi/2 {
		phi += math.Pi
	}
	return phi
}
