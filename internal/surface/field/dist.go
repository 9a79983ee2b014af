package field

import "math"

// distPoints picks a histogram resolution for n samples (Scott's rule for
// unit-variance data).
func distPoints(n int) int {
	return max(1, int(3.49*math.Cbrt(float64(n))+0.5))
}

// sanitizeRange widens a degenerate range so that it has a positive length.
func sanitizeRange(lo, hi float64) (float64, float64) {
	if hi > lo {
		return lo, hi
	}
	if hi == 0 {
		return -1, 1
	}
	d := 0.1 * math.Abs(hi)
	return lo - d, hi + d
}

func extremes(values []float64) (float64, float64) {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// histogram builds the discrete distribution of values over [lo, hi] with
// npoints bins (0 for automatic). It returns nil when values is empty.
func histogram(values []float64, cumulative bool, npoints int, lo, hi float64) *Line {
	n := len(values)
	if n == 0 {
		return nil
	}
	if !(lo < hi) {
		lo, hi = extremes(values)
	}
	lo, hi = sanitizeRange(lo, hi)
	if npoints <= 0 {
		nin := 0
		for _, v := range values {
			if v >= lo && v <= hi {
				nin++
			}
		}
		npoints = distPoints(nin)
	}
	line := NewLine(npoints, hi-lo)
	line.Off = lo
	dx := line.DX()
	below := 0.0
	for _, v := range values {
		if v < lo {
			below++
			continue
		}
		if v > hi || math.IsNaN(v) {
			continue
		}
		k := int((v - lo) / dx)
		line.Data[min(k, npoints-1)]++
	}
	normalizeDist(line, below, float64(n), cumulative)
	return line
}

// normalizeDist turns bin weights into a probability density (integrating
// to the fraction of the total weight n within the range) or, when
// cumulative, into the fraction of the weight up to each bin.
func normalizeDist(line *Line, below, n float64, cumulative bool) {
	data := line.Data
	if cumulative {
		s := below
		for k := range data {
			s += data[k]
			data[k] = s / n
		}
		return
	}
	q := 1 / (n * line.DX())
	for k := range data {
		data[k] *= q
	}
}

// quarter is the part of a pixel between its centre and one of its corners.
// The interpolated surface over it is given by the value at the pixel centre,
// at the midpoints of the two pixel edges and at the corner.
type quarter struct {
	z, zx, zy, zc float64
}

// triangles returns the vertex values of the two triangles the quarter is
// split into along its diagonal from the pixel centre.
func (q quarter) triangles() [2][3]float64 {
	return [2][3]float64{{q.z, q.zx, q.zc}, {q.z, q.zy, q.zc}}
}

// quarterNeighbour returns the index of the neighbour of k in direction d
// along an axis of res pixels. A single pixel thick axis is its own
// neighbour, so the surface is constant along it.
func quarterNeighbour(k, d, res int) (int, bool) {
	if res == 1 {
		return k, true
	}
	k += d
	return k, k >= 0 && k < res
}

// pixelQuarters returns the quarters of the selected pixels of p. Neighbour
// values come from the whole field regardless of the selection. Quarters
// facing the field edge have no neighbour to interpolate towards and are
// skipped, as are those touching a NaN.
func (f *Field) pixelQuarters(p Part, s *selector) []quarter {
	var qs []quarter
	for i := 0; i < p.Height; i++ {
		row := p.Row + i
		for j := 0; j < p.Width; j++ {
			if !s.in(j, i) {
				continue
			}
			col := p.Col + j
			z := f.data[row*f.xres+col]
			for _, d := range quarters {
				c, okx := quarterNeighbour(col, d[0], f.xres)
				r, oky := quarterNeighbour(row, d[1], f.yres)
				if !okx || !oky {
					continue
				}
				zx, zy := f.data[row*f.xres+c], f.data[r*f.xres+col]
				q := quarter{z, 0.5 * (z + zx), 0.5 * (z + zy), 0.25 * (z + zx + zy + f.data[r*f.xres+c])}
				if !math.IsNaN(q.zc) {
					qs = append(qs, q)
				}
			}
		}
	}
	return qs
}

func sort3(a, b, c float64) (float64, float64, float64) {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b, c = c, b
	}
	if a > b {
		a, b = b, a
	}
	return a, b, c
}

// triangleDist adds weight w distributed as the values of a linear function
// over a triangle with vertex values a, b, c to the bins of data starting
// at lo. The density is piecewise linear, rising from the lowest vertex
// value to the middle one and falling to the highest. It returns the part
// of w lying below lo; the part above the last bin is dropped.
func triangleDist(data []float64, lo, dx, a, b, c, w float64) float64 {
	a, b, c = sort3(a, b, c)
	n := len(data)
	if c < lo {
		return w
	}
	if a > lo+float64(n)*dx {
		return 0
	}
	if a == c {
		data[min(int((a-lo)/dx), n-1)] += w
		return 0
	}
	cdf := func(v float64) float64 {
		switch {
		case v <= a:
			return 0
		case v >= c:
			return 1
		case v < b:
			return (v - a) * (v - a) / ((c - a) * (b - a))
		}
		return 1 - (c-v)*(c-v)/((c-a)*(c-b))
	}
	k0 := max(0, int((a-lo)/dx))
	k1 := min(n-1, int((c-lo)/dx))
	prev := cdf(lo + float64(k0)*dx)
	for k := k0; k <= k1; k++ {
		next := cdf(lo + float64(k+1)*dx)
		data[k] += w * (next - prev)
		prev = next
	}
	return w * cdf(lo)
}

// surfaceDist builds the distribution of values of the surface interpolated
// linearly over the triangles of the quarters. Every quarter carries the
// same weight and the automatic resolution counts four quarters as one
// pixel.
func surfaceDist(qs []quarter, cumulative bool, npoints int, lo, hi float64) *Line {
	if len(qs) == 0 {
		return nil
	}
	if !(lo < hi) {
		lo, hi = math.Inf(1), math.Inf(-1)
		for _, q := range qs {
			lo = min(lo, q.z, q.zx, q.zy, q.zc)
			hi = max(hi, q.z, q.zx, q.zy, q.zc)
		}
	}
	lo, hi = sanitizeRange(lo, hi)
	if npoints <= 0 {
		nin := 0
		for _, q := range qs {
			if max(q.z, q.zx, q.zy, q.zc) >= lo && min(q.z, q.zx, q.zy, q.zc) <= hi {
				nin++
			}
		}
		npoints = distPoints(nin / 4)
	}
	line := NewLine(npoints, hi-lo)
	line.Off = lo
	dx := line.DX()
	below := 0.0
	for _, q := range qs {
		for _, t := range q.triangles() {
			below += triangleDist(line.Data, lo, dx, t[0], t[1], t[2], 0.5)
		}
	}
	normalizeDist(line, below, float64(len(qs)), cumulative)
	return line
}

// ValueDist returns the distribution of values of the selected pixels over
// [lo, hi], or over the value range when lo ≥ hi. npoints ≤ 0 picks the
// resolution from the number of samples. The line is empty when nothing is
// selected.
//
// The discrete distribution is a histogram of the pixel values. The
// continuous one is the distribution of the surface interpolated linearly
// between pixel centres, each selected pixel contributing its quarters
// that lie within the field.
func (f *Field) ValueDist(part *Part, sel Selection, cumulative, continuous bool, npoints int, lo, hi float64) *Line {
	p, s, ok := f.checkMask(part, sel)
	if !ok {
		return &Line{XUnit: f.ZUnit}
	}
	var line *Line
	if continuous {
		line = surfaceDist(f.pixelQuarters(p, &s), cumulative, npoints, lo, hi)
	} else {
		line = histogram(f.selected(p, &s), cumulative, npoints, lo, hi)
	}
	if line == nil {
		return &Line{XUnit: f.ZUnit}
	}
	line.XUnit = f.ZUnit
	return line
}

// facetSlopes returns the x and y derivatives of every 2×2 cell of p whose
// four pixels are all selected.
func (f *Field) facetSlopes(p Part, s *selector) (gx, gy []float64) {
	dx, dy := f.DX(), f.DY()
	for i := 0; i+1 < p.Height; i++ {
		for j := 0; j+1 < p.Width; j++ {
			if !s.in(j, i) || !s.in(j+1, i) || !s.in(j, i+1) || !s.in(j+1, i+1) {
				continue
			}
			k := (p.Row+i)*f.xres + p.Col + j
			z00, z01 := f.data[k], f.data[k+1]
			z10, z11 := f.data[k+f.xres], f.data[k+f.xres+1]
			gx = append(gx, 0.5*(z01+z11-z00-z10)/dx)
			gy = append(gy, 0.5*(z10+z11-z00-z01)/dy)
		}
	}
	return gx, gy
}

// SlopeDist returns the distribution of the derivative along the direction
// angle (radians from the x axis) computed on 2×2 facets of selected pixels.
// The line is empty when there is no such facet.
func (f *Field) SlopeDist(part *Part, sel Selection, angle float64, npoints int) *Line {
	unit := f.ZUnit + "/" + f.XYUnit
	p, s, ok := f.checkMask(part, sel)
	if !ok {
		return &Line{XUnit: unit}
	}
	gx, gy := f.facetSlopes(p, &s)
	c, sn := math.Cos(angle), math.Sin(angle)
	d := make([]float64, len(gx))
	for k := range gx {
		d[k] = c*gx[k] + sn*gy[k]
	}
	line := histogram(d, false, npoints, 0, 0)
	if line == nil {
		return &Line{XUnit: unit}
	}
	line.XUnit = unit
	return line
}
