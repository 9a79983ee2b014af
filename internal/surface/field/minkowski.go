package field

import (
	"fmt"

	"github.com/banshee-data/surface.report/internal/surface/mask"
)

// MinkowskiFunctional selects the quantity computed by Minkowski.
type MinkowskiFunctional int

const (
	// MinkowskiVolume is the fraction of pixels above the threshold.
	MinkowskiVolume MinkowskiFunctional = iota
	// MinkowskiBoundary is the fraction of neighbour pairs the threshold
	// separates.
	MinkowskiBoundary
	// MinkowskiBlack is the number of grains at or below the threshold per
	// pixel.
	MinkowskiBlack
	// MinkowskiWhite is the number of grains above the threshold per pixel.
	MinkowskiWhite
	// MinkowskiConnectivity is white minus black grains per pixel.
	MinkowskiConnectivity
)

var minkowskiNames = []string{"volume", "boundary", "black", "white", "connectivity"}

func (m MinkowskiFunctional) String() string {
	if m < 0 || int(m) >= len(minkowskiNames) {
		return fmt.Sprintf("MinkowskiFunctional(%d)", int(m))
	}
	return minkowskiNames[m]
}

// ParseMinkowskiFunctional converts a name as printed by String.
func ParseMinkowskiFunctional(s string) (MinkowskiFunctional, error) {
	for i, n := range minkowskiNames {
		if n == s {
			return MinkowskiFunctional(i), nil
		}
	}
	return MinkowskiVolume, fmt.Errorf("unknown Minkowski functional %q", s)
}

// Minkowski computes a Minkowski functional of the selected pixels for
// npoints thresholds evenly covering [lo, hi] (the value range when
// lo ≥ hi); threshold i is lo + (i+0.5)·(hi-lo)/npoints. A pixel is white
// when its value exceeds the threshold. Grains are 4-connected and never
// connect through unselected pixels. The line is empty when nothing is
// selected.
func (f *Field) Minkowski(part *Part, sel Selection, kind MinkowskiFunctional, npoints int, lo, hi float64) *Line {
	if kind < MinkowskiVolume || kind > MinkowskiConnectivity {
		panic(fmt.Sprintf("field: invalid Minkowski functional %d", int(kind)))
	}
	p, s, ok := f.checkMask(part, sel)
	if !ok {
		return &Line{XUnit: f.ZUnit}
	}
	w, h := p.Width, p.Height
	z := make([]float64, w*h)
	in := make([]bool, w*h)
	var values []float64
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			k := i*w + j
			z[k] = f.data[(p.Row+i)*f.xres+p.Col+j]
			if in[k] = s.in(j, i); in[k] {
				values = append(values, z[k])
			}
		}
	}
	n := len(values)
	if n == 0 {
		return &Line{XUnit: f.ZUnit}
	}

	// Selected neighbour pairs, stored as the pair's lower and upper value.
	var edgeLo, edgeHi []float64
	if kind == MinkowskiBoundary {
		for i := 0; i < h; i++ {
			for j := 0; j < w; j++ {
				k := i*w + j
				if !in[k] {
					continue
				}
				if j+1 < w && in[k+1] {
					edgeLo = append(edgeLo, min(z[k], z[k+1]))
					edgeHi = append(edgeHi, max(z[k], z[k+1]))
				}
				if i+1 < h && in[k+w] {
					edgeLo = append(edgeLo, min(z[k], z[k+w]))
					edgeHi = append(edgeHi, max(z[k], z[k+w]))
				}
			}
		}
		if len(edgeLo) == 0 {
			return &Line{XUnit: f.ZUnit}
		}
	}

	if !(lo < hi) {
		lo, hi = extremes(values)
	}
	lo, hi = sanitizeRange(lo, hi)
	if npoints <= 0 {
		if kind == MinkowskiBoundary {
			npoints = distPoints(len(edgeLo))
		} else {
			npoints = distPoints(n)
		}
	}
	line := NewLine(npoints, hi-lo)
	line.Off = lo
	line.XUnit = f.ZUnit
	dx := line.DX()
	for t := range line.Data {
		threshold := lo + (float64(t)+0.5)*dx
		switch kind {
		case MinkowskiVolume:
			c := 0
			for _, v := range values {
				if v > threshold {
					c++
				}
			}
			line.Data[t] = float64(c) / float64(n)
		case MinkowskiBoundary:
			c := 0
			for e := range edgeLo {
				if edgeLo[e] <= threshold && edgeHi[e] > threshold {
					c++
				}
			}
			line.Data[t] = float64(c) / float64(len(edgeLo))
		default:
			var white, black int
			if kind != MinkowskiBlack {
				_, white = mask.Label(w, h, func(k int) bool { return in[k] && z[k] > threshold })
			}
			if kind != MinkowskiWhite {
				_, black = mask.Label(w, h, func(k int) bool { return in[k] && z[k] <= threshold })
			}
			line.Data[t] = float64(white-black) / float64(n)
			if kind == MinkowskiBlack {
				line.Data[t] = float64(black) / float64(n)
			}
		}
	}
	return line
}
