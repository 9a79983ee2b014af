package field

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate/quad"
)

// VolumeMethod selects the surface interpolation used by Volume and
// SurfaceArea.
type VolumeMethod int

const (
	// VolumeGwyddion2 integrates the piecewise planar surface through pixel
	// centres, edge midpoints and cell corners.
	VolumeGwyddion2 VolumeMethod = iota
	// VolumeTriangular splits each pixel into four triangles meeting at its
	// centre.
	VolumeTriangular
	// VolumeBilinear integrates the bilinear interpolation of each quarter.
	VolumeBilinear
	// VolumeBiquadratic integrates the local biquadratic interpolation.
	VolumeBiquadratic
)

var volumeMethodNames = []string{"gwyddion2", "triangular", "bilinear", "biquadratic"}

func (m VolumeMethod) String() string {
	if m < 0 || int(m) >= len(volumeMethodNames) {
		return fmt.Sprintf("VolumeMethod(%d)", int(m))
	}
	return volumeMethodNames[m]
}

// ParseVolumeMethod converts a name as printed by String to a VolumeMethod.
func ParseVolumeMethod(s string) (VolumeMethod, error) {
	for i, n := range volumeMethodNames {
		if n == s {
			return VolumeMethod(i), nil
		}
	}
	return VolumeGwyddion2, fmt.Errorf("unknown volume method %q", s)
}

// at returns the sample at (col, row) with the coordinates clamped to the
// field.
func (f *Field) at(col, row int) float64 {
	col = min(max(col, 0), f.xres-1)
	row = min(max(row, 0), f.yres-1)
	return f.data[row*f.xres+col]
}

// quarters lists the directions of the four quarters of a pixel.
var quarters = [4][2]int{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

// triangleArea returns the area of the triangle with vertices at the
// origin, (ax, ay, az) and (bx, by, bz).
func triangleArea(ax, ay, az, bx, by, bz float64) float64 {
	cx := ay*bz - az*by
	cy := az*bx - ax*bz
	cz := ax*by - ay*bx
	return 0.5 * math.Sqrt(cx*cx+cy*cy+cz*cz)
}

// SurfaceArea returns the area of the surface over the selected pixels
// using the given interpolation. Each pixel owns the part of the surface
// within its own rectangle, so the areas of complementary selections add up
// to the area of the whole part. Neighbours outside the field are taken
// from the border.
func (f *Field) SurfaceArea(part *Part, sel Selection, method VolumeMethod) float64 {
	p, s, ok := f.checkMask(part, sel)
	if !ok {
		return 0
	}
	if method < VolumeGwyddion2 || method > VolumeBiquadratic {
		panic(fmt.Sprintf("field: invalid area method %d", int(method)))
	}
	var area float64
	for i := 0; i < p.Height; i++ {
		for j := 0; j < p.Width; j++ {
			if s.in(j, i) {
				area += f.pixelArea(p.Col+j, p.Row+i, method)
			}
		}
	}
	return area
}

// areaQuadPoints is the Gauss-Legendre order used for curved patches.
const areaQuadPoints = 6

// pixelArea returns the area of the interpolated surface over pixel
// (col, row).
func (f *Field) pixelArea(col, row int, method VolumeMethod) float64 {
	dx, dy := f.DX(), f.DY()
	z := f.data[row*f.xres+col]
	if method == VolumeBiquadratic {
		return dx * dy * f.biquadraticArea(col, row)
	}
	var area float64
	var corners [4]float64
	for k, d := range quarters {
		zh := f.at(col+d[0], row)
		zv := f.at(col, row+d[1])
		zc := 0.25 * (z + zh + zv + f.at(col+d[0], row+d[1]))
		corners[k] = zc
		hx, hy := 0.5*dx*float64(d[0]), 0.5*dy*float64(d[1])
		switch method {
		case VolumeGwyddion2:
			// Half of each triangle spanned by the centre, a
			// neighbour's centre and the shared cell corner.
			area += 0.5 * triangleArea(2*hx, 0, zh-z, hx, hy, zc-z)
			area += 0.5 * triangleArea(0, 2*hy, zv-z, hx, hy, zc-z)
		case VolumeBilinear:
			area += bilinearArea(z, 0.5*(z+zh), 0.5*(z+zv), zc, 0.5*dx, 0.5*dy)
		}
	}
	if method == VolumeTriangular {
		// Four triangles joining the centre to consecutive pixel corners.
		for k, d := range quarters {
			e := quarters[(k+1)%4]
			area += triangleArea(0.5*dx*float64(d[0]), 0.5*dy*float64(d[1]), corners[k]-z,
				0.5*dx*float64(e[0]), 0.5*dy*float64(e[1]), corners[(k+1)%4]-z)
		}
	}
	return area
}

// bilinearArea integrates the area of the bilinear patch over an hx×hy
// rectangle with values z00 and z11 at opposite corners and z10, z01 at the
// ends of the x and y edges from z00.
func bilinearArea(z00, z10, z01, z11, hx, hy float64) float64 {
	return hx * hy * quad.Fixed(func(v float64) float64 {
		return quad.Fixed(func(u float64) float64 {
			gx := ((z10-z00)*(1-v) + (z11-z01)*v) / hx
			gy := ((z01-z00)*(1-u) + (z11-z10)*u) / hy
			return math.Sqrt(1 + gx*gx + gy*gy)
		}, 0, 1, areaQuadPoints, nil, 0)
	}, 0, 1, areaQuadPoints, nil, 0)
}

// quadraticBasis returns the Lagrange basis through -1, 0 and 1 at t and
// its derivative.
func quadraticBasis(t float64) (l, dl [3]float64) {
	return [3]float64{0.5 * t * (t - 1), 1 - t*t, 0.5 * t * (t + 1)},
		[3]float64{t - 0.5, -2 * t, t + 0.5}
}

// biquadraticArea integrates the area element of the biquadratic through
// the 3×3 neighbourhood of (col, row) over the pixel, per unit pixel area.
func (f *Field) biquadraticArea(col, row int) float64 {
	var zn [3][3]float64
	for a := -1; a <= 1; a++ {
		for b := -1; b <= 1; b++ {
			zn[a+1][b+1] = f.at(col+b, row+a)
		}
	}
	dx, dy := f.DX(), f.DY()
	return quad.Fixed(func(s float64) float64 {
		ls, dls := quadraticBasis(s)
		return quad.Fixed(func(t float64) float64 {
			lt, dlt := quadraticBasis(t)
			var gx, gy float64
			for a := range zn {
				for b, v := range zn[a] {
					gx += dlt[b] * ls[a] * v
					gy += lt[b] * dls[a] * v
				}
			}
			gx /= dx
			gy /= dy
			return math.Sqrt(1 + gx*gx + gy*gy)
		}, -0.5, 0.5, areaQuadPoints, nil, 0)
	}, -0.5, 0.5, areaQuadPoints, nil, 0)
}

// biquadraticWeights integrate the quadratic through three samples over the
// middle pixel.
var biquadraticWeights = [3]float64{1.0 / 24, 22.0 / 24, 1.0 / 24}

// Volume returns the integral of the surface over the selected pixels using
// the given interpolation. As with SurfaceArea, complementary selections add
// up. Neighbours outside the field are taken from the border.
func (f *Field) Volume(part *Part, sel Selection, method VolumeMethod) float64 {
	p, s, ok := f.checkMask(part, sel)
	if !ok {
		return 0
	}
	if method < VolumeGwyddion2 || method > VolumeBiquadratic {
		panic(fmt.Sprintf("field: invalid volume method %d", int(method)))
	}
	var sum float64
	for i := 0; i < p.Height; i++ {
		row := p.Row + i
		for j := 0; j < p.Width; j++ {
			if !s.in(j, i) {
				continue
			}
			sum += f.pixelVolume(p.Col+j, row, method)
		}
	}
	return sum * f.DX() * f.DY()
}

// pixelVolume returns the mean height of the interpolated surface over
// pixel (col, row).
func (f *Field) pixelVolume(col, row int, method VolumeMethod) float64 {
	z := f.data[row*f.xres+col]
	if method == VolumeBiquadratic {
		var v float64
		for a := -1; a <= 1; a++ {
			for b := -1; b <= 1; b++ {
				v += biquadraticWeights[a+1] * biquadraticWeights[b+1] * f.at(col+b, row+a)
			}
		}
		return v
	}
	var v float64
	for _, d := range quarters {
		zh := f.at(col+d[0], row)
		zv := f.at(col, row+d[1])
		zc := 0.25 * (z + zh + zv + f.at(col+d[0], row+d[1]))
		switch method {
		case VolumeGwyddion2:
			// Two triangles: centre, edge midpoint, corner.
			v += 0.5 * ((z+0.5*(z+zh)+zc)/3 + (z+0.5*(z+zv)+zc)/3)
		case VolumeTriangular:
			v += z/3 + 2*zc/3
		case VolumeBilinear:
			v += 0.25 * (z + 0.5*(z+zh) + 0.5*(z+zv) + zc)
		}
	}
	return 0.25 * v
}
