package field

import (
	"fmt"
	"math"
)

// Exterior is the rule for values outside the field.
type Exterior int

const (
	// ExteriorUndefined yields NaN outside the field.
	ExteriorUndefined Exterior = iota
	// ExteriorFixed yields the fill value.
	ExteriorFixed
	// ExteriorBorder repeats the nearest edge sample.
	ExteriorBorder
	// ExteriorMirror reflects about the edge: 0,1,…,n-1,n-1,…,1,0,0,1,…
	ExteriorMirror
	// ExteriorPeriodic wraps around.
	ExteriorPeriodic
)

var exteriorNames = []string{"undefined", "fixed", "border", "mirror", "periodic"}

func (e Exterior) String() string {
	if e < 0 || int(e) >= len(exteriorNames) {
		return fmt.Sprintf("Exterior(%d)", int(e))
	}
	return exteriorNames[e]
}

// ParseExterior converts a name as printed by String to an Exterior.
func ParseExterior(s string) (Exterior, error) {
	for i, n := range exteriorNames {
		if n == s {
			return Exterior(i), nil
		}
	}
	return ExteriorUndefined, fmt.Errorf("unknown exterior %q", s)
}

// resolveIndex maps k to an index in [0, n) according to ext. It returns -1
// when the value is not taken from the grid.
func resolveIndex(k, n int, ext Exterior) int {
	if k >= 0 && k < n {
		return k
	}
	switch ext {
	case ExteriorUndefined, ExteriorFixed:
		return -1
	case ExteriorBorder:
		if k < 0 {
			return 0
		}
		return n - 1
	case ExteriorMirror:
		m := k % (2 * n)
		if m < 0 {
			m += 2 * n
		}
		if m >= n {
			m = 2*n - 1 - m
		}
		return m
	case ExteriorPeriodic:
		m := k % n
		if m < 0 {
			m += n
		}
		return m
	}
	panic(fmt.Sprintf("field: invalid exterior %d", int(ext)))
}

// ValueAt returns the sample at (col, row), which may lie outside the field.
func (f *Field) ValueAt(col, row int, ext Exterior, fill float64) float64 {
	c, r := resolveIndex(col, f.xres, ext), resolveIndex(row, f.yres, ext)
	if c < 0 || r < 0 {
		if ext == ExteriorUndefined {
			return math.NaN()
		}
		return fill
	}
	return f.data[r*f.xres+c]
}

// extendRect materializes the rectangle p grown by the given margins into a
// row-major buffer of (w+left+right)×(h+up+down) samples, with shift
// subtracted from every value. Values outside the field follow ext.
func (f *Field) extendRect(p Part, left, right, up, down int, ext Exterior, fill, shift float64) []float64 {
	ew, eh := p.Width+left+right, p.Height+up+down
	tracef("extend %v by %d,%d,%d,%d (%v)", p, left, right, up, down, ext)
	cols := make([]int, ew)
	for x := range cols {
		cols[x] = resolveIndex(p.Col-left+x, f.xres, ext)
	}
	outside := fill - shift
	if ext == ExteriorUndefined {
		outside = math.NaN()
	}
	buf := make([]float64, ew*eh)
	for y := 0; y < eh; y++ {
		out := buf[y*ew : (y+1)*ew]
		r := resolveIndex(p.Row-up+y, f.yres, ext)
		if r < 0 {
			for x := range out {
				out[x] = outside
			}
			continue
		}
		row := f.data[r*f.xres : (r+1)*f.xres]
		for x, c := range cols {
			if c < 0 {
				out[x] = outside
			} else {
				out[x] = row[c] - shift
			}
		}
	}
	return buf
}

// NewExtended creates a field containing part surrounded by the given
// margins filled according to ext. The pixel size is preserved. With
// keepOffsets the extended field is positioned so that its interior
// coincides with the part.
func (f *Field) NewExtended(part *Part, left, right, up, down int, ext Exterior, fill float64, keepOffsets bool) *Field {
	p, ok := f.checkPart(part)
	if !ok {
		panic(fmt.Sprintf("field: empty part %v", p))
	}
	if left < 0 || right < 0 || up < 0 || down < 0 {
		panic("field: negative extension margin")
	}
	buf := f.extendRect(p, left, right, up, down, ext, fill, 0)
	ew, eh := p.Width+left+right, p.Height+up+down
	dx, dy := f.DX(), f.DY()
	g := FromData(ew, eh, float64(ew)*dx, float64(eh)*dy, buf)
	g.XYUnit, g.ZUnit = f.XYUnit, f.ZUnit
	if keepOffsets {
		g.xoff = f.xoff + float64(p.Col-left)*dx
		g.yoff = f.yoff + float64(p.Row-up)*dy
	}
	return g
}

// definedExterior coerces ExteriorUndefined, which would poison every sum
// touching the border, to a zero fill.
func definedExterior(ext Exterior, fill float64) (Exterior, float64) {
	if ext == ExteriorUndefined {
		opsf("undefined exterior is not usable here, using fixed zero")
		return ExteriorFixed, 0
	}
	return ext, fill
}
