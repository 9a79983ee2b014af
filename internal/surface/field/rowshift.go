package field

import "fmt"

// RowShiftMethod selects how FindRowShifts compares neighbouring rows.
type RowShiftMethod int

const (
	// RowShiftMean compares row means.
	RowShiftMean RowShiftMethod = iota
	// RowShiftMedian compares row medians.
	RowShiftMedian
	// RowShiftMeanDiff averages differences between vertically adjacent
	// pixels.
	RowShiftMeanDiff
	// RowShiftMedianDiff takes the median of differences between vertically
	// adjacent pixels.
	RowShiftMedianDiff
)

var rowShiftNames = []string{"mean", "median", "mean-diff", "median-diff"}

func (m RowShiftMethod) String() string {
	if m < 0 || int(m) >= len(rowShiftNames) {
		return fmt.Sprintf("RowShiftMethod(%d)", int(m))
	}
	return rowShiftNames[m]
}

// ParseRowShiftMethod converts a name as printed by String.
func ParseRowShiftMethod(s string) (RowShiftMethod, error) {
	for i, n := range rowShiftNames {
		if n == s {
			return RowShiftMethod(i), nil
		}
	}
	return RowShiftMean, fmt.Errorf("unknown row shift method %q", s)
}

// FindRowShifts estimates for each row how much it is offset from the
// previous one. Item 0 is always zero. Rows (or row pairs, for the
// difference methods) with fewer than minFreedom selected pixels get zero;
// the mean and median methods then compare the next row with the last row
// that had enough pixels. Subtracting the cumulative sum of the shifts
// aligns the rows, see AlignRows.
func (f *Field) FindRowShifts(sel Selection, method RowShiftMethod, minFreedom int) []float64 {
	if method < RowShiftMean || method > RowShiftMedianDiff {
		panic(fmt.Sprintf("field: invalid row shift method %d", int(method)))
	}
	minFreedom = max(minFreedom, 1)
	p, s, _ := f.checkMask(nil, sel)
	shifts := make([]float64, f.yres)
	switch method {
	case RowShiftMean, RowShiftMedian:
		last, haveLast := 0.0, false
		buf := make([]float64, 0, f.xres)
		for i := 0; i < f.yres; i++ {
			buf = buf[:0]
			for j := 0; j < f.xres; j++ {
				if s.in(j-p.Col, i-p.Row) {
					buf = append(buf, f.data[i*f.xres+j])
				}
			}
			if len(buf) < minFreedom {
				continue
			}
			var v float64
			if method == RowShiftMean {
				for _, z := range buf {
					v += z
				}
				v /= float64(len(buf))
			} else {
				v = median(buf)
			}
			if haveLast {
				shifts[i] = v - last
			}
			last, haveLast = v, true
		}
	default:
		diffs := make([]float64, 0, f.xres)
		for i := 1; i < f.yres; i++ {
			diffs = diffs[:0]
			for j := 0; j < f.xres; j++ {
				if s.in(j-p.Col, i-p.Row) && s.in(j-p.Col, i-1-p.Row) {
					diffs = append(diffs, f.data[i*f.xres+j]-f.data[(i-1)*f.xres+j])
				}
			}
			if len(diffs) < minFreedom {
				continue
			}
			if method == RowShiftMeanDiff {
				var v float64
				for _, d := range diffs {
					v += d
				}
				shifts[i] = v / float64(len(diffs))
			} else {
				shifts[i] = median(diffs)
			}
		}
	}
	return shifts
}

// AccumulateShifts turns row-to-row shifts into absolute row offsets in
// place and returns the slice.
func AccumulateShifts(shifts []float64) []float64 {
	for i := 1; i < len(shifts); i++ {
		shifts[i] += shifts[i-1]
	}
	return shifts
}

// ShiftRows adds shifts[i] to every sample of row i.
func (f *Field) ShiftRows(shifts []float64) {
	if len(shifts) != f.yres {
		panic(fmt.Sprintf("field: %d shifts for %d rows", len(shifts), f.yres))
	}
	for i, d := range shifts {
		row := f.data[i*f.xres : (i+1)*f.xres]
		for j := range row {
			row[j] += d
		}
	}
	f.changed(nil)
}

// AlignRows finds the row shifts and removes them, returning the absolute
// offsets that were subtracted.
func (f *Field) AlignRows(sel Selection, method RowShiftMethod, minFreedom int) []float64 {
	offsets := AccumulateShifts(f.FindRowShifts(sel, method, minFreedom))
	neg := make([]float64, len(offsets))
	for i, v := range offsets {
		neg[i] = -v
	}
	f.ShiftRows(neg)
	return offsets
}
