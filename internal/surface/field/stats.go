package field

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Mean returns the mean of the selected pixels of part, NaN if there are
// none.
func (f *Field) Mean(part *Part, sel Selection) float64 {
	p, s, ok := f.checkMask(part, sel)
	if !ok {
		return math.NaN()
	}
	var sum float64
	n := 0
	f.each(p, &s, func(k int) {
		sum += f.data[k]
		n++
	})
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// MeanSquare returns the mean of squared values of the selected pixels, NaN
// if there are none.
func (f *Field) MeanSquare(part *Part, sel Selection) float64 {
	p, s, ok := f.checkMask(part, sel)
	if !ok {
		return math.NaN()
	}
	var sum float64
	n := 0
	f.each(p, &s, func(k int) {
		sum += f.data[k] * f.data[k]
		n++
	})
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// RMS returns the root mean square deviation from the mean of the selected
// pixels, NaN if there are none.
func (f *Field) RMS(part *Part, sel Selection) float64 {
	p, s, ok := f.checkMask(part, sel)
	if !ok {
		return math.NaN()
	}
	values := f.selected(p, &s)
	if len(values) == 0 {
		return math.NaN()
	}
	mean := stat.Mean(values, nil)
	var s2 float64
	for _, v := range values {
		s2 += (v - mean) * (v - mean)
	}
	return math.Sqrt(s2 / float64(len(values)))
}

// MinMax returns the extremes of the selected pixels, NaN if there are none.
func (f *Field) MinMax(part *Part, sel Selection) (min, max float64) {
	min, max = math.NaN(), math.NaN()
	p, s, ok := f.checkMask(part, sel)
	if !ok {
		return
	}
	first := true
	f.each(p, &s, func(k int) {
		v := f.data[k]
		if first {
			min, max, first = v, v, false
			return
		}
		min = math.Min(min, v)
		max = math.Max(max, v)
	})
	return min, max
}

// Median returns the median of the selected pixels, NaN if there are none.
// For an even count it is the upper of the two middle values, so that the
// number of values below it exceeds the number above by one at most.
func (f *Field) Median(part *Part, sel Selection) float64 {
	p, s, ok := f.checkMask(part, sel)
	if !ok {
		return math.NaN()
	}
	values := f.selected(p, &s)
	if len(values) == 0 {
		return math.NaN()
	}
	return median(values)
}

// median reorders values.
func median(values []float64) float64 {
	sort.Float64s(values)
	return values[len(values)/2]
}

// CountAboveBelow counts the selected pixels and those above the threshold
// above and below the threshold below. With strict the comparisons are
// strict, otherwise values equal to a threshold count too.
func (f *Field) CountAboveBelow(part *Part, sel Selection, above, below float64, strict bool) (n, nabove, nbelow int) {
	p, s, ok := f.checkMask(part, sel)
	if !ok {
		return 0, 0, 0
	}
	f.each(p, &s, func(k int) {
		v := f.data[k]
		n++
		if v > above || (!strict && v == above) {
			nabove++
		}
		if v < below || (!strict && v == below) {
			nbelow++
		}
	})
	return n, nabove, nbelow
}

// Statistics summarizes the value distribution of a selection.
type Statistics struct {
	N        int     `json:"n"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	Ra       float64 `json:"ra"`
	RMS      float64 `json:"rms"`
	Skew     float64 `json:"skew"`
	Kurtosis float64 `json:"kurtosis"`
}

// Statistics computes the summary of the selected pixels. It returns false
// when nothing is selected. Skew and excess kurtosis are the population
// moments m3/m2^(3/2) and m4/m2²-3 about the mean, without small-sample
// corrections; both are zero for constant data.
func (f *Field) Statistics(part *Part, sel Selection) (Statistics, bool) {
	p, s, ok := f.checkMask(part, sel)
	if !ok {
		return Statistics{}, false
	}
	values := f.selected(p, &s)
	if len(values) == 0 {
		return Statistics{}, false
	}
	st := Statistics{N: len(values)}
	st.Mean = stat.Mean(values, nil)
	var ra, m2, m3, m4 float64
	for _, v := range values {
		d := v - st.Mean
		ra += math.Abs(d)
		m2 += d * d
		m3 += d * d * d
		m4 += d * d * d * d
	}
	n := float64(len(values))
	m2, m3, m4 = m2/n, m3/n, m4/n
	st.Ra = ra / n
	st.RMS = math.Sqrt(m2)
	if m2 > 0 {
		st.Skew = m3 / (m2 * st.RMS)
		st.Kurtosis = m4/(m2*m2) - 3
	}
	st.Median = median(values)
	st.Min, st.Max = values[0], values[len(values)-1]
	return st, true
}
