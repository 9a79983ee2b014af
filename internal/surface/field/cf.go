package field

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// rowData fills z and m with the samples and selection of part row i. With
// level the mean of the selected samples is subtracted. Unselected samples
// are zero in z. It returns the number of selected samples.
func (f *Field) rowData(p Part, s *selector, i int, level bool, z, m []float64) int {
	row := f.data[(p.Row+i)*f.xres+p.Col:]
	n := 0
	var sum float64
	for j := range z {
		if s.in(j, i) {
			z[j], m[j] = row[j], 1
			sum += row[j]
			n++
		} else {
			z[j], m[j] = 0, 0
		}
	}
	if level && n > 0 {
		mean := sum / float64(n)
		for j := range z {
			z[j] -= mean * m[j]
		}
	}
	return n
}

// rowCF accumulates lag sums and pair counts over the rows of p. For the
// ACF the sum is Σ z_j·z_{j+k}, for the HHCF Σ (z_{j+k} - z_j)², both over
// pairs of selected pixels.
func (f *Field) rowCF(p Part, s *selector, level, hhcf, direct bool) (sums, counts []float64) {
	w := p.Width
	sums = make([]float64, w)
	counts = make([]float64, w)
	z := make([]float64, w)
	m := make([]float64, w)

	if direct {
		for i := 0; i < p.Height; i++ {
			if f.rowData(p, s, i, level, z, m) == 0 {
				continue
			}
			for k := 0; k < w; k++ {
				for j := 0; j+k < w; j++ {
					if m[j] == 0 || m[j+k] == 0 {
						continue
					}
					counts[k]++
					if hhcf {
						d := z[j+k] - z[j]
						sums[k] += d * d
					} else {
						sums[k] += z[j] * z[j+k]
					}
				}
			}
		}
		return sums, counts
	}

	// Correlations by FFT: C_xy(k) = Σ_j x_j y_{j+k} is the inverse
	// transform of conj(X)·Y, free of wrap-around once n ≥ 2w-1. Spectra
	// are summed over rows and transformed back once.
	n := niceFFTSize(2*w - 1)
	tracef("row cf FFT %d for width %d", n, w)
	fft := fourier.NewFFT(n)
	nc := n/2 + 1
	saa := make([]complex128, nc)
	smm := make([]complex128, nc)
	smb := make([]complex128, nc)
	buf := make([]float64, n)
	var a, mm, b []complex128
	for i := 0; i < p.Height; i++ {
		if f.rowData(p, s, i, level, z, m) == 0 {
			continue
		}
		copy(buf, z)
		a = fft.Coefficients(a, buf)
		copy(buf, m)
		mm = fft.Coefficients(mm, buf)
		for k := range a {
			saa[k] += cmplxConj(a[k]) * a[k]
			smm[k] += cmplxConj(mm[k]) * mm[k]
		}
		if !hhcf {
			continue
		}
		for j := range z {
			buf[j] = z[j] * z[j]
		}
		b = fft.Coefficients(b, buf)
		for k := range b {
			smb[k] += cmplxConj(mm[k])*b[k] + cmplxConj(b[k])*mm[k]
		}
	}
	q := 1 / float64(n)
	caa := fft.Sequence(nil, saa)
	cmm := fft.Sequence(nil, smm)
	var cmb []float64
	if hhcf {
		cmb = fft.Sequence(nil, smb)
	}
	for k := 0; k < w; k++ {
		counts[k] = math.Round(cmm[k] * q)
		if hhcf {
			sums[k] = (cmb[k] - 2*caa[k]) * q
		} else {
			sums[k] = caa[k] * q
		}
	}
	return sums, counts
}

func cmplxConj(c complex128) complex128 { return complex(real(c), -imag(c)) }

// cfLines packs lag sums and counts into a correlation function and its
// weights, both sampled at lags 0, dx, 2dx, …
func (f *Field) cfLines(sums, counts []float64, yunit string) (cf, weights *Line) {
	w := len(sums)
	dx := f.DX()
	cf = NewLine(w, float64(w)*dx)
	weights = NewLine(w, float64(w)*dx)
	cf.Off, weights.Off = -0.5*dx, -0.5*dx
	cf.XUnit, weights.XUnit = f.XYUnit, f.XYUnit
	cf.YUnit = yunit
	for k := range sums {
		weights.Data[k] = counts[k]
		if counts[k] > 0 {
			cf.Data[k] = sums[k] / counts[k]
		}
	}
	return cf, weights
}

func squaredUnit(u string) string {
	if u == "" {
		return ""
	}
	return u + "^2"
}

// RowACF returns the autocorrelation function along rows of the selected
// pixels and the number of pixel pairs behind each lag. With level each
// row's mean is removed first.
func (f *Field) RowACF(part *Part, sel Selection, level bool, opts Options) (cf, weights *Line) {
	p, s, ok := f.checkMask(part, sel)
	if !ok {
		return &Line{}, &Line{}
	}
	sums, counts := f.rowCF(p, &s, level, false, opts.rowDirect(p.Width, p.Width))
	return f.cfLines(sums, counts, squaredUnit(f.ZUnit))
}

// RowHHCF returns the height-height correlation function along rows, the
// mean squared height difference at each lag, and the pair counts.
func (f *Field) RowHHCF(part *Part, sel Selection, level bool, opts Options) (cf, weights *Line) {
	p, s, ok := f.checkMask(part, sel)
	if !ok {
		return &Line{}, &Line{}
	}
	sums, counts := f.rowCF(p, &s, level, true, opts.rowDirect(p.Width, p.Width))
	return f.cfLines(sums, counts, squaredUnit(f.ZUnit))
}

// Windowing is a window function applied to rows before spectral analysis.
type Windowing int

const (
	WindowNone Windowing = iota
	WindowHann
	WindowHamming
	WindowBlackman
)

var windowingNames = []string{"none", "hann", "hamming", "blackman"}

func (w Windowing) String() string {
	if w < 0 || int(w) >= len(windowingNames) {
		return fmt.Sprintf("Windowing(%d)", int(w))
	}
	return windowingNames[w]
}

// ParseWindowing converts a name as printed by String to a Windowing.
func ParseWindowing(s string) (Windowing, error) {
	for i, n := range windowingNames {
		if n == s {
			return Windowing(i), nil
		}
	}
	return WindowNone, fmt.Errorf("unknown windowing %q", s)
}

// window returns n window coefficients scaled to unit mean square.
func (w Windowing) window(n int) []float64 {
	c := make([]float64, n)
	var s2 float64
	for j := range c {
		x := 2 * math.Pi * (float64(j) + 0.5) / float64(n)
		switch w {
		case WindowNone:
			c[j] = 1
		case WindowHann:
			c[j] = 0.5 - 0.5*math.Cos(x)
		case WindowHamming:
			c[j] = 0.54 - 0.46*math.Cos(x)
		case WindowBlackman:
			c[j] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
		default:
			panic(fmt.Sprintf("field: invalid windowing %d", int(w)))
		}
		s2 += c[j] * c[j]
	}
	q := math.Sqrt(float64(n) / s2)
	for j := range c {
		c[j] *= q
	}
	return c
}

// RowPSDF returns the one-sided power spectral density function along rows
// of the selected pixels as a function of the angular spatial frequency.
// Unselected pixels contribute zeros; the normalization uses the number of
// selected pixels. The line is empty when nothing is selected.
func (f *Field) RowPSDF(part *Part, sel Selection, windowing Windowing, level bool) *Line {
	p, s, ok := f.checkMask(part, sel)
	if !ok {
		return &Line{}
	}
	w := p.Width
	win := windowing.window(w)
	fft := fourier.NewFFT(w)
	res := w/2 + 1
	power := make([]float64, res)
	z := make([]float64, w)
	m := make([]float64, w)
	var coeff []complex128
	total := 0
	for i := 0; i < p.Height; i++ {
		n := f.rowData(p, &s, i, level, z, m)
		if n == 0 {
			continue
		}
		total += n
		for j := range z {
			z[j] *= win[j]
		}
		coeff = fft.Coefficients(coeff, z)
		for k, c := range coeff {
			power[k] += real(c)*real(c) + imag(c)*imag(c)
		}
	}
	if total == 0 {
		return &Line{}
	}
	dx := f.DX()
	// Frequencies are spaced by 2π/(w·dx), starting at zero.
	line := NewLine(res, float64(res)*2*math.Pi/(float64(w)*dx))
	line.Off = -0.5 * line.DX()
	q := dx / (2 * math.Pi * float64(total))
	for k := range power {
		line.Data[k] = power[k] * q
	}
	if f.XYUnit != "" {
		line.XUnit = "1/" + f.XYUnit
	}
	return line
}
