package field

import "gonum.org/v1/gonum/dsp/fourier"

// niceFFTSize returns the smallest 2,3,5-smooth number not smaller than n.
func niceFFTSize(n int) int {
	if n <= 1 {
		return 1
	}
	for m := n; ; m++ {
		k := m
		for _, p := range []int{2, 3, 5} {
			for k%p == 0 {
				k /= p
			}
		}
		if k == 1 {
			return m
		}
	}
}

// plane performs 2-D complex transforms of xs×ys row-major buffers, rows
// first and then columns.
type plane struct {
	xs, ys   int
	rows     *fourier.CmplxFFT
	cols     *fourier.CmplxFFT
	rowTmp   []complex128
	colTmp   []complex128
	colTmpIn []complex128
}

func newPlane(xs, ys int) *plane {
	return &plane{
		xs: xs, ys: ys,
		rows:     fourier.NewCmplxFFT(xs),
		cols:     fourier.NewCmplxFFT(ys),
		rowTmp:   make([]complex128, xs),
		colTmp:   make([]complex128, ys),
		colTmpIn: make([]complex128, ys),
	}
}

func (pl *plane) transform(buf []complex128, inverse bool) {
	for i := 0; i < pl.ys; i++ {
		row := buf[i*pl.xs : (i+1)*pl.xs]
		if inverse {
			pl.rows.Sequence(pl.rowTmp, row)
		} else {
			pl.rows.Coefficients(pl.rowTmp, row)
		}
		copy(row, pl.rowTmp)
	}
	for j := 0; j < pl.xs; j++ {
		for i := 0; i < pl.ys; i++ {
			pl.colTmpIn[i] = buf[i*pl.xs+j]
		}
		if inverse {
			pl.cols.Sequence(pl.colTmp, pl.colTmpIn)
		} else {
			pl.cols.Coefficients(pl.colTmp, pl.colTmpIn)
		}
		for i := 0; i < pl.ys; i++ {
			buf[i*pl.xs+j] = pl.colTmp[i]
		}
	}
	if inverse {
		q := complex(1/float64(pl.xs*pl.ys), 0)
		for k := range buf {
			buf[k] *= q
		}
	}
}

// pad copies the w×h real buffer src into the top left corner of a new
// xs×ys complex buffer.
func pad(src []float64, w, h, xs, ys int) []complex128 {
	out := make([]complex128, xs*ys)
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			out[i*xs+j] = complex(src[i*w+j], 0)
		}
	}
	return out
}

// convolveExtended computes the w×h result of convolving the extended
// buffer e ((w+kx-1)×(h+ky-1)) with the kx×ky kernel k:
//
//	out[i][j] = Σ_q Σ_p k[q][p]·e[i+ky-1-q][j+kx-1-p]
func convolveExtended(e []float64, k []float64, kx, ky, w, h int, direct bool) []float64 {
	ew, eh := w+kx-1, h+ky-1
	out := make([]float64, w*h)
	if direct {
		for i := 0; i < h; i++ {
			for j := 0; j < w; j++ {
				var s float64
				for q := 0; q < ky; q++ {
					base := (i+ky-1-q)*ew + j + kx - 1
					for p, kv := range k[q*kx : (q+1)*kx] {
						s += kv * e[base-p]
					}
				}
				out[i*w+j] = s
			}
		}
		return out
	}

	xs, ys := niceFFTSize(ew), niceFFTSize(eh)
	tracef("2-D FFT %dx%d for %dx%d with %dx%d kernel", xs, ys, w, h, kx, ky)
	pl := newPlane(xs, ys)
	a := pad(e, ew, eh, xs, ys)
	b := pad(k, kx, ky, xs, ys)
	pl.transform(a, false)
	pl.transform(b, false)
	for n := range a {
		a[n] *= b[n]
	}
	pl.transform(a, true)
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			out[i*w+j] = real(a[(i+ky-1)*xs+j+kx-1])
		}
	}
	return out
}

// convolveRows applies the 1-D kernel k to each of the rows of the extended
// buffer e (rows×(w+kx-1)), giving rows×w values:
//
//	out[i][j] = Σ_p k[p]·e[i][j+kx-1-p]
func convolveRows(e []float64, rows int, k []float64, w int, direct bool) []float64 {
	kx := len(k)
	ew := w + kx - 1
	out := make([]float64, rows*w)
	if direct {
		for i := 0; i < rows; i++ {
			erow := e[i*ew : (i+1)*ew]
			for j := 0; j < w; j++ {
				var s float64
				for p, kv := range k {
					s += kv * erow[j+kx-1-p]
				}
				out[i*w+j] = s
			}
		}
		return out
	}

	xs := niceFFTSize(ew)
	tracef("row FFT %d for width %d with kernel %d", xs, w, kx)
	fft := fourier.NewCmplxFFT(xs)
	kbuf := make([]complex128, xs)
	for p, kv := range k {
		kbuf[p] = complex(kv, 0)
	}
	kspec := fft.Coefficients(nil, kbuf)
	buf := make([]complex128, xs)
	tmp := make([]complex128, xs)
	q := 1 / float64(xs)
	for i := 0; i < rows; i++ {
		for x := range buf {
			buf[x] = 0
		}
		for x, v := range e[i*ew : (i+1)*ew] {
			buf[x] = complex(v, 0)
		}
		fft.Coefficients(tmp, buf)
		for x := range tmp {
			tmp[x] *= kspec[x]
		}
		fft.Sequence(buf, tmp)
		for j := 0; j < w; j++ {
			out[i*w+j] = real(buf[j+kx-1]) * q
		}
	}
	return out
}
