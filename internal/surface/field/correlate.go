package field

import (
	"fmt"
	"math"

	"github.com/banshee-data/surface.report/internal/surface/mask"
)

// CorrelationFlags modify correlation scores.
type CorrelationFlags uint

const (
	// CorrelationLevel removes the local mean of the data before scoring.
	CorrelationLevel CorrelationFlags = 1 << iota
	// CorrelationNormalize divides the score by the local rms of the data.
	CorrelationNormalize
	// CorrelationElliptical limits cross-correlation shifts to the ellipse
	// inscribed in the search rectangle.
	CorrelationElliptical
)

// windowKernel prepares a kernel for window sums: values outside the window
// mask are zeroed and the kernel is mirrored in both directions so that
// convolveExtended aligns kernel pixel (p, q) with data pixel
// (x-left+p, y-up+q). It also returns the mirrored window indicator and the
// number of window pixels.
func windowKernel(kernel []float64, window *mask.Field, kx, ky int) (k, ind []float64, count int) {
	k = make([]float64, kx*ky)
	ind = make([]float64, kx*ky)
	for q := 0; q < ky; q++ {
		for p := 0; p < kx; p++ {
			src := q*kx + p
			if window != nil && !window.Data()[src] {
				continue
			}
			dst := (ky-1-q)*kx + (kx - 1 - p)
			if kernel != nil {
				k[dst] = kernel[src]
			}
			ind[dst] = 1
			count++
		}
	}
	return k, ind, count
}

func scale(v []float64, q float64) []float64 {
	for i := range v {
		v[i] *= q
	}
	return v
}

func squares(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x * x
	}
	return out
}

// Correlate scores how well the kernel matches the data around each pixel
// of part and writes the scores to score. The kernel pixel (0, 0) is aligned
// with data pixel (col-(kx-1)/2, row-(ky-1)/2), so a match whose top left
// corner is at (c, r) scores at (c+(kx-1)/2, r+(ky-1)/2). kmask, if not
// nil, restricts the kernel to its set pixels and must have the kernel
// dimensions.
//
// The plain score is the mean product of kernel and data. With
// CorrelationLevel the local data mean is removed first; with
// CorrelationNormalize the score is divided by the local data rms. A
// zero-mean, unit-rms kernel thus scores 1 where it matches exactly.
func (f *Field) Correlate(part *Part, score *Field, kernel *Field, kmask *mask.Field, flags CorrelationFlags, ext Exterior, fill float64, opts Options) {
	if kernel == nil {
		panic("field: nil correlation kernel")
	}
	kx, ky := kernel.xres, kernel.yres
	if kmask != nil && (kmask.XRes() != kx || kmask.YRes() != ky) {
		panic(fmt.Sprintf("field: kernel mask %dx%d does not match kernel %dx%d", kmask.XRes(), kmask.YRes(), kx, ky))
	}
	p, tcol, trow, ok := f.checkTarget(score, part)
	if !ok {
		return
	}
	w, h := p.Width, p.Height
	k, ind, kcount := windowKernel(kernel.data, kmask, kx, ky)
	if kcount == 0 {
		score.writePart(make([]float64, w*h), w, h, tcol, trow)
		return
	}
	var kavg float64
	for _, v := range k {
		kavg += v
	}
	kavg /= float64(kcount)

	ext, fill = definedExterior(ext, fill)
	level := flags&CorrelationLevel != 0
	normalize := flags&CorrelationNormalize != 0
	var shift float64
	if level {
		shift = f.Mean(&p, NoMask())
	}
	left, right := kernelMargins(kx)
	up, down := kernelMargins(ky)
	e := f.extendRect(p, left, right, up, down, ext, fill, shift)
	direct := opts.planeDirect(kx, ky)
	q := 1 / float64(kcount)

	out := scale(convolveExtended(e, k, kx, ky, w, h, direct), q)
	if level || normalize {
		mean := scale(convolveExtended(e, ind, kx, ky, w, h, direct), q)
		var meansq []float64
		if normalize {
			meansq = scale(convolveExtended(squares(e), ind, kx, ky, w, h, direct), q)
		}
		for n := range out {
			if level {
				out[n] -= mean[n] * kavg
			}
			if normalize {
				v := meansq[n]
				if level {
					v -= mean[n] * mean[n]
				}
				if v > 0 {
					out[n] /= math.Sqrt(v)
				} else {
					out[n] = 0
				}
			}
		}
	}
	score.writePart(out, w, h, tcol, trow)
}

// CrossCorrelate finds for each pixel of part the integer shift within
// ±colsearch columns and ±rowsearch rows under which f best matches
// reference, comparing the neighbourhoods given by the window kernel.
// Scores go to score, shifts (in pixels, f position minus reference
// position) to xoff and yoff. reference must have the dimensions of f.
//
// Flags work as in Correlate; the score of two identical neighbourhoods is
// 1 with CorrelationLevel|CorrelationNormalize. CorrelationElliptical skips
// shifts outside the ellipse inscribed in the search rectangle.
func (f *Field) CrossCorrelate(reference *Field, part *Part, score, xoff, yoff *Field,
	window *mask.Field, colsearch, rowsearch int,
	flags CorrelationFlags, ext Exterior, fill float64, opts Options) {
	if reference == nil || !f.compatible(reference) {
		panic("field: reference missing or of different size")
	}
	if window == nil {
		panic("field: nil cross-correlation window")
	}
	if colsearch < 0 || rowsearch < 0 {
		panic(fmt.Sprintf("field: negative search extent %d,%d", colsearch, rowsearch))
	}
	p, tcol, trow, ok := f.checkTarget(score, part)
	if !ok {
		return
	}
	for _, t := range []*Field{xoff, yoff} {
		if _, c, r, _ := f.checkTarget(t, part); c != tcol || r != trow {
			panic("field: cross-correlation targets differ in shape")
		}
	}
	w, h := p.Width, p.Height
	kx, ky := window.XRes(), window.YRes()
	_, ind, kcount := windowKernel(nil, window, kx, ky)
	if kcount == 0 {
		zero := make([]float64, w*h)
		score.writePart(zero, w, h, tcol, trow)
		xoff.writePart(zero, w, h, tcol, trow)
		yoff.writePart(zero, w, h, tcol, trow)
		return
	}

	ext, fill = definedExterior(ext, fill)
	level := flags&CorrelationLevel != 0
	normalize := flags&CorrelationNormalize != 0
	var fshift, rshift float64
	if level {
		fshift = f.Mean(&p, NoMask())
		rshift = reference.Mean(&p, NoMask())
	}
	cs, rs := colsearch, rowsearch
	left, right := kernelMargins(kx)
	up, down := kernelMargins(ky)
	fe := f.extendRect(p, cs+left, cs+right, rs+up, rs+down, ext, fill, fshift)
	re := reference.extendRect(p, left, right, up, down, ext, fill, rshift)
	fw, fh := w+2*cs, h+2*rs
	few, rew, reh := fw+kx-1, w+kx-1, h+ky-1
	direct := opts.planeDirect(kx, ky)
	q := 1 / float64(kcount)

	// Local statistics of f cover every shifted position, those of the
	// reference only the part. Without leveling the rms is taken about zero.
	var fmean, rmean, frms, rrms []float64
	if level {
		fmean = scale(convolveExtended(fe, ind, kx, ky, fw, fh, direct), q)
		rmean = scale(convolveExtended(re, ind, kx, ky, w, h, direct), q)
	}
	if normalize {
		frms = localRMS(scale(convolveExtended(squares(fe), ind, kx, ky, fw, fh, direct), q), fmean)
		rrms = localRMS(scale(convolveExtended(squares(re), ind, kx, ky, w, h, direct), q), rmean)
	}

	best := make([]float64, w*h)
	bestX := make([]float64, w*h)
	bestY := make([]float64, w*h)
	for n := range best {
		best[n] = -math.MaxFloat64
	}
	prod := make([]float64, rew*reh)
	for ii := -rs; ii <= rs; ii++ {
		for jj := -cs; jj <= cs; jj++ {
			if flags&CorrelationElliptical != 0 {
				ex := float64(jj) / (float64(cs) + 0.5)
				ey := float64(ii) / (float64(rs) + 0.5)
				if ex*ex+ey*ey > 1 {
					continue
				}
			}
			for y := 0; y < reh; y++ {
				frow := fe[(y+rs+ii)*few+cs+jj:]
				rrow := re[y*rew : (y+1)*rew]
				for x, rv := range rrow {
					prod[y*rew+x] = frow[x] * rv
				}
			}
			s := convolveExtended(prod, ind, kx, ky, w, h, direct)
			for i := 0; i < h; i++ {
				for j := 0; j < w; j++ {
					n := i*w + j
					fn := (i+rs+ii)*fw + j + cs + jj
					v := s[n] * q
					if level {
						v -= fmean[fn] * rmean[n]
					}
					if normalize {
						d := frms[fn] * rrms[n]
						if d > 0 {
							v /= d
						} else {
							v = 0
						}
					}
					if v > best[n] {
						best[n] = v
						bestX[n] = float64(jj)
						bestY[n] = float64(ii)
					}
				}
			}
		}
	}
	score.writePart(best, w, h, tcol, trow)
	xoff.writePart(bestX, w, h, tcol, trow)
	yoff.writePart(bestY, w, h, tcol, trow)
}

// localRMS turns local mean squares into local rms deviations from mean in
// place. A nil mean leaves the root mean squares.
func localRMS(meansq, mean []float64) []float64 {
	for n, v := range meansq {
		if mean != nil {
			v -= mean[n] * mean[n]
		}
		meansq[n] = math.Sqrt(math.Max(v, 0))
	}
	return meansq
}
