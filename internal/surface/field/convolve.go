package field

import "fmt"

// kernelMargins returns how far a kernel of res samples reaches before and
// after the sample it is centered on. Even kernels reach one sample further
// after it.
func kernelMargins(res int) (before, after int) {
	return (res - 1) / 2, res / 2
}

// RowConvolve convolves each row of part with the 1-D kernel and writes the
// result to target, which must have the dimensions of f or of the part.
// Target pixels outside the part are untouched; target may be f itself.
func (f *Field) RowConvolve(part *Part, target *Field, kernel []float64, ext Exterior, fill float64, opts Options) {
	if len(kernel) == 0 {
		panic("field: empty convolution kernel")
	}
	p, tcol, trow, ok := f.checkTarget(target, part)
	if !ok {
		return
	}
	ext, fill = definedExterior(ext, fill)
	left, right := kernelMargins(len(kernel))
	e := f.extendRect(p, left, right, 0, 0, ext, fill, 0)
	out := convolveRows(e, p.Height, kernel, p.Width, opts.rowDirect(p.Width, len(kernel)))
	target.writePart(out, p.Width, p.Height, tcol, trow)
}

// Convolve convolves part of f with the 2-D kernel and writes the result to
// target, which must have the dimensions of f or of the part. Target pixels
// outside the part are untouched; target may be f itself.
func (f *Field) Convolve(part *Part, target *Field, kernel *Field, ext Exterior, fill float64, opts Options) {
	if kernel == nil {
		panic("field: nil convolution kernel")
	}
	p, tcol, trow, ok := f.checkTarget(target, part)
	if !ok {
		return
	}
	ext, fill = definedExterior(ext, fill)
	kx, ky := kernel.xres, kernel.yres
	left, right := kernelMargins(kx)
	up, down := kernelMargins(ky)
	e := f.extendRect(p, left, right, up, down, ext, fill, 0)
	out := convolveExtended(e, kernel.data, kx, ky, p.Width, p.Height, opts.planeDirect(kx, ky))
	target.writePart(out, p.Width, p.Height, tcol, trow)
}

// writePart copies the w×h buffer src to f at (col, row) and emits the change.
func (f *Field) writePart(src []float64, w, h, col, row int) {
	if col+w > f.xres || row+h > f.yres {
		panic(fmt.Sprintf("field: %dx%d block at (%d,%d) outside %dx%d", w, h, col, row, f.xres, f.yres))
	}
	for i := 0; i < h; i++ {
		copy(f.data[(row+i)*f.xres+col:(row+i)*f.xres+col+w], src[i*w:(i+1)*w])
	}
	f.changed(&Part{Col: col, Row: row, Width: w, Height: h})
}
