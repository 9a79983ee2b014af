package field

import "fmt"

// apply replaces every selected sample v of part with fn(v).
func (f *Field) apply(part *Part, sel Selection, fn func(v float64) float64) {
	p, s, ok := f.checkMask(part, sel)
	if !ok {
		return
	}
	f.each(p, &s, func(k int) { f.data[k] = fn(f.data[k]) })
	if part == nil {
		f.changed(nil)
	} else {
		f.changed(&p)
	}
}

// Fill sets the selected samples of part to value.
func (f *Field) Fill(part *Part, sel Selection, value float64) {
	f.apply(part, sel, func(float64) float64 { return value })
}

// Clear sets the selected samples of part to zero.
func (f *Field) Clear(part *Part, sel Selection) {
	f.Fill(part, sel, 0)
}

// Add adds value to the selected samples of part.
func (f *Field) Add(part *Part, sel Selection, value float64) {
	f.apply(part, sel, func(v float64) float64 { return v + value })
}

// Multiply multiplies the selected samples of part by value.
func (f *Field) Multiply(part *Part, sel Selection, value float64) {
	f.apply(part, sel, func(v float64) float64 { return v * value })
}

// CopyPart copies part of f to dst with its top left corner at (col, row).
// The copied rectangle is clipped to dst; nothing is copied when it falls
// entirely outside. dst may be f when the rectangles do not overlap.
func (f *Field) CopyPart(part *Part, dst *Field, col, row int) bool {
	if dst == nil {
		panic("field: nil copy destination")
	}
	if col < 0 || row < 0 {
		panic(fmt.Sprintf("field: negative destination (%d,%d)", col, row))
	}
	p, ok := f.checkPart(part)
	if !ok || col >= dst.xres || row >= dst.yres {
		return false
	}
	w := min(p.Width, dst.xres-col)
	h := min(p.Height, dst.yres-row)
	for i := 0; i < h; i++ {
		copy(dst.data[(row+i)*dst.xres+col:(row+i)*dst.xres+col+w],
			f.data[(p.Row+i)*f.xres+p.Col:])
	}
	dst.changed(&Part{Col: col, Row: row, Width: w, Height: h})
	return true
}
