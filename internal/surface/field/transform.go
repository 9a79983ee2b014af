package field

import "github.com/banshee-data/surface.report/internal/surface/congruence"

// TransformCongruent applies t in place. Transforms that exchange the axes
// also exchange the physical dimensions and offsets.
func (f *Field) TransformCongruent(t congruence.Transform) {
	out := make([]float64, len(f.data))
	congruence.Permute(t, f.data, out, f.xres, f.yres)
	f.data = out
	if t.SwapsAxes() {
		f.xres, f.yres = f.yres, f.xres
		f.xreal, f.yreal = f.yreal, f.xreal
		f.xoff, f.yoff = f.yoff, f.xoff
	}
	f.changed(nil)
}

// NewCongruent returns part of f transformed by t.
func (f *Field) NewCongruent(part *Part, t congruence.Transform) *Field {
	g := f.NewPart(part, false)
	g.TransformCongruent(t)
	return g
}
