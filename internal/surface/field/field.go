// Package field implements the masked two-dimensional data field and the
// numerical engine that operates on it.
//
// Responsibilities: the sample grid with its physical scale, validation of
// parts, masks and targets, exterior (boundary) handling, convolution and
// correlation, statistics and distributions, leveling and fitting, row
// alignment, Laplace inpainting and congruent transforms.
// Key types: Field, Part, Selection, Exterior, Line, Options.
//
// Dependency rule: depends on mask and congruence; never on storage,
// rendering or transport packages.
package field

import (
	"fmt"
	"math"
	"sync"
)

// Field is a rectangular grid of xres×yres real samples stored row by row,
// with physical dimensions xreal×yreal and offsets xoff, yoff.
//
// A Field is not safe for concurrent mutation. Observers registered with
// OnChange run synchronously on the mutating goroutine.
type Field struct {
	xres, yres   int
	xreal, yreal float64
	xoff, yoff   float64
	data         []float64

	// XYUnit and ZUnit are free-form unit strings for the lateral
	// coordinates and the values.
	XYUnit string
	ZUnit  string

	cache     stats
	observers observers
}

// stats caches full-field aggregates until the next mutation.
type stats struct {
	valid    bool
	min, max float64
	mean     float64
	rms      float64
}

type observers struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(*Part)
}

// New creates a zero-filled field of xres×yres samples spanning xreal×yreal.
func New(xres, yres int, xreal, yreal float64) *Field {
	if xres <= 0 || yres <= 0 {
		panic(fmt.Sprintf("field: invalid resolution %dx%d", xres, yres))
	}
	checkReal(xreal, yreal)
	return &Field{
		xres: xres, yres: yres,
		xreal: xreal, yreal: yreal,
		data: make([]float64, xres*yres),
	}
}

// FromData creates a field wrapping a copy of data.
func FromData(xres, yres int, xreal, yreal float64, data []float64) *Field {
	f := New(xres, yres, xreal, yreal)
	if len(data) != xres*yres {
		panic(fmt.Sprintf("field: %d values do not fill %dx%d", len(data), xres, yres))
	}
	copy(f.data, data)
	return f
}

func checkReal(xreal, yreal float64) {
	if !(xreal > 0) || !(yreal > 0) || math.IsInf(xreal, 0) || math.IsInf(yreal, 0) {
		panic(fmt.Sprintf("field: invalid physical size %gx%g", xreal, yreal))
	}
}

// NewAlike creates a zero-filled field with the dimensions, scale, offsets
// and units of f.
func (f *Field) NewAlike() *Field {
	g := New(f.xres, f.yres, f.xreal, f.yreal)
	g.copyMeta(f)
	return g
}

// Clone returns a deep copy of f without its observers.
func (f *Field) Clone() *Field {
	g := f.NewAlike()
	copy(g.data, f.data)
	g.cache = f.cache
	return g
}

func (f *Field) copyMeta(src *Field) {
	f.xoff, f.yoff = src.xoff, src.yoff
	f.XYUnit, f.ZUnit = src.XYUnit, src.ZUnit
}

// NewPart copies part into a new field with the same pixel size. With
// keepOffsets the new field keeps its physical position, otherwise its
// offsets are zero.
func (f *Field) NewPart(part *Part, keepOffsets bool) *Field {
	p, ok := f.checkPart(part)
	if !ok {
		panic(fmt.Sprintf("field: empty part %v", p))
	}
	dx, dy := f.DX(), f.DY()
	g := New(p.Width, p.Height, float64(p.Width)*dx, float64(p.Height)*dy)
	g.XYUnit, g.ZUnit = f.XYUnit, f.ZUnit
	if keepOffsets {
		g.xoff = f.xoff + float64(p.Col)*dx
		g.yoff = f.yoff + float64(p.Row)*dy
	}
	for i := 0; i < p.Height; i++ {
		copy(g.data[i*p.Width:(i+1)*p.Width], f.data[(p.Row+i)*f.xres+p.Col:])
	}
	return g
}

func (f *Field) XRes() int        { return f.xres }
func (f *Field) YRes() int        { return f.yres }
func (f *Field) XReal() float64   { return f.xreal }
func (f *Field) YReal() float64   { return f.yreal }
func (f *Field) XOffset() float64 { return f.xoff }
func (f *Field) YOffset() float64 { return f.yoff }
func (f *Field) DX() float64      { return f.xreal / float64(f.xres) }
func (f *Field) DY() float64      { return f.yreal / float64(f.yres) }

// Index returns the buffer index of pixel (col, row) without bounds checks.
func (f *Field) Index(col, row int) int { return row*f.xres + col }

// SetReal changes the physical dimensions.
func (f *Field) SetReal(xreal, yreal float64) {
	checkReal(xreal, yreal)
	f.xreal, f.yreal = xreal, yreal
}

// SetOffsets changes the physical position of the top left corner.
func (f *Field) SetOffsets(xoff, yoff float64) {
	f.xoff, f.yoff = xoff, yoff
}

// Data exposes the raw sample buffer. Call DataChanged after writing to it.
func (f *Field) Data() []float64 { return f.data }

// Get returns the sample at (col, row), panicking outside the field.
func (f *Field) Get(col, row int) float64 {
	f.checkPixel(col, row)
	return f.data[row*f.xres+col]
}

// Set changes the sample at (col, row) and emits a one-pixel change.
func (f *Field) Set(col, row int, v float64) {
	f.checkPixel(col, row)
	f.data[row*f.xres+col] = v
	f.changed(&Part{Col: col, Row: row, Width: 1, Height: 1})
}

func (f *Field) checkPixel(col, row int) {
	if col < 0 || col >= f.xres || row < 0 || row >= f.yres {
		panic(fmt.Sprintf("field: pixel (%d,%d) outside %dx%d", col, row, f.xres, f.yres))
	}
}

// OnChange registers fn to be called after every mutation with the affected
// part, or nil when the whole field may have changed. The returned function
// unregisters fn.
func (f *Field) OnChange(fn func(part *Part)) (cancel func()) {
	o := &f.observers
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fns == nil {
		o.fns = make(map[int]func(*Part))
	}
	id := o.nextID
	o.nextID++
	o.fns[id] = fn
	return func() {
		o.mu.Lock()
		delete(o.fns, id)
		o.mu.Unlock()
	}
}

// Invalidate drops cached aggregates. DataChanged implies it.
func (f *Field) Invalidate() {
	f.cache.valid = false
}

// DataChanged invalidates caches and notifies observers that part (nil for
// everything) was modified through the raw buffer.
func (f *Field) DataChanged(part *Part) {
	f.changed(part)
}

func (f *Field) changed(part *Part) {
	f.Invalidate()
	o := &f.observers
	o.mu.Lock()
	fns := make([]func(*Part), 0, len(o.fns))
	for id := 0; id < o.nextID; id++ {
		if fn, ok := o.fns[id]; ok {
			fns = append(fns, fn)
		}
	}
	o.mu.Unlock()
	for _, fn := range fns {
		if part != nil {
			p := *part
			fn(&p)
		} else {
			fn(nil)
		}
	}
}

func (f *Field) ensureCache() {
	if f.cache.valid {
		return
	}
	min, max := math.Inf(1), math.Inf(-1)
	var sum float64
	for _, v := range f.data {
		min = math.Min(min, v)
		max = math.Max(max, v)
		sum += v
	}
	n := float64(len(f.data))
	mean := sum / n
	var s2 float64
	for _, v := range f.data {
		s2 += (v - mean) * (v - mean)
	}
	f.cache = stats{valid: true, min: min, max: max, mean: mean, rms: math.Sqrt(s2 / n)}
}

// Min returns the cached minimum of the whole field.
func (f *Field) Min() float64 {
	f.ensureCache()
	return f.cache.min
}

// Max returns the cached maximum of the whole field.
func (f *Field) Max() float64 {
	f.ensureCache()
	return f.cache.max
}

// Avg returns the cached mean of the whole field.
func (f *Field) Avg() float64 {
	f.ensureCache()
	return f.cache.mean
}

// Rms returns the cached root mean square deviation of the whole field.
func (f *Field) Rms() float64 {
	f.ensureCache()
	return f.cache.rms
}

// compatible reports whether g has the same resolution as f.
func (f *Field) compatible(g *Field) bool {
	return f.xres == g.xres && f.yres == g.yres
}
