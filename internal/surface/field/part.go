package field

import (
	"fmt"

	"github.com/banshee-data/surface.report/internal/surface/mask"
)

// Part is a rectangular region of interest. A nil *Part means the whole
// field.
type Part = mask.Part

// Masking says how a mask restricts an operation.
type Masking int

const (
	// MaskIgnore processes every pixel.
	MaskIgnore Masking = iota
	// MaskInclude processes pixels where the mask is set.
	MaskInclude
	// MaskExclude processes pixels where the mask is unset.
	MaskExclude
)

func (m Masking) String() string {
	switch m {
	case MaskIgnore:
		return "ignore"
	case MaskInclude:
		return "include"
	case MaskExclude:
		return "exclude"
	}
	return fmt.Sprintf("Masking(%d)", int(m))
}

// ParseMasking converts "ignore", "include" or "exclude" to a Masking.
func ParseMasking(s string) (Masking, error) {
	switch s {
	case "", "ignore":
		return MaskIgnore, nil
	case "include":
		return MaskInclude, nil
	case "exclude":
		return MaskExclude, nil
	}
	return MaskIgnore, fmt.Errorf("unknown masking mode %q", s)
}

// Anchor says which pixel of a mask corresponds to the origin of the part.
type Anchor int

const (
	// AnchorAuto infers the anchor from the mask dimensions: a mask as large
	// as the field is anchored at its origin, a mask as large as the part at
	// the part.
	AnchorAuto Anchor = iota
	AnchorOrigin
	AnchorPart
)

// Selection is either no mask at all or a mask with a polarity and an
// anchor. The zero value selects every pixel.
type Selection struct {
	Mask    *mask.Field
	Masking Masking
	Anchor  Anchor
}

// NoMask selects every pixel.
func NoMask() Selection { return Selection{} }

// Include selects pixels where m is set.
func Include(m *mask.Field) Selection { return Selection{Mask: m, Masking: MaskInclude} }

// Exclude selects pixels where m is unset.
func Exclude(m *mask.Field) Selection { return Selection{Mask: m, Masking: MaskExclude} }

// Select builds a selection from a mask and a masking mode.
func Select(m *mask.Field, masking Masking) Selection {
	return Selection{Mask: m, Masking: masking}
}

// AtPart anchors the mask at the part instead of inferring it.
func (s Selection) AtPart() Selection {
	s.Anchor = AnchorPart
	return s
}

// AtOrigin anchors the mask at the field origin instead of inferring it.
func (s Selection) AtOrigin() Selection {
	s.Anchor = AnchorOrigin
	return s
}

// selector answers whether a pixel of a resolved part is selected.
// Coordinates are relative to the part.
type selector struct {
	data     []bool // nil selects everything
	xres     int
	col, row int
	want     bool
}

func (s *selector) all() bool { return s.data == nil }

func (s *selector) in(j, i int) bool {
	if s.data == nil {
		return true
	}
	return s.data[(s.row+i)*s.xres+s.col+j] == s.want
}

// checkPart normalizes part against f. It returns false for an empty part or
// one lying entirely outside the field and panics for a part that is only
// partially outside.
func (f *Field) checkPart(part *Part) (Part, bool) {
	if part == nil {
		return Part{Width: f.xres, Height: f.yres}, true
	}
	p := *part
	if p.Empty() || p.Col >= f.xres || p.Row >= f.yres ||
		p.Col+p.Width <= 0 || p.Row+p.Height <= 0 {
		return p, false
	}
	if p.Col < 0 || p.Row < 0 || p.Col+p.Width > f.xres || p.Row+p.Height > f.yres {
		panic(fmt.Sprintf("field: part %v outside %dx%d", p, f.xres, f.yres))
	}
	return p, true
}

// checkMask resolves part and the selection into a uniform form. A missing
// mask demotes the selection to MaskIgnore.
func (f *Field) checkMask(part *Part, sel Selection) (Part, selector, bool) {
	p, ok := f.checkPart(part)
	if !ok {
		return p, selector{}, false
	}
	if sel.Mask == nil || sel.Masking == MaskIgnore {
		return p, selector{}, true
	}
	if sel.Masking != MaskInclude && sel.Masking != MaskExclude {
		panic(fmt.Sprintf("field: invalid masking %d", int(sel.Masking)))
	}
	m := sel.Mask
	mx, my := m.XRes(), m.YRes()
	fullSize := mx == f.xres && my == f.yres
	partSize := mx == p.Width && my == p.Height
	s := selector{data: m.Data(), xres: mx, want: sel.Masking == MaskInclude}
	switch {
	case sel.Anchor == AnchorOrigin && fullSize,
		sel.Anchor == AnchorAuto && fullSize:
		s.col, s.row = p.Col, p.Row
	case sel.Anchor == AnchorPart && partSize,
		sel.Anchor == AnchorAuto && partSize:
	default:
		panic(fmt.Sprintf("field: mask %dx%d matches neither field %dx%d nor part %v",
			mx, my, f.xres, f.yres, p))
	}
	return p, s, true
}

// checkTarget resolves part and the position in target where the result
// for the part origin goes. The target must have the dimensions of either
// the field or the part.
func (f *Field) checkTarget(target *Field, part *Part) (p Part, tcol, trow int, ok bool) {
	if target == nil {
		panic("field: nil target")
	}
	p, ok = f.checkPart(part)
	if !ok {
		return p, 0, 0, false
	}
	switch {
	case target.xres == f.xres && target.yres == f.yres:
		return p, p.Col, p.Row, true
	case target.xres == p.Width && target.yres == p.Height:
		return p, 0, 0, true
	}
	panic(fmt.Sprintf("field: target %dx%d matches neither field %dx%d nor part %v",
		target.xres, target.yres, f.xres, f.yres, p))
}

// each calls fn with the buffer index of every selected pixel of p.
func (f *Field) each(p Part, s *selector, fn func(k int)) {
	for i := 0; i < p.Height; i++ {
		base := (p.Row+i)*f.xres + p.Col
		for j := 0; j < p.Width; j++ {
			if s.in(j, i) {
				fn(base + j)
			}
		}
	}
}

// selected copies the selected samples of p into a new slice.
func (f *Field) selected(p Part, s *selector) []float64 {
	out := make([]float64, 0, p.Width*p.Height)
	f.each(p, s, func(k int) { out = append(out, f.data[k]) })
	return out
}
