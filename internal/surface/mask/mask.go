// Package mask owns the boolean grid used to select pixels of a field.
//
// Responsibilities: the mask grid itself, rectangular parts, logical
// combination, and grain (connected component) bookkeeping.
// Key types: Field, Part, LogicalOp.
//
// Dependency rule: may depend on congruence only. The data field package
// builds on top of this one, never the other way round.
package mask

import (
	"fmt"

	"github.com/banshee-data/surface.report/internal/surface/congruence"
)

// Part names a rectangular sub-region of a grid. A nil *Part means the
// whole grid wherever a part is accepted.
type Part struct {
	Col    int `json:"col"`
	Row    int `json:"row"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (p Part) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", p.Width, p.Height, p.Col, p.Row)
}

// Empty reports whether the part has no pixels.
func (p Part) Empty() bool {
	return p.Width <= 0 || p.Height <= 0
}

// Field is a boolean grid of xres×yres pixels stored row by row.
type Field struct {
	xres, yres int
	data       []bool

	// Grain numbering cache, dropped by Invalidate.
	grains     []int
	ngrains    int
	grainSizes []int
	grainBoxes []Part
}

// New creates an all-false mask of the given size.
func New(xres, yres int) *Field {
	if xres <= 0 || yres <= 0 {
		panic(fmt.Sprintf("mask: invalid size %dx%d", xres, yres))
	}
	return &Field{xres: xres, yres: yres, data: make([]bool, xres*yres)}
}

// FromData wraps a copy of data as an xres×yres mask.
func FromData(xres, yres int, data []bool) *Field {
	m := New(xres, yres)
	if len(data) != xres*yres {
		panic(fmt.Sprintf("mask: %d values do not fill %dx%d", len(data), xres, yres))
	}
	copy(m.data, data)
	return m
}

func (m *Field) XRes() int { return m.xres }
func (m *Field) YRes() int { return m.yres }

// Data exposes the raw buffer. Call Invalidate after writing to it.
func (m *Field) Data() []bool { return m.data }

// Invalidate drops cached grain information.
func (m *Field) Invalidate() {
	m.grains = nil
	m.ngrains = 0
	m.grainSizes = nil
	m.grainBoxes = nil
}

func (m *Field) Get(col, row int) bool {
	m.checkPixel(col, row)
	return m.data[row*m.xres+col]
}

func (m *Field) Set(col, row int, v bool) {
	m.checkPixel(col, row)
	m.data[row*m.xres+col] = v
	m.Invalidate()
}

func (m *Field) checkPixel(col, row int) {
	if col < 0 || col >= m.xres || row < 0 || row >= m.yres {
		panic(fmt.Sprintf("mask: pixel (%d,%d) outside %dx%d", col, row, m.xres, m.yres))
	}
}

// Resolve normalizes part against the mask and panics when it does not fit.
// The second return value is false for an empty part.
func (m *Field) Resolve(part *Part) (Part, bool) {
	if part == nil {
		return Part{Width: m.xres, Height: m.yres}, true
	}
	p := *part
	if p.Empty() || p.Col >= m.xres || p.Row >= m.yres {
		return p, false
	}
	if p.Col < 0 || p.Row < 0 || p.Col+p.Width > m.xres || p.Row+p.Height > m.yres {
		panic(fmt.Sprintf("mask: part %v outside %dx%d", p, m.xres, m.yres))
	}
	return p, true
}

// Clone returns a deep copy without the grain cache.
func (m *Field) Clone() *Field {
	return FromData(m.xres, m.yres, m.data)
}

// NewPart copies a rectangular part into a new mask.
func (m *Field) NewPart(part *Part) *Field {
	p, ok := m.Resolve(part)
	if !ok {
		panic(fmt.Sprintf("mask: empty part %v", p))
	}
	out := New(p.Width, p.Height)
	for i := 0; i < p.Height; i++ {
		copy(out.data[i*p.Width:(i+1)*p.Width], m.data[(p.Row+i)*m.xres+p.Col:])
	}
	return out
}

// Count returns the number of pixels in part equal to value.
func (m *Field) Count(part *Part, value bool) int {
	p, ok := m.Resolve(part)
	if !ok {
		return 0
	}
	n := 0
	for i := p.Row; i < p.Row+p.Height; i++ {
		row := m.data[i*m.xres+p.Col : i*m.xres+p.Col+p.Width]
		for _, v := range row {
			if v == value {
				n++
			}
		}
	}
	return n
}

// Fill sets every pixel in part to value.
func (m *Field) Fill(part *Part, value bool) {
	p, ok := m.Resolve(part)
	if !ok {
		return
	}
	for i := p.Row; i < p.Row+p.Height; i++ {
		row := m.data[i*m.xres+p.Col : i*m.xres+p.Col+p.Width]
		for j := range row {
			row[j] = value
		}
	}
	m.Invalidate()
}

// LogicalOp combines a mask pixel A with an operand pixel B.
type LogicalOp int

const (
	LogicalAnd LogicalOp = iota
	LogicalOr
	LogicalXor
	LogicalNotA
	LogicalAndNotB
)

// Logical replaces every pixel a with op(a, b). operand may be nil for
// LogicalNotA; otherwise it must have the same dimensions.
func (m *Field) Logical(op LogicalOp, operand *Field) {
	if op != LogicalNotA {
		if operand == nil || operand.xres != m.xres || operand.yres != m.yres {
			panic("mask: logical operand missing or of different size")
		}
	}
	for i, a := range m.data {
		switch op {
		case LogicalAnd:
			m.data[i] = a && operand.data[i]
		case LogicalOr:
			m.data[i] = a || operand.data[i]
		case LogicalXor:
			m.data[i] = a != operand.data[i]
		case LogicalNotA:
			m.data[i] = !a
		case LogicalAndNotB:
			m.data[i] = a && !operand.data[i]
		default:
			panic(fmt.Sprintf("mask: unknown logical operation %d", int(op)))
		}
	}
	m.Invalidate()
}

// TransformCongruent applies t in place, swapping dimensions as needed.
func (m *Field) TransformCongruent(t congruence.Transform) {
	out := make([]bool, len(m.data))
	congruence.Permute(t, m.data, out, m.xres, m.yres)
	m.xres, m.yres = t.Dims(m.xres, m.yres)
	m.data = out
	m.Invalidate()
}

// NewCongruent returns a transformed copy of part.
func (m *Field) NewCongruent(part *Part, t congruence.Transform) *Field {
	out := m.NewPart(part)
	out.TransformCongruent(t)
	return out
}
