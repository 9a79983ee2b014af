// Package congruence owns the eight symmetries of a rectangular grid.
//
// Responsibilities: the transform enum, the fixed composition table, inverses,
// and the index mapping that fields and masks use to move pixels.
// Key types: Transform.
//
// Dependency rule: leaf package, imported by mask and field.
package congruence

import "fmt"

// Transform is one of the eight grid symmetries.
type Transform int

const (
	Identity                Transform = iota // i
	MirrorHorizontal                         // h: reverses columns
	MirrorVertical                           // v: reverses rows
	MirrorDiagonal                           // d: transpose
	MirrorAntidiagonal                       // a: transpose then mirror both
	MirrorBoth                               // c: reverses rows and columns
	RotateClockwise                          // r
	RotateCounterclockwise                   // l
)

// Count is the order of the group.
const Count = 8

var names = [Count]string{
	"identity",
	"mirror-horizontal",
	"mirror-vertical",
	"mirror-diagonal",
	"mirror-antidiagonal",
	"mirror-both",
	"rotate-clockwise",
	"rotate-counterclockwise",
}

// table[first][second] is the single transform equal to applying first,
// then second.
var table = [Count][Count]Transform{
	{Identity, MirrorHorizontal, MirrorVertical, MirrorDiagonal, MirrorAntidiagonal, MirrorBoth, RotateClockwise, RotateCounterclockwise},
	{MirrorHorizontal, Identity, MirrorBoth, RotateCounterclockwise, RotateClockwise, MirrorVertical, MirrorAntidiagonal, MirrorDiagonal},
	{MirrorVertical, MirrorBoth, Identity, RotateClockwise, RotateCounterclockwise, MirrorHorizontal, MirrorDiagonal, MirrorAntidiagonal},
	{MirrorDiagonal, RotateClockwise, RotateCounterclockwise, Identity, MirrorBoth, MirrorAntidiagonal, MirrorHorizontal, MirrorVertical},
	{MirrorAntidiagonal, RotateCounterclockwise, RotateClockwise, MirrorBoth, Identity, MirrorDiagonal, MirrorVertical, MirrorHorizontal},
	{MirrorBoth, MirrorVertical, MirrorHorizontal, MirrorAntidiagonal, MirrorDiagonal, Identity, RotateCounterclockwise, RotateClockwise},
	{RotateClockwise, MirrorDiagonal, MirrorAntidiagonal, MirrorVertical, MirrorHorizontal, RotateCounterclockwise, MirrorBoth, Identity},
	{RotateCounterclockwise, MirrorAntidiagonal, MirrorDiagonal, MirrorHorizontal, MirrorVertical, RotateClockwise, Identity, MirrorBoth},
}

// Valid reports whether t names one of the eight transforms.
func (t Transform) Valid() bool {
	return t >= Identity && t <= RotateCounterclockwise
}

func (t Transform) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Transform(%d)", int(t))
	}
	return names[t]
}

// Parse converts a transform name as printed by String back to a Transform.
func Parse(s string) (Transform, error) {
	for i, n := range names {
		if n == s {
			return Transform(i), nil
		}
	}
	return Identity, fmt.Errorf("unknown congruence transform %q", s)
}

func mustValid(t Transform) {
	if !t.Valid() {
		panic(fmt.Sprintf("congruence: invalid transform %d", int(t)))
	}
}

// Compose returns the transform equivalent to applying first and then second.
func Compose(first, second Transform) Transform {
	mustValid(first)
	mustValid(second)
	return table[first][second]
}

// Invert returns the transform undoing t. The rotations are mutual inverses,
// everything else is its own inverse.
func Invert(t Transform) Transform {
	mustValid(t)
	switch t {
	case RotateClockwise:
		return RotateCounterclockwise
	case RotateCounterclockwise:
		return RotateClockwise
	}
	return t
}

// SwapsAxes reports whether t exchanges the x and y dimensions.
func (t Transform) SwapsAxes() bool {
	mustValid(t)
	switch t {
	case MirrorDiagonal, MirrorAntidiagonal, RotateClockwise, RotateCounterclockwise:
		return true
	}
	return false
}

// Dims returns the dimensions of an xres×yres grid after applying t.
func (t Transform) Dims(xres, yres int) (int, int) {
	if t.SwapsAxes() {
		return yres, xres
	}
	return xres, yres
}

// Map returns the destination position of source pixel (col, row) in an
// xres×yres grid.
func (t Transform) Map(xres, yres, col, row int) (int, int) {
	switch t {
	case Identity:
		return col, row
	case MirrorHorizontal:
		return xres - 1 - col, row
	case MirrorVertical:
		return col, yres - 1 - row
	case MirrorBoth:
		return xres - 1 - col, yres - 1 - row
	case MirrorDiagonal:
		return row, col
	case MirrorAntidiagonal:
		return yres - 1 - row, xres - 1 - col
	case RotateClockwise:
		return yres - 1 - row, col
	case RotateCounterclockwise:
		return row, xres - 1 - col
	}
	panic(fmt.Sprintf("congruence: invalid transform %d", int(t)))
}

// Permute moves the row-major src (xres×yres) into dst according to t. dst
// must have the same length and must not alias src.
func Permute[T any](t Transform, src, dst []T, xres, yres int) {
	mustValid(t)
	if len(src) != xres*yres || len(dst) != len(src) {
		panic(fmt.Sprintf("congruence: buffer length %d/%d does not match %dx%d", len(src), len(dst), xres, yres))
	}
	nxres, _ := t.Dims(xres, yres)
	for row := 0; row < yres; row++ {
		for col := 0; col < xres; col++ {
			c, r := t.Map(xres, yres, col, row)
			dst[r*nxres+c] = src[row*xres+col]
		}
	}
}
