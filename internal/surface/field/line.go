package field

import "gonum.org/v1/gonum/floats"

// Line is a one-dimensional sampled function such as a distribution or a
// correlation function. Sample i sits at Off + (i+0.5)·DX().
type Line struct {
	Data  []float64 `json:"data"`
	Real  float64   `json:"real"`
	Off   float64   `json:"off"`
	XUnit string    `json:"x_unit,omitempty"`
	YUnit string    `json:"y_unit,omitempty"`
}

// NewLine creates a zero-filled line of res samples spanning real.
func NewLine(res int, real float64) *Line {
	return &Line{Data: make([]float64, res), Real: real}
}

// Res returns the number of samples.
func (l *Line) Res() int { return len(l.Data) }

// Empty reports whether the line has no samples, which is how operations
// report that there was no data.
func (l *Line) Empty() bool { return len(l.Data) == 0 }

// DX returns the sample spacing.
func (l *Line) DX() float64 {
	if len(l.Data) == 0 {
		return 0
	}
	return l.Real / float64(len(l.Data))
}

// X returns the abscissa of sample i.
func (l *Line) X(i int) float64 { return l.Off + (float64(i)+0.5)*l.DX() }

// Integral returns the sum of samples times the sample spacing.
func (l *Line) Integral() float64 { return floats.Sum(l.Data) * l.DX() }
