package field

import (
	"fmt"
	"math"

	"github.com/banshee-data/surface.report/internal/surface/mask"
)

// AllGrains selects every set pixel of the mask in LaplaceSolve.
const AllGrains = -1

// LaplaceSolve replaces the pixels of grain (numbered as by
// mask.NumberGrains; 0 is the unset background, AllGrains every set pixel)
// with the solution of the discrete Laplace equation whose boundary values
// are the surrounding pixels. Each replaced pixel ends up as the average of
// its neighbours inside the field. Other pixels are not modified; NaN ones
// are not used as boundary values. It returns the number of sweeps.
func (f *Field) LaplaceSolve(m *mask.Field, grain int, opts Options) int {
	if m == nil || m.XRes() != f.xres || m.YRes() != f.yres {
		panic("field: Laplace mask missing or of different size")
	}
	grains, ngrains := m.NumberGrains()
	if grain < AllGrains || grain > ngrains {
		panic(fmt.Sprintf("field: grain %d out of range 0..%d", grain, ngrains))
	}
	data := m.Data()
	target := func(k int) bool {
		if grain == AllGrains {
			return data[k]
		}
		return grains[k] == grain
	}

	var unknown []int
	isUnknown := make([]bool, len(f.data))
	colMin, colMax, rowMin, rowMax := f.xres, -1, f.yres, -1
	for k := range f.data {
		if !target(k) {
			continue
		}
		unknown = append(unknown, k)
		isUnknown[k] = true
		col, row := k%f.xres, k/f.xres
		colMin, colMax = min(colMin, col), max(colMax, col)
		rowMin, rowMax = min(rowMin, row), max(rowMax, row)
	}
	if len(unknown) == 0 {
		return 0
	}

	// Neighbour lists; known NaN neighbours are left out.
	neighbours := make([][]int, len(unknown))
	var known, scale float64
	nknown := 0
	for u, k := range unknown {
		col, row := k%f.xres, k/f.xres
		add := func(q int) {
			if !isUnknown[q] {
				v := f.data[q]
				if math.IsNaN(v) {
					return
				}
				known += v
				nknown++
				scale = math.Max(scale, math.Abs(v))
			}
			neighbours[u] = append(neighbours[u], q)
		}
		if col > 0 {
			add(k - 1)
		}
		if col+1 < f.xres {
			add(k + 1)
		}
		if row > 0 {
			add(k - f.xres)
		}
		if row+1 < f.yres {
			add(k + f.xres)
		}
	}
	init := 0.0
	if nknown > 0 {
		init = known / float64(nknown)
	}
	for _, k := range unknown {
		f.data[k] = init
	}
	if scale == 0 {
		scale = 1
	}

	size := max(colMax-colMin, rowMax-rowMin) + 1
	omega := 2 / (1 + math.Sin(math.Pi/float64(size+1)))
	tol := opts.LaplaceTolerance * scale
	iter := 0
	for iter < opts.LaplaceMaxIterations {
		iter++
		var maxDelta float64
		for u, k := range unknown {
			nb := neighbours[u]
			if len(nb) == 0 {
				continue
			}
			var s float64
			for _, q := range nb {
				s += f.data[q]
			}
			d := omega * (s/float64(len(nb)) - f.data[k])
			f.data[k] += d
			maxDelta = math.Max(maxDelta, math.Abs(d))
		}
		if maxDelta <= tol {
			diagf("Laplace solve of %d pixels converged in %d sweeps", len(unknown), iter)
			f.changed(nil)
			return iter
		}
	}
	opsf("Laplace solve of %d pixels stopped after %d sweeps without converging", len(unknown), iter)
	f.changed(nil)
	return iter
}
