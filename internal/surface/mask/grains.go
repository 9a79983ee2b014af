package mask

// Label numbers the 4-connected components of the pixels for which in
// returns true. Components are numbered 1, 2, ... in the scan order of their
// first pixel; pixels outside every component get 0.
func Label(xres, yres int, in func(k int) bool) ([]int, int) {
	labels := make([]int, xres*yres)
	n := 0
	var stack []int
	for k := range labels {
		if labels[k] != 0 || !in(k) {
			continue
		}
		n++
		labels[k] = n
		stack = append(stack[:0], k)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			col, row := p%xres, p/xres
			visit := func(q int) {
				if labels[q] == 0 && in(q) {
					labels[q] = n
					stack = append(stack, q)
				}
			}
			if col > 0 {
				visit(p - 1)
			}
			if col+1 < xres {
				visit(p + 1)
			}
			if row > 0 {
				visit(p - xres)
			}
			if row+1 < yres {
				visit(p + xres)
			}
		}
	}
	return labels, n
}

// NumberGrains returns the grain number of each pixel and the number of
// grains. Empty space is 0. The returned slice is owned by the mask and is
// valid until the next modification.
func (m *Field) NumberGrains() ([]int, int) {
	if m.grains == nil {
		m.grains, m.ngrains = Label(m.xres, m.yres, func(k int) bool { return m.data[k] })
	}
	return m.grains, m.ngrains
}

// GrainCount returns the number of grains.
func (m *Field) GrainCount() int {
	_, n := m.NumberGrains()
	return n
}

func (m *Field) grainProperties() {
	if m.grainSizes != nil {
		return
	}
	grains, n := m.NumberGrains()
	sizes := make([]int, n+1)
	boxes := make([]Part, n+1)
	maxCol := make([]int, n+1)
	maxRow := make([]int, n+1)
	for id := range boxes {
		boxes[id] = Part{Col: m.xres, Row: m.yres}
		maxCol[id], maxRow[id] = -1, -1
	}
	for k, id := range grains {
		col, row := k%m.xres, k/m.xres
		b := &boxes[id]
		b.Col = min(b.Col, col)
		b.Row = min(b.Row, row)
		maxCol[id] = max(maxCol[id], col)
		maxRow[id] = max(maxRow[id], row)
		sizes[id]++
	}
	for id := range boxes {
		if sizes[id] == 0 {
			// Only the background can be empty.
			boxes[id] = Part{}
			continue
		}
		boxes[id].Width = maxCol[id] + 1 - boxes[id].Col
		boxes[id].Height = maxRow[id] + 1 - boxes[id].Row
	}
	m.grainSizes, m.grainBoxes = sizes, boxes
}

// GrainSizes returns the pixel count of each grain, indexed by grain number.
// Item 0 counts the empty space.
func (m *Field) GrainSizes() []int {
	m.grainProperties()
	return m.grainSizes
}

// GrainBoundingBoxes returns the bounding box of each grain, indexed by
// grain number. Item 0 bounds the empty space and is zero when there is none.
func (m *Field) GrainBoundingBoxes() []Part {
	m.grainProperties()
	return m.grainBoxes
}

// RemoveGrain clears all pixels of grain id. Remaining grains are renumbered.
func (m *Field) RemoveGrain(id int) {
	grains, n := m.NumberGrains()
	if id < 1 || id > n {
		panic("mask: grain id out of range")
	}
	for k, g := range grains {
		if g == id {
			m.data[k] = false
		}
	}
	m.Invalidate()
}
